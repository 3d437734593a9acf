package graph

import "testing"

func TestResolve_ExistingKeyword(t *testing.T) {
	s := NewStore()
	s.UpsertDialog("root-1", "jazz", "q", "a")
	_ = s.LinkParent("root-1", RootID, "related")

	res := Resolve("jazz", "", s)
	if res.IsNew {
		t.Error("Expected existing node, got new")
	}
	if res.NodeID != "root-1" {
		t.Errorf("Expected root-1, got '%s'", res.NodeID)
	}
}

func TestResolve_NewKeywordUnderRoot(t *testing.T) {
	s := NewStore()

	res := Resolve("jazz", "", s)
	if !res.IsNew {
		t.Fatal("Expected new node")
	}
	if res.NodeID != "root-1" {
		t.Errorf("Expected first child id root-1, got '%s'", res.NodeID)
	}
	if res.ParentID != RootID {
		t.Errorf("Expected effective parent root, got '%s'", res.ParentID)
	}
}

func TestResolve_SuggestedParentUsedWhenValid(t *testing.T) {
	s := NewStore()
	s.UpsertDialog("root-1", "music", "q", "a")
	_ = s.LinkParent("root-1", RootID, "related")

	res := Resolve("jazz", "root-1", s)
	if res.NodeID != "root-1-1" || res.ParentID != "root-1" {
		t.Errorf("Expected root-1-1 under root-1, got '%s' under '%s'", res.NodeID, res.ParentID)
	}
}

func TestResolve_InvalidSuggestedParentFallsBack(t *testing.T) {
	s := NewStore()
	s.UpsertDialog("root-1", "music", "q", "a")
	_ = s.LinkParent("root-1", RootID, "related")

	// Unknown parent id: substring fallback picks the "music" node
	res := Resolve("jazz music", "ghost-7", s)
	if res.ParentID != "root-1" {
		t.Errorf("Expected substring fallback to root-1, got '%s'", res.ParentID)
	}

	// No substring match either: root
	res = Resolve("cooking", "ghost-7", s)
	if res.ParentID != RootID {
		t.Errorf("Expected root fallback, got '%s'", res.ParentID)
	}
}

func TestResolve_ChildSeqMonotonic(t *testing.T) {
	s := NewStore()
	s.UpsertDialog("root-1", "music", "q", "a")
	_ = s.LinkParent("root-1", RootID, "related")
	s.UpsertDialog("root-2", "cooking", "q", "a")
	_ = s.LinkParent("root-2", RootID, "related")

	res := Resolve("travel", RootID, s)
	if res.NodeID != "root-3" {
		t.Errorf("Expected root-3, got '%s'", res.NodeID)
	}

	s.UpsertDialog(res.NodeID, "travel", "q", "a")
	_ = s.LinkParent(res.NodeID, RootID, "related")

	res = Resolve("sports", RootID, s)
	if res.NodeID != "root-4" {
		t.Errorf("Expected root-4, got '%s'", res.NodeID)
	}
}

func TestResolve_NonNumericSuffixIgnored(t *testing.T) {
	s := NewStore()
	s.UpsertDialog("root-x", "music", "q", "a")
	_ = s.LinkParent("root-x", RootID, "related")

	res := Resolve("jazz", RootID, s)
	if res.NodeID != "root-1" {
		t.Errorf("Expected root-1 when only child has no numeric suffix, got '%s'", res.NodeID)
	}
}

func TestResolve_DoesNotMutateStore(t *testing.T) {
	s := NewStore()
	before := s.Len()

	_ = Resolve("jazz", "", s)
	_ = Resolve("blues", RootID, s)

	if s.Len() != before {
		t.Errorf("Resolve mutated the store: %d nodes before, %d after", before, s.Len())
	}
	root, _ := s.Get(RootID)
	if len(root.Children) != 0 {
		t.Errorf("Resolve registered children: %v", root.Children)
	}
}
