package session

import (
	"reflect"
	"testing"

	"branchchat/internal/graph"
)

func sampleTurns(n int) []Turn {
	turns := make([]Turn, 0, n)
	for i := 1; i <= n; i++ {
		role := RoleUser
		if i%2 == 0 {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Number: i, Role: role, Content: "msg", NodeID: graph.RootID})
	}
	return turns
}

func TestRestrict_DisabledIsIdentity(t *testing.T) {
	turns := sampleTurns(5)
	nodes := map[string]graph.Node{
		"root":   {ID: "root", Keyword: "root"},
		"root-1": {ID: "root-1", Keyword: "jazz"},
	}

	// Active sets must be irrelevant when context mode is off
	outTurns, outNodes := Restrict(turns, nodes, map[int]bool{2: true}, map[string]bool{"root": true}, false)

	if !reflect.DeepEqual(outTurns, turns) {
		t.Errorf("Expected identical turns, got %v", outTurns)
	}
	if !reflect.DeepEqual(outNodes, nodes) {
		t.Errorf("Expected identical nodes, got %v", outNodes)
	}
}

func TestRestrict_ActiveTurnSubset(t *testing.T) {
	turns := sampleTurns(5)

	outTurns, _ := Restrict(turns, nil, map[int]bool{2: true, 4: true}, nil, true)

	if len(outTurns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(outTurns))
	}
	if outTurns[0].Number != 2 || outTurns[1].Number != 4 {
		t.Errorf("Expected turns [2 4] in order, got [%d %d]", outTurns[0].Number, outTurns[1].Number)
	}
}

func TestRestrict_ActiveNodeSubset(t *testing.T) {
	nodes := map[string]graph.Node{
		"root":   {ID: "root", Keyword: "root"},
		"root-1": {ID: "root-1", Keyword: "jazz"},
		"root-2": {ID: "root-2", Keyword: "cooking"},
	}

	_, outNodes := Restrict(nil, nodes, nil, map[string]bool{"root-1": true}, true)

	if len(outNodes) != 1 {
		t.Fatalf("Expected 1 node, got %d", len(outNodes))
	}
	if _, ok := outNodes["root-1"]; !ok {
		t.Error("Expected root-1 to survive the restriction")
	}
}

func TestRestrict_ReturnsCopies(t *testing.T) {
	turns := sampleTurns(3)
	nodes := map[string]graph.Node{"root": {ID: "root", Keyword: "root"}}

	outTurns, outNodes := Restrict(turns, nodes, nil, nil, false)
	outTurns[0].Content = "mutated"
	outNodes["extra"] = graph.Node{ID: "extra"}

	if turns[0].Content == "mutated" {
		t.Error("Restrict returned an aliased turn slice")
	}
	if _, ok := nodes["extra"]; ok {
		t.Error("Restrict returned an aliased node map")
	}
}
