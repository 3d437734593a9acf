package graph

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolution is the outcome of resolving a keyword against the store
type Resolution struct {
	NodeID   string
	ParentID string // effective parent; empty when reusing an existing node
	IsNew    bool
}

// Resolve decides whether a keyword maps to an existing node or needs a new
// one, and mints the child id in the latter case. It only reads from the
// store; the caller commits the resulting writes, which keeps resolution
// testable on its own.
func Resolve(keyword, suggestedParentID string, s *Store) Resolution {
	if id, ok := s.FindByKeyword(keyword); ok {
		return Resolution{NodeID: id}
	}

	parentID := suggestedParentID
	if parentID == "" || !s.Contains(parentID) {
		parentID = s.FindParentCandidate(keyword)
	}

	return Resolution{
		NodeID:   fmt.Sprintf("%s-%d", parentID, nextChildSeq(s, parentID)),
		ParentID: parentID,
		IsNew:    true,
	}
}

// nextChildSeq returns 1 + the largest numeric suffix among the parent's
// current children. Sequences start at 1 and are never reused; a child id
// without a numeric suffix contributes nothing.
func nextChildSeq(s *Store, parentID string) int {
	maxSuffix := 0
	if parent, ok := s.Get(parentID); ok {
		for _, childID := range parent.Children {
			parts := strings.Split(childID, "-")
			if suffix, err := strconv.Atoi(parts[len(parts)-1]); err == nil && suffix > maxSuffix {
				maxSuffix = suffix
			}
		}
	}
	return maxSuffix + 1
}
