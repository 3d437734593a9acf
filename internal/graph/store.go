package graph

import (
	"strings"

	"branchchat/pkg/errors"
	"branchchat/pkg/logger"
	"go.uber.org/zap"
)

// Store is the authoritative topic graph for one session: an arena of node
// records keyed by id, with parent/child relations held as id references.
// It is not goroutine-safe; the owning session serializes access.
type Store struct {
	nodes  map[string]*Node
	order  []string // insertion order, fixes FindParentCandidate's tie-break
	logger *zap.Logger
}

// NewStore creates a store seeded with the root node
func NewStore() *Store {
	s := &Store{
		nodes:  make(map[string]*Node),
		logger: logger.Get(),
	}
	s.insert(&Node{ID: RootID, Keyword: RootKeyword})
	return s
}

func (s *Store) insert(n *Node) {
	s.nodes[n.ID] = n
	s.order = append(s.order, n.ID)
}

// UpsertDialog appends a dialog entry to nodeID, creating the node with the
// given keyword when it does not exist yet. Nodes are never split or merged;
// dialogs are append-only.
func (s *Store) UpsertDialog(nodeID, keyword, userMessage, gptMessage string) {
	n, ok := s.nodes[nodeID]
	if !ok {
		n = &Node{ID: nodeID}
		s.insert(n)
		s.logger.Debug("Topic node created",
			zap.String("node_id", nodeID),
			zap.String("keyword", keyword),
		)
	}
	n.Keyword = keyword
	n.Dialogs = append(n.Dialogs, Dialog{UserMessage: userMessage, GPTMessage: gptMessage})
}

// LinkParent records the one-time parent link of nodeID and registers it as a
// child of parentID. Links are immutable once set.
func (s *Store) LinkParent(nodeID, parentID, relation string) error {
	if nodeID == parentID {
		return errors.NewInvalidLink(nodeID, parentID, "node cannot be its own parent")
	}
	n, ok := s.nodes[nodeID]
	if !ok {
		return errors.NewInvalidLink(nodeID, parentID, "node does not exist")
	}
	if n.ParentID != "" {
		return errors.NewInvalidLink(nodeID, parentID, "node already has a parent")
	}
	p, ok := s.nodes[parentID]
	if !ok {
		return errors.NewInvalidLink(nodeID, parentID, "parent does not exist")
	}

	n.ParentID = parentID
	n.Relation = relation
	p.Children = append(p.Children, nodeID)

	s.logger.Debug("Topic nodes linked",
		zap.String("node_id", nodeID),
		zap.String("parent_id", parentID),
		zap.String("relation", relation),
	)
	return nil
}

// FindByKeyword returns the id of the node holding exactly this keyword.
// Keywords are unique, so at most one node can match.
func (s *Store) FindByKeyword(keyword string) (string, bool) {
	for _, id := range s.order {
		if s.nodes[id].Keyword == keyword {
			return id, true
		}
	}
	return "", false
}

// FindParentCandidate picks a fallback parent for a new keyword: the first
// node, in insertion order, whose keyword is a substring of the new one, or
// the root when none matches.
func (s *Store) FindParentCandidate(keyword string) string {
	for _, id := range s.order {
		existing := s.nodes[id].Keyword
		if existing != "" && strings.Contains(keyword, existing) {
			return id
		}
	}
	return RootID
}

// Contains reports whether a node with this id exists
func (s *Store) Contains(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Get returns a copy of the node with this id
func (s *Store) Get(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.clone(), true
}

// Len returns the number of nodes in the store
func (s *Store) Len() int {
	return len(s.nodes)
}

// Snapshot returns a copy of the full node map
func (s *Store) Snapshot() map[string]Node {
	out := make(map[string]Node, len(s.nodes))
	for id, n := range s.nodes {
		out[id] = n.clone()
	}
	return out
}

