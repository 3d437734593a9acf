package session

import (
	"sync"

	"branchchat/internal/graph"
	"branchchat/pkg/logger"
	"go.uber.org/zap"
)

// Session holds one conversation: its turn log, its topic graph and its
// context-mode flags. Turns are serialized per session (turnMu); the short
// mutex guards the state itself so graph/turn snapshots stay safe while a
// turn is in flight.
type Session struct {
	ID string

	turnMu sync.Mutex // held for the whole of one orchestrated turn
	mu     sync.Mutex // guards turns, store and flags

	turns  []Turn
	store  *graph.Store
	flags  ContextFlags
	logger *zap.Logger
}

// New creates a session whose graph holds only the root node
func New(id string) *Session {
	return &Session{
		ID:     id,
		store:  graph.NewStore(),
		logger: logger.Get().With(zap.String("session_id", id)),
	}
}

// BeginTurn blocks until no other turn is running in this session. Every
// BeginTurn must be paired with EndTurn.
func (s *Session) BeginTurn() {
	s.turnMu.Lock()
}

// EndTurn releases the turn slot
func (s *Session) EndTurn() {
	s.turnMu.Unlock()
}

// AppendTurn assigns the next sequential number to a message and records it.
// New turns start filed under the root node until classified.
func (s *Session) AppendTurn(role, content string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := Turn{
		Number:  len(s.turns) + 1,
		Role:    role,
		Content: content,
		NodeID:  graph.RootID,
	}
	s.turns = append(s.turns, t)
	return t
}

// FileTurn re-files an already-numbered turn under a topic node
func (s *Session) FileTurn(number int, nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if number >= 1 && number <= len(s.turns) {
		s.turns[number-1].NodeID = nodeID
	}
}

// Turns returns a copy of the full turn log
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Turn(nil), s.turns...)
}

// Graph returns a copy of the full node map
func (s *Session) Graph() map[string]graph.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// RestrictedView applies the current context flags to the turn log and node
// map and returns the filtered copies passed to the oracle calls
func (s *Session) RestrictedView() ([]Turn, map[string]graph.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Restrict(s.turns, s.store.Snapshot(), s.flags.ActiveTurnNumbers, s.flags.ActiveNodeIDs, s.flags.Enabled)
}

// Flags returns a copy of the context-mode flags
func (s *Session) Flags() ContextFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyFlags(s.flags)
}

// SetFlags replaces the context-mode flags. They are owned by the UI layer;
// the core never edits them.
func (s *Session) SetFlags(f ContextFlags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = copyFlags(f)
	s.logger.Debug("Context flags updated",
		zap.Bool("enabled", f.Enabled),
		zap.Int("active_turns", len(f.ActiveTurnNumbers)),
		zap.Int("active_nodes", len(f.ActiveNodeIDs)),
	)
}

// Resolve maps a keyword to a node id against the current graph without
// mutating it
func (s *Session) Resolve(keyword, suggestedParentID string) graph.Resolution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return graph.Resolve(keyword, suggestedParentID, s.store)
}

// Commit applies one resolution to the graph: a dialog append for existing
// nodes, or node creation plus the one-time parent link for new ones.
func (s *Session) Commit(res graph.Resolution, keyword, userMessage, gptMessage, relation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.store.UpsertDialog(res.NodeID, keyword, userMessage, gptMessage)
	if res.IsNew {
		if err := s.store.LinkParent(res.NodeID, res.ParentID, relation); err != nil {
			return err
		}
	}
	return nil
}

func copyFlags(f ContextFlags) ContextFlags {
	out := ContextFlags{Enabled: f.Enabled}
	if f.ActiveTurnNumbers != nil {
		out.ActiveTurnNumbers = make(map[int]bool, len(f.ActiveTurnNumbers))
		for n, v := range f.ActiveTurnNumbers {
			out.ActiveTurnNumbers[n] = v
		}
	}
	if f.ActiveNodeIDs != nil {
		out.ActiveNodeIDs = make(map[string]bool, len(f.ActiveNodeIDs))
		for id, v := range f.ActiveNodeIDs {
			out.ActiveNodeIDs[id] = v
		}
	}
	return out
}
