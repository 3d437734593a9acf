package chat

import (
	"context"

	"branchchat/internal/adapter"
	"branchchat/internal/graph"
	"branchchat/internal/session"
	"branchchat/pkg/logger"
	"go.uber.org/zap"
)

// DefaultRelation is the relation label used when the classifier omits one
const DefaultRelation = "related"

// Completer is the conversation-completion oracle
type Completer interface {
	Complete(ctx context.Context, history []adapter.Message, userText string) (string, error)
}

// Classifier is the keyword/parent/relation oracle
type Classifier interface {
	Classify(ctx context.Context, nodes map[string]graph.Node, userText, assistantText string) (*adapter.Classification, error)
}

// Mirror receives best-effort copies of committed graph mutations. Mirror
// failures never fail a turn.
type Mirror interface {
	MirrorUpsert(ctx context.Context, sessionID, nodeID, keyword, userMessage, gptMessage string) error
	MirrorLink(ctx context.Context, sessionID, nodeID, parentID, relation string) error
}

// TurnOutcome is what one handled turn produced
type TurnOutcome struct {
	Message string // assistant reply, returned regardless of classification
	Keyword string // empty when the classifier declined
	NodeID  string // node the exchange was filed under, empty when declined
	NewNode bool
}

// Orchestrator sequences one conversational turn: number the user message,
// obtain the assistant reply, classify the exchange, resolve node identity
// and commit the graph mutation.
type Orchestrator struct {
	completer  Completer
	classifier Classifier
	mirror     Mirror
	logger     *zap.Logger
}

// NewOrchestrator creates a new turn orchestrator
func NewOrchestrator(completer Completer, classifier Classifier) *Orchestrator {
	return &Orchestrator{
		completer:  completer,
		classifier: classifier,
		logger:     logger.Get(),
	}
}

// SetMirror attaches an optional graph mirror
func (o *Orchestrator) SetMirror(m Mirror) {
	o.mirror = m
}

// HandleTurn runs one full turn for a session. Oracle failures abort the
// turn before any graph mutation; a declined classification still returns
// the assistant reply.
func (o *Orchestrator) HandleTurn(ctx context.Context, sess *session.Session, userText string) (*TurnOutcome, error) {
	sess.BeginTurn()
	defer sess.EndTurn()

	userTurn := sess.AppendTurn(session.RoleUser, userText)

	o.logger.Debug("Starting turn",
		zap.String("session_id", sess.ID),
		zap.Int("turn", userTurn.Number),
	)

	restrictedTurns, _ := sess.RestrictedView()
	history := make([]adapter.Message, 0, len(restrictedTurns))
	for _, t := range restrictedTurns {
		if t.Number == userTurn.Number {
			continue // the new user text travels separately
		}
		history = append(history, adapter.Message{Role: t.Role, Content: t.Content})
	}

	reply, err := o.completer.Complete(ctx, history, userText)
	if err != nil {
		return nil, err
	}

	assistantTurn := sess.AppendTurn(session.RoleAssistant, reply)

	_, restrictedNodes := sess.RestrictedView()
	cls, err := o.classifier.Classify(ctx, restrictedNodes, userText, reply)
	if err != nil {
		return nil, err
	}

	if cls.Keyword == "" {
		o.logger.Debug("Classifier declined, no graph mutation",
			zap.String("session_id", sess.ID),
			zap.Int("turn", userTurn.Number),
		)
		return &TurnOutcome{Message: reply}, nil
	}

	// Identity resolution runs against the full store, not the restricted
	// view: keywords stay unique across the whole graph even in context mode.
	res := sess.Resolve(cls.Keyword, cls.ParentNodeID)

	relation := cls.Relation
	if relation == "" {
		relation = DefaultRelation
	}

	if err := sess.Commit(res, cls.Keyword, userText, reply, relation); err != nil {
		return nil, err
	}
	sess.FileTurn(userTurn.Number, res.NodeID)
	sess.FileTurn(assistantTurn.Number, res.NodeID)

	o.logger.Info("Turn filed",
		zap.String("session_id", sess.ID),
		zap.String("keyword", cls.Keyword),
		zap.String("node_id", res.NodeID),
		zap.Bool("new_node", res.IsNew),
	)

	if o.mirror != nil {
		if err := o.mirror.MirrorUpsert(ctx, sess.ID, res.NodeID, cls.Keyword, userText, reply); err != nil {
			o.logger.Warn("Graph mirror upsert failed", zap.Error(err))
		} else if res.IsNew {
			if err := o.mirror.MirrorLink(ctx, sess.ID, res.NodeID, res.ParentID, relation); err != nil {
				o.logger.Warn("Graph mirror link failed", zap.Error(err))
			}
		}
	}

	return &TurnOutcome{
		Message: reply,
		Keyword: cls.Keyword,
		NodeID:  res.NodeID,
		NewNode: res.IsNew,
	}, nil
}
