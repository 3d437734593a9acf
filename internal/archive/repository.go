package archive

import (
	"context"
	"fmt"
	"time"

	"branchchat/pkg/logger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Repository mirrors committed topic-graph mutations into Neo4j so sessions
// can be inspected after the process exits. The in-memory store stays
// authoritative; every call here is best effort.
type Repository struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewRepository creates a new mirror repository
func NewRepository(driver neo4j.DriverWithContext) *Repository {
	return &Repository{
		driver: driver,
		logger: logger.Get(),
	}
}

// Close closes the Neo4j driver connection
func (r *Repository) Close() error {
	return r.driver.Close(context.Background())
}

// MirrorUpsert records a dialog append, creating the topic node on first
// sight of its id within the session
func (r *Repository) MirrorUpsert(ctx context.Context, sessionID, nodeID, keyword, userMessage, gptMessage string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		MERGE (t:Topic {session_id: $sessionID, node_id: $nodeID})
		ON CREATE SET t.created_at = datetime($now)
		SET t.keyword = $keyword
		CREATE (t)-[:HAS_DIALOG]->(:Dialog {
			user_message: $userMessage,
			gpt_message: $gptMessage,
			created_at: datetime($now)
		})
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"sessionID":   sessionID,
		"nodeID":      nodeID,
		"keyword":     keyword,
		"userMessage": userMessage,
		"gptMessage":  gptMessage,
		"now":         now,
	})
	if err != nil {
		return fmt.Errorf("failed to mirror dialog: %w", err)
	}

	return nil
}

// MirrorLink records the one-time parent link of a topic node
func (r *Repository) MirrorLink(ctx context.Context, sessionID, nodeID, parentID, relation string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (c:Topic {session_id: $sessionID, node_id: $nodeID})
		MERGE (p:Topic {session_id: $sessionID, node_id: $parentID})
		MERGE (p)-[l:HAS_CHILD]->(c)
		SET l.relation = $relation, c.parent_id = $parentID
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"sessionID": sessionID,
		"nodeID":    nodeID,
		"parentID":  parentID,
		"relation":  relation,
	})
	if err != nil {
		return fmt.Errorf("failed to mirror parent link: %w", err)
	}

	r.logger.Debug("Mirrored topic link",
		zap.String("session_id", sessionID),
		zap.String("node_id", nodeID),
		zap.String("parent_id", parentID),
		zap.String("relation", relation),
	)
	return nil
}
