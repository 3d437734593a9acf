package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"branchchat/internal/graph"
	"branchchat/pkg/errors"
	"branchchat/pkg/logger"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const completionPreamble = "Answer the user's question."

const classifyPreamble = `1. Read the user question and the assistant answer and extract exactly ONE core keyword.
2. Decide which existing node the keyword should attach to and pick the right parent node.
3. Express the parent-child relation as a single word or short phrase.
Always respond with JSON in the required format.`

// Message is one entry of the conversation history sent to the completion call
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classification is the oracle's keyword/parent/relation triple. An empty
// Keyword is a valid response meaning no topic assignment this turn.
type Classification struct {
	Keyword      string `json:"keyword"`
	ParentNodeID string `json:"parentNodeId"`
	Relation     string `json:"relation"`
}

// ChatAdapter handles both oracle calls: conversation completion and
// keyword classification
type ChatAdapter struct {
	client          *openai.Client
	model           string
	classifierModel string
	maxRetries      int
	logger          *zap.Logger
}

// NewChatAdapter creates a new adapter. baseURL is optional and supports
// LiteLLM/proxy setups.
func NewChatAdapter(baseURL, apiKey, model, classifierModel string, maxRetries int) *ChatAdapter {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}

	return &ChatAdapter{
		client:          openai.NewClientWithConfig(config),
		model:           model,
		classifierModel: classifierModel,
		maxRetries:      maxRetries,
		logger:          logger.Get(),
	}
}

// Complete sends the restricted conversation history plus the new user text
// to the completion model and returns the assistant reply. Empty replies are
// retried; exhaustion surfaces as a GatewayError.
func (a *ChatAdapter) Complete(ctx context.Context, history []Message, userText string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: completionPreamble,
	})
	for _, m := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	req := openai.ChatCompletionRequest{
		Model:     a.model,
		Messages:  messages,
		MaxTokens: 800,
	}

	content, attempts, err := a.requestWithRetry(ctx, "completion", req)
	if err != nil {
		return "", errors.NewGatewayError("completion", attempts, err)
	}
	return content, nil
}

// Classify asks the classifier model for the keyword/parent/relation triple
// for one exchange, given the restricted node view. A parsed response with a
// null or empty keyword is returned as-is, not retried.
func (a *ChatAdapter) Classify(ctx context.Context, nodes map[string]graph.Node, userText, assistantText string) (*Classification, error) {
	keywords := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keywords = append(keywords, n.Keyword)
	}
	keywordsJSON, _ := json.Marshal(keywords)
	nodesJSON, _ := json.MarshalIndent(nodes, "", "  ")

	req := openai.ChatCompletionRequest{
		Model: a.classifierModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPreamble},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Node list: %s", keywordsJSON)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Graph structure: %s", nodesJSON)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("User question: %s", userText)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Assistant answer: %s", assistantText)},
			{Role: openai.ChatMessageRoleUser, Content: "Valid JSON example:\n{\"keyword\": \"art\", \"parentNodeId\": \"culture-1\", \"relation\": \"related\"}"},
		},
		MaxTokens:   800,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var result *Classification
	var lastErr error
	attempts := 0
	for attempts < a.maxRetries {
		if attempts > 0 {
			backoff := time.Duration(attempts) * time.Second
			a.logger.Warn("Retrying classify request",
				zap.Int("attempt", attempts+1),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}
		attempts++

		content, err := a.request(ctx, req)
		if err != nil {
			lastErr = err
			a.logger.Error("Classify request failed",
				zap.Error(err),
				zap.Int("attempt", attempts),
				zap.String("model", a.classifierModel),
			)
			continue
		}

		parsed, err := ParseClassification(content)
		if err != nil {
			lastErr = err
			a.logger.Warn("Classifier returned unparsable content",
				zap.Error(err),
				zap.Int("attempt", attempts),
			)
			continue
		}

		result = parsed
		break
	}

	if result == nil {
		return nil, errors.NewGatewayError("classify", attempts, lastErr)
	}

	a.logger.Debug("Classification received",
		zap.String("keyword", result.Keyword),
		zap.String("parent_node_id", result.ParentNodeID),
		zap.String("relation", result.Relation),
	)
	return result, nil
}

// requestWithRetry runs one chat completion with bounded retries. An empty
// reply counts as a failure, matching the classic retry-on-empty wrapper.
func (a *ChatAdapter) requestWithRetry(ctx context.Context, call string, req openai.ChatCompletionRequest) (string, int, error) {
	var lastErr error
	attempts := 0
	for attempts < a.maxRetries {
		if attempts > 0 {
			backoff := time.Duration(attempts) * time.Second
			a.logger.Warn("Retrying LLM request",
				zap.String("call", call),
				zap.Int("attempt", attempts+1),
				zap.Duration("backoff", backoff),
			)
			time.Sleep(backoff)
		}
		attempts++

		content, err := a.request(ctx, req)
		if err != nil {
			lastErr = err
			a.logger.Error("LLM request failed",
				zap.String("call", call),
				zap.Error(err),
				zap.Int("attempt", attempts),
				zap.String("model", req.Model),
			)
			continue
		}
		return content, attempts, nil
	}
	return "", attempts, lastErr
}

// request performs a single chat completion and returns its trimmed content
func (a *ChatAdapter) request(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in LLM response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in LLM response")
	}
	return content, nil
}

// ParseClassification decodes the classifier's JSON triple, tolerating a
// fenced code block around it. Fields are trimmed; a missing keyword comes
// back empty rather than as an error.
func ParseClassification(content string) (*Classification, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	var c Classification
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}

	c.Keyword = strings.TrimSpace(c.Keyword)
	c.ParentNodeID = strings.TrimSpace(c.ParentNodeID)
	c.Relation = strings.TrimSpace(c.Relation)
	return &c, nil
}
