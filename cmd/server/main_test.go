package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"branchchat/internal/chat"
	"branchchat/internal/session"
	pkgerrors "branchchat/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubRunner struct {
	outcome *chat.TurnOutcome
	err     error
}

func (s *stubRunner) HandleTurn(ctx context.Context, sess *session.Session, userText string) (*chat.TurnOutcome, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func testRouter(runner turnRunner) (*gin.Engine, *session.Manager) {
	gin.SetMode(gin.TestMode)
	mgr := session.NewManager()
	return newRouter(zap.NewNop(), mgr, runner), mgr
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := testRouter(&stubRunner{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "ok", response["status"])
}

func TestCreateSessionEndpoint(t *testing.T) {
	router, mgr := testRouter(&stubRunner{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/sessions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var response map[string]string
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.NotEmpty(t, response["session_id"])
	assert.Equal(t, 1, mgr.Count())
}

func TestChatEndpoint(t *testing.T) {
	runner := &stubRunner{
		outcome: &chat.TurnOutcome{
			Message: "Jazz is a music genre.",
			Keyword: "jazz",
			NodeID:  "root-1",
			NewNode: true,
		},
	}
	router, mgr := testRouter(runner)
	sess := mgr.Create()

	body := bytes.NewBufferString(`{"message": "What is jazz?"}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/sessions/"+sess.ID+"/chat", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &response)
	assert.Equal(t, "Jazz is a music genre.", response["message"])
	assert.Equal(t, "jazz", response["keyword"])
	assert.Equal(t, "root-1", response["node_id"])
	assert.Equal(t, true, response["new_node"])
}

func TestChatEndpoint_InvalidRequest(t *testing.T) {
	router, mgr := testRouter(&stubRunner{})
	sess := mgr.Create()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/sessions/"+sess.ID+"/chat", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatEndpoint_UnknownSession(t *testing.T) {
	router, _ := testRouter(&stubRunner{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/sessions/missing/chat", bytes.NewBufferString(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChatEndpoint_GatewayError(t *testing.T) {
	runner := &stubRunner{err: pkgerrors.NewGatewayError("completion", 5, nil)}
	router, mgr := testRouter(runner)
	sess := mgr.Create()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/api/sessions/"+sess.ID+"/chat", bytes.NewBufferString(`{"message": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestGraphAndTurnsEndpoints(t *testing.T) {
	router, mgr := testRouter(&stubRunner{})
	sess := mgr.Create()
	sess.AppendTurn(session.RoleUser, "hello")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/sessions/"+sess.ID+"/graph", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var graphResp struct {
		Nodes map[string]interface{} `json:"nodes"`
	}
	json.Unmarshal(w.Body.Bytes(), &graphResp)
	assert.Contains(t, graphResp.Nodes, "root")

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/api/sessions/"+sess.ID+"/turns", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	var turnsResp struct {
		Turns []session.Turn `json:"turns"`
	}
	json.Unmarshal(w.Body.Bytes(), &turnsResp)
	assert.Len(t, turnsResp.Turns, 1)
	assert.Equal(t, 1, turnsResp.Turns[0].Number)
}

func TestContextEndpoint(t *testing.T) {
	router, mgr := testRouter(&stubRunner{})
	sess := mgr.Create()

	body := bytes.NewBufferString(`{"enabled": true, "active_turn_numbers": [2, 4], "active_node_ids": ["root-1"]}`)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/api/sessions/"+sess.ID+"/context", body)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	flags := sess.Flags()
	assert.True(t, flags.Enabled)
	assert.True(t, flags.ActiveTurnNumbers[2])
	assert.True(t, flags.ActiveTurnNumbers[4])
	assert.True(t, flags.ActiveNodeIDs["root-1"])
}

func TestDeleteSessionEndpoint(t *testing.T) {
	router, mgr := testRouter(&stubRunner{})
	sess := mgr.Create()

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/api/sessions/"+sess.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("DELETE", "/api/sessions/"+sess.ID, nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
