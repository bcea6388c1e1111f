package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktalk/app/core/orchestrator/convo"
	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/pkg/types"
)

func newTestServer(t *testing.T) (*Server, *convo.Store) {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	convos := convo.NewStore(database)
	return NewServer(":0", convos, nil), convos
}

// echoHandler plays the gateway's role: process synchronously and push
// the reply back through Send before returning.
func echoHandler(s *Server) func(types.Message) {
	return func(msg types.Message) {
		_ = s.Send(context.Background(), types.Message{
			Content:        "echo: " + msg.Content,
			Role:           "assistant",
			ChannelID:      msg.ChannelID,
			UserID:         msg.UserID,
			ConversationID: 7,
			RequestID:      msg.RequestID,
		})
	}
}

func TestChatEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes(echoHandler(s)))
	defer ts.Close()

	body, _ := json.Marshal(chatRequest{UserID: "alice", Message: "add a task"})
	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out chatResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "echo: add a task", out.Response)
	assert.Equal(t, int64(7), out.ConversationID)
}

func TestChatEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes(func(types.Message) {}))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/chat", "application/json", bytes.NewReader([]byte(`{"message":"hi"}`)))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/chat")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestLatestConversationEndpoint(t *testing.T) {
	s, convos := newTestServer(t)
	ts := httptest.NewServer(s.routes(func(types.Message) {}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/conversations/latest?user_id=alice")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	conv, err := convos.Create(context.Background(), "alice")
	require.NoError(t, err)
	_, err = convos.Append(context.Background(), types.Message{
		ConversationID: conv.ID, UserID: "alice", ChannelID: "http",
		Role: "user", Content: "hello",
	})
	require.NoError(t, err)

	resp, err = http.Get(ts.URL + "/api/conversations/latest?user_id=alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out conversationResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, conv.ID, out.ConversationID)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "hello", out.Messages[0].Content)

	// another user never sees alice's conversation
	resp, err = http.Get(ts.URL + "/api/conversations/latest?user_id=bob")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.routes(func(types.Message) {}))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
}
