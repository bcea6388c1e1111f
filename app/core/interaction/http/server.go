package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tasktalk/app/core/orchestrator/convo"
	"tasktalk/app/pkg/logger"
	"tasktalk/app/pkg/types"
)

const replyTimeout = 60 * time.Second

// Server exposes the chat pipeline over HTTP. Each request is matched to
// its reply through the message RequestID.
type Server struct {
	id     string
	addr   string
	convos *convo.Store
	health func() interface{}

	mu      sync.Mutex
	pending map[string]chan types.Message
}

func NewServer(addr string, convos *convo.Store, health func() interface{}) *Server {
	return &Server{
		id:      "http",
		addr:    addr,
		convos:  convos,
		health:  health,
		pending: make(map[string]chan types.Message),
	}
}

func (s *Server) ID() string {
	return s.id
}

func (s *Server) Start(ctx context.Context, handler func(types.Message)) error {
	srv := &http.Server{Addr: s.addr, Handler: s.routes(handler)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http channel listening on %s", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) routes(handler func(types.Message)) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat(handler))
	mux.HandleFunc("/api/conversations/latest", s.handleLatestConversation)
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Send delivers the agent's reply to the waiting HTTP request.
func (s *Server) Send(ctx context.Context, msg types.Message) error {
	s.mu.Lock()
	waiter, ok := s.pending[msg.RequestID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending request %s", msg.RequestID)
	}
	select {
	case waiter <- msg:
	default:
	}
	return nil
}

type chatRequest struct {
	UserID         string `json:"user_id"`
	ConversationID int64  `json:"conversation_id,omitempty"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID int64            `json:"conversation_id"`
	Response       string           `json:"response"`
	ToolCalls      []types.ToolCall `json:"tool_calls,omitempty"`
}

func (s *Server) handleChat(handler func(types.Message)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "use POST")
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			writeError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "message is required")
			return
		}

		requestID := uuid.New().String()
		waiter := make(chan types.Message, 1)
		s.mu.Lock()
		s.pending[requestID] = waiter
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			delete(s.pending, requestID)
			s.mu.Unlock()
		}()

		handler(types.Message{
			ID:             "http-" + requestID,
			Content:        req.Message,
			Role:           "user",
			ChannelID:      s.id,
			UserID:         req.UserID,
			ConversationID: req.ConversationID,
			RequestID:      requestID,
		})

		select {
		case reply := <-waiter:
			writeJSON(w, http.StatusOK, chatResponse{
				ConversationID: reply.ConversationID,
				Response:       reply.Content,
				ToolCalls:      reply.ToolCalls,
			})
		case <-time.After(replyTimeout):
			writeError(w, http.StatusGatewayTimeout, "reply timed out")
		case <-r.Context().Done():
		}
	}
}

type conversationResponse struct {
	ConversationID int64                 `json:"conversation_id"`
	Messages       []conversationMessage `json:"messages"`
}

type conversationMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []types.ToolCall `json:"tool_calls,omitempty"`
}

func (s *Server) handleLatestConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "use GET")
		return
	}
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	latest, err := s.convos.Latest(r.Context(), userID)
	if errors.Is(err, convo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no conversations yet")
		return
	}
	if err != nil {
		logger.Error("failed to load latest conversation: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	history, err := s.convos.History(r.Context(), userID, latest.ID)
	if err != nil {
		logger.Error("failed to load history: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := conversationResponse{ConversationID: latest.ID}
	for _, msg := range history {
		out.Messages = append(out.Messages, conversationMessage{
			Role:      msg.Role,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{"status": "ok"}
	if s.health != nil {
		body["gateway"] = s.health()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
