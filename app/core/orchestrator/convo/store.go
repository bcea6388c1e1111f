package convo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/pkg/types"
)

var ErrNotFound = errors.New("conversation not found")

// historyLimit caps how many messages are loaded as model context.
const historyLimit = 50

type Conversation struct {
	ID        int64
	UserID    string
	CreatedAt int64
	UpdatedAt int64
}

// Store persists conversations and their messages. Like the task store,
// every read is scoped to the owning user.
type Store struct {
	database *db.DB
	now      func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{database: database, now: time.Now}
}

func (s *Store) Create(ctx context.Context, userID string) (Conversation, error) {
	now := s.now().Unix()
	result, err := s.database.Conn().ExecContext(ctx,
		`INSERT INTO conversations (user_id, created_at, updated_at) VALUES (?, ?, ?)`,
		userID, now, now)
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to read conversation id: %w", err)
	}
	return Conversation{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

func (s *Store) Get(ctx context.Context, userID string, id int64) (Conversation, error) {
	row := s.database.Conn().QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`,
		id, userID)
	var conv Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}

// Latest returns the user's most recently touched conversation.
func (s *Store) Latest(ctx context.Context, userID string) (Conversation, error) {
	row := s.database.Conn().QueryRowContext(ctx, `
SELECT id, user_id, created_at, updated_at FROM conversations
WHERE user_id = ? ORDER BY updated_at DESC, id DESC LIMIT 1`, userID)
	var conv Conversation
	err := row.Scan(&conv.ID, &conv.UserID, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return Conversation{}, ErrNotFound
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("failed to load latest conversation: %w", err)
	}
	return conv, nil
}

// Append stores one message and bumps the conversation timestamp.
func (s *Store) Append(ctx context.Context, msg types.Message) (string, error) {
	msgID := uuid.New().String()

	var toolCallsJSON interface{}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return "", fmt.Errorf("failed to encode tool calls: %w", err)
		}
		toolCallsJSON = string(data)
	}

	now := s.now().Unix()
	tx, err := s.database.Conn().Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, user_id, channel_id, role, content, created_at, tool_calls)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msgID, msg.ConversationID, msg.UserID, msg.ChannelID, msg.Role, msg.Content, now, toolCallsJSON); err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, msg.ConversationID); err != nil {
		return "", fmt.Errorf("failed to touch conversation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return msgID, nil
}

// History returns up to the last 50 messages in chronological order.
func (s *Store) History(ctx context.Context, userID string, conversationID int64) ([]types.Message, error) {
	rows, err := s.database.Conn().QueryContext(ctx, `
SELECT id, conversation_id, user_id, channel_id, role, content, tool_calls
FROM (
	SELECT id, conversation_id, user_id, channel_id, role, content, created_at, tool_calls
	FROM messages WHERE conversation_id = ? AND user_id = ?
	ORDER BY created_at DESC, id DESC LIMIT ?
) ORDER BY created_at ASC, id ASC`, conversationID, userID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var history []types.Message
	for rows.Next() {
		var msg types.Message
		var toolCalls sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.UserID, &msg.ChannelID,
			&msg.Role, &msg.Content, &toolCalls); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		history = append(history, msg)
	}
	return history, rows.Err()
}
