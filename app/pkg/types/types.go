package types

import "context"

// Message represents a user input or an assistant reply flowing
// between channels and the agent.
type Message struct {
	ID             string
	Content        string
	Role           string // "user", "assistant"
	ChannelID      string // Source channel identifier (e.g., "http", "cli")
	UserID         string
	ConversationID int64
	RequestID      string
	ToolCalls      []ToolCall
	Meta           map[string]interface{}
}

// ToolCall records one store operation executed (or proposed) during a turn.
type ToolCall struct {
	Tool   string                 `json:"tool"`
	Params map[string]interface{} `json:"params,omitempty"`
	Result map[string]interface{} `json:"result,omitempty"`
}

// Agent processes one conversational turn to completion.
type Agent interface {
	Process(ctx context.Context, msg Message) (Message, error)
	Name() string
}

// Channel represents an input/output interface (CLI, HTTP).
type Channel interface {
	Start(ctx context.Context, handler func(Message)) error
	Send(ctx context.Context, msg Message) error
	ID() string
}

// Gateway orchestrates channels and the agent.
type Gateway interface {
	RegisterChannel(c Channel)
	Start(ctx context.Context) error
}
