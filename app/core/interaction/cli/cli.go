package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"tasktalk/app/pkg/types"
)

// CLIChannel is an interactive stdin loop for a single local user. The
// conversation id from each reply is carried into the next message so a
// session stays one conversation.
type CLIChannel struct {
	id     string
	userID string

	mu             sync.Mutex
	conversationID int64
}

func NewCLIChannel(userID string) *CLIChannel {
	if strings.TrimSpace(userID) == "" {
		userID = "local_user"
	}
	return &CLIChannel{id: "cli", userID: userID}
}

func (c *CLIChannel) ID() string {
	return c.id
}

func (c *CLIChannel) Start(ctx context.Context, handler func(types.Message)) error {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println(">> TaskTalk CLI started. Type 'exit' to quit.")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			text := strings.TrimSpace(scanner.Text())
			if text == "exit" || text == "quit" {
				fmt.Println("Bye!")
				return nil
			}
			if text == "" {
				continue
			}

			handler(types.Message{
				ID:             fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				Content:        text,
				Role:           "user",
				ChannelID:      c.id,
				UserID:         c.userID,
				ConversationID: c.currentConversation(),
			})
		}
	}
}

func (c *CLIChannel) Send(ctx context.Context, msg types.Message) error {
	c.mu.Lock()
	if msg.ConversationID != 0 {
		c.conversationID = msg.ConversationID
	}
	c.mu.Unlock()

	fmt.Printf("[TaskTalk]: %s\n", msg.Content)
	return nil
}

func (c *CLIChannel) currentConversation() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}
