package llm

import (
	"context"
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"tasktalk/app/core/orchestrator/tools"
	"tasktalk/app/pkg/types"
)

const systemPrompt = `You are a friendly personal task assistant. You help the user ` +
	`manage a todo list: adding, listing, updating, completing and deleting tasks. ` +
	`Use the provided tools when the user asks for a task operation. Keep replies ` +
	`short and conversational. Never claim a task was changed unless a tool call ` +
	`confirmed it.`

// Config holds the chat-completion settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Response is what the model returned for one turn. Proposed tool calls
// are advisory; mutations still go through the engine's confirmation.
type Response struct {
	Text      string
	Proposals []Proposal
}

type Proposal struct {
	Name   string
	Params map[string]interface{}
}

// Client wraps the OpenAI-compatible chat-completions API.
type Client struct {
	api   *openai.Client
	model string
}

func New(cfg Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{api: openai.NewClientWithConfig(clientCfg), model: model}
}

// Chat sends the transcript plus the current message and returns the
// model's reply and any proposed tool calls.
func (c *Client) Chat(ctx context.Context, history []types.Message, userText string) (Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
		Tools:    toolDefinitions(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0].Message
	out := Response{Text: choice.Content}
	for _, call := range choice.ToolCalls {
		if call.Type != openai.ToolTypeFunction {
			continue
		}
		params := map[string]interface{}{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &params); err != nil {
				continue
			}
		}
		out.Proposals = append(out.Proposals, Proposal{Name: call.Function.Name, Params: params})
	}
	return out, nil
}

func toolDefinitions() []openai.Tool {
	manifests := tools.Manifests()
	defs := make([]openai.Tool, len(manifests))
	for i, m := range manifests {
		defs[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        m.Name,
				Description: m.Description,
				Parameters:  m.Parameters,
			},
		}
	}
	return defs
}
