package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tasktalk/app/core/orchestrator/convo"
	"tasktalk/app/core/orchestrator/engine"
	"tasktalk/app/core/orchestrator/llm"
	"tasktalk/app/core/orchestrator/tools"
	"tasktalk/app/pkg/logger"
	"tasktalk/app/pkg/types"
)

const apologyReply = "Sorry, something went wrong on my end. Please try again."

// LLM is the advisory conversational collaborator. Its proposed tool
// calls are never executed directly.
type LLM interface {
	Chat(ctx context.Context, history []types.Message, userText string) (llm.Response, error)
}

type Config struct {
	Name          string
	MaxMessageLen int
}

// Agent processes one chat turn end to end: sanitize the message,
// reconstruct conversation context, run the deterministic engine, fall
// back to the language model for open conversation, persist both sides.
type Agent struct {
	cfg    Config
	engine *engine.Engine
	convos *convo.Store
	llm    LLM
}

func New(cfg Config, eng *engine.Engine, convos *convo.Store, model LLM) *Agent {
	if cfg.Name == "" {
		cfg.Name = "tasktalk"
	}
	if cfg.MaxMessageLen <= 0 {
		cfg.MaxMessageLen = 10000
	}
	return &Agent{cfg: cfg, engine: eng, convos: convos, llm: model}
}

func (a *Agent) Name() string {
	return a.cfg.Name
}

// Process handles one user message. It always returns a user-visible
// reply; external failures are logged and degraded to an apology.
func (a *Agent) Process(ctx context.Context, msg types.Message) (types.Message, error) {
	text := strings.TrimSpace(msg.Content)
	if text == "" {
		return a.reply(msg, "I didn't catch that. Tell me about a task!"), nil
	}
	if len(text) > a.cfg.MaxMessageLen {
		return a.reply(msg, fmt.Sprintf("That message is too long for me. Keep it under %d characters.", a.cfg.MaxMessageLen)), nil
	}

	conversationID, err := a.resolveConversation(ctx, msg)
	if err != nil {
		logger.Error("failed to resolve conversation for user %s: %v", msg.UserID, err)
		return a.reply(msg, apologyReply), nil
	}
	msg.ConversationID = conversationID

	history, err := a.convos.History(ctx, msg.UserID, conversationID)
	if err != nil {
		logger.Error("failed to load history for conversation %d: %v", conversationID, err)
		return a.reply(msg, apologyReply), nil
	}

	outcome, err := a.engine.HandleTurn(ctx, msg.UserID, text, history)
	if err != nil {
		logger.Error("engine failed on conversation %d: %v", conversationID, err)
		outcome = engine.Outcome{Handled: true, Reply: apologyReply}
	}
	if !outcome.Handled {
		outcome = a.fallback(ctx, msg.UserID, history, text)
	}

	userTurn := msg
	userTurn.Role = "user"
	userTurn.Content = text
	userTurn.ToolCalls = nil
	if _, err := a.convos.Append(ctx, userTurn); err != nil {
		logger.Error("failed to persist user turn: %v", err)
	}

	replyMsg := a.reply(msg, outcome.Reply)
	replyMsg.ToolCalls = outcome.ToolCalls
	if _, err := a.convos.Append(ctx, replyMsg); err != nil {
		logger.Error("failed to persist assistant turn: %v", err)
	}
	return replyMsg, nil
}

func (a *Agent) resolveConversation(ctx context.Context, msg types.Message) (int64, error) {
	if msg.ConversationID != 0 {
		_, err := a.convos.Get(ctx, msg.UserID, msg.ConversationID)
		if err == nil {
			return msg.ConversationID, nil
		}
		if !errors.Is(err, convo.ErrNotFound) {
			return 0, err
		}
	}
	created, err := a.convos.Create(ctx, msg.UserID)
	if err != nil {
		return 0, err
	}
	return created.ID, nil
}

// fallback hands the turn to the language model. A proposed mutating
// tool call is rewritten into the engine's confirmation flow instead of
// being executed.
func (a *Agent) fallback(ctx context.Context, userID string, history []types.Message, text string) engine.Outcome {
	if a.llm == nil {
		return engine.Outcome{
			Handled: true,
			Reply:   "I can help with your tasks. Try 'add a task to buy milk' or 'show my tasks'.",
		}
	}

	resp, err := a.llm.Chat(ctx, history, text)
	if err != nil {
		logger.Error("llm call failed for user %s: %v", userID, err)
		return engine.Outcome{Handled: true, Reply: apologyReply}
	}

	for _, proposal := range resp.Proposals {
		intent, ok := tools.IntentFromCall(proposal.Name, proposal.Params)
		if !ok {
			logger.Error("llm proposed unknown tool %q, dropping", proposal.Name)
			continue
		}
		outcome, err := a.engine.Propose(ctx, userID, intent)
		if err != nil {
			logger.Error("proposed %s failed for user %s: %v", proposal.Name, userID, err)
			return engine.Outcome{Handled: true, Reply: apologyReply}
		}
		return outcome
	}

	if resp.Text != "" {
		return engine.Outcome{Handled: true, Reply: resp.Text}
	}
	return engine.Outcome{
		Handled: true,
		Reply:   "I'm not sure what you mean. You can add, list, update, complete or delete tasks.",
	}
}

func (a *Agent) reply(in types.Message, content string) types.Message {
	return types.Message{
		Content:        content,
		Role:           "assistant",
		ChannelID:      in.ChannelID,
		UserID:         in.UserID,
		ConversationID: in.ConversationID,
		RequestID:      in.RequestID,
	}
}
