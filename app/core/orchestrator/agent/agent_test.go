package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktalk/app/core/orchestrator/convo"
	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/core/orchestrator/engine"
	"tasktalk/app/core/orchestrator/llm"
	"tasktalk/app/core/orchestrator/task"
	"tasktalk/app/pkg/types"
)

type fakeLLM struct {
	response llm.Response
	err      error
	calls    int
}

func (f *fakeLLM) Chat(ctx context.Context, history []types.Message, userText string) (llm.Response, error) {
	f.calls++
	return f.response, f.err
}

type fixture struct {
	agent *Agent
	tasks *task.Store
	llm   *fakeLLM
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	tasks := task.NewStore(database)
	convos := convo.NewStore(database)
	eng := engine.New(tasks, engine.Config{})
	model := &fakeLLM{response: llm.Response{Text: "Hi! Ask me about your tasks."}}
	return &fixture{
		agent: New(Config{}, eng, convos, model),
		tasks: tasks,
		llm:   model,
	}
}

func (f *fixture) send(t *testing.T, conversationID int64, text string) types.Message {
	t.Helper()
	out, err := f.agent.Process(context.Background(), types.Message{
		Content:        text,
		Role:           "user",
		ChannelID:      "cli",
		UserID:         "alice",
		ConversationID: conversationID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, out.Content)
	return out
}

func TestProcessHandlesTaskTurnWithoutLLM(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, 0, "add a task to buy milk")
	assert.Contains(t, out.Content, "Added task #1")
	assert.Equal(t, "assistant", out.Role)
	assert.NotZero(t, out.ConversationID)
	assert.Equal(t, 0, f.llm.calls)
}

func TestProcessConfirmationFlowAcrossTurns(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Add(context.Background(), "alice", task.NewTask{Title: "buy milk"})
	require.NoError(t, err)

	first := f.send(t, 0, "delete task 1")
	assert.Contains(t, first.Content, "Are you sure")

	second := f.send(t, first.ConversationID, "yes")
	assert.Contains(t, second.Content, "Deleted task #1")

	remaining, err := f.tasks.List(context.Background(), "alice", task.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestProcessSmallTalkGoesToLLM(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, 0, "how are you today?")
	assert.Equal(t, "Hi! Ask me about your tasks.", out.Content)
	assert.Equal(t, 1, f.llm.calls)
}

func TestProcessRewritesProposedMutationIntoConfirmation(t *testing.T) {
	f := newFixture(t)
	_, err := f.tasks.Add(context.Background(), "alice", task.NewTask{Title: "buy milk"})
	require.NoError(t, err)

	f.llm.response = llm.Response{
		Text: "Deleting it now!",
		Proposals: []llm.Proposal{
			{Name: "delete_task", Params: map[string]interface{}{"task_id": float64(1)}},
		},
	}

	out := f.send(t, 0, "please get that milk thing off my plate somehow")
	assert.Contains(t, out.Content, "Are you sure you want to delete task #1")

	remaining, err := f.tasks.List(context.Background(), "alice", task.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1, "advisory tool call must not execute")
}

func TestProcessLLMFailureDegradesGracefully(t *testing.T) {
	f := newFixture(t)
	f.llm.err = errors.New("upstream timeout")

	out := f.send(t, 0, "tell me a joke")
	assert.Equal(t, apologyReply, out.Content)
}

func TestProcessRejectsOversizeMessage(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, 0, strings.Repeat("a", 10001))
	assert.Contains(t, out.Content, "too long")
	assert.Equal(t, 0, f.llm.calls)
}

func TestProcessEmptyMessage(t *testing.T) {
	f := newFixture(t)

	out := f.send(t, 0, "   ")
	assert.Contains(t, out.Content, "didn't catch that")
}

func TestProcessOtherUsersConversationIsNotReused(t *testing.T) {
	f := newFixture(t)

	alice := f.send(t, 0, "add a task to buy milk")

	out, err := f.agent.Process(context.Background(), types.Message{
		Content:        "show all tasks",
		Role:           "user",
		ChannelID:      "cli",
		UserID:         "bob",
		ConversationID: alice.ConversationID,
	})
	require.NoError(t, err)
	assert.NotEqual(t, alice.ConversationID, out.ConversationID)
	assert.Contains(t, out.Content, "no tasks yet")
}
