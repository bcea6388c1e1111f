package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/core/orchestrator/task"
	"tasktalk/app/pkg/types"
)

type harness struct {
	t       *testing.T
	engine  *Engine
	store   *task.Store
	history []types.Message
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := task.NewStore(database)
	return &harness{t: t, engine: New(store, Config{}), store: store}
}

// send runs one turn and folds both sides into the transcript, the same
// way the agent persists them.
func (h *harness) send(text string) Outcome {
	h.t.Helper()
	out, err := h.engine.HandleTurn(context.Background(), "alice", text, h.history)
	require.NoError(h.t, err)
	h.history = append(h.history, types.Message{Role: "user", Content: text})
	if out.Handled {
		h.history = append(h.history, types.Message{Role: "assistant", Content: out.Reply})
	}
	return out
}

func (h *harness) addTask(title string) task.Task {
	h.t.Helper()
	created, err := h.store.Add(context.Background(), "alice", task.NewTask{Title: title})
	require.NoError(h.t, err)
	return created
}

func (h *harness) taskCount() int {
	h.t.Helper()
	items, err := h.store.List(context.Background(), "alice", task.ListFilter{})
	require.NoError(h.t, err)
	return len(items)
}

func TestDeleteByIDConfirmFlow(t *testing.T) {
	h := newHarness(t)
	created := h.addTask("Buy milk")

	out := h.send("delete task 1")
	assert.True(t, out.Handled)
	assert.Contains(t, out.Reply, "Are you sure you want to delete task #1")
	assert.Contains(t, out.Reply, created.Title)
	assert.Empty(t, out.ToolCalls)
	assert.Equal(t, 1, h.taskCount())

	out = h.send("yes")
	assert.Contains(t, out.Reply, "Deleted task #1")
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "delete_task", out.ToolCalls[0].Tool)
	assert.Equal(t, 0, h.taskCount())

	// a second "yes" finds no pending question and falls through
	out = h.send("yes")
	assert.False(t, out.Handled)
}

func TestDeleteDeclinedLeavesTaskAlone(t *testing.T) {
	h := newHarness(t)
	h.addTask("Buy milk")

	h.send("delete task 1")
	out := h.send("no")
	assert.Equal(t, cancelledReply, out.Reply)
	assert.Empty(t, out.ToolCalls)
	assert.Equal(t, 1, h.taskCount())
}

func TestUpdatePriorityConfirmFlow(t *testing.T) {
	h := newHarness(t)
	h.addTask("Write report")

	out := h.send("update task 1 priority to high")
	assert.Contains(t, out.Reply, "Update task #1")
	assert.Contains(t, out.Reply, "- priority -> high")
	assert.NotContains(t, out.Reply, "- title ->")
	assert.NotContains(t, out.Reply, "- due date ->")

	out = h.send("no")
	assert.Equal(t, cancelledReply, out.Reply)
	unchanged, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityMedium, unchanged.Priority)

	h.send("update task 1 priority to high")
	out = h.send("yes")
	assert.Contains(t, out.Reply, "Updated task #1")
	updated, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityHigh, updated.Priority)
}

func TestFuzzyTargetHighConfidenceResolvesDirectly(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")
	h.addTask("drink milk shake")

	out := h.send("delete the milk task")
	assert.Contains(t, out.Reply, "Are you sure you want to delete task #1")
	assert.Contains(t, out.Reply, "buy milk")

	h.send("yes")
	assert.Equal(t, 1, h.taskCount())
	remaining, err := h.store.Get(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, "drink milk shake", remaining.Title)
}

func TestFuzzyTargetLowConfidenceAsksFirst(t *testing.T) {
	h := newHarness(t)
	h.addTask("write quarterly report")

	out := h.send("delete the quarterly repot task")
	assert.Contains(t, out.Reply, "I found a task that might match")
	assert.Contains(t, out.Reply, "write quarterly report")
	assert.Equal(t, 1, h.taskCount())

	// accepting the candidate still requires the operation confirmation
	out = h.send("yes")
	assert.Contains(t, out.Reply, "Are you sure you want to delete task #1")
	assert.Equal(t, 1, h.taskCount())

	h.send("yes")
	assert.Equal(t, 0, h.taskCount())
}

func TestFuzzyNoMatchListsTasks(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")

	out := h.send("delete the dentist task")
	assert.Contains(t, out.Reply, "I couldn't find a task matching 'dentist'")
	assert.Contains(t, out.Reply, "buy milk")
	assert.Contains(t, out.Reply, "Which task would you like to delete?")
	assert.Equal(t, 1, h.taskCount())
}

func TestMissingTargetAsksWhichTask(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")

	out := h.send("mark it as done")
	assert.Contains(t, out.Reply, "Which task would you like to complete?")

	out = h.send("task 1")
	assert.Contains(t, out.Reply, "Are you sure you want to complete task #1")

	h.send("yes")
	item, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.True(t, item.Completed)
}

func TestWhichTaskAcceptsBareNumberAnswer(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")
	h.addTask("write report")

	out := h.send("mark it as done")
	assert.Contains(t, out.Reply, "Which task would you like to complete?")

	out = h.send("2")
	assert.Contains(t, out.Reply, "Are you sure you want to complete task #2")

	h.send("yes")
	item, err := h.store.Get(context.Background(), "alice", 2)
	require.NoError(t, err)
	assert.True(t, item.Completed)
}

func TestUpdateWithoutDetailsAsks(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")

	out := h.send("update task 1")
	assert.Contains(t, out.Reply, "what would you like to update?")

	out = h.send("priority low")
	assert.Contains(t, out.Reply, "- priority -> low")

	h.send("yes")
	item, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityLow, item.Priority)
}

func TestAddWithoutTitleAsksOnce(t *testing.T) {
	h := newHarness(t)

	out := h.send("add a task")
	assert.Equal(t, askTitleReply, out.Reply)
	assert.Equal(t, 0, h.taskCount())

	out = h.send("buy milk")
	assert.Contains(t, out.Reply, "Added task #1: 'buy milk'")
	assert.Equal(t, 1, h.taskCount())
}

func TestAddNeverAsksForConfirmation(t *testing.T) {
	h := newHarness(t)

	out := h.send("add a task to buy milk")
	assert.Contains(t, out.Reply, "Added task #1")
	assert.NotContains(t, out.Reply, "Are you sure")
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "add_task", out.ToolCalls[0].Tool)
}

func TestAddUrgentKeywordSetsHighPriority(t *testing.T) {
	h := newHarness(t)

	h.send("add an urgent task: email the boss")
	item, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityHigh, item.Priority)
}

func TestAddSimilarTaskHint(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")

	out := h.send("add a task to buy milk")
	assert.Contains(t, out.Reply, "similar task")
	// the hint never blocks the add
	assert.Equal(t, 2, h.taskCount())
}

func TestListAlwaysExecutesRegardlessOfHistory(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")
	h.addTask("write report")

	h.send("delete task 1")
	out := h.send("show all tasks")
	assert.True(t, out.Handled)
	assert.Contains(t, out.Reply, "buy milk")
	assert.Contains(t, out.Reply, "write report")
	require.Len(t, out.ToolCalls, 1)
	assert.Equal(t, "list_tasks", out.ToolCalls[0].Tool)
	// the list turn must not have executed the pending delete
	assert.Equal(t, 2, h.taskCount())
}

func TestListFiltersByStatus(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")
	h.addTask("write report")

	h.send("mark task 1 as done")
	h.send("yes")

	out := h.send("show completed tasks")
	assert.Contains(t, out.Reply, "buy milk")
	assert.NotContains(t, out.Reply, "write report")

	out = h.send("show pending tasks")
	assert.Contains(t, out.Reply, "write report")
	assert.NotContains(t, out.Reply, "buy milk")
}

func TestUnknownIDReportsNotFound(t *testing.T) {
	h := newHarness(t)

	out := h.send("delete task 42")
	assert.Contains(t, out.Reply, "couldn't find that task")
	assert.Empty(t, out.ToolCalls)
}

func TestDueDateParseFailurePreservesText(t *testing.T) {
	h := newHarness(t)
	h.addTask("buy milk")

	out := h.send("update task 1 due date to qblorx")
	assert.Contains(t, out.Reply, "qblorx")
	assert.Contains(t, out.Reply, "couldn't understand the date")
	item, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Nil(t, item.DueDate)
}

func TestClearDueDateFlow(t *testing.T) {
	h := newHarness(t)

	h.send("add a task to buy milk due tomorrow")
	item, err := h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	require.NotNil(t, item.DueDate)

	out := h.send("remove the deadline from task 1")
	assert.Contains(t, out.Reply, "- due date -> removed")

	h.send("yes")
	item, err = h.store.Get(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Nil(t, item.DueDate)
}

func TestSmallTalkFallsThrough(t *testing.T) {
	h := newHarness(t)
	out := h.send("how was your day?")
	assert.False(t, out.Handled)
	assert.Empty(t, out.Reply)
}
