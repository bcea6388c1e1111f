package convo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasktalk/app/core/orchestrator/db"
	"tasktalk/app/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.NewSQLiteDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", conv.UserID)

	got, err := store.Get(ctx, "alice", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)

	_, err = store.Get(ctx, "bob", conv.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLatestTracksActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	clock := time.Unix(1000, 0)
	store.now = func() time.Time { return clock }

	first, err := store.Create(ctx, "alice")
	require.NoError(t, err)
	clock = clock.Add(time.Minute)
	second, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	latest, err := store.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	// appending to the first conversation makes it the latest again
	clock = clock.Add(time.Minute)
	_, err = store.Append(ctx, types.Message{
		ConversationID: first.ID, UserID: "alice", ChannelID: "cli",
		Role: "user", Content: "hi",
	})
	require.NoError(t, err)

	latest, err = store.Latest(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	_, err = store.Latest(ctx, "bob")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestAppendAndHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	clock := time.Unix(2000, 0)
	store.now = func() time.Time { return clock }

	id, err := store.Append(ctx, types.Message{
		ConversationID: conv.ID, UserID: "alice", ChannelID: "cli",
		Role: "user", Content: "delete task 5",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	clock = clock.Add(time.Second)
	_, err = store.Append(ctx, types.Message{
		ConversationID: conv.ID, UserID: "alice", ChannelID: "cli",
		Role: "assistant", Content: "Are you sure you want to delete task #5?",
		ToolCalls: []types.ToolCall{{
			Tool:   "delete_task",
			Params: map[string]interface{}{"task_id": float64(5)},
		}},
	})
	require.NoError(t, err)

	history, err := store.History(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "assistant", history[1].Role)
	require.Len(t, history[1].ToolCalls, 1)
	assert.Equal(t, "delete_task", history[1].ToolCalls[0].Tool)
	assert.Equal(t, float64(5), history[1].ToolCalls[0].Params["task_id"])

	// history is invisible to other users
	other, err := store.History(ctx, "bob", conv.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestHistoryKeepsLastFifty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv, err := store.Create(ctx, "alice")
	require.NoError(t, err)

	clock := time.Unix(3000, 0)
	store.now = func() time.Time { return clock }

	for i := 0; i < 60; i++ {
		clock = clock.Add(time.Second)
		_, err := store.Append(ctx, types.Message{
			ConversationID: conv.ID, UserID: "alice", ChannelID: "cli",
			Role: "user", Content: fmt.Sprintf("message %d", i),
		})
		require.NoError(t, err)
	}

	history, err := store.History(ctx, "alice", conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 50)
	assert.Equal(t, "message 10", history[0].Content)
	assert.Equal(t, "message 59", history[49].Content)
}
