package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Every template the engine can emit must be recognized by the parse
// side, otherwise context recovery breaks on the next turn.

func TestConfirmActionRoundTrip(t *testing.T) {
	for _, op := range []Operation{OpUpdate, OpDelete, OpComplete, OpIncomplete} {
		text := confirmActionReply(op, 5, "Buy milk")
		gotOp, id, title, ok := parseConfirmAction(text)
		require.True(t, ok, "op: %s", op)
		assert.Equal(t, op, gotOp)
		assert.Equal(t, int64(5), id)
		assert.Equal(t, "Buy milk", title)
	}
}

func TestConfirmUpdateRoundTrip(t *testing.T) {
	params := map[string]interface{}{
		"title":    "Buy oat milk",
		"priority": "high",
		"due_date": "2026-01-20 15:00",
	}
	text := confirmUpdateReply(3, "Buy milk", params)

	id, title, parsed, ok := parseConfirmUpdate(text)
	require.True(t, ok)
	assert.Equal(t, int64(3), id)
	assert.Equal(t, "Buy milk", title)
	assert.Equal(t, "Buy oat milk", parsed["title"])
	assert.Equal(t, "high", parsed["priority"])
	assert.Equal(t, "2026-01-20 15:00", parsed["due_date"])
}

func TestConfirmUpdateClearedDueDateRoundTrip(t *testing.T) {
	text := confirmUpdateReply(3, "Buy milk", map[string]interface{}{"due_date": nil})

	_, _, parsed, ok := parseConfirmUpdate(text)
	require.True(t, ok)
	value, present := parsed["due_date"]
	require.True(t, present)
	assert.Nil(t, value)
}

func TestCandidateRoundTrip(t *testing.T) {
	text := candidateReply(OpDelete, "milk", 2, "Buy milk", 72)
	op, query, id, title, ok := parseCandidate(text)
	require.True(t, ok)
	assert.Equal(t, OpDelete, op)
	assert.Equal(t, "milk", query)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, "Buy milk", title)
}

func TestWhichTaskRoundTrip(t *testing.T) {
	op, ok := parseWhichTask(whichTaskReply(OpDelete))
	require.True(t, ok)
	assert.Equal(t, OpDelete, op)

	op, ok = parseWhichTask(whichTaskReply(OpIncomplete))
	require.True(t, ok)
	assert.Equal(t, OpIncomplete, op)
}

func TestUpdateDetailsRoundTrip(t *testing.T) {
	id, title, ok := parseUpdateDetails(updateDetailsReply(9, "Write report"))
	require.True(t, ok)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, "Write report", title)
}

func TestSuccessRepliesAreNotMistakenForQuestions(t *testing.T) {
	for _, text := range []string{
		"Deleted task #5: 'Buy milk'.",
		"Updated task #3: 'Buy milk'.",
		"Marked task #2 ('Buy milk') as completed.",
		"Added task #1: 'Buy milk'.",
		cancelledReply,
	} {
		_, _, _, ok := parseConfirmAction(text)
		assert.False(t, ok, "text: %q", text)
		_, _, _, updateOk := parseConfirmUpdate(text)
		assert.False(t, updateOk, "text: %q", text)
		_, whichOk := parseWhichTask(text)
		assert.False(t, whichOk, "text: %q", text)
		_, _, detailsOk := parseUpdateDetails(text)
		assert.False(t, detailsOk, "text: %q", text)
	}
}

func TestBulletDueLayoutRoundTrip(t *testing.T) {
	due := time.Date(2026, 1, 20, 15, 0, 0, 0, time.Local)
	parsed, err := parseBulletDue(formatBulletDue(due))
	require.NoError(t, err)
	assert.True(t, due.Equal(parsed))
}
