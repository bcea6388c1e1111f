package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFixtures(t *testing.T) {
	cases := []struct {
		text string
		want Operation
	}{
		{"add a task to buy milk", OpAdd},
		{"create a new task", OpAdd},
		{"remind me to call mom", OpAdd},
		{"add buy milk to my list", OpAdd},

		{"update task 3 priority to high", OpUpdate},
		{"change the title of the report task", OpUpdate},
		{"set the deadline to friday", OpUpdate},
		{"remove the deadline from task 2", OpUpdate},
		{"edit task 7", OpUpdate},

		{"delete task 5", OpDelete},
		{"remove the milk task", OpDelete},
		{"get rid of that old reminder", OpDelete},

		{"mark task 3 as complete", OpComplete},
		{"i finished the report", OpComplete},
		{"check off buy milk", OpComplete},
		{"task 2 is done", OpComplete},

		{"mark task 3 as not done", OpIncomplete},
		{"reopen task 4", OpIncomplete},
		{"task 2 wasn't finished", OpIncomplete},

		{"show all tasks", OpList},
		{"list my tasks", OpList},
		{"what's on my plate", OpList},
		{"what do i have to do today", OpList},

		{"hello there", OpNone},
		{"what's the weather like", OpNone},
		{"", OpNone},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.text), "text: %q", tc.text)
	}
}

func TestClassifyDeadlineRemovalIsUpdateNotDelete(t *testing.T) {
	// "delete" appears but the object is the deadline, not the task
	assert.Equal(t, OpUpdate, Classify("delete the due date on task 4"))
}
