package engine

import (
	"encoding/json"
	"fmt"
)

// Operation tags the recognized action of one user turn. The "_ask"
// variants mean the operation was recognized but its target or details
// are still missing.
type Operation string

const (
	OpNone       Operation = ""
	OpAdd        Operation = "add"
	OpList       Operation = "list"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpComplete   Operation = "complete"
	OpIncomplete Operation = "incomplete"

	OpUpdateAsk     Operation = "update_ask"
	OpDeleteAsk     Operation = "delete_ask"
	OpCompleteAsk   Operation = "complete_ask"
	OpIncompleteAsk Operation = "incomplete_ask"
)

// Ask returns the "_ask" variant: operation recognized, target or
// details still missing.
func (op Operation) Ask() Operation {
	switch op {
	case OpUpdate:
		return OpUpdateAsk
	case OpDelete:
		return OpDeleteAsk
	case OpComplete:
		return OpCompleteAsk
	case OpIncomplete:
		return OpIncompleteAsk
	}
	return op
}

// Base strips the "_ask" suffix.
func (op Operation) Base() Operation {
	switch op {
	case OpUpdateAsk:
		return OpUpdate
	case OpDeleteAsk:
		return OpDelete
	case OpCompleteAsk:
		return OpComplete
	case OpIncompleteAsk:
		return OpIncomplete
	}
	return op
}

// Mutating reports whether the operation changes stored state.
func (op Operation) Mutating() bool {
	switch op.Base() {
	case OpUpdate, OpDelete, OpComplete, OpIncomplete:
		return true
	}
	return false
}

// Intent is the resolved interpretation of one user turn. It is built
// fresh per turn and never persisted.
//
// Params maps field name to new value (title, description, priority,
// due_date, completed). A missing key means "do not change"; an explicit
// nil value for due_date means "clear the field".
type Intent struct {
	Operation         Operation
	TaskID            int64
	TaskTitle         string
	Params            map[string]interface{}
	NeedsConfirmation bool
}

func (in Intent) param(key string) (interface{}, bool) {
	if in.Params == nil {
		return nil, false
	}
	v, ok := in.Params[key]
	return v, ok
}

func (in Intent) stringParam(key string) (string, bool) {
	v, ok := in.param(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// key identifies the intent for duplicate-call suppression within a turn.
func (in Intent) key() string {
	params, _ := json.Marshal(in.Params)
	return fmt.Sprintf("%s|%d|%s|%s", in.Operation.Base(), in.TaskID, in.TaskTitle, params)
}
