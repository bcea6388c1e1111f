package engine

import (
	"strings"

	"tasktalk/app/pkg/types"
)

// lookbackWindow bounds how many trailing transcript messages the
// resolver inspects. Anything older can never create pending state.
const lookbackWindow = 6

type pendingKind int

const (
	pendingNone pendingKind = iota
	pendingConfirmAction
	pendingConfirmUpdate
	pendingCandidate
	pendingWhichTask
	pendingUpdateDetails
	pendingAddTitle
)

type pendingState struct {
	kind      pendingKind
	op        Operation
	taskID    int64
	taskTitle string
	params    map[string]interface{}
	query     string
	// originText is the user message that started the exchange, used to
	// re-extract details the clarification question did not echo back.
	originText string
}

// Resolution classifies what the current turn means given the transcript.
type Resolution int

const (
	// ResolveFresh means no pending exchange applies; classify normally.
	ResolveFresh Resolution = iota
	// ResolveExecute means the user confirmed; the intent is ready to run.
	ResolveExecute
	// ResolveCancelled means the user declined a pending question.
	ResolveCancelled
	// ResolveIntent means the turn answered a clarification; the intent
	// still has to pass through the normal confirmation policy.
	ResolveIntent
)

var affirmativeTokens = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
	"sure": true, "ok": true, "okay": true, "confirm": true,
	"do it": true, "go ahead": true, "yes please": true,
}

var negativeTokens = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "cancel": true,
	"don't": true, "dont": true, "stop": true, "no thanks": true,
}

func normalizeReply(text string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.Trim(cleaned, ".,!?; ")
	if cleaned == "" || len(strings.Fields(cleaned)) > 3 {
		return "", false
	}
	return cleaned, true
}

// isAffirmative recognizes a short positive reply. Longer messages are
// never treated as a yes; the user may be correcting themselves.
func isAffirmative(text string) bool {
	cleaned, short := normalizeReply(text)
	return short && affirmativeTokens[cleaned]
}

func isNegative(text string) bool {
	cleaned, short := normalizeReply(text)
	return short && negativeTokens[cleaned]
}

// detectPending scans the transcript tail for the most recent assistant
// turn and checks it against the reply vocabulary. It is a pure function
// of the transcript; no session state exists anywhere else.
func detectPending(history []types.Message) pendingState {
	start := len(history) - lookbackWindow
	if start < 0 {
		start = 0
	}

	assistantIdx := -1
	for i := len(history) - 1; i >= start; i-- {
		if history[i].Role == "assistant" {
			assistantIdx = i
			break
		}
	}
	if assistantIdx < 0 {
		return pendingState{kind: pendingNone}
	}

	text := history[assistantIdx].Content
	origin := ""
	for i := assistantIdx - 1; i >= 0 && i >= assistantIdx-2; i-- {
		if history[i].Role == "user" {
			origin = history[i].Content
			break
		}
	}

	if id, title, params, ok := parseConfirmUpdate(text); ok {
		return pendingState{kind: pendingConfirmUpdate, op: OpUpdate, taskID: id, taskTitle: title, params: params, originText: origin}
	}
	if op, id, title, ok := parseConfirmAction(text); ok {
		return pendingState{kind: pendingConfirmAction, op: op, taskID: id, taskTitle: title, originText: origin}
	}
	if op, query, id, title, ok := parseCandidate(text); ok {
		return pendingState{kind: pendingCandidate, op: op, taskID: id, taskTitle: title, query: query, originText: origin}
	}
	if id, title, ok := parseUpdateDetails(text); ok {
		return pendingState{kind: pendingUpdateDetails, op: OpUpdateAsk, taskID: id, taskTitle: title, originText: origin}
	}
	if op, ok := parseWhichTask(text); ok {
		return pendingState{kind: pendingWhichTask, op: op.Ask(), originText: origin}
	}
	if isAskTitle(text) {
		return pendingState{kind: pendingAddTitle, op: OpAdd, originText: origin}
	}
	return pendingState{kind: pendingNone}
}

// ResolveContext decides whether the current turn is a yes/no reply to a
// pending question, an answer to a clarification, or a fresh instruction.
// Same transcript plus same message always yields the same resolution.
func ResolveContext(history []types.Message, text string) (Resolution, Intent) {
	pending := detectPending(history)
	if pending.kind == pendingNone {
		return ResolveFresh, Intent{}
	}

	switch pending.kind {
	case pendingConfirmAction:
		if isAffirmative(text) {
			intent := Intent{Operation: pending.op, TaskID: pending.taskID, Params: map[string]interface{}{}}
			switch pending.op {
			case OpComplete:
				intent.Params["completed"] = true
			case OpIncomplete:
				intent.Params["completed"] = false
			}
			return ResolveExecute, intent
		}
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}

	case pendingConfirmUpdate:
		if isAffirmative(text) {
			return ResolveExecute, Intent{Operation: OpUpdate, TaskID: pending.taskID, Params: pending.params}
		}
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}

	case pendingCandidate:
		if isAffirmative(text) {
			// target accepted; the operation itself still needs its own
			// confirmation, with details re-read from the original ask
			intent := Intent{
				Operation:         pending.op,
				TaskID:            pending.taskID,
				Params:            Extract(pending.originText).Params,
				NeedsConfirmation: true,
			}
			return ResolveIntent, intent
		}
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}

	case pendingWhichTask:
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}
		if Classify(text) != OpNone {
			return ResolveFresh, Intent{}
		}
		answer := Extract(text)
		intent := Intent{
			Operation:         pending.op.Base(),
			TaskID:            answer.TaskID,
			TaskTitle:         answer.TaskTitle,
			Params:            mergeParams(Extract(pending.originText).Params, answer.Params),
			NeedsConfirmation: true,
		}
		if intent.TaskID == 0 && intent.TaskTitle == "" {
			intent.TaskTitle = cleanFreeText(strings.ToLower(text))
		}
		return ResolveIntent, intent

	case pendingUpdateDetails:
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}
		if Classify(text) != OpNone {
			return ResolveFresh, Intent{}
		}
		answer := Extract(text)
		return ResolveIntent, Intent{
			Operation:         pending.op.Base(),
			TaskID:            pending.taskID,
			Params:            answer.Params,
			NeedsConfirmation: true,
		}

	case pendingAddTitle:
		if isNegative(text) {
			return ResolveCancelled, Intent{}
		}
		if Classify(text) != OpNone {
			return ResolveFresh, Intent{}
		}
		answer := Extract(text)
		params := answer.Params
		if _, ok := params["title"]; !ok {
			title := answer.TaskTitle
			if title == "" {
				title = cleanFreeText(strings.ToLower(text))
			}
			params["title"] = title
		}
		return ResolveIntent, Intent{Operation: OpAdd, Params: params}
	}

	return ResolveFresh, Intent{}
}

func mergeParams(base, override map[string]interface{}) map[string]interface{} {
	merged := map[string]interface{}{}
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}
