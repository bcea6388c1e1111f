package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// The assistant's clarification and confirmation replies are the only
// persisted state the context resolver reads back on the next turn, so
// the exact phrasing below is an internal protocol: every template this
// file can emit must be recognized by the parse functions further down.

const (
	confirmTrailer  = "Reply 'yes' to confirm or 'no' to cancel."
	askTitleReply   = "What should the task be called?"
	cancelledReply  = "Cancelled. No changes were made."
	removedDueValue = "removed"

	// bullet due dates use a strict layout so they can be parsed back
	bulletDueLayout = "2006-01-02 15:04"
)

func verbFor(op Operation) string {
	switch op.Base() {
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpComplete:
		return "complete"
	case OpIncomplete:
		return "reopen"
	}
	return "update"
}

func operationForVerb(verb string) Operation {
	switch verb {
	case "update":
		return OpUpdate
	case "delete":
		return OpDelete
	case "complete":
		return OpComplete
	case "reopen":
		return OpIncomplete
	}
	return OpNone
}

func confirmActionReply(op Operation, taskID int64, title string) string {
	return fmt.Sprintf("Are you sure you want to %s task #%d ('%s')?\n%s",
		verbFor(op), taskID, title, confirmTrailer)
}

func confirmUpdateReply(taskID int64, title string, params map[string]interface{}) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Update task #%d ('%s') with these changes?\n", taskID, title)
	for _, line := range changeBullets(params) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(confirmTrailer)
	return b.String()
}

// changeBullets renders params as "- field -> value" lines in a fixed
// field order so the confirmation text is stable for a given intent.
func changeBullets(params map[string]interface{}) []string {
	var lines []string
	appendBullet := func(field string, value interface{}) {
		lines = append(lines, fmt.Sprintf("- %s -> %v", field, value))
	}
	if v, ok := params["title"]; ok {
		appendBullet("title", v)
	}
	if v, ok := params["description"]; ok {
		appendBullet("description", v)
	}
	if v, ok := params["priority"]; ok {
		appendBullet("priority", v)
	}
	if v, ok := params["due_date"]; ok {
		if v == nil {
			appendBullet("due date", removedDueValue)
		} else {
			appendBullet("due date", v)
		}
	}
	if v, ok := params["completed"]; ok {
		if v == true {
			appendBullet("completed", "yes")
		} else {
			appendBullet("completed", "no")
		}
	}
	return lines
}

func candidateReply(op Operation, query string, taskID int64, title string, confidence int) string {
	return fmt.Sprintf("I found a task that might match '%s': '%s' (task #%d) - %d%% match.\nIs this the task you want to %s?\n%s",
		query, title, taskID, confidence, verbFor(op), confirmTrailer)
}

func whichTaskReply(op Operation) string {
	return fmt.Sprintf("Which task would you like to %s? Give the task number or its title.", verbFor(op))
}

func updateDetailsReply(taskID int64, title string) string {
	return fmt.Sprintf("Task #%d ('%s') - what would you like to update? You can change the title, description, priority or due date.", taskID, title)
}

// ---- parse side of the protocol ----

var (
	confirmActionRe = regexp.MustCompile(`(?i)are you sure you want to (update|delete|complete|reopen) task #(\d+) \('(.*?)'\)\?`)
	confirmUpdateRe = regexp.MustCompile(`(?i)update task #(\d+) \('(.*?)'\) with these changes\?`)
	changeLineRe    = regexp.MustCompile(`(?m)^- (title|description|priority|due date|completed) -> (.+)$`)
	candidateRe     = regexp.MustCompile(`(?i)i found a task that might match '(.*?)': '(.*?)' \(task #(\d+)\) - (\d+)% match\.\s*is this the task you want to (update|delete|complete|reopen)\?`)
	whichTaskRe     = regexp.MustCompile(`(?i)which task would you like to (update|delete|complete|reopen)\?`)
	updateDetailRe  = regexp.MustCompile(`(?i)task #(\d+) \('(.*?)'\) - what would you like to update\?`)
)

func parseConfirmAction(text string) (Operation, int64, string, bool) {
	m := confirmActionRe.FindStringSubmatch(text)
	if m == nil {
		return OpNone, 0, "", false
	}
	id, _ := strconv.ParseInt(m[2], 10, 64)
	return operationForVerb(strings.ToLower(m[1])), id, m[3], true
}

func parseConfirmUpdate(text string) (int64, string, map[string]interface{}, bool) {
	m := confirmUpdateRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", nil, false
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	return id, m[2], parseChangeBullets(text), true
}

func parseChangeBullets(text string) map[string]interface{} {
	params := map[string]interface{}{}
	for _, m := range changeLineRe.FindAllStringSubmatch(text, -1) {
		field, value := m[1], strings.TrimSpace(m[2])
		switch field {
		case "due date":
			if value == removedDueValue {
				params["due_date"] = nil
			} else {
				params["due_date"] = value
			}
		case "completed":
			params["completed"] = value == "yes"
		default:
			params[field] = value
		}
	}
	return params
}

func parseCandidate(text string) (op Operation, query string, taskID int64, title string, ok bool) {
	m := candidateRe.FindStringSubmatch(strings.ReplaceAll(text, "\n", " "))
	if m == nil {
		return OpNone, "", 0, "", false
	}
	id, _ := strconv.ParseInt(m[3], 10, 64)
	return operationForVerb(strings.ToLower(m[5])), m[1], id, m[2], true
}

func parseWhichTask(text string) (Operation, bool) {
	m := whichTaskRe.FindStringSubmatch(text)
	if m == nil {
		return OpNone, false
	}
	return operationForVerb(strings.ToLower(m[1])), true
}

func parseUpdateDetails(text string) (int64, string, bool) {
	m := updateDetailRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	id, _ := strconv.ParseInt(m[1], 10, 64)
	return id, m[2], true
}

func isAskTitle(text string) bool {
	return strings.Contains(text, askTitleReply)
}

// formatBulletDue renders a parsed due date for a confirmation bullet.
func formatBulletDue(t time.Time) string {
	return t.Format(bulletDueLayout)
}

func parseBulletDue(value string) (time.Time, error) {
	return time.ParseInLocation(bulletDueLayout, value, time.Local)
}
