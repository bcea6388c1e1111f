package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"tasktalk/app/core/nlp/dates"
	"tasktalk/app/core/orchestrator/task"
	"tasktalk/app/pkg/types"
)

// Config tunes the resolution thresholds.
type Config struct {
	// FuzzyThreshold is the minimum similarity for a title to count as
	// a match at all.
	FuzzyThreshold int
	// ResolveConfidence is the score at or above which a single fuzzy
	// match is treated as resolved without asking.
	ResolveConfidence int
}

func (c Config) withDefaults() Config {
	if c.FuzzyThreshold <= 0 {
		c.FuzzyThreshold = 60
	}
	if c.ResolveConfidence <= 0 {
		c.ResolveConfidence = 80
	}
	return c
}

// Outcome is the engine's decision for one turn. Handled=false means the
// message carried no task intent and should fall through to open
// conversation.
type Outcome struct {
	Handled   bool
	Reply     string
	ToolCalls []types.ToolCall
}

// Engine is the deterministic intent-resolution and confirmation layer.
// It keeps no state between turns; every decision derives from the
// transcript and the current message, so concurrent turns are safe.
type Engine struct {
	tasks *task.Store
	cfg   Config
	now   func() time.Time
}

func New(tasks *task.Store, cfg Config) *Engine {
	return &Engine{tasks: tasks, cfg: cfg.withDefaults(), now: time.Now}
}

// HandleTurn processes one user message against the transcript. At most
// one mutating store call happens per turn, and only for an intent the
// user has explicitly confirmed.
func (e *Engine) HandleTurn(ctx context.Context, userID, text string, history []types.Message) (Outcome, error) {
	seen := map[string]bool{}

	resolution, intent := ResolveContext(history, text)
	switch resolution {
	case ResolveCancelled:
		return replyOutcome(cancelledReply), nil
	case ResolveExecute:
		return e.execute(ctx, userID, intent, seen)
	case ResolveIntent:
		return e.advance(ctx, userID, text, intent, seen)
	}

	op := Classify(text)
	if op == OpNone {
		return Outcome{}, nil
	}

	extracted := Extract(text)
	intent = Intent{
		Operation:         op,
		TaskID:            extracted.TaskID,
		TaskTitle:         extracted.TaskTitle,
		Params:            extracted.Params,
		NeedsConfirmation: op.Mutating(),
	}
	return e.advance(ctx, userID, text, intent, seen)
}

// Propose routes an advisory intent (e.g. a tool call proposed by the
// language model) through the normal confirmation policy. Mutating
// proposals are never executed directly; they come back as questions.
func (e *Engine) Propose(ctx context.Context, userID string, intent Intent) (Outcome, error) {
	if intent.Operation.Mutating() {
		intent.NeedsConfirmation = true
	}
	return e.advance(ctx, userID, "", intent, map[string]bool{})
}

// advance runs the per-turn state machine: ask for a target, ask for
// details, ask for confirmation, or (for add/list) execute directly.
func (e *Engine) advance(ctx context.Context, userID, text string, intent Intent, seen map[string]bool) (Outcome, error) {
	if intent.Params == nil {
		intent.Params = map[string]interface{}{}
	}

	switch intent.Operation.Base() {
	case OpAdd:
		if _, ok := intent.stringParam("title"); !ok {
			if intent.TaskTitle != "" {
				intent.Params["title"] = intent.TaskTitle
			} else {
				return replyOutcome(askTitleReply), nil
			}
		}
		return e.execute(ctx, userID, intent, seen)

	case OpList:
		return e.executeList(ctx, userID, text, intent, seen)
	}

	// mutating operation: resolve the target first
	target, outcome, done, err := e.resolveTarget(ctx, userID, intent)
	if done || err != nil {
		return outcome, err
	}
	intent.TaskID = target.ID

	if intent.Operation.Base() == OpUpdate && !hasUpdatableField(intent.Params) {
		return replyOutcome(updateDetailsReply(target.ID, target.Title)), nil
	}

	if failure, ok := e.normalizeDueParam(intent.Params); !ok {
		return replyOutcome(failure), nil
	}

	if intent.Operation.Base() == OpUpdate {
		return replyOutcome(confirmUpdateReply(target.ID, target.Title, intent.Params)), nil
	}
	return replyOutcome(confirmActionReply(intent.Operation, target.ID, target.Title)), nil
}

// resolveTarget turns an id or title phrase into a concrete owned task.
// done=true means the outcome already carries the user-facing reply.
func (e *Engine) resolveTarget(ctx context.Context, userID string, intent Intent) (task.Task, Outcome, bool, error) {
	if intent.TaskID != 0 {
		target, err := e.tasks.Get(ctx, userID, intent.TaskID)
		if err != nil {
			outcome, err := e.storeErrorOutcome(err)
			return task.Task{}, outcome, true, err
		}
		return target, Outcome{}, false, nil
	}

	if intent.TaskTitle == "" {
		return task.Task{}, replyOutcome(whichTaskReply(intent.Operation)), true, nil
	}

	matches, err := e.tasks.FindByTitle(ctx, userID, intent.TaskTitle, e.cfg.FuzzyThreshold)
	if err != nil {
		return task.Task{}, Outcome{}, true, err
	}
	if len(matches) == 0 {
		outcome, err := e.noMatchOutcome(ctx, userID, intent)
		return task.Task{}, outcome, true, err
	}

	best := matches[0]
	if best.Confidence >= e.cfg.ResolveConfidence {
		return best.Task, Outcome{}, false, nil
	}
	reply := candidateReply(intent.Operation, intent.TaskTitle, best.Task.ID, best.Task.Title, best.Confidence)
	return task.Task{}, replyOutcome(reply), true, nil
}

func (e *Engine) noMatchOutcome(ctx context.Context, userID string, intent Intent) (Outcome, error) {
	existing, err := e.tasks.List(ctx, userID, task.ListFilter{})
	if err != nil {
		return Outcome{}, err
	}
	if len(existing) == 0 {
		return replyOutcome("You don't have any tasks yet."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I couldn't find a task matching '%s'. Here are your current tasks:\n", intent.TaskTitle)
	b.WriteString(e.formatTaskLines(existing))
	b.WriteString("\n")
	b.WriteString(whichTaskReply(intent.Operation))
	return replyOutcome(b.String()), nil
}

// execute performs exactly one store call for a confirmed (or
// confirmation-free) intent. Repeat calls for the same intent within a
// turn are suppressed.
func (e *Engine) execute(ctx context.Context, userID string, intent Intent, seen map[string]bool) (Outcome, error) {
	key := intent.key()
	if seen[key] {
		return replyOutcome("That's already done."), nil
	}
	seen[key] = true

	switch intent.Operation.Base() {
	case OpAdd:
		return e.executeAdd(ctx, userID, intent)
	case OpList:
		return e.executeList(ctx, userID, "", intent, seen)
	case OpUpdate:
		return e.executeUpdate(ctx, userID, intent)
	case OpDelete:
		return e.executeDelete(ctx, userID, intent)
	case OpComplete:
		return e.executeSetCompleted(ctx, userID, intent, true)
	case OpIncomplete:
		return e.executeSetCompleted(ctx, userID, intent, false)
	}
	return Outcome{}, nil
}

func (e *Engine) executeAdd(ctx context.Context, userID string, intent Intent) (Outcome, error) {
	title, _ := intent.stringParam("title")
	description, _ := intent.stringParam("description")

	priority, hasPriority := intent.stringParam("priority")
	if !hasPriority {
		priority = suggestPriority(title, description)
	}

	var due *time.Time
	if phrase, ok := intent.stringParam("due_date"); ok {
		parsed, err := e.parseDue(phrase)
		if err != nil {
			return replyOutcome(dateFailReply(phrase)), nil
		}
		due = &parsed
	}

	// non-blocking hint when a near-identical task already exists
	similar, err := e.tasks.FindByTitle(ctx, userID, title, e.cfg.ResolveConfidence)
	if err != nil {
		return Outcome{}, err
	}

	created, err := e.tasks.Add(ctx, userID, task.NewTask{
		Title:       title,
		Description: description,
		Priority:    priority,
		DueDate:     due,
	})
	if err != nil {
		return e.storeErrorOutcome(err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Added task #%d: '%s'.", created.ID, created.Title)
	if created.Priority != task.PriorityMedium {
		fmt.Fprintf(&b, " Priority set to %s.", created.Priority)
	}
	if created.DueDate != nil {
		fmt.Fprintf(&b, " Due %s.", dates.FormatRelative(*created.DueDate, e.now()))
	}
	if len(similar) > 0 {
		fmt.Fprintf(&b, "\nNote: you already have a similar task: '%s' (task #%d).",
			similar[0].Task.Title, similar[0].Task.ID)
	}

	call := types.ToolCall{
		Tool:   "add_task",
		Params: map[string]interface{}{"title": created.Title, "priority": created.Priority},
		Result: map[string]interface{}{"task_id": created.ID},
	}
	return Outcome{Handled: true, Reply: b.String(), ToolCalls: []types.ToolCall{call}}, nil
}

var (
	allFilterRe     = regexp.MustCompile(`(?i)\ball\b|\bevery\b`)
	pendingFilterRe = regexp.MustCompile(`(?i)\b(pending|open|remaining|unfinished|outstanding|todo)\b`)
)

func (e *Engine) executeList(ctx context.Context, userID, text string, intent Intent, seen map[string]bool) (Outcome, error) {
	seen[intent.key()] = true

	filter := task.ListFilter{}
	if completed, ok := intent.param("completed"); ok {
		if completed == true {
			filter.Status = "completed"
		} else {
			filter.Status = "pending"
		}
	}
	if pendingFilterRe.MatchString(text) {
		filter.Status = "pending"
	}
	if allFilterRe.MatchString(text) {
		filter.Status = ""
	}
	if priority, ok := intent.stringParam("priority"); ok {
		filter.Priority = priority
	}

	items, err := e.tasks.List(ctx, userID, filter)
	if err != nil {
		return e.storeErrorOutcome(err)
	}

	var reply string
	switch {
	case len(items) == 0 && filter == (task.ListFilter{}):
		reply = "You have no tasks yet. Tell me what to add!"
	case len(items) == 0:
		reply = "No tasks match that filter."
	default:
		reply = "Here are your tasks:\n" + e.formatTaskLines(items)
	}

	call := types.ToolCall{
		Tool:   "list_tasks",
		Params: map[string]interface{}{"status": filter.Status, "priority": filter.Priority},
		Result: map[string]interface{}{"count": len(items)},
	}
	return Outcome{Handled: true, Reply: reply, ToolCalls: []types.ToolCall{call}}, nil
}

func (e *Engine) executeUpdate(ctx context.Context, userID string, intent Intent) (Outcome, error) {
	fields := task.UpdateFields{}
	if v, ok := intent.stringParam("title"); ok {
		fields.Title = &v
	}
	if v, ok := intent.stringParam("description"); ok {
		fields.Description = &v
	}
	if v, ok := intent.stringParam("priority"); ok {
		fields.Priority = &v
	}
	if v, ok := intent.param("completed"); ok {
		completed := v == true
		fields.Completed = &completed
	}
	if v, ok := intent.param("due_date"); ok {
		if v == nil {
			fields.ClearDueDate = true
		} else if phrase, isText := v.(string); isText {
			parsed, err := e.parseDue(phrase)
			if err != nil {
				return replyOutcome(dateFailReply(phrase)), nil
			}
			fields.DueDate = &parsed
		}
	}

	updated, err := e.tasks.Update(ctx, userID, intent.TaskID, fields)
	if err != nil {
		return e.storeErrorOutcome(err)
	}

	call := types.ToolCall{
		Tool:   "update_task",
		Params: map[string]interface{}{"task_id": intent.TaskID, "fields": intent.Params},
		Result: map[string]interface{}{"task_id": updated.ID},
	}
	reply := fmt.Sprintf("Updated task #%d: '%s'.", updated.ID, updated.Title)
	return Outcome{Handled: true, Reply: reply, ToolCalls: []types.ToolCall{call}}, nil
}

func (e *Engine) executeDelete(ctx context.Context, userID string, intent Intent) (Outcome, error) {
	deleted, err := e.tasks.Delete(ctx, userID, intent.TaskID)
	if err != nil {
		return e.storeErrorOutcome(err)
	}
	call := types.ToolCall{
		Tool:   "delete_task",
		Params: map[string]interface{}{"task_id": intent.TaskID},
		Result: map[string]interface{}{"task_id": deleted.ID},
	}
	reply := fmt.Sprintf("Deleted task #%d: '%s'.", deleted.ID, deleted.Title)
	return Outcome{Handled: true, Reply: reply, ToolCalls: []types.ToolCall{call}}, nil
}

func (e *Engine) executeSetCompleted(ctx context.Context, userID string, intent Intent, completed bool) (Outcome, error) {
	updated, err := e.tasks.Update(ctx, userID, intent.TaskID, task.UpdateFields{Completed: &completed})
	if err != nil {
		return e.storeErrorOutcome(err)
	}
	call := types.ToolCall{
		Tool:   "update_task",
		Params: map[string]interface{}{"task_id": intent.TaskID, "fields": map[string]interface{}{"completed": completed}},
		Result: map[string]interface{}{"task_id": updated.ID},
	}
	var reply string
	if completed {
		reply = fmt.Sprintf("Marked task #%d ('%s') as completed.", updated.ID, updated.Title)
	} else {
		reply = fmt.Sprintf("Reopened task #%d ('%s').", updated.ID, updated.Title)
	}
	return Outcome{Handled: true, Reply: reply, ToolCalls: []types.ToolCall{call}}, nil
}

func (e *Engine) formatTaskLines(items []task.Task) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		marker := " "
		if item.Completed {
			marker = "x"
		}
		fmt.Fprintf(&b, "#%d [%s] %s", item.ID, marker, item.Title)
		if item.Priority != task.PriorityMedium {
			fmt.Fprintf(&b, " (%s priority)", item.Priority)
		}
		if item.DueDate != nil {
			fmt.Fprintf(&b, " - due %s", dates.FormatRelative(*item.DueDate, e.now()))
		}
	}
	return b.String()
}

// normalizeDueParam parses a raw due phrase into the bullet layout so
// the confirmation text shows the resolved date and can be parsed back.
func (e *Engine) normalizeDueParam(params map[string]interface{}) (string, bool) {
	v, ok := params["due_date"]
	if !ok || v == nil {
		return "", true
	}
	phrase, isText := v.(string)
	if !isText {
		return "", true
	}
	parsed, err := e.parseDue(phrase)
	if err != nil {
		return dateFailReply(phrase), false
	}
	params["due_date"] = formatBulletDue(parsed)
	return "", true
}

func (e *Engine) parseDue(phrase string) (time.Time, error) {
	if t, err := parseBulletDue(phrase); err == nil {
		return t, nil
	}
	return dates.Parse(phrase, e.now())
}

func dateFailReply(phrase string) string {
	return fmt.Sprintf("I couldn't understand the date '%s'. Try something like 'tomorrow at 5pm' or '2026-01-20'.", phrase)
}

func hasUpdatableField(params map[string]interface{}) bool {
	for _, key := range []string{"title", "description", "priority", "due_date", "completed"} {
		if _, ok := params[key]; ok {
			return true
		}
	}
	return false
}

var highSuggestRe = regexp.MustCompile(`\b(?:urgent|asap|important|critical|emergency|immediately)\b`)
var lowSuggestRe = regexp.MustCompile(`\b(?:someday|eventually|maybe|whenever|no\s+rush)\b`)

// suggestPriority infers a non-default priority from the task text when
// the user gave none. Returning "" lets the store default apply.
func suggestPriority(title, description string) string {
	text := strings.ToLower(title + " " + description)
	if highSuggestRe.MatchString(text) {
		return task.PriorityHigh
	}
	if lowSuggestRe.MatchString(text) {
		return task.PriorityLow
	}
	return ""
}

func (e *Engine) storeErrorOutcome(err error) (Outcome, error) {
	if errors.Is(err, task.ErrNotFound) {
		return replyOutcome("I couldn't find that task. Try 'show my tasks' to see the list."), nil
	}
	if errors.Is(err, task.ErrValidation) {
		return replyOutcome("I can't do that: " + validationDetail(err) + "."), nil
	}
	return Outcome{}, err
}

func validationDetail(err error) string {
	detail := err.Error()
	if idx := strings.LastIndex(detail, ": "); idx >= 0 {
		detail = detail[idx+2:]
	}
	return detail
}

func replyOutcome(text string) Outcome {
	return Outcome{Handled: true, Reply: text}
}
