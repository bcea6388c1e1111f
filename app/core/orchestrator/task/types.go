package task

import "time"

const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
)

// Task is one todo item belonging to a user.
type Task struct {
	ID          int64
	UserID      string
	Title       string
	Description string
	Completed   bool
	Priority    string
	DueDate     *time.Time
	CreatedAt   int64
	UpdatedAt   int64
}

// UpdateFields carries a partial update. A nil field means "do not
// change"; ClearDueDate removes the due date explicitly.
type UpdateFields struct {
	Title        *string
	Description  *string
	Priority     *string
	Completed    *bool
	DueDate      *time.Time
	ClearDueDate bool
}

func (f UpdateFields) Empty() bool {
	return f.Title == nil && f.Description == nil && f.Priority == nil &&
		f.Completed == nil && f.DueDate == nil && !f.ClearDueDate
}

// FindResult is the best fuzzy match for a title query.
type FindResult struct {
	Task       Task
	Confidence int
}

func validPriority(p string) bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}
