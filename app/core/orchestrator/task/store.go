package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasktalk/app/core/nlp/fuzzymatch"
	"tasktalk/app/core/orchestrator/db"
)

var (
	ErrNotFound   = errors.New("task not found")
	ErrValidation = errors.New("invalid task data")
)

// Store persists tasks in SQLite. Every query is scoped to a user id so
// one user can never read or mutate another user's tasks.
type Store struct {
	database *db.DB
	now      func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{database: database, now: time.Now}
}

// NewTask captures the fields accepted when creating a task.
type NewTask struct {
	Title       string
	Description string
	Priority    string
	DueDate     *time.Time
}

func (s *Store) Add(ctx context.Context, userID string, input NewTask) (Task, error) {
	title := strings.TrimSpace(input.Title)
	if err := validateTitle(title); err != nil {
		return Task{}, err
	}
	if err := validateDescription(input.Description); err != nil {
		return Task{}, err
	}

	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !validPriority(priority) {
		return Task{}, fmt.Errorf("%w: priority must be high, medium or low", ErrValidation)
	}

	if err := s.validateDueDate(input.DueDate); err != nil {
		return Task{}, err
	}

	now := s.now().Unix()
	result, err := s.database.Conn().ExecContext(ctx, `
INSERT INTO tasks (user_id, title, description, completed, priority, due_date, created_at, updated_at)
VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
		userID, title, input.Description, priority, dueDateArg(input.DueDate), now, now)
	if err != nil {
		return Task{}, fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return Task{}, fmt.Errorf("failed to read task id: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *Store) Get(ctx context.Context, userID string, id int64) (Task, error) {
	row := s.database.Conn().QueryRowContext(ctx, `
SELECT id, user_id, title, description, completed, priority, due_date, created_at, updated_at
FROM tasks WHERE id = ? AND user_id = ?`, id, userID)
	return scanTask(row)
}

// ListFilter narrows List results. Zero values mean "no filter".
type ListFilter struct {
	Status   string // "pending", "completed" or ""
	Priority string
}

func (s *Store) List(ctx context.Context, userID string, filter ListFilter) ([]Task, error) {
	query := `
SELECT id, user_id, title, description, completed, priority, due_date, created_at, updated_at
FROM tasks WHERE user_id = ?`
	args := []interface{}{userID}

	switch filter.Status {
	case "", "all":
	case "pending":
		query += " AND completed = 0"
	case "completed":
		query += " AND completed = 1"
	default:
		return nil, fmt.Errorf("%w: unknown status filter %q", ErrValidation, filter.Status)
	}

	if filter.Priority != "" {
		if !validPriority(filter.Priority) {
			return nil, fmt.Errorf("%w: unknown priority filter %q", ErrValidation, filter.Priority)
		}
		query += " AND priority = ?"
		args = append(args, filter.Priority)
	}

	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.database.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		item, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, item)
	}
	return tasks, rows.Err()
}

func (s *Store) Update(ctx context.Context, userID string, id int64, fields UpdateFields) (Task, error) {
	if fields.Empty() {
		return s.Get(ctx, userID, id)
	}

	var sets []string
	var args []interface{}

	if fields.Title != nil {
		title := strings.TrimSpace(*fields.Title)
		if err := validateTitle(title); err != nil {
			return Task{}, err
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if fields.Description != nil {
		if err := validateDescription(*fields.Description); err != nil {
			return Task{}, err
		}
		sets = append(sets, "description = ?")
		args = append(args, *fields.Description)
	}
	if fields.Priority != nil {
		if !validPriority(*fields.Priority) {
			return Task{}, fmt.Errorf("%w: priority must be high, medium or low", ErrValidation)
		}
		sets = append(sets, "priority = ?")
		args = append(args, *fields.Priority)
	}
	if fields.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*fields.Completed))
	}
	if fields.ClearDueDate {
		sets = append(sets, "due_date = NULL")
	} else if fields.DueDate != nil {
		if err := s.validateDueDate(fields.DueDate); err != nil {
			return Task{}, err
		}
		sets = append(sets, "due_date = ?")
		args = append(args, fields.DueDate.Unix())
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, s.now().Unix())
	args = append(args, id, userID)

	query := "UPDATE tasks SET " + strings.Join(sets, ", ") + " WHERE id = ? AND user_id = ?"
	result, err := s.database.Conn().ExecContext(ctx, query, args...)
	if err != nil {
		return Task{}, fmt.Errorf("failed to update task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return Task{}, fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return Task{}, ErrNotFound
	}
	return s.Get(ctx, userID, id)
}

// Delete removes the task and returns its last state so callers can
// describe what was deleted.
func (s *Store) Delete(ctx context.Context, userID string, id int64) (Task, error) {
	deleted, err := s.Get(ctx, userID, id)
	if err != nil {
		return Task{}, err
	}
	if _, err := s.database.Conn().ExecContext(ctx,
		`DELETE FROM tasks WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return Task{}, fmt.Errorf("failed to delete task: %w", err)
	}
	return deleted, nil
}

// FindByTitle fuzzy-matches query against the user's task titles and
// returns the ranked results above threshold, best first.
func (s *Store) FindByTitle(ctx context.Context, userID, query string, threshold int) ([]FindResult, error) {
	tasks, err := s.List(ctx, userID, ListFilter{})
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	titles := make([]string, len(tasks))
	byTitle := make(map[string]Task, len(tasks))
	for i, item := range tasks {
		titles[i] = item.Title
		if _, seen := byTitle[item.Title]; !seen {
			byTitle[item.Title] = item
		}
	}

	var results []FindResult
	for _, match := range fuzzymatch.Rank(query, titles, threshold) {
		results = append(results, FindResult{Task: byTitle[match.Title], Confidence: match.Score})
	}
	return results, nil
}

func (s *Store) validateDueDate(due *time.Time) error {
	if due == nil {
		return nil
	}
	now := s.now()
	if due.Before(now.AddDate(-1, 0, 0)) {
		return fmt.Errorf("%w: due date is more than a year in the past", ErrValidation)
	}
	if due.After(now.AddDate(10, 0, 0)) {
		return fmt.Errorf("%w: due date is more than ten years away", ErrValidation)
	}
	return nil
}

func validateTitle(title string) error {
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrValidation)
	}
	if len(title) > maxTitleLen {
		return fmt.Errorf("%w: title cannot exceed %d characters", ErrValidation, maxTitleLen)
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > maxDescriptionLen {
		return fmt.Errorf("%w: description cannot exceed %d characters", ErrValidation, maxDescriptionLen)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (Task, error) {
	var item Task
	var completed int
	var due sql.NullInt64
	err := row.Scan(&item.ID, &item.UserID, &item.Title, &item.Description,
		&completed, &item.Priority, &due, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("failed to scan task: %w", err)
	}
	item.Completed = completed != 0
	if due.Valid {
		t := time.Unix(due.Int64, 0).UTC()
		item.DueDate = &t
	}
	return item, nil
}

func dueDateArg(due *time.Time) interface{} {
	if due == nil {
		return nil
	}
	return due.Unix()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
