package tasksvc

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Task is one to-do document. JSON names follow the stored document fields.
type Task struct {
	ID        string    `json:"id"`
	UID       string    `json:"uid"`
	Text      string    `json:"task"`
	Deadline  string    `json:"deadline"`
	Starred   bool      `json:"starred"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields is a partial write. Nil fields are left unchanged.
type Fields struct {
	Text      *string    `json:"task,omitempty"`
	Deadline  *string    `json:"deadline,omitempty"`
	Starred   *bool      `json:"starred,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Apply merges f into t.
func (f Fields) Apply(t *Task) {
	if f.Text != nil {
		t.Text = *f.Text
	}
	if f.Deadline != nil {
		t.Deadline = *f.Deadline
	}
	if f.Starred != nil {
		t.Starred = *f.Starred
	}
	if f.UpdatedAt != nil {
		t.UpdatedAt = *f.UpdatedAt
	}
}

// TaskRepository is a collection of task documents. Every call is scoped to
// the owner uid; documents of other owners behave as if they did not exist.
type TaskRepository interface {
	Create(ctx context.Context, task Task) (string, error)
	FindAll(ctx context.Context, uid string) ([]Task, error)
	Find(ctx context.Context, uid, taskID string) (Task, error)
	Update(ctx context.Context, uid, taskID string, f Fields) error
	Delete(ctx context.Context, uid, taskID string) error
}

type Auth struct {
	AccessUUID string
	UserID     string
}

// DeadlineLayout is the layout of an HTML datetime-local input.
const DeadlineLayout = "2006-01-02T15:04"

var deadlineLayouts = []string{
	DeadlineLayout,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseDeadline parses a stored deadline. Layouts without a zone are read in
// the local zone.
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDeadline
}

// Validate checks a task before it is inserted.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Text) == "" {
		return ErrInvalidArgument
	}
	if _, err := ParseDeadline(t.Deadline); err != nil {
		return err
	}
	if t.UpdatedAt.Before(t.CreatedAt) {
		return ErrInvalidArgument
	}
	return nil
}

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidDeadline      = errors.New("invalid deadline")
	ErrTaskNotFound         = errors.New("task not found")
	ErrUserIDContextMissing = errors.New("user ID was not passed through the context")
	ErrClaimsMissing        = errors.New("JWT claims was not passed through the context")
	ErrClaimsInvalid        = errors.New("JWT claims was invalid")
)

// Failures at the store boundary are reported as one of these two kinds.
// The cause stays reachable through errors.Is.
var (
	ErrRead  = errors.New("read failed")
	ErrWrite = errors.New("write failed")
)
