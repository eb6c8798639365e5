package entities

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies an entity collection.
type Kind string

const (
	KindUser    Kind = "user"
	KindTask    Kind = "task"
	KindSubtask Kind = "subtask"
)

// Priority levels for a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityUrgent Priority = "urgent"
)

// TaskState is the board column a task sits in
type TaskState string

const (
	TaskStateTodo          TaskState = "to do"
	TaskStateInProgress    TaskState = "in progress"
	TaskStateAwaitFeedback TaskState = "await feedback"
	TaskStateDone          TaskState = "done"
)

// BoardOrder is the fixed column order of the task board.
var BoardOrder = []TaskState{TaskStateTodo, TaskStateInProgress, TaskStateAwaitFeedback, TaskStateDone}

// DateLayout is the wire format for due dates.
const DateLayout = "2006-01-02"

// Date is a calendar day, serialized as "2006-01-02".
type Date struct {
	t time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a wire-format date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

// Today returns the current calendar day in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) Equal(o Date) bool  { return d.t.Equal(o.t) }
func (d Date) String() string     { return d.t.Format(DateLayout) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// User represents a contact
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Color    string `json:"color"`
	Initials string `json:"initials"`
}

// Subtask is a single checklist item of a task. IDs are assigned at
// composition time so subtasks stay addressable across list edits.
type Subtask struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// Task represents a board task
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Assigned    []string  `json:"assigned"`
	Date        Date      `json:"date"`
	Priority    Priority  `json:"priority"`
	Category    string    `json:"category"`
	Subtasks    []Subtask `json:"subtasks"`
	TaskState   TaskState `json:"taskState"`
}

// IsAssigned reports whether the given user id is on the task.
func (t *Task) IsAssigned(userID string) bool {
	for _, id := range t.Assigned {
		if id == userID {
			return true
		}
	}
	return false
}

// Unassign removes the given user id from the task. It reports whether
// the assignment list changed. The list is reallocated, never edited in
// place; the receiver may be a copy sharing its backing array with a
// cached task.
func (t *Task) Unassign(userID string) bool {
	kept := make([]string, 0, len(t.Assigned))
	for _, id := range t.Assigned {
		if id != userID {
			kept = append(kept, id)
		}
	}
	changed := len(kept) != len(t.Assigned)
	t.Assigned = kept
	return changed
}

// SubtaskByID returns a pointer into the task's subtask list, or nil.
func (t *Task) SubtaskByID(subtaskID string) *Subtask {
	for i := range t.Subtasks {
		if t.Subtasks[i].ID == subtaskID {
			return &t.Subtasks[i]
		}
	}
	return nil
}

// SubtaskProgress returns done and total subtask counts.
func (t *Task) SubtaskProgress() (done, total int) {
	for _, st := range t.Subtasks {
		if st.Done {
			done++
		}
	}
	return done, len(t.Subtasks)
}

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityUrgent:
		return true
	default:
		return false
	}
}

func (ts TaskState) IsValid() bool {
	switch ts {
	case TaskStateTodo, TaskStateInProgress, TaskStateAwaitFeedback, TaskStateDone:
		return true
	default:
		return false
	}
}
