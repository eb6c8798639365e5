package sync

import (
	"encoding/json"
	"sort"

	"github.com/galina-antipin/join/internal/domain/entities"
)

// Remote records are the entity fields as stored under a collection
// path. The record id is not part of the body; it is the key the
// remote store filed the record under, folded back in after a fetch.

type userRecord struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Color    string `json:"color"`
	Initials string `json:"initials"`
}

func userToRecord(u entities.User) userRecord {
	return userRecord{
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
		Color:    u.Color,
		Initials: u.Initials,
	}
}

func (r userRecord) toUser(id string) entities.User {
	return entities.User{
		ID:       id,
		Name:     r.Name,
		Email:    r.Email,
		Phone:    r.Phone,
		Color:    r.Color,
		Initials: r.Initials,
	}
}

type taskRecord struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Assigned    []string           `json:"assigned"`
	Date        entities.Date      `json:"date"`
	Priority    entities.Priority  `json:"priority"`
	Category    string             `json:"category"`
	Subtasks    []entities.Subtask `json:"subtasks"`
	TaskState   entities.TaskState `json:"taskState"`
}

func taskToRecord(t entities.Task) taskRecord {
	return taskRecord{
		Title:       t.Title,
		Description: t.Description,
		Assigned:    t.Assigned,
		Date:        t.Date,
		Priority:    t.Priority,
		Category:    t.Category,
		Subtasks:    t.Subtasks,
		TaskState:   t.TaskState,
	}
}

func (r taskRecord) toTask(id string) entities.Task {
	assigned := r.Assigned
	if assigned == nil {
		assigned = []string{}
	}
	subtasks := r.Subtasks
	if subtasks == nil {
		subtasks = []entities.Subtask{}
	}
	return entities.Task{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Assigned:    assigned,
		Date:        r.Date,
		Priority:    r.Priority,
		Category:    r.Category,
		Subtasks:    subtasks,
		TaskState:   r.TaskState,
	}
}

// sortedIDs returns the record keys in ascending order. Push ids
// assigned by the remote store sort chronologically, so key order is
// insertion order.
func sortedIDs(records map[string]json.RawMessage) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
