package compose

import (
	"github.com/google/uuid"

	"github.com/galina-antipin/join/internal/domain/entities"
)

// TaskDraft is the in-progress state of a task being composed. UI
// events are applied as intents (select a priority, toggle an
// assignment, edit a subtask) and the rendering layer reads the draft
// back; the draft never talks to the remote store itself.
type TaskDraft struct {
	Title       string
	Description string
	Date        string
	Category    string

	priority entities.Priority
	state    entities.TaskState
	assigned []string
	subtasks []SubtaskInput
}

// NewTaskDraft starts a draft with the defaults of a fresh task:
// medium priority, "to do" column.
func NewTaskDraft() *TaskDraft {
	return &TaskDraft{
		priority: entities.PriorityMedium,
		state:    entities.TaskStateTodo,
	}
}

// Priority returns the currently selected priority.
func (d *TaskDraft) Priority() entities.Priority {
	return d.priority
}

// SelectPriority switches the active priority. Selection is
// single-select: the previous priority is always deselected and
// exactly one priority is active at any time. Unknown values are
// ignored.
func (d *TaskDraft) SelectPriority(p entities.Priority) {
	if !p.IsValid() {
		return
	}
	d.priority = p
}

// State returns the board column the draft will land in.
func (d *TaskDraft) State() entities.TaskState {
	return d.state
}

// SetState picks the board column for the draft. Unknown values are
// ignored.
func (d *TaskDraft) SetState(s entities.TaskState) {
	if !s.IsValid() {
		return
	}
	d.state = s
}

// Assigned returns the assigned user ids in selection order.
func (d *TaskDraft) Assigned() []string {
	out := make([]string, len(d.assigned))
	copy(out, d.assigned)
	return out
}

// ToggleAssigned adds the user id to the assignment list, or removes
// it when already present.
func (d *TaskDraft) ToggleAssigned(userID string) {
	for i, id := range d.assigned {
		if id == userID {
			d.assigned = append(d.assigned[:i], d.assigned[i+1:]...)
			return
		}
	}
	d.assigned = append(d.assigned, userID)
}

// Subtasks returns the draft's checklist in display order.
func (d *TaskDraft) Subtasks() []SubtaskInput {
	out := make([]SubtaskInput, len(d.subtasks))
	copy(out, d.subtasks)
	return out
}

// AddSubtask appends a checklist item and returns its id.
func (d *TaskDraft) AddSubtask(name string) string {
	id := uuid.NewString()
	d.subtasks = append(d.subtasks, SubtaskInput{ID: id, Name: name})
	return id
}

// RenameSubtask changes the name of the subtask with the given id.
func (d *TaskDraft) RenameSubtask(id, name string) bool {
	for i := range d.subtasks {
		if d.subtasks[i].ID == id {
			d.subtasks[i].Name = name
			return true
		}
	}
	return false
}

// CheckSubtask sets the done flag of the subtask with the given id.
func (d *TaskDraft) CheckSubtask(id string, done bool) bool {
	for i := range d.subtasks {
		if d.subtasks[i].ID == id {
			d.subtasks[i].Done = done
			return true
		}
	}
	return false
}

// RemoveSubtask deletes the subtask with the given id, preserving the
// order of the remaining items.
func (d *TaskDraft) RemoveSubtask(id string) bool {
	for i := range d.subtasks {
		if d.subtasks[i].ID == id {
			d.subtasks = append(d.subtasks[:i], d.subtasks[i+1:]...)
			return true
		}
	}
	return false
}

// Input snapshots the draft for the composer.
func (d *TaskDraft) Input() TaskInput {
	return TaskInput{
		Title:       d.Title,
		Description: d.Description,
		Assigned:    d.Assigned(),
		Date:        d.Date,
		Priority:    d.priority,
		Category:    d.Category,
		Subtasks:    d.Subtasks(),
		TaskState:   d.state,
	}
}
