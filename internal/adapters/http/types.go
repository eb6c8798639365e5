package http

import (
	"github.com/galina-antipin/join/internal/application/compose"
	"github.com/galina-antipin/join/internal/domain/entities"
)

// ContactRequest carries contact fields for create and edit.
type ContactRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone"`
}

func (r ContactRequest) toInput() compose.UserInput {
	return compose.UserInput{
		Name:  r.Name,
		Email: r.Email,
		Phone: r.Phone,
	}
}

// SubtaskRequest carries one checklist item of a task request.
type SubtaskRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
	Done bool   `json:"done"`
}

// TaskRequest carries task fields for create and edit.
type TaskRequest struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Assigned    []string         `json:"assigned"`
	Date        string           `json:"date" validate:"required"`
	Priority    string           `json:"priority"`
	Category    string           `json:"category" validate:"required"`
	Subtasks    []SubtaskRequest `json:"subtasks" validate:"dive"`
	TaskState   string           `json:"taskState"`
}

func (r TaskRequest) toInput() compose.TaskInput {
	subtasks := make([]compose.SubtaskInput, 0, len(r.Subtasks))
	for _, st := range r.Subtasks {
		subtasks = append(subtasks, compose.SubtaskInput{ID: st.ID, Name: st.Name, Done: st.Done})
	}
	return compose.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Assigned:    r.Assigned,
		Date:        r.Date,
		Priority:    entities.Priority(r.Priority),
		Category:    r.Category,
		Subtasks:    subtasks,
		TaskState:   entities.TaskState(r.TaskState),
	}
}

// MoveTaskRequest moves a task into another board column.
type MoveTaskRequest struct {
	TaskState string `json:"taskState" validate:"required"`
}

// SubtaskDoneRequest checks or unchecks a subtask.
type SubtaskDoneRequest struct {
	Done bool `json:"done"`
}

// MessageResponse is a plain confirmation body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ListResponse wraps a collection read.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
