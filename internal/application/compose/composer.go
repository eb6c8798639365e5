// Package compose assembles well-formed users and tasks from discrete
// field inputs before they are handed to the sync engine. All domain
// validation lives here; invalid input never reaches the remote store.
package compose

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/galina-antipin/join/internal/adapters/memory"
	"github.com/galina-antipin/join/internal/domain/entities"
)

// Palette holds the avatar colors a new contact may be assigned. The
// color is picked once at creation and never silently changed.
var Palette = []string{
	"#FF7A00", "#FF5EB3", "#6E52FF", "#9327FF", "#00BEE8",
	"#1FD7C1", "#FF745E", "#FFA35E", "#FC71FF", "#FFC701",
	"#0038FF", "#C3FF2B", "#FFE62B", "#FF4646", "#FFBB2B",
}

// UserInput carries the raw fields for a new or edited contact.
type UserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SubtaskInput carries one checklist item. An empty ID marks a new
// subtask; surviving subtasks keep their id across edits.
type SubtaskInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Done bool   `json:"done"`
}

// TaskInput carries the raw fields for a new or edited task.
type TaskInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Assigned    []string           `json:"assigned"`
	Date        string             `json:"date"`
	Priority    entities.Priority  `json:"priority"`
	Category    string             `json:"category"`
	Subtasks    []SubtaskInput     `json:"subtasks"`
	TaskState   entities.TaskState `json:"taskState"`
}

// Composer builds entities from field inputs, resolving assigned-user
// references against the record store.
type Composer struct {
	store *memory.Store
	rand  *rand.Rand
	today func() entities.Date
}

// New creates a composer backed by the given record store.
func New(store *memory.Store) *Composer {
	return &Composer{
		store: store,
		rand:  rand.New(rand.NewSource(time.Now().UnixNano())),
		today: entities.Today,
	}
}

// ComposeUser builds a contact from raw input. Initials are derived
// once from the name and the avatar color is assigned here; neither is
// recomputed on later edits.
func (c *Composer) ComposeUser(in UserInput) (entities.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return entities.User{}, entities.NewValidationError("name", "must not be empty")
	}

	return entities.User{
		Name:     name,
		Email:    strings.TrimSpace(in.Email),
		Phone:    strings.TrimSpace(in.Phone),
		Initials: Initials(name),
		Color:    Palette[c.rand.Intn(len(Palette))],
	}, nil
}

// ComposeTask builds a task from raw input, rejecting due dates in the
// past. Used for task creation.
func (c *Composer) ComposeTask(in TaskInput) (entities.Task, error) {
	return c.composeTask(in, true)
}

// ComposeTaskEdit builds a task from raw input without the past-date
// check; an existing task may legitimately carry an overdue date.
func (c *Composer) ComposeTaskEdit(in TaskInput) (entities.Task, error) {
	return c.composeTask(in, false)
}

func (c *Composer) composeTask(in TaskInput, requireFutureDate bool) (entities.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return entities.Task{}, entities.NewValidationError("title", "must not be empty")
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		return entities.Task{}, entities.NewValidationError("category", "must not be empty")
	}

	date, err := entities.ParseDate(in.Date)
	if err != nil {
		return entities.Task{}, entities.NewValidationError("date", fmt.Sprintf("must match %s", entities.DateLayout))
	}
	if requireFutureDate && date.Before(c.today()) {
		return entities.Task{}, entities.NewValidationError("date", "must be today or later")
	}

	priority := in.Priority
	if priority == "" {
		priority = entities.PriorityMedium
	}
	if !priority.IsValid() {
		return entities.Task{}, entities.NewValidationError("priority", fmt.Sprintf("unknown priority %q", in.Priority))
	}

	state := in.TaskState
	if state == "" {
		state = entities.TaskStateTodo
	}
	if !state.IsValid() {
		return entities.Task{}, entities.NewValidationError("taskState", fmt.Sprintf("unknown state %q", in.TaskState))
	}

	assigned, err := c.resolveAssigned(in.Assigned)
	if err != nil {
		return entities.Task{}, err
	}

	subtasks, err := composeSubtasks(in.Subtasks)
	if err != nil {
		return entities.Task{}, err
	}

	return entities.Task{
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Assigned:    assigned,
		Date:        date,
		Priority:    priority,
		Category:    category,
		Subtasks:    subtasks,
		TaskState:   state,
	}, nil
}

// resolveAssigned checks every assigned id against the record store.
// Unresolved ids fail the whole composition instead of being dropped.
func (c *Composer) resolveAssigned(ids []string) ([]string, error) {
	assigned := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return nil, entities.NewValidationError("assigned", fmt.Sprintf("duplicate user id %q", id))
		}
		seen[id] = true
		if _, err := c.store.UserByID(id); err != nil {
			return nil, entities.NewValidationError("assigned", fmt.Sprintf("unknown user id %q", id))
		}
		assigned = append(assigned, id)
	}
	return assigned, nil
}

func composeSubtasks(inputs []SubtaskInput) ([]entities.Subtask, error) {
	subtasks := make([]entities.Subtask, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, entities.NewValidationError("subtasks", fmt.Sprintf("subtask %d has an empty name", i))
		}
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		subtasks = append(subtasks, entities.Subtask{ID: id, Name: name, Done: in.Done})
	}
	return subtasks, nil
}

// Initials derives a two-letter monogram from a contact name: first
// letter of the first word plus first letter of the last word, upper-
// cased. A single-word name doubles its first letter. The monogram is
// computed once at creation and deliberately not refreshed on rename.
func Initials(name string) string {
	words := strings.Fields(strings.TrimSpace(name))
	if len(words) == 0 {
		return ""
	}
	first := []rune(words[0])[0]
	last := []rune(words[len(words)-1])[0]
	return strings.ToUpper(string(first) + string(last))
}
