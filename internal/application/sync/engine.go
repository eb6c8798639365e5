// Package sync implements the coordinator between the in-memory record
// store and the remote JSON document store. Consistency follows a
// reload-after-write policy: every successful mutation re-fetches the
// whole affected collection so local state is always re-derived from
// the authoritative remote copy. A failed write never triggers a
// reload; the cache keeps its last known-good view and the error is
// surfaced to the caller.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	stdsync "sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/galina-antipin/join/internal/adapters/memory"
	"github.com/galina-antipin/join/internal/application/compose"
	"github.com/galina-antipin/join/internal/domain/entities"
	"github.com/galina-antipin/join/internal/infrastructure/logger"
	"github.com/galina-antipin/join/internal/ports"
)

// Engine is the single coordinator for create/edit/delete operations on
// users and tasks, and the sole writer into the record store. Mutations
// are serialized per entity kind, which closes the race of two
// overlapping reloads deciding the cache by network arrival order.
type Engine struct {
	gateway  ports.Gateway
	store    *memory.Store
	composer *compose.Composer
	logger   *logger.Logger

	usersPath string
	tasksPath string

	// Lock order: usersMu before tasksMu (user deletion cascades
	// into the task collection).
	usersMu stdsync.Mutex
	tasksMu stdsync.Mutex

	collator *collate.Collator
}

// New creates a sync engine over the given gateway and record store.
func New(gateway ports.Gateway, store *memory.Store, composer *compose.Composer, usersPath, tasksPath string, log *logger.Logger) *Engine {
	return &Engine{
		gateway:   gateway,
		store:     store,
		composer:  composer,
		logger:    log.WithComponent("sync"),
		usersPath: usersPath,
		tasksPath: tasksPath,
		collator:  collate.New(language.Und, collate.IgnoreCase),
	}
}

// Store exposes the record store for read-only consumers.
func (e *Engine) Store() *memory.Store {
	return e.store
}

// RefreshAll loads both collections. Must complete before reads are
// considered valid.
func (e *Engine) RefreshAll(ctx context.Context) error {
	if err := e.RefreshUsers(ctx); err != nil {
		return err
	}
	return e.RefreshTasks(ctx)
}

// RefreshUsers re-derives the cached user collection from the remote
// store, sorted by name.
func (e *Engine) RefreshUsers(ctx context.Context) error {
	e.usersMu.Lock()
	defer e.usersMu.Unlock()
	return e.refreshUsersLocked(ctx)
}

func (e *Engine) refreshUsersLocked(ctx context.Context) error {
	records, err := e.gateway.FetchCollection(ctx, e.usersPath)
	if err != nil {
		return err
	}

	users := make([]entities.User, 0, len(records))
	for _, id := range sortedIDs(records) {
		var rec userRecord
		if err := json.Unmarshal(records[id], &rec); err != nil {
			return &entities.DecodeError{Path: e.usersPath + "/" + id, Err: err}
		}
		users = append(users, rec.toUser(id))
	}

	// Contacts are listed alphabetically, locale-aware.
	sort.SliceStable(users, func(i, j int) bool {
		return e.collator.CompareString(users[i].Name, users[j].Name) < 0
	})

	e.store.ReplaceUsers(users)
	e.logger.LogSyncOperation("refresh", string(entities.KindUser), len(users))
	return nil
}

// RefreshTasks re-derives the cached task collection from the remote
// store, in insertion order.
func (e *Engine) RefreshTasks(ctx context.Context) error {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()
	return e.refreshTasksLocked(ctx)
}

func (e *Engine) refreshTasksLocked(ctx context.Context) error {
	records, err := e.gateway.FetchCollection(ctx, e.tasksPath)
	if err != nil {
		return err
	}

	tasks := make([]entities.Task, 0, len(records))
	for _, id := range sortedIDs(records) {
		var rec taskRecord
		if err := json.Unmarshal(records[id], &rec); err != nil {
			return &entities.DecodeError{Path: e.tasksPath + "/" + id, Err: err}
		}
		tasks = append(tasks, rec.toTask(id))
	}

	e.store.ReplaceTasks(tasks)
	e.logger.LogSyncOperation("refresh", string(entities.KindTask), len(tasks))
	return nil
}

// CreateUser validates, persists and reloads a new contact. The
// created record as seen by the remote store is returned.
func (e *Engine) CreateUser(ctx context.Context, in compose.UserInput) (entities.User, error) {
	user, err := e.composer.ComposeUser(in)
	if err != nil {
		return entities.User{}, err
	}

	e.usersMu.Lock()
	defer e.usersMu.Unlock()

	id, err := e.gateway.CreateEntity(ctx, e.usersPath, userToRecord(user))
	if err != nil {
		return entities.User{}, fmt.Errorf("failed to create user: %w", err)
	}

	if err := e.refreshUsersLocked(ctx); err != nil {
		return entities.User{}, err
	}

	created, err := e.store.UserByID(id)
	if err != nil {
		return entities.User{}, err
	}
	e.logger.Infow("User created", "user_id", id, "name", created.Name)
	return created, nil
}

// UpdateUser replaces the contact's editable fields. Initials and
// avatar color stay as assigned at creation, also across renames.
func (e *Engine) UpdateUser(ctx context.Context, id string, in compose.UserInput) (entities.User, error) {
	e.usersMu.Lock()
	defer e.usersMu.Unlock()

	// Read under the lock: a mutation parked on the mutex must see the
	// state left behind by the one that held it, not a stale snapshot.
	existing, err := e.store.UserByID(id)
	if err != nil {
		return entities.User{}, err
	}

	user, err := e.composer.ComposeUser(in)
	if err != nil {
		return entities.User{}, err
	}
	user.ID = id
	user.Initials = existing.Initials
	user.Color = existing.Color

	if err := e.gateway.UpdateEntity(ctx, e.usersPath, id, userToRecord(user)); err != nil {
		return entities.User{}, fmt.Errorf("failed to update user: %w", err)
	}

	if err := e.refreshUsersLocked(ctx); err != nil {
		return entities.User{}, err
	}

	updated, err := e.store.UserByID(id)
	if err != nil {
		return entities.User{}, err
	}
	e.logger.Infow("User updated", "user_id", id, "name", updated.Name)
	return updated, nil
}

// DeleteUser removes the contact and cascades: the user id is stripped
// from every task's assignment list before the contact record is
// deleted, so no task ever exposes a dangling reference. A failed
// cascade write aborts the deletion.
func (e *Engine) DeleteUser(ctx context.Context, id string) error {
	e.usersMu.Lock()
	defer e.usersMu.Unlock()
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	if _, err := e.store.UserByID(id); err != nil {
		return err
	}

	swept := 0
	for _, task := range e.store.Tasks() {
		if !task.Unassign(id) {
			continue
		}
		if err := e.gateway.UpdateEntity(ctx, e.tasksPath, task.ID, taskToRecord(task)); err != nil {
			return fmt.Errorf("failed to unassign user from task %s: %w", task.ID, err)
		}
		swept++
	}

	if err := e.gateway.DeleteEntity(ctx, e.usersPath, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	if err := e.refreshUsersLocked(ctx); err != nil {
		return err
	}
	if err := e.refreshTasksLocked(ctx); err != nil {
		return err
	}

	e.logger.Infow("User deleted", "user_id", id, "tasks_swept", swept)
	return nil
}

// CreateTask validates, persists and reloads a new task.
func (e *Engine) CreateTask(ctx context.Context, in compose.TaskInput) (entities.Task, error) {
	task, err := e.composer.ComposeTask(in)
	if err != nil {
		return entities.Task{}, err
	}

	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	id, err := e.gateway.CreateEntity(ctx, e.tasksPath, taskToRecord(task))
	if err != nil {
		return entities.Task{}, fmt.Errorf("failed to create task: %w", err)
	}

	if err := e.refreshTasksLocked(ctx); err != nil {
		return entities.Task{}, err
	}

	created, err := e.store.TaskByID(id)
	if err != nil {
		return entities.Task{}, err
	}
	e.logger.Infow("Task created", "task_id", id, "title", created.Title)
	return created, nil
}

// UpdateTask replaces a task in full. Unset priority and state fall
// back to the stored values; the past-date check does not apply to
// edits.
func (e *Engine) UpdateTask(ctx context.Context, id string, in compose.TaskInput) (entities.Task, error) {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	existing, err := e.store.TaskByID(id)
	if err != nil {
		return entities.Task{}, err
	}

	if in.Priority == "" {
		in.Priority = existing.Priority
	}
	if in.TaskState == "" {
		in.TaskState = existing.TaskState
	}

	task, err := e.composer.ComposeTaskEdit(in)
	if err != nil {
		return entities.Task{}, err
	}
	task.ID = id

	if err := e.gateway.UpdateEntity(ctx, e.tasksPath, id, taskToRecord(task)); err != nil {
		return entities.Task{}, fmt.Errorf("failed to update task: %w", err)
	}

	if err := e.refreshTasksLocked(ctx); err != nil {
		return entities.Task{}, err
	}

	updated, err := e.store.TaskByID(id)
	if err != nil {
		return entities.Task{}, err
	}
	e.logger.Infow("Task updated", "task_id", id, "title", updated.Title)
	return updated, nil
}

// DeleteTask removes a task.
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	if _, err := e.store.TaskByID(id); err != nil {
		return err
	}

	if err := e.gateway.DeleteEntity(ctx, e.tasksPath, id); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if err := e.refreshTasksLocked(ctx); err != nil {
		return err
	}

	e.logger.Infow("Task deleted", "task_id", id)
	return nil
}

// MoveTask puts a task into another board column. This is the
// persistence side of a board drag.
func (e *Engine) MoveTask(ctx context.Context, id string, state entities.TaskState) (entities.Task, error) {
	if !state.IsValid() {
		return entities.Task{}, entities.NewValidationError("taskState", fmt.Sprintf("unknown state %q", state))
	}

	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	task, err := e.store.TaskByID(id)
	if err != nil {
		return entities.Task{}, err
	}
	task.TaskState = state

	if err := e.gateway.UpdateEntity(ctx, e.tasksPath, id, taskToRecord(task)); err != nil {
		return entities.Task{}, fmt.Errorf("failed to move task: %w", err)
	}

	if err := e.refreshTasksLocked(ctx); err != nil {
		return entities.Task{}, err
	}

	moved, err := e.store.TaskByID(id)
	if err != nil {
		return entities.Task{}, err
	}
	e.logger.Infow("Task moved", "task_id", id, "state", state)
	return moved, nil
}

// SetSubtaskDone checks or unchecks one subtask of a task.
func (e *Engine) SetSubtaskDone(ctx context.Context, taskID, subtaskID string, done bool) (entities.Task, error) {
	e.tasksMu.Lock()
	defer e.tasksMu.Unlock()

	task, err := e.store.TaskByID(taskID)
	if err != nil {
		return entities.Task{}, err
	}

	// Work on a detached subtask list; the fetched task shares its
	// backing array with the cached copy.
	task.Subtasks = append([]entities.Subtask(nil), task.Subtasks...)

	subtask := task.SubtaskByID(subtaskID)
	if subtask == nil {
		return entities.Task{}, entities.NewNotFoundError(entities.KindSubtask, subtaskID)
	}
	subtask.Done = done

	if err := e.gateway.UpdateEntity(ctx, e.tasksPath, taskID, taskToRecord(task)); err != nil {
		return entities.Task{}, fmt.Errorf("failed to update subtask: %w", err)
	}

	if err := e.refreshTasksLocked(ctx); err != nil {
		return entities.Task{}, err
	}

	updated, err := e.store.TaskByID(taskID)
	if err != nil {
		return entities.Task{}, err
	}
	return updated, nil
}

// BoardColumn is one column of the task board.
type BoardColumn struct {
	State entities.TaskState `json:"state"`
	Tasks []entities.Task    `json:"tasks"`
}

// Board groups the cached tasks by state, in fixed column order.
func (e *Engine) Board() []BoardColumn {
	grouped := make(map[entities.TaskState][]entities.Task)
	for _, task := range e.store.Tasks() {
		grouped[task.TaskState] = append(grouped[task.TaskState], task)
	}

	columns := make([]BoardColumn, 0, len(entities.BoardOrder))
	for _, state := range entities.BoardOrder {
		tasks := grouped[state]
		if tasks == nil {
			tasks = []entities.Task{}
		}
		columns = append(columns, BoardColumn{State: state, Tasks: tasks})
	}
	return columns
}
