package sync

import (
	"context"
	"encoding/json"
	"fmt"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galina-antipin/join/internal/adapters/memory"
	"github.com/galina-antipin/join/internal/application/compose"
	"github.com/galina-antipin/join/internal/domain/entities"
	"github.com/galina-antipin/join/internal/infrastructure/logger"
)

const (
	testUsersPath = "/names"
	testTasksPath = "/tasks"
)

// fakeGateway is an in-memory remote store. Push ids are assigned in
// lexicographically increasing order, like the real store.
type fakeGateway struct {
	mu          stdsync.Mutex
	collections map[string]map[string]json.RawMessage
	nextID      int
	calls       []string
	failOp      string
	failErr     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		collections: map[string]map[string]json.RawMessage{},
	}
}

func (g *fakeGateway) failNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failOp = op
	g.failErr = err
}

func (g *fakeGateway) checkFail(op string) error {
	if g.failOp == op {
		err := g.failErr
		g.failOp = ""
		g.failErr = nil
		return err
	}
	return nil
}

func (g *fakeGateway) callCount(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, call := range g.calls {
		if call == op {
			n++
		}
	}
	return n
}

func (g *fakeGateway) FetchCollection(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "fetch "+path)
	if err := g.checkFail("fetch"); err != nil {
		return nil, err
	}

	out := map[string]json.RawMessage{}
	for id, record := range g.collections[path] {
		out[id] = record
	}
	return out, nil
}

func (g *fakeGateway) CreateEntity(ctx context.Context, path string, fields any) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "create "+path)
	if err := g.checkFail("create"); err != nil {
		return "", err
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	id := fmt.Sprintf("-N%04d", g.nextID)
	g.nextID++
	if g.collections[path] == nil {
		g.collections[path] = map[string]json.RawMessage{}
	}
	g.collections[path][id] = data
	return id, nil
}

func (g *fakeGateway) UpdateEntity(ctx context.Context, path, id string, fields any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "update "+path+"/"+id)
	if err := g.checkFail("update"); err != nil {
		return err
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if g.collections[path] == nil {
		g.collections[path] = map[string]json.RawMessage{}
	}
	g.collections[path][id] = data
	return nil
}

func (g *fakeGateway) DeleteEntity(ctx context.Context, path, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "delete "+path+"/"+id)
	if err := g.checkFail("delete"); err != nil {
		return err
	}

	delete(g.collections[path], id)
	return nil
}

func (g *fakeGateway) totalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func newTestEngine(t *testing.T) (*Engine, *fakeGateway) {
	t.Helper()
	gateway := newFakeGateway()
	store := memory.New()
	composer := compose.New(store)
	engine := New(gateway, store, composer, testUsersPath, testTasksPath, logger.NewNop())
	return engine, gateway
}

func seedUser(t *testing.T, engine *Engine, name string) entities.User {
	t.Helper()
	user, err := engine.CreateUser(context.Background(), compose.UserInput{
		Name:  name,
		Email: "mail@example.com",
	})
	require.NoError(t, err)
	return user
}

func futureTaskInput(title string) compose.TaskInput {
	return compose.TaskInput{
		Title:    title,
		Date:     entities.Today().String(),
		Category: "Household",
	}
}

func TestRefreshUsersSortsByName(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	seedUser(t, engine, "Carla Zimmer")
	seedUser(t, engine, "anna Albrecht")
	seedUser(t, engine, "Berta Nachbar")

	require.NoError(t, engine.RefreshUsers(ctx))

	users := engine.Store().Users()
	require.Len(t, users, 3)
	assert.Equal(t, "anna Albrecht", users[0].Name)
	assert.Equal(t, "Berta Nachbar", users[1].Name)
	assert.Equal(t, "Carla Zimmer", users[2].Name)
}

func TestRefreshIsIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	seedUser(t, engine, "Anna")
	seedUser(t, engine, "Berta")

	require.NoError(t, engine.RefreshUsers(ctx))
	first := engine.Store().Users()

	require.NoError(t, engine.RefreshUsers(ctx))
	second := engine.Store().Users()

	assert.Equal(t, first, second)
}

func TestCreateUserReloadsAfterWrite(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	user, err := engine.CreateUser(ctx, compose.UserInput{
		Name:  "Anton Mayer",
		Email: "anton@example.com",
		Phone: "+49 1111 111",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "AM", user.Initials)
	assert.Contains(t, compose.Palette, user.Color)

	// Mutation is followed by a collection reload.
	assert.Equal(t, 1, gateway.callCount("fetch "+testUsersPath))

	// Local cache mirrors the remote collection.
	assert.Equal(t, 1, engine.Store().UserCount())
}

func TestCreateUserInvalidInputNoSideEffect(t *testing.T) {
	engine, gateway := newTestEngine(t)

	_, err := engine.CreateUser(context.Background(), compose.UserInput{Name: ""})
	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))
	assert.Zero(t, gateway.totalCalls(), "invalid input never reaches the gateway")
}

func TestCreateTaskInvalidTitleNoSideEffect(t *testing.T) {
	engine, gateway := newTestEngine(t)

	in := futureTaskInput("")
	_, err := engine.CreateTask(context.Background(), in)
	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))
	assert.Zero(t, gateway.totalCalls())
}

func TestCreateTaskPastDateRejected(t *testing.T) {
	engine, gateway := newTestEngine(t)

	in := compose.TaskInput{
		Title:    "Clean room",
		Category: "Household",
		Date:     "2020-01-01",
	}
	_, err := engine.CreateTask(context.Background(), in)
	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))
	assert.Zero(t, gateway.totalCalls())
}

func TestFailedCreateDoesNotReload(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	seedUser(t, engine, "Anna")
	fetchesBefore := gateway.callCount("fetch " + testUsersPath)

	gateway.failNext("create", &entities.TransportError{Op: "create", Path: testUsersPath, StatusCode: 503})

	_, err := engine.CreateUser(ctx, compose.UserInput{Name: "Berta"})
	require.Error(t, err)

	var te *entities.TransportError
	assert.ErrorAs(t, err, &te)

	// A failed write must not be masked by a stale reload.
	assert.Equal(t, fetchesBefore, gateway.callCount("fetch "+testUsersPath))
	assert.Equal(t, 1, engine.Store().UserCount(), "cache keeps last known-good view")
}

func TestFailedUpdateDoesNotReload(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, "Anna")
	fetchesBefore := gateway.callCount("fetch " + testUsersPath)

	gateway.failNext("update", &entities.TransportError{Op: "update", Path: testUsersPath, StatusCode: 500})

	_, err := engine.UpdateUser(ctx, user.ID, compose.UserInput{Name: "Anna Neu"})
	require.Error(t, err)
	assert.Equal(t, fetchesBefore, gateway.callCount("fetch "+testUsersPath))

	cached, err := engine.Store().UserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anna", cached.Name)
}

func TestUpdateUserKeepsInitialsAndColor(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, "Anton Mayer")

	updated, err := engine.UpdateUser(ctx, user.ID, compose.UserInput{
		Name:  "Zoe Zimmermann",
		Email: "zoe@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, "Zoe Zimmermann", updated.Name)
	assert.Equal(t, user.Initials, updated.Initials, "initials stay as assigned at creation")
	assert.Equal(t, user.Color, updated.Color, "color is never silently changed")
}

func TestUpdateUserUnknownID(t *testing.T) {
	engine, gateway := newTestEngine(t)

	_, err := engine.UpdateUser(context.Background(), "ghost", compose.UserInput{Name: "X"})
	require.Error(t, err)
	assert.True(t, entities.IsNotFound(err))
	assert.Zero(t, gateway.callCount("update "+testUsersPath+"/ghost"))
}

func TestRoundTripSerialMutations(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	anna := seedUser(t, engine, "Anna")
	berta := seedUser(t, engine, "Berta")

	_, err := engine.UpdateUser(ctx, anna.ID, compose.UserInput{Name: "Anna Neu", Email: "neu@example.com"})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteUser(ctx, berta.ID))

	// After the last reload the cache equals the remote collection.
	remote, err := gateway.FetchCollection(ctx, testUsersPath)
	require.NoError(t, err)
	require.Len(t, remote, 1)

	users := engine.Store().Users()
	require.Len(t, users, 1)
	assert.Equal(t, anna.ID, users[0].ID)
	assert.Equal(t, "Anna Neu", users[0].Name)
}

func TestCreateTask(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, "Anna")

	in := futureTaskInput("Clean room")
	in.Assigned = []string{user.ID}
	in.Priority = entities.PriorityUrgent
	in.Subtasks = []compose.SubtaskInput{{Name: "vacuum"}}

	task, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, entities.PriorityUrgent, task.Priority)
	assert.Equal(t, entities.TaskStateTodo, task.TaskState)
	assert.Equal(t, []string{user.ID}, task.Assigned)
	require.Len(t, task.Subtasks, 1)
	assert.NotEmpty(t, task.Subtasks[0].ID)
}

func TestTasksKeepInsertionOrder(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := engine.CreateTask(ctx, futureTaskInput("first"))
	require.NoError(t, err)
	second, err := engine.CreateTask(ctx, futureTaskInput("second"))
	require.NoError(t, err)
	third, err := engine.CreateTask(ctx, futureTaskInput("third"))
	require.NoError(t, err)

	tasks := engine.Store().Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID},
		[]string{tasks[0].ID, tasks[1].ID, tasks[2].ID})
}

func TestUpdateTaskKeepsStateAndSubtaskIDs(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	in := futureTaskInput("Clean room")
	in.Subtasks = []compose.SubtaskInput{{Name: "vacuum"}}
	task, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	moved, err := engine.MoveTask(ctx, task.ID, entities.TaskStateInProgress)
	require.NoError(t, err)

	edit := futureTaskInput("Clean room properly")
	edit.Subtasks = []compose.SubtaskInput{
		{ID: task.Subtasks[0].ID, Name: "vacuum twice", Done: true},
		{Name: "mop"},
	}

	updated, err := engine.UpdateTask(ctx, task.ID, edit)
	require.NoError(t, err)

	assert.Equal(t, "Clean room properly", updated.Title)
	assert.Equal(t, moved.TaskState, updated.TaskState, "unset state falls back to the stored column")
	require.Len(t, updated.Subtasks, 2)
	assert.Equal(t, task.Subtasks[0].ID, updated.Subtasks[0].ID)
	assert.True(t, updated.Subtasks[0].Done)
	assert.NotEmpty(t, updated.Subtasks[1].ID)
}

func TestMoveTask(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := engine.CreateTask(ctx, futureTaskInput("Clean room"))
	require.NoError(t, err)

	moved, err := engine.MoveTask(ctx, task.ID, entities.TaskStateDone)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStateDone, moved.TaskState)

	_, err = engine.MoveTask(ctx, task.ID, entities.TaskState("archived"))
	require.Error(t, err)
	assert.True(t, entities.IsValidation(err))

	_, err = engine.MoveTask(ctx, "ghost", entities.TaskStateDone)
	require.Error(t, err)
	assert.True(t, entities.IsNotFound(err))
}

func TestSetSubtaskDone(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	in := futureTaskInput("Clean room")
	in.Subtasks = []compose.SubtaskInput{{Name: "vacuum"}, {Name: "mop"}}
	task, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	updated, err := engine.SetSubtaskDone(ctx, task.ID, task.Subtasks[1].ID, true)
	require.NoError(t, err)

	done, total := updated.SubtaskProgress()
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, total)

	_, err = engine.SetSubtaskDone(ctx, task.ID, "ghost", true)
	require.Error(t, err)
	assert.True(t, entities.IsNotFound(err))
}

func TestDeleteUserCascadesIntoTasks(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	anna := seedUser(t, engine, "Anna")
	berta := seedUser(t, engine, "Berta")

	in := futureTaskInput("Shared chore")
	in.Assigned = []string{anna.ID, berta.ID}
	task, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	require.NoError(t, engine.DeleteUser(ctx, anna.ID))

	// No dangling reference locally...
	cached, err := engine.Store().TaskByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{berta.ID}, cached.Assigned)

	// ...and none remotely either.
	remote, err := gateway.FetchCollection(ctx, testTasksPath)
	require.NoError(t, err)
	var rec struct {
		Assigned []string `json:"assigned"`
	}
	require.NoError(t, json.Unmarshal(remote[task.ID], &rec))
	assert.Equal(t, []string{berta.ID}, rec.Assigned)
}

func TestDeleteUserCascadeFailureAborts(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	anna := seedUser(t, engine, "Anna")

	in := futureTaskInput("Chore")
	in.Assigned = []string{anna.ID}
	_, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	gateway.failNext("update", &entities.TransportError{Op: "update", Path: testTasksPath, StatusCode: 500})

	err = engine.DeleteUser(ctx, anna.ID)
	require.Error(t, err)

	// The contact survives when the cascade cannot complete.
	remote, err := gateway.FetchCollection(ctx, testUsersPath)
	require.NoError(t, err)
	assert.Contains(t, remote, anna.ID)

	_, err = engine.Store().UserByID(anna.ID)
	assert.NoError(t, err)
}

func TestDeleteUserUntouchedTasksNotRewritten(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	anna := seedUser(t, engine, "Anna")

	_, err := engine.CreateTask(ctx, futureTaskInput("Unrelated chore"))
	require.NoError(t, err)

	updatesBefore := gateway.totalCalls()
	require.NoError(t, engine.DeleteUser(ctx, anna.ID))

	// One delete plus two reloads; no task rewrite happened.
	assert.Equal(t, updatesBefore+3, gateway.totalCalls())
}

func TestDeleteTask(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	task, err := engine.CreateTask(ctx, futureTaskInput("Clean room"))
	require.NoError(t, err)

	require.NoError(t, engine.DeleteTask(ctx, task.ID))
	assert.Zero(t, engine.Store().TaskCount())

	err = engine.DeleteTask(ctx, task.ID)
	require.Error(t, err)
	assert.True(t, entities.IsNotFound(err))
}

func TestBoardGroupsByState(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	todo, err := engine.CreateTask(ctx, futureTaskInput("first"))
	require.NoError(t, err)
	done, err := engine.CreateTask(ctx, futureTaskInput("second"))
	require.NoError(t, err)
	_, err = engine.MoveTask(ctx, done.ID, entities.TaskStateDone)
	require.NoError(t, err)

	board := engine.Board()
	require.Len(t, board, len(entities.BoardOrder))

	assert.Equal(t, entities.TaskStateTodo, board[0].State)
	require.Len(t, board[0].Tasks, 1)
	assert.Equal(t, todo.ID, board[0].Tasks[0].ID)

	assert.Equal(t, entities.TaskStateInProgress, board[1].State)
	assert.Empty(t, board[1].Tasks)

	assert.Equal(t, entities.TaskStateDone, board[3].State)
	require.Len(t, board[3].Tasks, 1)
	assert.Equal(t, done.ID, board[3].Tasks[0].ID)
}

func TestSubtaskToggleDoesNotRevertConcurrentMove(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	in := futureTaskInput("Clean room")
	in.Subtasks = []compose.SubtaskInput{{Name: "vacuum"}}
	task, err := engine.CreateTask(ctx, in)
	require.NoError(t, err)

	// Hold the task mutex so the concurrent toggle parks before it
	// reads the record, then complete a board move under the lock.
	engine.tasksMu.Lock()

	toggled := make(chan error, 1)
	go func() {
		_, err := engine.SetSubtaskDone(ctx, task.ID, task.Subtasks[0].ID, true)
		toggled <- err
	}()

	moved := task
	moved.TaskState = entities.TaskStateDone
	require.NoError(t, gateway.UpdateEntity(ctx, testTasksPath, task.ID, taskToRecord(moved)))
	require.NoError(t, engine.refreshTasksLocked(ctx))
	engine.tasksMu.Unlock()

	require.NoError(t, <-toggled)

	// The toggle ran second and must carry the moved state forward,
	// not write back the column it saw before the move.
	final, err := engine.Store().TaskByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.TaskStateDone, final.TaskState)
	require.Len(t, final.Subtasks, 1)
	assert.True(t, final.Subtasks[0].Done)
}

func TestUpdateUserSeesPrecedingRename(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	user := seedUser(t, engine, "Anton Mayer")

	engine.usersMu.Lock()

	updated := make(chan error, 1)
	go func() {
		_, err := engine.UpdateUser(ctx, user.ID, compose.UserInput{Name: "Anton Bauer"})
		updated <- err
	}()

	// A rename completes while the second edit is parked on the mutex.
	renamed := user
	renamed.Name = "Zoe Mayer"
	require.NoError(t, gateway.UpdateEntity(ctx, testUsersPath, user.ID, userToRecord(renamed)))
	require.NoError(t, engine.refreshUsersLocked(ctx))
	engine.usersMu.Unlock()

	require.NoError(t, <-updated)

	// The parked edit read the record inside the critical section, so
	// the creation-time initials and color it preserved are the stored
	// ones, not a pre-lock snapshot's.
	final, err := engine.Store().UserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Anton Bauer", final.Name)
	assert.Equal(t, user.Initials, final.Initials)
	assert.Equal(t, user.Color, final.Color)
}

func TestRefreshSurfacesDecodeError(t *testing.T) {
	engine, gateway := newTestEngine(t)
	ctx := context.Background()

	gateway.collections[testUsersPath] = map[string]json.RawMessage{
		"bad": json.RawMessage(`"not an object"`),
	}

	err := engine.RefreshUsers(ctx)
	require.Error(t, err)

	var de *entities.DecodeError
	assert.ErrorAs(t, err, &de)
}
