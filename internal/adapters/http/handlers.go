package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/galina-antipin/join/internal/application/sync"
	"github.com/galina-antipin/join/internal/domain/entities"
	"github.com/galina-antipin/join/internal/infrastructure/logger"
)

// httpError maps the domain error taxonomy onto HTTP status codes.
// Validation failures are the caller's fault, missing ids are 404 and
// remote store trouble surfaces as a bad gateway.
func httpError(err error) error {
	var (
		validationErr *entities.ValidationError
		notFoundErr   *entities.NotFoundError
		transportErr  *entities.TransportError
		decodeErr     *entities.DecodeError
	)

	switch {
	case errors.As(err, &validationErr):
		return echo.NewHTTPError(http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		return echo.NewHTTPError(http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &transportErr):
		return echo.NewHTTPError(http.StatusBadGateway, "remote store unavailable")
	case errors.As(err, &decodeErr):
		return echo.NewHTTPError(http.StatusBadGateway, "remote store returned malformed data")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// ContactHandler handles contact-related requests
type ContactHandler struct {
	engine *sync.Engine
	logger *logger.Logger
}

// NewContactHandler creates a new contact handler
func NewContactHandler(engine *sync.Engine, logger *logger.Logger) *ContactHandler {
	return &ContactHandler{
		engine: engine,
		logger: logger,
	}
}

// ListContacts returns all cached contacts in display order.
func (h *ContactHandler) ListContacts(c echo.Context) error {
	users := h.engine.Store().Users()
	return c.JSON(http.StatusOK, ListResponse[entities.User]{Data: users, Total: len(users)})
}

// GetContact returns a single contact by id.
func (h *ContactHandler) GetContact(c echo.Context) error {
	user, err := h.engine.Store().UserByID(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

// CreateContact stores a new contact.
func (h *ContactHandler) CreateContact(c echo.Context) error {
	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.engine.CreateUser(c.Request().Context(), req.toInput())
	if err != nil {
		h.logger.Error("Create contact failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, user)
}

// UpdateContact edits an existing contact.
func (h *ContactHandler) UpdateContact(c echo.Context) error {
	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.engine.UpdateUser(c.Request().Context(), c.Param("id"), req.toInput())
	if err != nil {
		h.logger.Error("Update contact failed", "error", err, "user_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteContact removes a contact. The deletion cascades into task
// assignments before the record is dropped.
func (h *ContactHandler) DeleteContact(c echo.Context) error {
	if err := h.engine.DeleteUser(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Error("Delete contact failed", "error", err, "user_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Contact deleted"})
}

// TaskHandler handles task-related requests
type TaskHandler struct {
	engine *sync.Engine
	logger *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(engine *sync.Engine, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		engine: engine,
		logger: logger,
	}
}

// ListTasks returns all cached tasks, optionally filtered by state.
func (h *TaskHandler) ListTasks(c echo.Context) error {
	tasks := h.engine.Store().Tasks()

	if state := c.QueryParam("state"); state != "" {
		taskState := entities.TaskState(state)
		if !taskState.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid state parameter")
		}
		filtered := make([]entities.Task, 0, len(tasks))
		for _, t := range tasks {
			if t.TaskState == taskState {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	return c.JSON(http.StatusOK, ListResponse[entities.Task]{Data: tasks, Total: len(tasks)})
}

// GetTask returns a single task by id.
func (h *TaskHandler) GetTask(c echo.Context) error {
	task, err := h.engine.Store().TaskByID(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// GetBoard returns tasks grouped by board column.
func (h *TaskHandler) GetBoard(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.Board())
}

// CreateTask stores a new task.
func (h *TaskHandler) CreateTask(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.engine.CreateTask(c.Request().Context(), req.toInput())
	if err != nil {
		h.logger.Error("Create task failed", "error", err)
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, task)
}

// UpdateTask edits an existing task.
func (h *TaskHandler) UpdateTask(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.engine.UpdateTask(c.Request().Context(), c.Param("id"), req.toInput())
	if err != nil {
		h.logger.Error("Update task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// MoveTask moves a task into another board column.
func (h *TaskHandler) MoveTask(c echo.Context) error {
	var req MoveTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.engine.MoveTask(c.Request().Context(), c.Param("id"), entities.TaskState(req.TaskState))
	if err != nil {
		h.logger.Error("Move task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// UpdateSubtask checks or unchecks one subtask.
func (h *TaskHandler) UpdateSubtask(c echo.Context) error {
	var req SubtaskDoneRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.engine.SetSubtaskDone(c.Request().Context(), c.Param("id"), c.Param("subtaskID"), req.Done)
	if err != nil {
		h.logger.Error("Update subtask failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, task)
}

// DeleteTask removes a task.
func (h *TaskHandler) DeleteTask(c echo.Context) error {
	if err := h.engine.DeleteTask(c.Request().Context(), c.Param("id")); err != nil {
		h.logger.Error("Delete task failed", "error", err, "task_id", c.Param("id"))
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted"})
}
