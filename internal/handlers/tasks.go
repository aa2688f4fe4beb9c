package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"todo-api/internal/middleware"
	"todo-api/internal/query"
	"todo-api/internal/services"
	"todo-api/internal/validation"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter, err := query.FromValues(c.Request.URL.Query())
	if err != nil {
		handleTaskError(c, err)
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), filter)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var input validation.CreateTaskInput
	if !bindBody(c, &input) {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) GetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	var input validation.UpdateTaskInput
	if !bindBody(c, &input) {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}

	removed, err := h.taskService.DeleteTask(c.Request.Context(), id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	if !removed {
		handleTaskError(c, services.ErrTaskNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "id: must be an integer"})
		return 0, false
	}
	return id, true
}

// bindBody decodes a JSON object body. Syntax errors are 400; a well-formed
// body with a wrongly typed field is 422.
func bindBody(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}

	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Request body must be a JSON object"})
			return false
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"detail": fmt.Sprintf("%s: must be of type %s", field, typeErr.Value),
		})
	case errors.Is(err, io.EOF):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Request body is required"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Malformed JSON: " + err.Error()})
	}
	return false
}

func handleTaskError(c *gin.Context, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": verr.Error()})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
	default:
		log.Printf("[handlers] %s %s (request %s): %v",
			c.Request.Method, c.Request.URL.Path, middleware.RequestIDFrom(c), err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
	}
}
