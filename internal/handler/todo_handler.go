package handler

import (
	"bytes"
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/response"
	"github.com/xxxsen/mtodo/internal/service"
)

type TodoHandler struct {
	todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService) *TodoHandler {
	return &TodoHandler{todos: todos}
}

type createTodoRequest struct {
	Text string `json:"text"`
}

// completedFlag is set only by a literal JSON true. Any other value, including
// "true" as a string, decodes to false.
type completedFlag bool

func (f *completedFlag) UnmarshalJSON(data []byte) error {
	*f = completedFlag(bytes.Equal(bytes.TrimSpace(data), []byte("true")))
	return nil
}

type patchTodoRequest struct {
	Text      *string       `json:"text"`
	Completed completedFlag `json:"completed"`
}

func (h *TodoHandler) Create(c *gin.Context) {
	var req createTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	todo, err := h.todos.Create(c.Request.Context(), getUserID(c), req.Text)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, todo)
}

func (h *TodoHandler) List(c *gin.Context) {
	todos, err := h.todos.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	response.Success(c, gin.H{"todos": todos})
}

func (h *TodoHandler) Get(c *gin.Context) {
	todo, err := h.todos.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"todo": todo})
}

func (h *TodoHandler) Delete(c *gin.Context) {
	todo, err := h.todos.Delete(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"todo": todo})
}

func (h *TodoHandler) Patch(c *gin.Context) {
	var req patchTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request")
		return
	}
	todo, err := h.todos.Update(c.Request.Context(), getUserID(c), c.Param("id"), service.TodoUpdateInput{
		Text:      req.Text,
		Completed: bool(req.Completed),
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"todo": todo})
}
