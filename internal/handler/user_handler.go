package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/response"
	"github.com/xxxsen/mtodo/internal/service"
)

type UserHandler struct {
	users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	user, token, err := h.users.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Header(middleware.AuthHeader, token)
	response.Success(c, user)
}

// Login answers 400 for unknown email and wrong password alike.
func (h *UserHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	user, token, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if appErr.IsUnauthorized(err) {
			response.Error(c, http.StatusBadRequest, errcode.Unauthorized, "invalid credentials")
			return
		}
		handleError(c, err)
		return
	}
	c.Header(middleware.AuthHeader, token)
	response.Success(c, user)
}

func (h *UserHandler) Me(c *gin.Context) {
	response.Success(c, getUser(c))
}

func (h *UserHandler) Logout(c *gin.Context) {
	if _, err := h.users.RemoveToken(c.Request.Context(), getUser(c), getToken(c)); err != nil {
		handleError(c, err)
		return
	}
	response.Empty(c)
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	user, err := h.users.UpdateUser(c.Request.Context(), getUser(c), service.UserUpdateInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *UserHandler) DeleteMe(c *gin.Context) {
	user := getUser(c)
	if err := h.users.DeleteUser(c.Request.Context(), user); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, user)
}
