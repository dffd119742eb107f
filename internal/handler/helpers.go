package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/middleware"
	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

func getUserID(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIDKey)
}

func getUser(c *gin.Context) *model.User {
	value, _ := c.Get(middleware.ContextUserKey)
	user, _ := value.(*model.User)
	return user
}

func getToken(c *gin.Context) string {
	return c.GetString(middleware.ContextTokenKey)
}

func badRequest(c *gin.Context, message string) {
	response.Error(c, http.StatusBadRequest, errcode.BadRequest, message)
}

// handleError maps service errors to responses. Storage failures that are not
// one of the known sentinels are reported as 400.
func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Warn("request failed",
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	switch {
	case appErr.IsUnauthorized(err):
		response.Error(c, http.StatusUnauthorized, errcode.Unauthorized, "unauthorized")
	case appErr.IsNotFound(err):
		response.Error(c, http.StatusNotFound, errcode.NotFound, "not found")
	case appErr.IsInvalid(err):
		response.Error(c, http.StatusBadRequest, errcode.Invalid, err.Error())
	case appErr.IsConflict(err):
		response.Error(c, http.StatusBadRequest, errcode.Conflict, "email already registered")
	default:
		response.Error(c, http.StatusBadRequest, errcode.BadRequest, "request failed")
	}
}
