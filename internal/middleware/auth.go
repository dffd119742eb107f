package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/model"
	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	appErr "github.com/xxxsen/mtodo/internal/pkg/errors"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

const (
	AuthHeader = "x-auth"

	ContextUserIDKey = "user_id"
	ContextUserKey   = "user"
	ContextTokenKey  = "token"
)

type TokenResolver interface {
	FindByToken(ctx context.Context, token string) (*model.User, error)
}

// Authenticate resolves the x-auth header to a user and stores the user, its
// id and the raw token on the context. Requests that cannot be resolved are
// aborted with rejectStatus: 401 on identity routes, 404 on owned resources.
func Authenticate(resolver TokenResolver, rejectStatus int) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AuthHeader)
		if token == "" {
			reject(c, rejectStatus)
			return
		}
		user, err := resolver.FindByToken(c.Request.Context(), token)
		if err != nil {
			if !appErr.IsUnauthorized(err) {
				logutil.GetLogger(c.Request.Context()).Warn("resolve token failed",
					zap.String("path", c.Request.URL.Path),
					zap.Error(err),
				)
			}
			reject(c, rejectStatus)
			return
		}
		c.Set(ContextUserIDKey, user.ID)
		c.Set(ContextUserKey, user)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

func reject(c *gin.Context, status int) {
	if status == http.StatusNotFound {
		response.Error(c, status, errcode.NotFound, "not found")
		return
	}
	response.Error(c, status, errcode.Unauthorized, "unauthorized")
}
