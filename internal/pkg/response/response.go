package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as the bare response body with status 200.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Empty writes status 200 with no body.
func Empty(c *gin.Context) {
	c.Status(http.StatusOK)
}

func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, APIError{Code: code, Message: message})
}
