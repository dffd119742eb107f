package middleware

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mtodo/internal/pkg/errcode"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		requestID := c.GetString(ContextRequestIDKey)
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if uid := c.GetString(ContextUserIDKey); uid != "" {
			fields = append(fields, zap.String("user_id", uid))
		}
		logger := logutil.GetLogger(c.Request.Context())
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	}
}

// Recover turns a panicking handler into a 500 response. gin's own stack dump
// is discarded; the panic is logged through zap instead.
func Recover() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		logutil.GetLogger(c.Request.Context()).Error("handler panic",
			zap.Any("panic", recovered),
			zap.String("request_id", c.GetString(ContextRequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Stack("stack"),
		)
		response.Error(c, http.StatusInternalServerError, errcode.Internal, "internal error")
	})
}
