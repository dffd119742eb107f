package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mtodo/internal/health"
	"github.com/xxxsen/mtodo/internal/pkg/response"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	report := h.checker.Check(c.Request.Context())
	if !report.Healthy {
		c.JSON(http.StatusServiceUnavailable, report)
		return
	}
	response.Success(c, report)
}
