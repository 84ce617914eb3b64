package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/studymate/internal/health"
	"github.com/xxxsen/studymate/internal/pkg/response"
)

type HealthHandler struct {
	checker *health.Checker
	started time.Time
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker, started: time.Now()}
}

func (h *HealthHandler) Health(c *gin.Context) {
	statuses := h.checker.Status(c.Request.Context())
	healthy := true
	for _, s := range statuses {
		if !s.Healthy {
			healthy = false
		}
	}
	response.Success(c, gin.H{
		"healthy":        healthy,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"targets":        statuses,
	})
}
