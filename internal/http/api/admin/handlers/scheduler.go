package handlers

import (
	"net/http"

	"github.com/upsurgeiq/creditwatch/internal/alerts"

	"github.com/gin-gonic/gin"
)

// SchedulerHandler exposes the alert scheduler to operators.
type SchedulerHandler struct {
	scheduler *alerts.Scheduler
}

// NewSchedulerHandler constructs a SchedulerHandler.
func NewSchedulerHandler(scheduler *alerts.Scheduler) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// Status returns a scheduler snapshot.
func (h *SchedulerHandler) Status(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// RunNow triggers one check cycle immediately. The manual trigger shares the
// re-entrancy guard with the timer loop, so it refuses while a cycle is
// already in flight.
func (h *SchedulerHandler) RunNow(c *gin.Context) {
	if h.scheduler == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not configured"})
		return
	}
	started, errCycle := h.scheduler.TriggerNow(c.Request.Context())
	if !started {
		c.JSON(http.StatusConflict, gin.H{"error": "a check cycle is already running"})
		return
	}
	if errCycle != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errCycle.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
