package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// AlertHistoryHandler serves the alert firing log.
type AlertHistoryHandler struct {
	db *gorm.DB
}

// NewAlertHistoryHandler constructs an AlertHistoryHandler.
func NewAlertHistoryHandler(db *gorm.DB) *AlertHistoryHandler {
	return &AlertHistoryHandler{db: db}
}

// List returns firings newest first, optionally filtered by threshold.
// Rows referencing a deleted threshold are returned as-is; the snapshot
// columns carry everything needed to read them.
func (h *AlertHistoryHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.AlertHistory{})

	if thresholdIDQ := strings.TrimSpace(c.Query("threshold_id")); thresholdIDQ != "" {
		id, errParse := strconv.ParseUint(thresholdIDQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold_id"})
			return
		}
		q = q.Where("threshold_id = ?", id)
	}

	limit, offset := parsePage(c, defaultHistoryLimit, maxHistoryLimit)

	var rows []models.AlertHistory
	if errFind := q.Order("triggered_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list alert history failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatFiring(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"alert_history": out})
}

func formatFiring(row *models.AlertHistory) gin.H {
	var metadata any
	if len(row.Metadata) > 0 {
		metadata = json.RawMessage(row.Metadata)
	}
	return gin.H{
		"id":                  row.ID,
		"threshold_id":        row.ThresholdID,
		"triggered_at":        row.TriggeredAt,
		"credits_used":        ledger.FormatCredits(row.CreditsUsedMicros),
		"credits_used_micros": row.CreditsUsedMicros,
		"cap_credits":         ledger.FormatCredits(row.CapMicros),
		"cap_micros":          row.CapMicros,
		"email_sent":          row.EmailSent,
		"metadata":            metadata,
	}
}

// parsePage reads limit/offset query parameters with bounds.
func parsePage(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if limitQ := strings.TrimSpace(c.Query("limit")); limitQ != "" {
		if parsed, errParse := strconv.Atoi(limitQ); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if offsetQ := strings.TrimSpace(c.Query("offset")); offsetQ != "" {
		if parsed, errParse := strconv.Atoi(offsetQ); errParse == nil && parsed > 0 {
			offset = parsed
		}
	}
	return limit, offset
}
