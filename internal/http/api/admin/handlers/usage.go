package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/alerts"
	"github.com/upsurgeiq/creditwatch/internal/ledger"
	"github.com/upsurgeiq/creditwatch/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	defaultUsageLimit = 50
	maxUsageLimit     = 500
)

// UsageHandler serves ledger inspection endpoints.
type UsageHandler struct {
	db     *gorm.DB
	ledger *ledger.Ledger
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(db *gorm.DB, l *ledger.Ledger) *UsageHandler {
	return &UsageHandler{db: db, ledger: l}
}

// List returns ledger rows newest first with optional filters.
func (h *UsageHandler) List(c *gin.Context) {
	q := h.db.WithContext(c.Request.Context()).Model(&models.CreditUsage{})

	if userIDQ := strings.TrimSpace(c.Query("user_id")); userIDQ != "" {
		id, errParse := strconv.ParseUint(userIDQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		q = q.Where("user_id = ?", id)
	}
	if featureQ := strings.TrimSpace(c.Query("feature")); featureQ != "" {
		q = q.Where("feature = ?", featureQ)
	}

	limit, offset := parsePage(c, defaultUsageLimit, maxUsageLimit)

	var rows []models.CreditUsage
	if errFind := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list usage failed"})
		return
	}

	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		var metadata any
		if len(row.Metadata) > 0 {
			metadata = json.RawMessage(row.Metadata)
		}
		out = append(out, gin.H{
			"id":             row.ID,
			"user_id":        row.UserID,
			"feature":        row.Feature,
			"credits":        ledger.FormatCredits(row.CreditsMicros),
			"credits_micros": row.CreditsMicros,
			"tokens_used":    row.TokensUsed,
			"metadata":       metadata,
			"created_at":     row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"usage": out})
}

// Summary returns database-side aggregate usage: one total per window kind
// plus a per-feature breakdown for the requested window (default total).
func (h *UsageHandler) Summary(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now()

	var userID *uint64
	if userIDQ := strings.TrimSpace(c.Query("user_id")); userIDQ != "" {
		id, errParse := strconv.ParseUint(userIDQ, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = &id
	}

	windows := gin.H{}
	for _, kind := range []models.WindowKind{models.WindowDaily, models.WindowWeekly, models.WindowMonthly, models.WindowTotal} {
		total, errSum := h.ledger.SumCreditsMicros(ctx, alerts.WindowStartFor(kind, now), userID)
		if errSum != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate usage failed"})
			return
		}
		windows[string(kind)] = gin.H{
			"credits":        ledger.FormatCredits(total),
			"credits_micros": total,
		}
	}

	breakdownKind := models.WindowKind(strings.TrimSpace(c.Query("window")))
	if breakdownKind == "" {
		breakdownKind = models.WindowTotal
	}
	if !models.ValidWindowKind(breakdownKind) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "window must be daily, weekly, monthly, or total"})
		return
	}

	features, errFeatures := h.featureBreakdown(c, breakdownKind, now, userID)
	if errFeatures != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate usage failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"windows":  windows,
		"window":   breakdownKind,
		"features": features,
	})
}

type featureRow struct {
	Feature       string
	CreditsMicros int64
	Events        int64
	TokensUsed    int64
}

func (h *UsageHandler) featureBreakdown(c *gin.Context, kind models.WindowKind, now time.Time, userID *uint64) ([]gin.H, error) {
	q := h.db.WithContext(c.Request.Context()).
		Model(&models.CreditUsage{}).
		Select("feature, COALESCE(SUM(credits_micros), 0) AS credits_micros, COUNT(*) AS events, COALESCE(SUM(tokens_used), 0) AS tokens_used").
		Group("feature").
		Order("credits_micros DESC")
	if windowStart := alerts.WindowStartFor(kind, now); windowStart != nil {
		q = q.Where("created_at >= ?", *windowStart)
	}
	if userID != nil && *userID != 0 {
		q = q.Where("user_id = ?", *userID)
	}

	var rows []featureRow
	if errScan := q.Scan(&rows).Error; errScan != nil {
		return nil, errScan
	}
	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"feature":        row.Feature,
			"credits":        ledger.FormatCredits(row.CreditsMicros),
			"credits_micros": row.CreditsMicros,
			"events":         row.Events,
			"tokens_used":    row.TokensUsed,
		})
	}
	return out, nil
}
