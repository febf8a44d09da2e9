package handlers

import (
	"errors"
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

// ThresholdHandler manages admin CRUD endpoints for alert thresholds.
type ThresholdHandler struct {
	db *gorm.DB // Database handle for thresholds.
}

// NewThresholdHandler constructs a threshold handler.
func NewThresholdHandler(db *gorm.DB) *ThresholdHandler {
	return &ThresholdHandler{db: db}
}

// createThresholdRequest captures the payload for creating a threshold.
type createThresholdRequest struct {
	Name         string `json:"name"`          // Rule name.
	WindowKind   string `json:"window_kind"`   // daily, weekly, monthly, or total.
	CapCredits   string `json:"cap_credits"`   // Decimal credit cap, e.g. "100" or "2.5".
	NotifyEmails string `json:"notify_emails"` // Comma-delimited recipients.
	IsActive     *bool  `json:"is_active"`     // Optional; defaults to true.
}

// Create validates input and inserts a threshold.
func (h *ThresholdHandler) Create(c *gin.Context) {
	var body createThresholdRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	capMicros, errCap := ledger.ParseCredits(body.CapCredits)
	if errCap != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cap_credits must be a decimal credit amount"})
		return
	}

	kind := models.WindowKind(strings.TrimSpace(body.WindowKind))
	if errValidate := alerts.ValidateThreshold(kind, capMicros, body.NotifyEmails); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(errValidate)})
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	now := time.Now().UTC()
	threshold := models.AlertThreshold{
		Name:         name,
		WindowKind:   kind,
		CapMicros:    capMicros,
		IsActive:     isActive,
		NotifyEmails: strings.Join(alerts.SplitRecipients(body.NotifyEmails), ","),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&threshold).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create threshold failed"})
		return
	}
	c.JSON(http.StatusCreated, h.formatThreshold(&threshold))
}

// List returns thresholds filtered by query parameters.
func (h *ThresholdHandler) List(c *gin.Context) {
	var (
		windowKindQ = strings.TrimSpace(c.Query("window_kind"))
		isActiveQ   = strings.TrimSpace(c.Query("is_active"))
	)

	q := h.db.WithContext(c.Request.Context()).Model(&models.AlertThreshold{})
	if windowKindQ != "" {
		q = q.Where("window_kind = ?", windowKindQ)
	}
	if isActiveQ != "" {
		if isActiveQ == "true" || isActiveQ == "1" {
			q = q.Where("is_active = ?", true)
		} else if isActiveQ == "false" || isActiveQ == "0" {
			q = q.Where("is_active = ?", false)
		}
	}

	var rows []models.AlertThreshold
	if errFind := q.Order("id ASC").Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list thresholds failed"})
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, h.formatThreshold(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"alert_thresholds": out})
}

// Get fetches a threshold by ID.
func (h *ThresholdHandler) Get(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var threshold models.AlertThreshold
	if errFind := h.db.WithContext(c.Request.Context()).First(&threshold, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, h.formatThreshold(&threshold))
}

// updateThresholdRequest captures optional fields for threshold updates.
type updateThresholdRequest struct {
	Name         *string `json:"name"`          // Optional rule name.
	WindowKind   *string `json:"window_kind"`   // Optional window kind.
	CapCredits   *string `json:"cap_credits"`   // Optional decimal credit cap.
	NotifyEmails *string `json:"notify_emails"` // Optional recipient list.
	IsActive     *bool   `json:"is_active"`     // Optional active flag.
}

// Update validates and applies threshold changes.
func (h *ThresholdHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body updateThresholdRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var existing models.AlertThreshold
	if errFind := h.db.WithContext(c.Request.Context()).First(&existing, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}

	newName := existing.Name
	if body.Name != nil {
		value := strings.TrimSpace(*body.Name)
		if value == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty"})
			return
		}
		newName = value
	}

	newKind := existing.WindowKind
	if body.WindowKind != nil {
		newKind = models.WindowKind(strings.TrimSpace(*body.WindowKind))
	}

	newCapMicros := existing.CapMicros
	if body.CapCredits != nil {
		parsed, errCap := ledger.ParseCredits(*body.CapCredits)
		if errCap != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cap_credits must be a decimal credit amount"})
			return
		}
		newCapMicros = parsed
	}

	newNotifyEmails := existing.NotifyEmails
	if body.NotifyEmails != nil {
		newNotifyEmails = strings.Join(alerts.SplitRecipients(*body.NotifyEmails), ",")
	}

	if errValidate := alerts.ValidateThreshold(newKind, newCapMicros, newNotifyEmails); errValidate != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(errValidate)})
		return
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"updated_at":    now,
		"name":          newName,
		"window_kind":   newKind,
		"cap_micros":    newCapMicros,
		"notify_emails": newNotifyEmails,
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}

	res := h.db.WithContext(c.Request.Context()).Model(&models.AlertThreshold{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes a threshold by ID. History rows referencing it are kept.
func (h *ThresholdHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.AlertThreshold{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// setThresholdEnabledRequest captures the active flag for toggling a threshold.
type setThresholdEnabledRequest struct {
	IsActive bool `json:"is_active"` // Desired active state.
}

// SetEnabled toggles the active state for a threshold.
func (h *ThresholdHandler) SetEnabled(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var body setThresholdEnabledRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.AlertThreshold{}).Where("id = ?", id).
		Updates(map[string]any{"is_active": body.IsActive, "updated_at": now})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// formatThreshold converts a threshold into a response payload.
func (h *ThresholdHandler) formatThreshold(threshold *models.AlertThreshold) gin.H {
	return gin.H{
		"id":            threshold.ID,
		"name":          threshold.Name,
		"window_kind":   threshold.WindowKind,
		"cap_credits":   ledger.FormatCredits(threshold.CapMicros),
		"cap_micros":    threshold.CapMicros,
		"is_active":     threshold.IsActive,
		"notify_emails": threshold.NotifyEmails,
		"created_at":    threshold.CreatedAt,
		"updated_at":    threshold.UpdatedAt,
	}
}

// validationMessage strips the sentinel prefix from a validation error so the
// API returns just the human-readable reason.
func validationMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}
