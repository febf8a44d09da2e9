package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/models"
	internalsettings "github.com/upsurgeiq/creditwatch/internal/settings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SettingsHandler manages the DB-backed runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// Get returns the effective runtime settings from the in-memory snapshot.
func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"alert_check_interval_seconds": internalsettings.IntValue(internalsettings.AlertCheckIntervalSecondsKey, internalsettings.DefaultAlertCheckIntervalSeconds),
		"alert_startup_delay_seconds":  internalsettings.IntValue(internalsettings.AlertStartupDelaySecondsKey, internalsettings.DefaultAlertStartupDelaySeconds),
		"alert_notify_email":           internalsettings.StringValue(internalsettings.AlertNotifyEmailKey, ""),
		"updated_at":                   internalsettings.DBConfigUpdatedAt(),
	})
}

// updateSettingsRequest captures optional runtime setting changes.
type updateSettingsRequest struct {
	AlertCheckIntervalSeconds *int    `json:"alert_check_interval_seconds"` // Optional check cadence.
	AlertStartupDelaySeconds  *int    `json:"alert_startup_delay_seconds"`  // Optional boot delay.
	AlertNotifyEmail          *string `json:"alert_notify_email"`           // Optional default recipient.
}

// Update validates and persists setting changes, then refreshes the snapshot
// so the scheduler picks them up on its next tick.
func (h *SettingsHandler) Update(c *gin.Context) {
	var body updateSettingsRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	ctx := c.Request.Context()

	if body.AlertCheckIntervalSeconds != nil {
		if *body.AlertCheckIntervalSeconds <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alert_check_interval_seconds must be greater than zero"})
			return
		}
		if errSave := h.saveSetting(ctx, internalsettings.AlertCheckIntervalSecondsKey, *body.AlertCheckIntervalSeconds); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}
	if body.AlertStartupDelaySeconds != nil {
		if *body.AlertStartupDelaySeconds < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alert_startup_delay_seconds cannot be negative"})
			return
		}
		if errSave := h.saveSetting(ctx, internalsettings.AlertStartupDelaySecondsKey, *body.AlertStartupDelaySeconds); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}
	if body.AlertNotifyEmail != nil {
		email := strings.TrimSpace(*body.AlertNotifyEmail)
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "alert_notify_email cannot be empty"})
			return
		}
		if errSave := h.saveSetting(ctx, internalsettings.AlertNotifyEmailKey, email); errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
	}

	if errRefresh := internalsettings.RefreshDBConfigSnapshot(c.Request.Context(), h.db); errRefresh != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *SettingsHandler) saveSetting(ctx context.Context, key string, value any) error {
	payload, errMarshal := json.Marshal(value)
	if errMarshal != nil {
		return errMarshal
	}

	now := time.Now().UTC()
	var existing models.Setting
	errFind := h.db.WithContext(ctx).Where("key = ?", key).First(&existing).Error
	if errFind == nil {
		return h.db.WithContext(ctx).Model(&models.Setting{}).
			Where("key = ?", key).
			Updates(map[string]any{"value": json.RawMessage(payload), "updated_at": now}).Error
	}
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		row := models.Setting{Key: key, Value: json.RawMessage(payload), UpdatedAt: now}
		return h.db.WithContext(ctx).Create(&row).Error
	}
	return errFind
}
