package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/upsurgeiq/creditwatch/internal/models"
	"gorm.io/gorm"
)

// RefreshDBConfigSnapshot reloads all settings from the database and updates the in-memory snapshot.
//
// This is required at process startup; otherwise DBConfigValue() will return empty values until
// an operator updates settings via the API (which triggers refresh).
func RefreshDBConfigSnapshot(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("settings: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = row.Value
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	StoreDBConfig(maxUpdatedAt, values)
	return nil
}

// IntValue returns the integer setting for key, or fallback when the key is
// absent or not an integer.
func IntValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	if parsed, okParse := parseRawInt(raw); okParse {
		return parsed
	}
	return fallback
}

// StringValue returns the string setting for key, or fallback when absent.
func StringValue(key string, fallback string) string {
	raw, ok := DBConfigValue(key)
	if !ok || len(raw) == 0 {
		return fallback
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			return trimmed
		}
		return fallback
	}
	return fallback
}

func parseRawInt(raw json.RawMessage) (int, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal([]byte(trimmed), &n); errUnmarshal == nil {
		return n, true
	}
	var s string
	if errUnmarshal := json.Unmarshal([]byte(trimmed), &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	return 0, false
}
