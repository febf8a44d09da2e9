package alerts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upsurgeiq/creditwatch/internal/models"
)

// ErrInvalidThreshold indicates operator-supplied threshold fields failed
// validation. It is surfaced to the management API as a validation error and
// never silently coerced.
var ErrInvalidThreshold = errors.New("alerts: invalid threshold")

// ValidateThreshold checks the operator-editable threshold fields.
func ValidateThreshold(kind models.WindowKind, capMicros int64, notifyEmails string) error {
	if !models.ValidWindowKind(kind) {
		return fmt.Errorf("%w: unknown window kind %q", ErrInvalidThreshold, kind)
	}
	if capMicros <= 0 {
		return fmt.Errorf("%w: cap must be greater than zero", ErrInvalidThreshold)
	}
	if len(SplitRecipients(notifyEmails)) == 0 {
		return fmt.Errorf("%w: at least one notify email is required", ErrInvalidThreshold)
	}
	return nil
}

// SplitRecipients expands a comma-delimited recipient list into trimmed,
// non-empty addresses.
func SplitRecipients(notifyEmails string) []string {
	parts := strings.Split(notifyEmails, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
