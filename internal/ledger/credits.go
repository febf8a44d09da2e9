package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MicrosPerCredit is the fixed-point scale for stored credit amounts.
// Credits are fractional (unit cost is estimated, not metered exactly), so
// they are stored as int64 micro-credits and summed database-side; no float
// arithmetic ever touches a stored amount.
const MicrosPerCredit = 1_000_000

// ParseCredits converts a decimal credit string (up to six fractional
// digits) into micro-credits exactly.
func ParseCredits(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("ledger: empty credit amount")
	}
	negative := false
	if strings.HasPrefix(trimmed, "-") {
		negative = true
		trimmed = trimmed[1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "+")
	}

	wholePart := trimmed
	fracPart := ""
	if idx := strings.Index(trimmed, "."); idx >= 0 {
		wholePart = trimmed[:idx]
		fracPart = trimmed[idx+1:]
	}
	if wholePart == "" && fracPart == "" {
		return 0, fmt.Errorf("ledger: invalid credit amount: %s", value)
	}
	if len(fracPart) > 6 {
		return 0, fmt.Errorf("ledger: credit amount has more than 6 fractional digits: %s", value)
	}
	if wholePart == "" {
		wholePart = "0"
	}

	whole, errWhole := strconv.ParseInt(wholePart, 10, 64)
	if errWhole != nil {
		return 0, fmt.Errorf("ledger: invalid credit amount: %s", value)
	}

	fracMicros := int64(0)
	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", 6-len(fracPart))
		parsed, errFrac := strconv.ParseInt(padded, 10, 64)
		if errFrac != nil {
			return 0, fmt.Errorf("ledger: invalid credit amount: %s", value)
		}
		fracMicros = parsed
	}

	// Reject amounts whose micro representation does not fit in int64
	// rather than wrapping silently.
	const maxWholeCredits = math.MaxInt64 / MicrosPerCredit
	if whole > maxWholeCredits {
		return 0, fmt.Errorf("ledger: credit amount out of range: %s", value)
	}
	micros := whole * MicrosPerCredit
	if micros > math.MaxInt64-fracMicros {
		return 0, fmt.Errorf("ledger: credit amount out of range: %s", value)
	}
	micros += fracMicros
	if negative {
		micros = -micros
	}
	return micros, nil
}

// FormatCredits renders micro-credits as a decimal string with trailing
// zeros trimmed.
func FormatCredits(micros int64) string {
	negative := micros < 0
	if negative {
		micros = -micros
	}
	whole := micros / MicrosPerCredit
	frac := micros % MicrosPerCredit

	out := strconv.FormatInt(whole, 10)
	if frac > 0 {
		fracStr := fmt.Sprintf("%06d", frac)
		fracStr = strings.TrimRight(fracStr, "0")
		out += "." + fracStr
	}
	if negative {
		out = "-" + out
	}
	return out
}
