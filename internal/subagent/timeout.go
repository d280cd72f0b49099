package subagent

import (
	"log/slog"
	"regexp"
	"strconv"
	"time"
)

// DefaultTimeout bounds a subagent run when no valid override is configured.
const DefaultTimeout = 30 * time.Minute

var durationRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h)$`)

// ParseTimeout interprets a timeout string as either a raw millisecond count
// or a duration with an ms/s/m/h suffix. Malformed values fall back to the
// 30-minute default with a logged warning — a bad environment override must
// not fail the run.
func ParseTimeout(value string, logger *slog.Logger) time.Duration {
	if logger == nil {
		logger = slog.Default()
	}

	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	m := durationRe.FindStringSubmatch(value)
	if m == nil {
		logger.Warn("invalid subagent timeout, using default", "value", value, "default", DefaultTimeout)
		return DefaultTimeout
	}

	amount, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		logger.Warn("invalid subagent timeout, using default", "value", value, "default", DefaultTimeout)
		return DefaultTimeout
	}

	switch m[2] {
	case "ms":
		return time.Duration(amount * float64(time.Millisecond))
	case "s":
		return time.Duration(amount * float64(time.Second))
	case "m":
		return time.Duration(amount * float64(time.Minute))
	default: // "h"
		return time.Duration(amount * float64(time.Hour))
	}
}
