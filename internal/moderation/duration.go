package moderation

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultMuteDuration applies when /mute is given no duration.
const DefaultMuteDuration = 5 * time.Minute

// ParseDuration parses "<integer><unit>" with unit s, m or h, e.g. "30s", "10m", "2h".
func ParseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	var unit time.Duration
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}

	digits := s[:len(s)-1]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	// Anything longer than a year is almost certainly a typo.
	if n > int64(365*24*time.Hour/unit) {
		return 0, fmt.Errorf("%w: %q is too long", ErrInvalidDuration, s)
	}

	return time.Duration(n) * unit, nil
}
