package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseDuration accepts Go duration strings plus a whole-day form ("7d").
// Blank means zero.
func parseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			if n < 0 {
				return 0, fmt.Errorf("negative duration %q", raw)
			}
			return time.Duration(n) * 24 * time.Hour, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// checkDuration reports a bad value under its dotted key.
func checkDuration(key, raw string) error {
	if _, err := parseDuration(raw); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// DurationOr returns raw as a duration, or def when raw is blank, zero or
// invalid. Validate has already rejected invalid values.
func DurationOr(raw string, def time.Duration) time.Duration {
	d, err := parseDuration(raw)
	if err != nil || d == 0 {
		return def
	}
	return d
}
