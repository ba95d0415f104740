package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrInvalidTime    = errors.New("invalid time, expected HH:MM")
	ErrInvalidBool    = errors.New("expected enable/disable or true/false")
	ErrInvalidRadius  = errors.New("invalid jitter radius")
	ErrNegativeRadius = errors.New("jitter radius cannot be negative")
)

var autoTimeRe = regexp.MustCompile(`^\d{1,2}:\d{2}$`)

// ParseAutoTime validates a daily check-in time ("8:30", "08:30") and
// returns its hour and minute.
func ParseAutoTime(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	if !autoTimeRe.MatchString(s) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	parts := strings.SplitN(s, ":", 2)
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return hour, minute, nil
}

// ParseEnabled understands the enable/disable spellings accepted by the
// set auto_enable command.
func ParseEnabled(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "enable", "on":
		return true, nil
	case "false", "0", "no", "disable", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", ErrInvalidBool, s)
}

// ParseJitterRadius parses a non-negative float radius.
func ParseJitterRadius(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRadius, s)
	}
	if v < 0 {
		return 0, ErrNegativeRadius
	}
	return v, nil
}
