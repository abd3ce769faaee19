// Package sched holds the pure time math behind notification schedules:
// HH:MM validation and the expansion of regularly spaced schedules into
// explicit trigger times. Nothing here touches state, so every function can
// be called before any mutation happens.
package sched

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrBadTime      = errors.New("invalid time, expected HH:MM")
	ErrBadHourRange = errors.New("hours must be 0..23 with start before end")
	ErrBadInterval  = errors.New("interval must be 1..12 hours")
	ErrNoTimes      = errors.New("at least one trigger time required")
)

// ParseTime validates a 24-hour "HH:MM" string and returns its canonical
// zero-padded form.
func ParseTime(s string) (string, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("%w: %q", ErrBadTime, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// Normalize validates a set of trigger times and returns them canonical,
// de-duplicated and sorted. Any invalid entry rejects the whole set, so
// callers never persist a half-valid schedule.
func Normalize(times []string) ([]string, error) {
	if len(times) == 0 {
		return nil, ErrNoTimes
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(times))
	for _, t := range times {
		canonical, err := ParseTime(t)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	sort.Strings(out)
	return out, nil
}

// ExpandRegular expands an "every N hours between start and end" schedule
// into explicit trigger times: startHour, startHour+interval, ... up to and
// including endHour when it lands on a step. Inputs are validated before
// anything else happens; inverted or out-of-range inputs never produce a
// partial result.
func ExpandRegular(startHour, endHour, intervalHours int) ([]string, error) {
	if startHour < 0 || startHour > 23 || endHour < 0 || endHour > 23 || startHour >= endHour {
		return nil, fmt.Errorf("%w: start=%d end=%d", ErrBadHourRange, startHour, endHour)
	}
	if intervalHours < 1 || intervalHours > 12 {
		return nil, fmt.Errorf("%w: %d", ErrBadInterval, intervalHours)
	}

	var times []string
	for h := startHour; h <= endHour; h += intervalHours {
		times = append(times, fmt.Sprintf("%02d:00", h))
	}
	return times, nil
}
