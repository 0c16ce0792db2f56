package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidInterval is returned when a schedule spec cannot be parsed.
var ErrInvalidInterval = errors.New("invalid schedule interval")

// Interval is a parsed schedule spec. Supported forms: "daily", "hourly",
// "every_N_minutes", "every_N_hours".
//
// Intervals are fixed UTC durations: "daily" means 24 hours since the last
// successful run, not midnight alignment, and no timezone or DST adjustment
// is applied. Firing is tick-granular, so a due schedule may run up to one
// scheduler tick late.
type Interval struct {
	Spec  string
	Every time.Duration
}

// ParseInterval parses a schedule spec into an Interval.
func ParseInterval(spec string) (Interval, error) {
	switch spec {
	case "daily":
		return Interval{Spec: spec, Every: 24 * time.Hour}, nil
	case "hourly":
		return Interval{Spec: spec, Every: time.Hour}, nil
	}

	parts := strings.Split(spec, "_")
	if len(parts) != 3 || parts[0] != "every" {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, spec)
	}

	n, err := strconv.Atoi(parts[1])
	if err != nil || n <= 0 {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, spec)
	}

	switch parts[2] {
	case "minutes":
		return Interval{Spec: spec, Every: time.Duration(n) * time.Minute}, nil
	case "hours":
		return Interval{Spec: spec, Every: time.Duration(n) * time.Hour}, nil
	default:
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidInterval, spec)
	}
}

// Due reports whether an interval has elapsed since the last successful run.
func (i Interval) Due(lastRun, now time.Time) bool {
	return now.Sub(lastRun) >= i.Every
}
