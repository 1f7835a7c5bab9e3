package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a same-calendar-day wall-clock time in minutes since midnight.
// Window comparisons are intentionally same-day only: a window or
// square-off time is never compared across a midnight boundary.
type Clock int

// ParseClock parses an "HH:MM" string into minutes since midnight.
func ParseClock(hhmm string) (Clock, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("timeutil: invalid HH:MM value %q", hhmm)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("timeutil: invalid hour in %q", hhmm)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("timeutil: invalid minute in %q", hhmm)
	}
	return Clock(h*60 + m), nil
}

// ClockOf extracts the minutes-since-midnight component of a local time.
func ClockOf(hour, minute int) Clock {
	return Clock(hour*60 + minute)
}

// InWindow reports whether now falls within [start, end], inclusive.
func InWindow(now, start, end Clock) bool {
	return now >= start && now <= end
}

// AtOrPast reports whether now has reached or passed target.
func AtOrPast(now, target Clock) bool {
	return now >= target
}
