// Package timeutil provides time-range and local-time-window helpers used
// by TimeCondition evaluation and trade-log retention pruning.
package timeutil

import "time"

// DayStartFrom returns 00:00:00 UTC for the day containing t.
func DayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeRange is an inclusive [Start, End] interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && !t.After(tr.End)
}

func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// FormatDuration renders d as a short human-readable string: "45s",
// "5m30s", "2h15m", "3d5h".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0 && hours > 0:
		return (time.Duration(days*24+hours) * time.Hour).String()
	case days > 0:
		return (time.Duration(days*24) * time.Hour).String()
	case hours > 0 && minutes > 0:
		return (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute).String()
	case hours > 0:
		return (time.Duration(hours) * time.Hour).String()
	case minutes > 0 && seconds > 0:
		return (time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second).String()
	case minutes > 0:
		return (time.Duration(minutes) * time.Minute).String()
	default:
		return (time.Duration(seconds) * time.Second).String()
	}
}

// ToLocation converts t into loc, passing t through unchanged if loc is nil.
func ToLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}

// ParseInLocation parses value per layout, defaulting to UTC if loc is nil.
func ParseInLocation(layout, value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(layout, value, loc)
}
