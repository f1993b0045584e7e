package activity

import (
	"strconv"
	"time"
)

// RelativeTime renders the age of ts at now, rounding down: under a minute is
// "just now", then "{m}m ago", "{h}h ago" and "{d}d ago". Timestamps in the
// future are "just now".
func RelativeTime(ts, now time.Time) string {
	age := now.Sub(ts)
	switch {
	case age < time.Minute:
		return "just now"
	case age < time.Hour:
		return strconv.FormatInt(int64(age/time.Minute), 10) + "m ago"
	case age < 24*time.Hour:
		return strconv.FormatInt(int64(age/time.Hour), 10) + "h ago"
	default:
		return strconv.FormatInt(int64(age/(24*time.Hour)), 10) + "d ago"
	}
}
