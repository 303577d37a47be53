package printer

import (
	"fmt"
	"time"
)

var agoUnits = []struct {
	size time.Duration
	name string
}{
	{24 * time.Hour, "day"},
	{time.Hour, "hour"},
	{time.Minute, "minute"},
	{time.Second, "second"},
}

// TimeAgo returns a human-readable relative time string in UTC.
// Examples: "5 seconds ago (UTC)", "2 minutes ago (UTC)", "3 days ago (UTC)".
func TimeAgo(t time.Time) string {
	diff := time.Now().UTC().Sub(t.UTC())
	if diff < 0 {
		return "in the future (UTC)"
	}

	u := agoUnits[len(agoUnits)-1]
	for _, c := range agoUnits {
		if diff >= c.size {
			u = c
			break
		}
	}

	n := int(diff / u.size)
	if n == 1 {
		return fmt.Sprintf("1 %s ago (UTC)", u.name)
	}
	return fmt.Sprintf("%d %ss ago (UTC)", n, u.name)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

// FormatMillis returns a human-readable elapsed time from milliseconds.
// Examples: "0ms", "350.25ms", "1.50s", "2m5.0s".
func FormatMillis(ms float64) string {
	switch {
	case ms <= 0:
		return "0ms"
	case ms < 1000:
		return fmt.Sprintf("%.2fms", ms)
	case ms < 60_000:
		return fmt.Sprintf("%.2fs", ms/1000)
	default:
		d := time.Duration(ms * float64(time.Millisecond))
		minutes := int(d / time.Minute)
		seconds := (d - time.Duration(minutes)*time.Minute).Seconds()
		return fmt.Sprintf("%dm%.1fs", minutes, seconds)
	}
}
