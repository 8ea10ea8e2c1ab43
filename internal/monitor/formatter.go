package monitor

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// FormatLatency formats a duration as "X.Xms" or "X.Xs".
func FormatLatency(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// FormatPercentage formats a ratio (0-1) as percentage
func FormatPercentage(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatAge renders the time since a Unix-millisecond timestamp as
// "now", "Xm", "Xh" or "Xd".
func FormatAge(ms int64, now time.Time) string {
	if ms <= 0 {
		return "-"
	}
	age := now.Sub(time.UnixMilli(ms))
	switch {
	case age < time.Minute:
		return "now"
	case age < time.Hour:
		return fmt.Sprintf("%dm", int(age.Minutes()))
	case age < 24*time.Hour:
		return fmt.Sprintf("%dh", int(age.Hours()))
	default:
		return fmt.Sprintf("%dd", int(age.Hours()/24))
	}
}

// Truncate shortens s to at most n runes, marking the cut with "…".
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
