package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatLatency(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want string
	}{
		{"sub-millisecond", 500 * time.Microsecond, "0.5ms"},
		{"milliseconds", 12300 * time.Microsecond, "12.3ms"},
		{"seconds", 1500 * time.Millisecond, "1.5s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatLatency(tt.in))
		})
	}
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "0.0%", FormatPercentage(0))
	assert.Equal(t, "50.0%", FormatPercentage(0.5))
	assert.Equal(t, "100.0%", FormatPercentage(1))
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		ago  time.Duration
		want string
	}{
		{"seconds", 20 * time.Second, "now"},
		{"minutes", 5 * time.Minute, "5m"},
		{"hours", 3 * time.Hour, "3h"},
		{"days", 50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAge(now.Add(-tt.ago).UnixMilli(), now))
		})
	}
	assert.Equal(t, "-", FormatAge(0, now))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "hell…", Truncate("hello world", 5))
	assert.Equal(t, "héll…", Truncate("héllo wörld", 5))
	assert.Equal(t, "", Truncate("hello", 0))
}
