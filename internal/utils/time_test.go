package utils_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ticket-marketplace/internal/utils"
)

func TestCountdown(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name      string
		departure time.Time
		expected  string
	}{
		{"days remaining", now.Add(52*time.Hour + 10*time.Minute + 30*time.Second), "2d 4h 10m 30s"},
		{"hours remaining", now.Add(4*time.Hour + 10*time.Minute + 30*time.Second), "4h 10m 30s"},
		{"minutes remaining", now.Add(10*time.Minute + 30*time.Second), "10m 30s"},
		{"exactly now", now, "Departed"},
		{"already departed", now.Add(-time.Hour), "Departed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, utils.Countdown(tc.departure, now))
		})
	}
}
