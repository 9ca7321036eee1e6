package utils

import (
	"fmt"
	"time"
)

// Countdown renders the time remaining until departure as "2d 4h 10m 30s",
// or "Departed" once the departure time has passed. It is a pure projection
// and safe to recompute on any schedule.
func Countdown(departure, now time.Time) string {
	remaining := departure.Sub(now)
	if remaining <= 0 {
		return "Departed"
	}

	days := int(remaining.Hours()) / 24
	hours := int(remaining.Hours()) % 24
	minutes := int(remaining.Minutes()) % 60
	seconds := int(remaining.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
