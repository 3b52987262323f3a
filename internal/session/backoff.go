package session

import (
	"math"
	"time"
)

// NextBackoffDelay returns the reconnect delay for attempt N (1-based):
// base doubled once per prior attempt. The attempt cap, not a delay cap,
// bounds the schedule.
func NextBackoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt <= 1 {
		return base
	}
	return time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
}
