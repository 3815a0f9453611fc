package transaction

import "time"

const (
	backoffStep = 20 * time.Second
	backoffMax  = 60 * time.Second
)

// Delay returns how long a transaction that has failed failureCount times
// waits before it is eligible again: min(failureCount*20s, 60s).
func Delay(failureCount int) time.Duration {
	if failureCount <= 0 {
		return 0
	}
	// Compare before multiplying so huge counts cannot overflow.
	if failureCount >= int(backoffMax/backoffStep) {
		return backoffMax
	}
	return time.Duration(failureCount) * backoffStep
}
