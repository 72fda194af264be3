// Package backoff provides a bounded retry schedule: a maximum number of
// attempts and a delay function mapping the attempt number (1-based) to the
// wait before that attempt.
package backoff

import "time"

type Schedule struct {
	MaxAttempts int
	Delay       func(attempt int) time.Duration
}

// Linear returns a schedule whose n-th attempt waits n*step.
func Linear(maxAttempts int, step time.Duration) Schedule {
	return Schedule{
		MaxAttempts: maxAttempts,
		Delay: func(attempt int) time.Duration {
			return time.Duration(attempt) * step
		},
	}
}

// Fixed returns a schedule with an explicit per-attempt delay list.
func Fixed(delays ...time.Duration) Schedule {
	return Schedule{
		MaxAttempts: len(delays),
		Delay: func(attempt int) time.Duration {
			return delays[attempt-1]
		},
	}
}
