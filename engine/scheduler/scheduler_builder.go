package scheduler

import "time"

// SchedulerBuilderOption is a function that modifies the scheduler before
// its admission loop starts.
type SchedulerBuilderOption func(*scheduler)

// WithTickInterval sets how often the admission loop runs. Non-positive
// values fall back to the default of 200ms.
//
// Parameters:
//   - d: the interval between admission passes
//
// Returns:
//   - SchedulerBuilderOption: the option function to apply
func WithTickInterval(d time.Duration) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.tickInterval = d
	}
}

// WithConcurrencyLimit sets the maximum number of scenes allowed to occupy
// queued, loading, or loaded slots simultaneously. Values below one are
// clamped to one.
//
// Parameters:
//   - n: the slot limit
//
// Returns:
//   - SchedulerBuilderOption: the option function to apply
func WithConcurrencyLimit(n int) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.concurrencyLimit = n
	}
}
