package monitor

import "time"

// MonitorBuilderOption is a function that modifies the monitor before its
// sampling loop starts.
type MonitorBuilderOption func(*monitor)

// WithSampleInterval sets how often the registry is sampled and a report is
// pushed to subscribers.
//
// Parameters:
//   - d: the interval between samples
//
// Returns:
//   - MonitorBuilderOption: the option function to apply
func WithSampleInterval(d time.Duration) MonitorBuilderOption {
	return func(m *monitor) {
		if d > 0 {
			m.sampleInterval = d
		}
	}
}

// WithStallThreshold sets how long a loading scene may go without byte
// progress before it is reported as stalled.
//
// Parameters:
//   - d: the stall threshold
//
// Returns:
//   - MonitorBuilderOption: the option function to apply
func WithStallThreshold(d time.Duration) MonitorBuilderOption {
	return func(m *monitor) {
		if d > 0 {
			m.stallThreshold = d
		}
	}
}
