package server

import "time"

// SceneServerBuilderOption is a function that modifies the sceneServer
// during construction.
type SceneServerBuilderOption func(*sceneServer)

// WithChunkSize sets the size of each streamed model chunk in bytes. Values
// below one fall back to the default of 64KiB.
//
// Parameters:
//   - n: the chunk size in bytes
//
// Returns:
//   - SceneServerBuilderOption: the option function to apply
func WithChunkSize(n int) SceneServerBuilderOption {
	return func(s *sceneServer) {
		s.chunkSize = n
	}
}

// WithChunkDelay inserts a pause after every streamed chunk, simulating a
// constrained link so clients can exercise progress and cancellation paths.
//
// Parameters:
//   - d: the per-chunk delay (zero disables it)
//
// Returns:
//   - SceneServerBuilderOption: the option function to apply
func WithChunkDelay(d time.Duration) SceneServerBuilderOption {
	return func(s *sceneServer) {
		s.chunkDelay = d
	}
}
