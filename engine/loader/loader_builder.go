package loader

// SceneLoaderBuilderOption is a function that modifies the sceneLoader
// before its worker pool spins up.
type SceneLoaderBuilderOption func(*sceneLoader)

// WithTmpDir sets the directory downloaded model files are staged under.
// A per-scene subdirectory is created beneath it for each load job.
//
// Parameters:
//   - dir: the staging directory path
//
// Returns:
//   - SceneLoaderBuilderOption: the option function to apply
func WithTmpDir(dir string) SceneLoaderBuilderOption {
	return func(l *sceneLoader) {
		if dir != "" {
			l.tmpDir = dir
		}
	}
}

// WithWorkerCount sets how many scene load jobs may run concurrently.
// Values below one are clamped to one.
//
// Parameters:
//   - n: the number of concurrent workers
//
// Returns:
//   - SceneLoaderBuilderOption: the option function to apply
func WithWorkerCount(n int) SceneLoaderBuilderOption {
	return func(l *sceneLoader) {
		l.workerCount = n
	}
}
