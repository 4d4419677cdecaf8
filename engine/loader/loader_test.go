package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/scenestream/engine/parser"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
	"github.com/Carmen-Shannon/scenestream/engine/transfer"
)

const (
	waitFor = 5 * time.Second
	pollGap = 10 * time.Millisecond
)

// fakeClient serves canned manifests and writes zero-filled files for
// streamed models. Individual models can be failed or blocked.
type fakeClient struct {
	mu        sync.Mutex
	manifests map[string]*transfer.Manifest
	failPaths map[string]error
	blockAll  bool
	streamed  []string

	// gates are consumed in stream-call order; a stream holding a gate blocks
	// until the gate yields an error or its context is cancelled.
	gates       []chan error
	gateReturns int
}

var _ transfer.Client = &fakeClient{}

func (f *fakeClient) FetchManifest(_ context.Context, sceneID string) (*transfer.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.manifests[sceneID]
	if !ok {
		return nil, transfer.ErrNotFound
	}
	return m, nil
}

func (f *fakeClient) StreamModel(ctx context.Context, sceneID, relPath, dest string, totalBytes int64, onProgress transfer.ProgressFunc) error {
	f.mu.Lock()
	blocked := f.blockAll
	failErr := f.failPaths[relPath]
	var gate chan error
	if len(f.gates) > 0 {
		gate = f.gates[0]
		f.gates = f.gates[1:]
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-gate:
			f.mu.Lock()
			f.gateReturns++
			f.mu.Unlock()
			return err
		}
	}
	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}
	if failErr != nil {
		return failErr
	}

	if onProgress != nil {
		onProgress(totalBytes/2, totalBytes)
		onProgress(totalBytes, totalBytes)
	}
	if err := os.WriteFile(dest, make([]byte, totalBytes), 0o644); err != nil {
		return err
	}

	f.mu.Lock()
	f.streamed = append(f.streamed, sceneID+"/"+relPath)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) gateReturnCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gateReturns
}

func (f *fakeClient) pendingGateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.gates)
}

func (f *fakeClient) streamedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.streamed...)
}

// fakeParser returns a fixed triangle for every file.
type fakeParser struct {
	err error
}

var _ parser.Parser = &fakeParser{}

func (f *fakeParser) Parse(string) (*parser.MeshData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &parser.MeshData{
		Positions: []float32{-2, -2, -2, 2, 2, 2, 0, 0, 0},
		Indices:   []uint32{0, 1, 2},
	}, nil
}

func (f *fakeParser) ParseReader(io.Reader, string) (*parser.MeshData, error) {
	return f.Parse("")
}

func lobbyManifests() map[string]*transfer.Manifest {
	return map[string]*transfer.Manifest{
		"lobby": {
			SceneID: "lobby",
			Models: []transfer.ModelInfo{
				{Name: "chair", RelPath: "chair.obj", SizeBytes: 512000},
				{Name: "table", RelPath: "props/table.obj", SizeBytes: 1024},
			},
		},
	}
}

func waitForState(t *testing.T, sd *registry.SceneDescriptor, want registry.SceneState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return sd.State() == want
	}, waitFor, pollGap, "scene %s never reached %s (now %s)", sd.ID(), want, sd.State())
}

func TestLoadSceneRoundTrip(t *testing.T) {
	client := &fakeClient{manifests: lobbyManifests()}
	uploads := NewUploadQueue()
	l := NewSceneLoader(client, &fakeParser{}, uploads, WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	assert.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateLoaded)

	// Models stream in manifest order and finish with full progress.
	assert.Equal(t, []string{"lobby/chair.obj", "lobby/props/table.obj"}, client.streamedPaths())
	require.Equal(t, 2, sd.ModelCount())
	assert.Equal(t, int64(512000), sd.Model(0).BytesReceived())
	assert.Equal(t, int64(1024), sd.Model(1).BytesReceived())
	assert.True(t, sd.Model(0).Parsed())
	assert.True(t, sd.Model(1).Parsed())

	// One upload task per model, in manifest order, with the normalizing
	// transform applied ([-2,2] box scales by 0.25).
	var tasks []UploadTask
	uploads.Consumer().Drain(func(task UploadTask) {
		tasks = append(tasks, task)
	})
	require.Len(t, tasks, 2)
	assert.Equal(t, 0, tasks[0].ModelIndex)
	assert.Equal(t, 1, tasks[1].ModelIndex)
	assert.InDelta(t, 0.25, tasks[0].Transform[0], 1e-6)
	assert.InDelta(t, 0.5, sd.Bounds(0).Radius, 1e-6)
}

func TestEnqueueLoadAdmitsOnlyUnloadedScenes(t *testing.T) {
	client := &fakeClient{manifests: lobbyManifests(), blockAll: true}
	l := NewSceneLoader(client, &fakeParser{}, NewUploadQueue(), WithTmpDir(t.TempDir()))

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	assert.True(t, l.EnqueueLoad(sd))
	assert.False(t, l.EnqueueLoad(sd), "a queued scene must not be admitted twice")
	assert.False(t, l.EnqueueLoad(nil))

	l.Shutdown()
}

func TestModelFailureAbortsRemainingModels(t *testing.T) {
	client := &fakeClient{
		manifests: map[string]*transfer.Manifest{
			"lobby": {
				SceneID: "lobby",
				Models: []transfer.ModelInfo{
					{Name: "a", RelPath: "a.obj", SizeBytes: 10},
					{Name: "b", RelPath: "b.obj", SizeBytes: 10},
					{Name: "c", RelPath: "c.obj", SizeBytes: 10},
				},
			},
		},
		failPaths: map[string]error{"b.obj": errors.New("link dropped")},
	}
	uploads := NewUploadQueue()
	l := NewSceneLoader(client, &fakeParser{}, uploads, WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	require.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateError)

	// Model c is never attempted and only model a produced an upload.
	assert.Equal(t, []string{"lobby/a.obj"}, client.streamedPaths())
	assert.Equal(t, 1, uploads.Len())
}

func TestManifestFailureSetsErrorState(t *testing.T) {
	client := &fakeClient{manifests: map[string]*transfer.Manifest{}}
	l := NewSceneLoader(client, &fakeParser{}, NewUploadQueue(), WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("ghost")
	require.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateError)
	assert.Zero(t, sd.ModelCount())
}

func TestParseFailureSetsErrorState(t *testing.T) {
	client := &fakeClient{manifests: lobbyManifests()}
	uploads := NewUploadQueue()
	l := NewSceneLoader(client, &fakeParser{err: errors.New("garbage file")}, uploads, WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	require.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateError)
	assert.Zero(t, uploads.Len())
}

func TestCancelAbortsInFlightLoad(t *testing.T) {
	client := &fakeClient{manifests: lobbyManifests(), blockAll: true}
	uploads := NewUploadQueue()
	l := NewSceneLoader(client, &fakeParser{}, uploads, WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	require.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateLoading)

	l.Cancel("lobby")
	waitForState(t, sd, registry.StateError)
	assert.Zero(t, uploads.Len())

	// Cancelling a scene with no in-flight job is a no-op.
	l.Cancel("lobby")
	l.Cancel("unknown")
}

func TestReadmittedSceneStaysCancellableWhileOldJobWindsDown(t *testing.T) {
	gate1 := make(chan error, 1)
	gate2 := make(chan error, 1)
	client := &fakeClient{
		manifests: lobbyManifests(),
		gates:     []chan error{gate1, gate2},
	}
	uploads := NewUploadQueue()
	l := NewSceneLoader(client, &fakeParser{}, uploads, WithTmpDir(t.TempDir()))
	defer l.Shutdown()

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")

	// First load cycle blocks mid-stream on gate1.
	require.True(t, l.EnqueueLoad(sd))
	require.Eventually(t, func() bool {
		return client.pendingGateCount() == 1
	}, waitFor, pollGap, "first job never reached its stream")

	// Unload and re-admit while the first job is still stuck in its stream.
	// The second cycle blocks on gate2.
	sd.ForceUnload()
	require.True(t, l.EnqueueLoad(sd))
	require.Eventually(t, func() bool {
		return client.pendingGateCount() == 0
	}, waitFor, pollGap, "second job never reached its stream")
	require.Equal(t, registry.StateLoading, sd.State())

	// Release the first job and let it wind down completely.
	gate1 <- errors.New("link dropped")
	require.Eventually(t, func() bool {
		return client.gateReturnCount() == 1
	}, waitFor, pollGap, "first job never released its stream")

	// The stale job must not have clobbered the live cycle's state.
	assert.Equal(t, registry.StateLoading, sd.State())

	// Cancel must still reach the second job's in-flight stream.
	l.Cancel("lobby")
	waitForState(t, sd, registry.StateError)
	assert.Zero(t, uploads.Len())
}

func TestJobDequeuedAfterShutdownReleasesQueuedState(t *testing.T) {
	client := &fakeClient{
		manifests: map[string]*transfer.Manifest{
			"lobby": lobbyManifests()["lobby"],
			"attic": {
				SceneID: "attic",
				Models:  []transfer.ModelInfo{{Name: "box", RelPath: "box.obj", SizeBytes: 16}},
			},
		},
		blockAll: true,
	}
	l := NewSceneLoader(client, &fakeParser{}, NewUploadQueue(),
		WithTmpDir(t.TempDir()),
		WithWorkerCount(1),
	)

	reg := registry.NewRegistry()
	first := reg.Register("lobby")
	second := reg.Register("attic")

	// The single worker is pinned mid-stream on the first scene, so the
	// second job is still queued when Shutdown runs.
	require.True(t, l.EnqueueLoad(first))
	waitForState(t, first, registry.StateLoading)
	require.True(t, l.EnqueueLoad(second))

	l.Shutdown()

	assert.Equal(t, registry.StateError, first.State())
	assert.Equal(t, registry.StateUnloaded, second.State())
}

func TestShutdownIsIdempotentAndUnblocksWorkers(t *testing.T) {
	client := &fakeClient{manifests: lobbyManifests(), blockAll: true}
	l := NewSceneLoader(client, &fakeParser{}, NewUploadQueue(), WithTmpDir(t.TempDir()))

	reg := registry.NewRegistry()
	sd := reg.Register("lobby")
	require.True(t, l.EnqueueLoad(sd))
	waitForState(t, sd, registry.StateLoading)

	done := make(chan struct{})
	go func() {
		l.Shutdown()
		l.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("Shutdown did not return")
	}
}
