package loader

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/scenestream/engine/parser"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
	"github.com/Carmen-Shannon/scenestream/engine/transfer"
)

const (
	defaultWorkerCount = 4
	defaultTmpDir      = "tmp"

	// jobQueueSize bounds the number of enqueued-but-unstarted jobs in the
	// worker pool. The scheduler's concurrency limit keeps admissions far
	// below this in practice.
	jobQueueSize = 64
)

// sceneLoader is the implementation of the SceneLoader interface.
type sceneLoader struct {
	client  transfer.Client
	parser  parser.Parser
	uploads UploadQueue

	tmpDir      string
	workerCount int

	pool   worker.DynamicWorkerPool
	taskID atomic.Int64

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu       sync.Mutex
	inflight map[string]*loadJob

	shutdownOnce sync.Once
}

// loadJob identifies one admitted load cycle. The pointer doubles as the
// job's identity in the inflight map, so a job winding down late can tell
// whether the entry under its scene id is still its own or belongs to a
// re-admitted successor.
type loadJob struct {
	cancel context.CancelFunc
}

// SceneLoader executes scene load jobs on a fixed set of concurrent workers.
// Each job fetches the scene's manifest, then downloads, parses, and
// normalizes every model strictly in manifest order, pushing one UploadTask
// per model onto the upload queue for the consumer thread. A single model
// failure aborts the remaining models of that scene but never affects other
// scenes or workers. There is no automatic retry: recovery requires driving
// the scene back through unload and re-enqueueing it.
type SceneLoader interface {
	// EnqueueLoad admits a scene into the worker pool. The descriptor is
	// atomically transitioned from StateUnloaded to StateQueued; if the scene
	// is in any other state the call is a no-op, which guarantees a scene
	// never has two jobs in flight.
	//
	// Parameters:
	//   - scene: the descriptor to load
	//
	// Returns:
	//   - bool: true if the scene was queued by this call
	EnqueueLoad(scene *registry.SceneDescriptor) bool

	// Cancel revokes the cancellation context of the named scene's in-flight
	// job, if any. The aborted transfer is treated like any other stream
	// failure: the scene ends in StateError with no partial file on disk.
	//
	// Parameters:
	//   - sceneID: the scene whose in-flight job should be cancelled
	Cancel(sceneID string)

	// Shutdown cancels all in-flight jobs, prevents queued jobs from starting
	// new work, and blocks until the workers wind down. Safe to call multiple
	// times; subsequent calls are no-ops.
	Shutdown()
}

var _ SceneLoader = &sceneLoader{}

// NewSceneLoader creates a SceneLoader with the provided collaborators and
// options applied. The upload queue is injected by the composition root so
// the loader and the consumer thread never share container internals.
//
// Parameters:
//   - client: the transfer client used for manifest fetches and model streams
//   - p: the parser used to convert downloaded files into mesh data
//   - uploads: the queue that hands finalize work to the consumer thread
//   - options: a variadic list of SceneLoaderBuilderOption functions to configure the loader
//
// Returns:
//   - SceneLoader: the newly created loader with its worker pool running
func NewSceneLoader(client transfer.Client, p parser.Parser, uploads UploadQueue, options ...SceneLoaderBuilderOption) SceneLoader {
	l := &sceneLoader{
		client:      client,
		parser:      p,
		uploads:     uploads,
		tmpDir:      defaultTmpDir,
		workerCount: defaultWorkerCount,
		inflight:    make(map[string]*loadJob),
	}

	for _, option := range options {
		option(l)
	}
	if l.workerCount < 1 {
		l.workerCount = 1
	}

	l.baseCtx, l.baseCancel = context.WithCancel(context.Background())
	l.pool = worker.NewDynamicWorkerPool(l.workerCount, jobQueueSize, 1*time.Second)

	if err := os.MkdirAll(l.tmpDir, 0o755); err != nil {
		log.Printf("loader: failed to create tmp dir %s: %v", l.tmpDir, err)
	}

	return l
}

func (l *sceneLoader) EnqueueLoad(scene *registry.SceneDescriptor) bool {
	if scene == nil || !scene.TryQueue() {
		return false
	}

	admitGen := scene.Generation()
	ctx, cancel := context.WithCancel(l.baseCtx)
	job := &loadJob{cancel: cancel}
	l.mu.Lock()
	l.inflight[scene.ID()] = job
	l.mu.Unlock()

	l.pool.SubmitTask(worker.Task{
		ID: int(l.taskID.Add(1)),
		Do: func() (any, error) {
			defer l.finish(scene.ID(), job)

			// A job dequeued after Shutdown exits without starting new work;
			// release the QUEUED mark so the state machine stays honest.
			if l.baseCtx.Err() != nil {
				scene.SetStateIf(admitGen, registry.StateUnloaded)
				return nil, nil
			}
			l.loadScene(ctx, scene, admitGen)
			return nil, nil
		},
	})
	return true
}

func (l *sceneLoader) Cancel(sceneID string) {
	l.mu.Lock()
	job := l.inflight[sceneID]
	l.mu.Unlock()
	if job != nil {
		job.cancel()
	}
}

func (l *sceneLoader) Shutdown() {
	l.shutdownOnce.Do(func() {
		l.baseCancel()
		l.mu.Lock()
		for _, job := range l.inflight {
			job.cancel()
		}
		l.mu.Unlock()

		// In-progress jobs observe the cancelled context at their next chunk
		// or model boundary and run to a natural stopping point.
		l.pool.Wait()
	})
}

// finish releases the job's cancellation context and inflight entry. The
// entry is removed only if it still belongs to this job: after an
// unload-and-readmit the scene id maps to the successor's entry, which must
// stay cancellable.
func (l *sceneLoader) finish(sceneID string, job *loadJob) {
	l.mu.Lock()
	if l.inflight[sceneID] == job {
		delete(l.inflight, sceneID)
	}
	l.mu.Unlock()
	job.cancel()
}

// loadScene runs one complete load cycle for a scene: manifest fetch,
// per-model download/parse/normalize in strict manifest order, and a final
// state transition to StateLoaded or StateError. Every state store is guarded
// by the generation captured when this job took ownership; ForceUnload bumps
// the generation, so a job whose scene was unloaded mid-flight winds down
// without touching the descriptor again.
func (l *sceneLoader) loadScene(ctx context.Context, scene *registry.SceneDescriptor, admitGen uint64) {
	if !scene.SetStateIf(admitGen, registry.StateLoading) {
		return
	}

	manifest, err := l.client.FetchManifest(ctx, scene.ID())
	if err != nil {
		log.Printf("loader: manifest fetch for %s failed: %v", scene.ID(), err)
		scene.SetStateIf(admitGen, registry.StateError)
		return
	}
	if ctx.Err() != nil || scene.Generation() != admitGen {
		return
	}

	specs := make([]registry.ModelSpec, 0, len(manifest.Models))
	for _, m := range manifest.Models {
		specs = append(specs, registry.ModelSpec{
			Name:      m.Name,
			RelPath:   m.RelPath,
			SizeBytes: m.SizeBytes,
		})
	}
	scene.ResetModels(specs)
	if len(manifest.Thumbnail) > 0 {
		scene.SetThumbnail(manifest.Thumbnail, 0, 0)
	}
	generation := scene.Generation()

	for i, m := range manifest.Models {
		if !l.loadModel(ctx, scene, generation, i, m) {
			scene.SetStateIf(generation, registry.StateError)
			return
		}
	}

	scene.SetStateIf(generation, registry.StateLoaded)
}

// loadModel downloads, parses, and normalizes one model, pushing its upload
// task for the consumer thread. Returns false on any failure, which aborts
// the remaining models of the scene.
func (l *sceneLoader) loadModel(ctx context.Context, scene *registry.SceneDescriptor, generation uint64, index int, m transfer.ModelInfo) bool {
	dest := filepath.Join(l.tmpDir, scene.ID(), filepath.FromSlash(m.RelPath))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		log.Printf("loader: failed to create directories for %s: %v", dest, err)
		return false
	}

	progress := scene.Model(index)
	onProgress := func(got, _ int64) {
		if progress != nil {
			progress.StoreBytes(got)
		}
	}

	if err := l.client.StreamModel(ctx, scene.ID(), m.RelPath, dest, m.SizeBytes, onProgress); err != nil {
		log.Printf("loader: stream of %s/%s failed: %v", scene.ID(), m.RelPath, err)
		return false
	}

	mesh, err := l.parser.Parse(dest)
	if err != nil {
		log.Printf("loader: parse of %s failed: %v", dest, err)
		return false
	}

	minCorner, maxCorner := ComputeBounds(mesh.Positions)
	transform, bounds := NormalizeTransform(minCorner, maxCorner)
	scene.SetBounds(index, bounds)

	log.Printf("loader: parsed %s/%s verts=%d indices=%d radius=%.4f",
		scene.ID(), m.RelPath, mesh.VertexCount(), len(mesh.Indices), bounds.Radius)

	l.uploads.Push(UploadTask{
		Scene:      scene,
		Generation: generation,
		ModelIndex: index,
		Mesh:       mesh,
		Transform:  transform,
	})

	// Converge the progress counters even if the stream reported fewer
	// callbacks than bytes; both stores are idempotent.
	if progress != nil {
		progress.StoreBytes(m.SizeBytes)
		progress.MarkParsed()
	}
	return true
}
