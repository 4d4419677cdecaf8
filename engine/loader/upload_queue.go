package loader

import (
	"sync"

	"github.com/Carmen-Shannon/scenestream/engine/parser"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
)

// UploadTask carries one parsed model from a loader worker to the
// resource-owning consumer thread. It holds everything needed to create the
// GPU resource and write the result back into the descriptor.
type UploadTask struct {
	// Scene is the owning descriptor. The Generation field makes this a weak
	// reference: tasks from a superseded load cycle are skipped.
	Scene *registry.SceneDescriptor
	// Generation is the descriptor generation captured when the task was produced.
	Generation uint64
	// ModelIndex is the model's position in the scene's manifest.
	ModelIndex int
	// Mesh is the parsed vertex/index payload.
	Mesh *parser.MeshData
	// Transform is the model's normalizing local transform (column-major).
	Transform [16]float32
}

// Expired reports whether the owning descriptor was reset or unloaded after
// this task was produced, in which case the task must be dropped.
func (t UploadTask) Expired() bool {
	return t.Scene == nil || t.Scene.Generation() != t.Generation
}

// uploadQueue is the implementation of the UploadQueue interface.
type uploadQueue struct {
	mu    sync.Mutex
	tasks []UploadTask

	consumerOnce sync.Once
	consumer     *uploadConsumer
}

// UploadQueue is the handoff point between loader workers and the single
// thread that owns the graphics context. Any number of producers may Push
// concurrently; draining is restricted to the one UploadConsumer returned by
// Consumer. GPU resource creation is only valid on the thread that owns the
// rendering context, so the single-consumer rule is a hard invariant, not an
// optimization.
type UploadQueue interface {
	// Push appends a task for the consumer. Safe for concurrent use.
	//
	// Parameters:
	//   - t: the task to enqueue
	Push(t UploadTask)

	// Consumer returns the queue's sole consumer handle. The first call wins;
	// any subsequent call panics, so a second thread can never silently start
	// draining resource-producing work.
	//
	// Returns:
	//   - UploadConsumer: the single consumer handle
	Consumer() UploadConsumer

	// Len returns the number of tasks currently waiting. Safe for concurrent use.
	//
	// Returns:
	//   - int: the current queue length
	Len() int
}

// UploadConsumer drains an UploadQueue from the one thread that owns the
// graphics context.
type UploadConsumer interface {
	// Drain processes every task present when the call begins and returns
	// without waiting for producers. Tasks whose descriptor expired between
	// enqueue and drain are skipped silently and not passed to apply.
	//
	// Parameters:
	//   - apply: called once per live task, in push order
	//
	// Returns:
	//   - int: the number of tasks passed to apply
	Drain(apply func(UploadTask)) int
}

var (
	_ UploadQueue    = &uploadQueue{}
	_ UploadConsumer = &uploadConsumer{}
)

// NewUploadQueue creates a new empty UploadQueue.
//
// Returns:
//   - UploadQueue: the newly created queue
func NewUploadQueue() UploadQueue {
	return &uploadQueue{}
}

func (q *uploadQueue) Push(t UploadTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

func (q *uploadQueue) Consumer() UploadConsumer {
	claimed := false
	q.consumerOnce.Do(func() {
		q.consumer = &uploadConsumer{queue: q}
		claimed = true
	})
	if !claimed {
		panic("loader: UploadQueue.Consumer claimed twice - only the graphics-context thread may drain")
	}
	return q.consumer
}

func (q *uploadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// take removes and returns everything currently queued.
func (q *uploadQueue) take() []UploadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.tasks
	q.tasks = nil
	return tasks
}

// uploadConsumer is the implementation of the UploadConsumer interface.
type uploadConsumer struct {
	queue *uploadQueue
}

func (c *uploadConsumer) Drain(apply func(UploadTask)) int {
	applied := 0
	for _, t := range c.queue.take() {
		if t.Expired() {
			continue
		}
		apply(t)
		applied++
	}
	return applied
}
