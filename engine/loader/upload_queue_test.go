package loader

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/scenestream/engine/parser"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
)

func queuedScene(t *testing.T, id string, models int) *registry.SceneDescriptor {
	t.Helper()
	reg := registry.NewRegistry()
	sd := reg.Register(id)
	specs := make([]registry.ModelSpec, models)
	for i := range specs {
		specs[i] = registry.ModelSpec{Name: "m", RelPath: "m.obj", SizeBytes: 1}
	}
	sd.ResetModels(specs)
	return sd
}

func taskFor(sd *registry.SceneDescriptor, index int) UploadTask {
	return UploadTask{
		Scene:      sd,
		Generation: sd.Generation(),
		ModelIndex: index,
		Mesh:       &parser.MeshData{Positions: []float32{0, 0, 0}, Indices: []uint32{0}},
	}
}

func TestDrainPreservesPushOrder(t *testing.T) {
	sd := queuedScene(t, "s", 3)
	q := NewUploadQueue()
	for i := 0; i < 3; i++ {
		q.Push(taskFor(sd, i))
	}
	assert.Equal(t, 3, q.Len())

	var order []int
	n := q.Consumer().Drain(func(task UploadTask) {
		order = append(order, task.ModelIndex)
	})
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{0, 1, 2}, order)
	assert.Zero(t, q.Len())
}

func TestDrainSkipsExpiredTasks(t *testing.T) {
	sd := queuedScene(t, "s", 2)
	q := NewUploadQueue()
	q.Push(taskFor(sd, 0))

	// An unload between push and drain supersedes the task's generation.
	sd.ForceUnload()
	q.Push(taskFor(sd, 1))

	var applied []int
	n := q.Consumer().Drain(func(task UploadTask) {
		applied = append(applied, task.ModelIndex)
	})
	assert.Equal(t, 1, n)
	assert.Equal(t, []int{1}, applied)
}

func TestDrainDoesNotWaitForProducers(t *testing.T) {
	q := NewUploadQueue()
	n := q.Consumer().Drain(func(UploadTask) {
		t.Fatal("apply called on an empty queue")
	})
	assert.Zero(t, n)
}

func TestSecondConsumerClaimPanics(t *testing.T) {
	q := NewUploadQueue()
	c := q.Consumer()
	require.NotNil(t, c)

	assert.Panics(t, func() {
		q.Consumer()
	})
}

func TestConcurrentProducers(t *testing.T) {
	sd := queuedScene(t, "s", 1)
	q := NewUploadQueue()

	const producers = 8
	const perProducer = 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Push(taskFor(sd, 0))
			}
		}()
	}
	wg.Wait()

	n := q.Consumer().Drain(func(UploadTask) {})
	assert.Equal(t, producers*perProducer, n)
}

func TestExpired(t *testing.T) {
	sd := queuedScene(t, "s", 1)
	task := taskFor(sd, 0)
	assert.False(t, task.Expired())

	sd.ForceUnload()
	assert.True(t, task.Expired())

	assert.True(t, UploadTask{}.Expired())
}
