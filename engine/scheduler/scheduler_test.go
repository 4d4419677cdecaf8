package scheduler

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/scenestream/engine/loader"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
)

const (
	waitFor = 2 * time.Second
	pollGap = 5 * time.Millisecond
)

// fakeLoader records admissions without running any pipeline. Admitted
// scenes stay QUEUED until the test moves them on.
type fakeLoader struct {
	mu        sync.Mutex
	enqueued  []string
	cancelled []string
}

var _ loader.SceneLoader = &fakeLoader{}

func (f *fakeLoader) EnqueueLoad(sd *registry.SceneDescriptor) bool {
	if sd == nil || !sd.TryQueue() {
		return false
	}
	f.mu.Lock()
	f.enqueued = append(f.enqueued, sd.ID())
	f.mu.Unlock()
	return true
}

func (f *fakeLoader) Cancel(sceneID string) {
	f.mu.Lock()
	f.cancelled = append(f.cancelled, sceneID)
	f.mu.Unlock()
}

func (f *fakeLoader) Shutdown() {}

func (f *fakeLoader) enqueuedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.enqueued...)
}

func countInStates(r registry.Registry, states ...registry.SceneState) int {
	n := 0
	for _, sd := range r.Snapshot() {
		for _, s := range states {
			if sd.State() == s {
				n++
			}
		}
	}
	return n
}

func eightScenes() []string {
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = fmt.Sprintf("scene-%d", i)
	}
	return ids
}

func TestTickAdmitsUpToConcurrencyLimit(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes(eightScenes()...))
	fl := &fakeLoader{}
	s := NewScheduler(reg, fl,
		WithTickInterval(10*time.Millisecond),
		WithConcurrencyLimit(5),
	)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return countInStates(reg, registry.StateQueued) == 5
	}, waitFor, pollGap)

	// Further ticks admit nothing new and never admit a scene twice.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 5, countInStates(reg, registry.StateQueued))
	assert.Equal(t, 3, countInStates(reg, registry.StateUnloaded))
	ids := fl.enqueuedIDs()
	assert.Len(t, ids, 5)
	seen := make(map[string]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "scene %s admitted twice", id)
		seen[id] = true
	}
}

func TestAdmissionFollowsRegistryOrder(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes("a", "b", "c", "d"))
	fl := &fakeLoader{}
	s := NewScheduler(reg, fl,
		WithTickInterval(10*time.Millisecond),
		WithConcurrencyLimit(2),
	)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(fl.enqueuedIDs()) == 2
	}, waitFor, pollGap)
	assert.Equal(t, []string{"a", "b"}, fl.enqueuedIDs())
}

func TestPrioritizeSceneAdmitsItFirst(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes("a", "b", "c"))
	fl := &fakeLoader{}
	s := NewScheduler(reg, fl,
		WithTickInterval(10*time.Millisecond),
		WithConcurrencyLimit(1),
	)
	s.PrioritizeScene("c")
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(fl.enqueuedIDs()) == 1
	}, waitFor, pollGap)
	assert.Equal(t, []string{"c"}, fl.enqueuedIDs())
}

func TestCompletedSceneOccupiesItsSlot(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes("a", "b"))
	reg.Get("a").SetState(registry.StateLoaded)

	fl := &fakeLoader{}
	s := NewScheduler(reg, fl,
		WithTickInterval(10*time.Millisecond),
		WithConcurrencyLimit(1),
	)
	s.Start()
	defer s.Stop()

	// The loaded scene holds the only slot, so b is never admitted.
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, fl.enqueuedIDs())
	assert.Equal(t, registry.StateUnloaded, reg.Get("b").State())
}

func TestUnloadFreesSlotForNextScene(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes("a", "b"))
	fl := &fakeLoader{}
	s := NewScheduler(reg, fl,
		WithTickInterval(10*time.Millisecond),
		WithConcurrencyLimit(1),
	)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(fl.enqueuedIDs()) == 1
	}, waitFor, pollGap)
	require.Equal(t, []string{"a"}, fl.enqueuedIDs())

	s.UnloadScene("a")
	assert.Equal(t, []string{"a"}, func() []string {
		fl.mu.Lock()
		defer fl.mu.Unlock()
		return append([]string(nil), fl.cancelled...)
	}())

	// With a back to UNLOADED, the next tick admits whichever scene is first;
	// a and b are both candidates, so exactly one more admission happens.
	require.Eventually(t, func() bool {
		return len(fl.enqueuedIDs()) == 2
	}, waitFor, pollGap)
}

func TestUnloadUnknownSceneIsNoOp(t *testing.T) {
	reg := registry.NewRegistry()
	fl := &fakeLoader{}
	s := NewScheduler(reg, fl)
	s.UnloadScene("nope")
	fl.mu.Lock()
	defer fl.mu.Unlock()
	assert.Empty(t, fl.cancelled)
}

func TestErrorStateIsNotReadmitted(t *testing.T) {
	reg := registry.NewRegistry(registry.WithScenes("a"))
	reg.Get("a").SetState(registry.StateError)

	fl := &fakeLoader{}
	s := NewScheduler(reg, fl, WithTickInterval(10*time.Millisecond))
	s.Start()
	defer s.Stop()

	// A failed scene must pass back through UNLOADED before re-admission.
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, fl.enqueuedIDs())
}

func TestStartAndStopAreIdempotent(t *testing.T) {
	reg := registry.NewRegistry()
	s := NewScheduler(reg, &fakeLoader{}, WithTickInterval(10*time.Millisecond))
	s.Start()
	s.Start()
	s.Stop()
	s.Stop()
}
