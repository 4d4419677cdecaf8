// Package scheduler admits scenes into load jobs on a periodic tick, keeping
// the number of resident scenes under a configurable concurrency limit.
package scheduler

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/scenestream/engine/loader"
	"github.com/Carmen-Shannon/scenestream/engine/registry"
)

const (
	defaultTickInterval     = 200 * time.Millisecond
	defaultConcurrencyLimit = 5
)

// scheduler is the implementation of the Scheduler interface.
type scheduler struct {
	registry registry.Registry
	loader   loader.SceneLoader

	tickInterval     time.Duration
	concurrencyLimit int

	running     atomic.Bool
	quitChannel chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

// Scheduler runs the admission loop that decides which scenes get loaded and
// when. On every tick it counts scenes that currently occupy resources
// (StateLoading or StateLoaded) and admits unloaded scenes in registry
// iteration order until the concurrency limit is reached. The limit caps
// admission only: a scene already loading is never evicted to make room.
type Scheduler interface {
	// RegisterScene makes a scene known to the underlying registry, creating
	// its descriptor in StateUnloaded if needed.
	//
	// Parameters:
	//   - id: the stable external scene identifier
	//
	// Returns:
	//   - *registry.SceneDescriptor: the descriptor for the id
	RegisterScene(id string) *registry.SceneDescriptor

	// Start launches the periodic admission loop. Calling Start on a running
	// scheduler is a no-op.
	Start()

	// Stop terminates the admission loop and waits for the current tick to
	// finish. It does not cancel load jobs already handed to the loader.
	// Safe to call multiple times.
	Stop()

	// PrioritizeScene moves a scene to the front of admission order so it is
	// considered first on the next tick. Unknown ids are ignored; in-flight
	// loads are not preempted.
	//
	// Parameters:
	//   - id: the scene identifier to prioritize
	PrioritizeScene(id string)

	// UnloadScene cancels any in-flight load for the scene and force-resets
	// its descriptor to StateUnloaded, freeing an admission slot. GPU
	// resources tied to the scene stay alive until the consumer thread takes
	// and destroys its mesh handles.
	//
	// Parameters:
	//   - id: the scene identifier to unload
	UnloadScene(id string)

	// Scenes returns a point-in-time snapshot of all descriptors in admission
	// order.
	//
	// Returns:
	//   - []*registry.SceneDescriptor: the descriptors in admission order
	Scenes() []*registry.SceneDescriptor
}

var _ Scheduler = &scheduler{}

// NewScheduler creates a Scheduler over the given registry and loader with
// the provided options applied. The loop is not started; call Start.
//
// Parameters:
//   - reg: the registry holding the scene descriptors to schedule
//   - l: the loader that executes admitted scenes
//   - options: a variadic list of SchedulerBuilderOption functions to configure the scheduler
//
// Returns:
//   - Scheduler: the newly created scheduler
func NewScheduler(reg registry.Registry, l loader.SceneLoader, options ...SchedulerBuilderOption) Scheduler {
	s := &scheduler{
		registry:         reg,
		loader:           l,
		tickInterval:     defaultTickInterval,
		concurrencyLimit: defaultConcurrencyLimit,
		quitChannel:      make(chan struct{}),
	}

	for _, option := range options {
		option(s)
	}
	if s.tickInterval <= 0 {
		s.tickInterval = defaultTickInterval
	}
	if s.concurrencyLimit < 1 {
		s.concurrencyLimit = 1
	}
	return s
}

func (s *scheduler) RegisterScene(id string) *registry.SceneDescriptor {
	return s.registry.Register(id)
}

func (s *scheduler) Start() {
	if !s.running.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.quitChannel:
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *scheduler) Stop() {
	s.closeOnce.Do(func() {
		close(s.quitChannel)
	})
	s.wg.Wait()
	s.running.Store(false)
}

func (s *scheduler) PrioritizeScene(id string) {
	s.registry.Prioritize(id)
}

func (s *scheduler) UnloadScene(id string) {
	sd := s.registry.Get(id)
	if sd == nil {
		return
	}
	s.loader.Cancel(id)
	sd.ForceUnload()
	log.Printf("scheduler: unloaded scene %s", id)
}

func (s *scheduler) Scenes() []*registry.SceneDescriptor {
	return s.registry.Snapshot()
}

// tick runs one admission pass. Queued scenes count against the limit along
// with loading and loaded ones, so scenes admitted on an earlier tick that
// have not yet reached a worker cannot be double-counted as free slots.
func (s *scheduler) tick() {
	scenes := s.registry.Snapshot()

	active := 0
	for _, sd := range scenes {
		switch sd.State() {
		case registry.StateLoading, registry.StateLoaded, registry.StateQueued:
			active++
		}
	}

	for _, sd := range scenes {
		if active >= s.concurrencyLimit {
			return
		}
		if s.loader.EnqueueLoad(sd) {
			active++
		}
	}
}
