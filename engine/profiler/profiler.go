// Package profiler tracks frame rate, heap usage, and mesh upload throughput
// for the viewer, logging a summary line at a fixed interval.
package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler accumulates per-frame and per-upload statistics. Only the main
// thread calls it.
type Profiler struct {
	frameCount     int
	uploadCount    int
	uploadVertices int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
}

// NewProfiler creates a new Profiler. The logging interval defaults to one
// second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
	}
}

// RecordUpload notes one mesh upload performed this interval.
//
// Parameters:
//   - vertices: the number of vertices in the uploaded mesh
func (p *Profiler) RecordUpload(vertices int) {
	p.uploadCount++
	p.uploadVertices += vertices
}

// Tick should be called once per frame. When the logging interval has
// elapsed it emits FPS, heap, and upload throughput, then resets the
// interval counters.
//
// Returns:
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick() bool {
	p.frameCount++
	now := time.Now()
	elapsed := now.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()
	runtime.ReadMemStats(&p.memStats)
	heapMB := float64(p.memStats.Alloc) / 1024 / 1024

	if p.uploadCount > 0 {
		log.Printf("[Profiler] FPS: %.1f | Heap: %.1f MB | Uploads: %d (%d vertices)",
			fps, heapMB, p.uploadCount, p.uploadVertices)
	} else {
		log.Printf("[Profiler] FPS: %.1f | Heap: %.1f MB", fps, heapMB)
	}

	p.frameCount = 0
	p.uploadCount = 0
	p.uploadVertices = 0
	p.lastTime = now
	return true
}
