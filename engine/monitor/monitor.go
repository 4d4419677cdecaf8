// Package monitor periodically samples scene load progress and publishes it
// as JSON, both as an HTTP snapshot endpoint and as a websocket push feed.
package monitor

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/scenestream/engine/registry"
)

const (
	defaultSampleInterval = 500 * time.Millisecond
	defaultStallThreshold = 10 * time.Second
)

// StatusReport is one published sample of the whole registry.
type StatusReport struct {
	// Time is when the sample was taken, RFC 3339 with sub-second precision.
	Time string `json:"time"`
	// Scenes holds one status snapshot per registered scene, in admission order.
	Scenes []registry.SceneStatus `json:"scenes"`
	// Stalled lists scene ids that are LOADING but have made no byte progress
	// for longer than the stall threshold.
	Stalled []string `json:"stalled,omitempty"`
}

// monitor is the implementation of the Monitor interface.
type monitor struct {
	registry registry.Registry
	hub      *hub

	sampleInterval time.Duration
	stallThreshold time.Duration

	running     atomic.Bool
	quitChannel chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup

	mu     sync.Mutex
	latest []byte
	seen   map[string]*progressMark
}

// progressMark remembers the last observed byte total per scene so stalls
// can be detected across samples.
type progressMark struct {
	bytes   int64
	changed time.Time
}

// Monitor samples scene load progress on an interval and publishes each
// sample to websocket subscribers. The latest sample is also available via a
// plain HTTP GET for tooling that does not hold a socket open.
type Monitor interface {
	// Start launches the sampling loop. Calling Start on a running monitor is
	// a no-op.
	Start()

	// Stop terminates the sampling loop and disconnects all subscribers.
	// Safe to call multiple times.
	Stop()

	// Handler returns the monitor's HTTP handler. It serves GET /status with
	// the latest JSON sample and GET /ws as the websocket push feed.
	//
	// Returns:
	//   - http.Handler: the handler to mount
	Handler() http.Handler
}

var _ Monitor = &monitor{}

// NewMonitor creates a Monitor over the given registry with the provided
// options applied. The loop is not started; call Start.
//
// Parameters:
//   - reg: the registry whose scenes are sampled
//   - options: a variadic list of MonitorBuilderOption functions to configure the monitor
//
// Returns:
//   - Monitor: the newly created monitor
func NewMonitor(reg registry.Registry, options ...MonitorBuilderOption) Monitor {
	m := &monitor{
		registry:       reg,
		hub:            newHub(),
		sampleInterval: defaultSampleInterval,
		stallThreshold: defaultStallThreshold,
		quitChannel:    make(chan struct{}),
		seen:           make(map[string]*progressMark),
	}

	for _, option := range options {
		option(m)
	}
	return m
}

func (m *monitor) Start() {
	if !m.running.CompareAndSwap(false, true) {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.sampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-m.quitChannel:
				return
			case <-ticker.C:
				m.sample(time.Now())
			}
		}
	}()
}

func (m *monitor) Stop() {
	m.closeOnce.Do(func() {
		close(m.quitChannel)
	})
	m.wg.Wait()
	m.hub.close()
	m.running.Store(false)
}

func (m *monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", m.handleStatus)
	mux.HandleFunc("GET /ws", m.hub.serveWS)
	return mux
}

func (m *monitor) handleStatus(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	latest := m.latest
	m.mu.Unlock()

	if latest == nil {
		// No sample yet; take one on demand.
		latest = m.sample(time.Now())
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(latest)
}

// sample takes one snapshot of the registry, updates stall tracking, caches
// the encoded report, and broadcasts it to subscribers.
func (m *monitor) sample(now time.Time) []byte {
	scenes := m.registry.Snapshot()

	report := StatusReport{
		Time:   now.Format(time.RFC3339Nano),
		Scenes: make([]registry.SceneStatus, 0, len(scenes)),
	}

	m.mu.Lock()
	for _, sd := range scenes {
		st := sd.Status()
		report.Scenes = append(report.Scenes, st)

		if sd.State() != registry.StateLoading {
			delete(m.seen, st.ID)
			continue
		}
		var total int64
		for _, ms := range st.Models {
			total += ms.BytesReceived
		}
		mark := m.seen[st.ID]
		if mark == nil || mark.bytes != total {
			m.seen[st.ID] = &progressMark{bytes: total, changed: now}
			continue
		}
		if now.Sub(mark.changed) > m.stallThreshold {
			report.Stalled = append(report.Stalled, st.ID)
		}
	}
	m.mu.Unlock()

	payload, err := json.Marshal(report)
	if err != nil {
		log.Printf("monitor: failed to encode status report: %v", err)
		return nil
	}

	m.mu.Lock()
	m.latest = payload
	m.mu.Unlock()

	for _, id := range report.Stalled {
		log.Printf("monitor: scene %s has made no progress for over %s", id, m.stallThreshold)
	}
	m.hub.broadcast(payload)
	return payload
}
