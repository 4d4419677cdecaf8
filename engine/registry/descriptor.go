package registry

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/scenestream/common"
)

// SceneState is the lifecycle state of a scene descriptor.
// Transitions within one load cycle are monotonic:
// StateUnloaded -> StateQueued -> StateLoading -> {StateLoaded, StateError}.
// Unload force-resets a descriptor to StateUnloaded from any state.
type SceneState int32

const (
	// StateUnloaded means the scene has no local data and is eligible for admission.
	StateUnloaded SceneState = iota
	// StateQueued means the scene has been admitted and is waiting for a worker.
	StateQueued
	// StateLoading means a worker is actively downloading and parsing the scene.
	StateLoading
	// StateLoaded means every model of the scene downloaded and parsed successfully.
	StateLoaded
	// StateError means the scene's load failed; re-enqueueing requires an unload first.
	StateError
)

// String returns the human-readable name of the state.
func (s SceneState) String() string {
	switch s {
	case StateUnloaded:
		return "UNLOADED"
	case StateQueued:
		return "QUEUED"
	case StateLoading:
		return "LOADING"
	case StateLoaded:
		return "LOADED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MeshHandle is an opaque GPU resource handle produced by the resource-owning
// consumer thread. The registry stores it per model but never inspects it.
type MeshHandle any

// ModelSpec describes one remote model file as declared by a scene manifest.
type ModelSpec struct {
	// Name is the display name of the model.
	Name string
	// RelPath is the model's path relative to the scene's remote directory.
	RelPath string
	// SizeBytes is the authoritative total size from the manifest.
	SizeBytes int64
}

// ModelProgress tracks the transfer and parse progress of one model file.
// BytesReceived and the parsed flag are atomic so progress pollers never
// contend with the descriptor lock used for structural mutation.
type ModelProgress struct {
	name          string
	relPath       string
	sizeBytes     int64
	bytesReceived atomic.Int64
	parsed        atomic.Bool
}

// Name returns the display name of the model.
func (m *ModelProgress) Name() string { return m.name }

// RelPath returns the model's manifest-relative path.
func (m *ModelProgress) RelPath() string { return m.relPath }

// SizeBytes returns the authoritative total size from the manifest.
func (m *ModelProgress) SizeBytes() int64 { return m.sizeBytes }

// BytesReceived returns the number of bytes downloaded so far.
func (m *ModelProgress) BytesReceived() int64 { return m.bytesReceived.Load() }

// StoreBytes records the number of bytes downloaded so far.
// Safe to call from a streaming progress callback without locking.
//
// Parameters:
//   - n: the cumulative byte count received for this model
func (m *ModelProgress) StoreBytes(n int64) { m.bytesReceived.Store(n) }

// Parsed reports whether the model file has been parsed into mesh data.
func (m *ModelProgress) Parsed() bool { return m.parsed.Load() }

// MarkParsed marks the model as parsed. Idempotent.
func (m *ModelProgress) MarkParsed() { m.parsed.Store(true) }

// ModelStatus is a read-only point-in-time snapshot of one model's progress.
type ModelStatus struct {
	Name          string `json:"name"`
	RelPath       string `json:"rel_path"`
	SizeBytes     int64  `json:"size_bytes"`
	BytesReceived int64  `json:"bytes_received"`
	Parsed        bool   `json:"parsed"`
}

// SceneStatus is a read-only point-in-time snapshot of one scene descriptor,
// suitable for UI and diagnostics consumers.
type SceneStatus struct {
	ID     string        `json:"scene_id"`
	State  string        `json:"state"`
	Models []ModelStatus `json:"models"`
}

// SceneDescriptor holds the lifecycle state and per-model results of one known
// scene. The state field and per-model byte counters are atomic; every other
// mutable field is guarded by a single per-descriptor mutex. Descriptors are
// owned by the Registry for the process lifetime - they are never deleted,
// only reset back to StateUnloaded.
type SceneDescriptor struct {
	id    string
	state atomic.Int32

	// generation increments on every reset/unload so stale finalize tasks
	// produced against an earlier load cycle can be detected and skipped.
	generation atomic.Uint64

	mu          sync.Mutex
	models      []*ModelProgress
	meshHandles []MeshHandle
	transforms  [][16]float32
	bounds      []common.ModelBounds
	selected    int

	thumbnail   []byte
	thumbWidth  int
	thumbHeight int
}

func newSceneDescriptor(id string) *SceneDescriptor {
	return &SceneDescriptor{id: id}
}

// ID returns the scene's stable external identifier.
func (d *SceneDescriptor) ID() string { return d.id }

// State returns the current lifecycle state without taking the descriptor lock.
func (d *SceneDescriptor) State() SceneState { return SceneState(d.state.Load()) }

// SetState stores the lifecycle state unconditionally.
//
// Parameters:
//   - s: the state to store
func (d *SceneDescriptor) SetState(s SceneState) { d.state.Store(int32(s)) }

// SetStateIf stores the lifecycle state only while the descriptor's
// generation still matches gen. Workers use it for their state transitions so
// a job whose scene was force-unloaded mid-flight cannot clobber the state of
// the load cycle that replaced it.
//
// Parameters:
//   - gen: the generation the caller captured when it took ownership
//   - s: the state to store
//
// Returns:
//   - bool: true if the state was stored
func (d *SceneDescriptor) SetStateIf(gen uint64, s SceneState) bool {
	if d.generation.Load() != gen {
		return false
	}
	d.state.Store(int32(s))
	return true
}

// TryQueue atomically transitions the descriptor from StateUnloaded to
// StateQueued. It is the only admission path into a load cycle, which closes
// the check-then-act race between a UI-triggered enqueue and the scheduler's
// own promotion logic: whichever caller wins the compare-and-swap owns the
// load, the loser no-ops.
//
// Returns:
//   - bool: true if this call performed the transition
func (d *SceneDescriptor) TryQueue() bool {
	return d.state.CompareAndSwap(int32(StateUnloaded), int32(StateQueued))
}

// Generation returns the descriptor's current load-cycle generation.
func (d *SceneDescriptor) Generation() uint64 { return d.generation.Load() }

// ResetModels discards the descriptor's per-model state and reallocates every
// model-indexed vector sized to the given manifest specs, in manifest order.
// Called by a worker at the start of each load cycle, before any download
// begins. Bumps the generation so finalize tasks from an earlier cycle expire.
//
// Parameters:
//   - specs: the manifest's model entries, in manifest order
func (d *SceneDescriptor) ResetModels(specs []ModelSpec) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation.Add(1)
	d.models = make([]*ModelProgress, 0, len(specs))
	d.meshHandles = make([]MeshHandle, len(specs))
	d.transforms = make([][16]float32, len(specs))
	d.bounds = make([]common.ModelBounds, len(specs))
	d.selected = 0
	for i, spec := range specs {
		d.models = append(d.models, &ModelProgress{
			name:      spec.Name,
			relPath:   spec.RelPath,
			sizeBytes: spec.SizeBytes,
		})
		common.Identity(d.transforms[i][:])
	}
}

// ForceUnload resets the descriptor's exposed state to StateUnloaded from any
// state and bumps the generation so in-flight finalize tasks are skipped.
// It does not release mesh handles - resource destruction is only valid on the
// consumer thread, which should call TakeMeshHandles afterwards.
func (d *SceneDescriptor) ForceUnload() {
	d.generation.Add(1)
	d.SetState(StateUnloaded)
}

// ModelCount returns the number of models declared by the current manifest.
func (d *SceneDescriptor) ModelCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.models)
}

// Model returns the progress record at the given manifest index, or nil if the
// index is out of range. The returned record's counters are safe to read and
// write without the descriptor lock.
//
// Parameters:
//   - i: the manifest index of the model
//
// Returns:
//   - *ModelProgress: the progress record or nil
func (d *SceneDescriptor) Model(i int) *ModelProgress {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.models) {
		return nil
	}
	return d.models[i]
}

// SetMeshResult stores a consumer-produced mesh handle and the model's local
// transform at the given manifest index. Out-of-range indices are ignored,
// which covers a descriptor that was reset while the task was in flight.
//
// Parameters:
//   - i: the manifest index of the model
//   - h: the opaque mesh handle created on the consumer thread
//   - transform: the model's local transform (column-major)
func (d *SceneDescriptor) SetMeshResult(i int, h MeshHandle, transform [16]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.meshHandles) {
		return
	}
	d.meshHandles[i] = h
	d.transforms[i] = transform
}

// MeshResult returns the mesh handle and transform stored at the given index.
//
// Parameters:
//   - i: the manifest index of the model
//
// Returns:
//   - MeshHandle: the stored handle, or nil if absent or out of range
//   - [16]float32: the model's local transform (identity if never set)
func (d *SceneDescriptor) MeshResult(i int) (MeshHandle, [16]float32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.meshHandles) {
		return nil, [16]float32{}
	}
	return d.meshHandles[i], d.transforms[i]
}

// TakeMeshHandles removes and returns every non-nil mesh handle held by the
// descriptor. The caller (the consumer thread) owns destruction of the
// returned handles.
//
// Returns:
//   - []MeshHandle: the handles that were held, in manifest order
func (d *SceneDescriptor) TakeMeshHandles() []MeshHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	taken := make([]MeshHandle, 0, len(d.meshHandles))
	for i, h := range d.meshHandles {
		if h != nil {
			taken = append(taken, h)
			d.meshHandles[i] = nil
		}
	}
	return taken
}

// SetBounds stores the bounding sphere for the model at the given index.
//
// Parameters:
//   - i: the manifest index of the model
//   - b: the bounding sphere in scene-local space
func (d *SceneDescriptor) SetBounds(i int, b common.ModelBounds) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.bounds) {
		return
	}
	d.bounds[i] = b
}

// Bounds returns the bounding sphere stored for the model at the given index.
//
// Parameters:
//   - i: the manifest index of the model
//
// Returns:
//   - common.ModelBounds: the stored bounds (zero value if out of range)
func (d *SceneDescriptor) Bounds(i int) common.ModelBounds {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.bounds) {
		return common.ModelBounds{}
	}
	return d.bounds[i]
}

// SelectedModel returns the index of the currently selected model.
func (d *SceneDescriptor) SelectedModel() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// SelectModel sets the index of the currently selected model. Out-of-range
// indices are clamped into the current model range.
//
// Parameters:
//   - i: the manifest index to select
func (d *SceneDescriptor) SelectModel(i int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 {
		i = 0
	}
	if n := len(d.models); n > 0 && i >= n {
		i = n - 1
	}
	d.selected = i
}

// SetThumbnail stores the scene's thumbnail image bytes from the manifest.
//
// Parameters:
//   - data: encoded image bytes (may be nil)
//   - width, height: decoded dimensions when known, otherwise 0
func (d *SceneDescriptor) SetThumbnail(data []byte, width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.thumbnail = data
	d.thumbWidth = width
	d.thumbHeight = height
}

// Thumbnail returns the scene's thumbnail bytes and dimensions.
func (d *SceneDescriptor) Thumbnail() ([]byte, int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.thumbnail, d.thumbWidth, d.thumbHeight
}

// Status returns a consistent read-only snapshot of the descriptor for UI and
// diagnostics consumers.
//
// Returns:
//   - SceneStatus: the point-in-time snapshot
func (d *SceneDescriptor) Status() SceneStatus {
	st := SceneStatus{
		ID:    d.id,
		State: d.State().String(),
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st.Models = make([]ModelStatus, 0, len(d.models))
	for _, m := range d.models {
		st.Models = append(st.Models, ModelStatus{
			Name:          m.name,
			RelPath:       m.relPath,
			SizeBytes:     m.sizeBytes,
			BytesReceived: m.bytesReceived.Load(),
			Parsed:        m.parsed.Load(),
		})
	}
	return st
}
