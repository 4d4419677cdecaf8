package registry

import "sync"

// registry is the implementation of the Registry interface.
type registry struct {
	mu     sync.Mutex
	scenes map[string]*SceneDescriptor
	order  []string
}

// Registry owns the set of scene descriptors by strong reference. Workers and
// consumers hold non-owning references obtained from Get or Snapshot, valid
// for the process lifetime - descriptors are never deleted, only reset.
type Registry interface {
	// Register creates a descriptor in StateUnloaded for the given scene id if
	// one does not already exist. Idempotent: registering a known id is a no-op
	// that returns the existing descriptor.
	//
	// Parameters:
	//   - id: the stable external scene identifier
	//
	// Returns:
	//   - *SceneDescriptor: the descriptor for the id
	Register(id string) *SceneDescriptor

	// Get returns the descriptor for the given id, or nil if unknown.
	//
	// Parameters:
	//   - id: the scene identifier to look up
	//
	// Returns:
	//   - *SceneDescriptor: the descriptor or nil
	Get(id string) *SceneDescriptor

	// Snapshot returns a consistent point-in-time copy of all descriptors in
	// iteration order. The copy is taken under the registry lock; iteration of
	// the returned slice never blocks producers.
	//
	// Returns:
	//   - []*SceneDescriptor: the descriptors in current iteration order
	Snapshot() []*SceneDescriptor

	// Prioritize moves the named scene to the front of the iteration order so
	// it is considered first on the scheduler's next tick. Unknown ids are
	// ignored. In-flight work is not preempted.
	//
	// Parameters:
	//   - id: the scene identifier to prioritize
	Prioritize(id string)
}

var _ Registry = &registry{}

// NewRegistry creates a new Registry with the provided options applied.
//
// Parameters:
//   - options: a variadic list of RegistryBuilderOption functions to configure the Registry
//
// Returns:
//   - Registry: the newly created registry
func NewRegistry(options ...RegistryBuilderOption) Registry {
	r := &registry{
		scenes: make(map[string]*SceneDescriptor),
	}

	for _, option := range options {
		option(r)
	}
	return r
}

func (r *registry) Register(id string) *SceneDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sd, ok := r.scenes[id]; ok {
		return sd
	}
	sd := newSceneDescriptor(id)
	r.scenes[id] = sd
	r.order = append(r.order, id)
	return sd
}

func (r *registry) Get(id string) *SceneDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scenes[id]
}

func (r *registry) Snapshot() []*SceneDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*SceneDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.scenes[id])
	}
	return out
}

func (r *registry) Prioritize(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.scenes[id]; !ok {
		return
	}
	for i, existing := range r.order {
		if existing == id {
			copy(r.order[1:i+1], r.order[:i])
			r.order[0] = id
			return
		}
	}
}
