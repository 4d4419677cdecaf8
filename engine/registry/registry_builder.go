package registry

// RegistryBuilderOption is a functional option for configuring a Registry via NewRegistry.
type RegistryBuilderOption func(*registry)

// WithScenes is an option builder that pre-registers the given scene ids in
// the provided order.
//
// Parameters:
//   - ids: the scene identifiers to register
//
// Returns:
//   - RegistryBuilderOption: a function that applies the scenes option to a registry
func WithScenes(ids ...string) RegistryBuilderOption {
	return func(r *registry) {
		for _, id := range ids {
			if _, ok := r.scenes[id]; ok {
				continue
			}
			r.scenes[id] = newSceneDescriptor(id)
			r.order = append(r.order, id)
		}
	}
}
