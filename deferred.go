package undot

import "slices"

// DeferredValue computes a config value from the merged config.
// It receives a snapshot of the config taken before any deferred value is
// resolved.
type DeferredValue func(config *Container) any

// ResolveDeferred returns a copy of config with every deferred value
// written at its dotted path.
//
// All closures see the same pre-resolution snapshot (not each other's
// results), so the outcome does not depend on resolution order. Paths are
// written in sorted order. Returned maps, slices and containers are stored as
// fresh containers.
func ResolveDeferred(config *Container, deferred map[string]DeferredValue) *Container {
	result := config.Clone()
	if len(deferred) == 0 {
		return result
	}

	snapshot := config.Clone()
	paths := make([]string, 0, len(deferred))
	for path := range deferred {
		paths = append(paths, path)
	}
	slices.Sort(paths)

	for _, path := range paths {
		result.SetPath(path, valueOf(deferred[path](snapshot)).clone())
	}
	return result
}

// Deferred returns a PostProcessor that resolves deferred values. Register
// it after the Undotter so the closures see nested config.
func Deferred(deferred map[string]DeferredValue) PostProcessor {
	return PostProcessorFunc(func(c *Container) (*Container, error) {
		return ResolveDeferred(c, deferred), nil
	})
}
