package renderer

import (
	"errors"
	"sort"
	"sync"
)

// Factory creates a Renderer for a surface.
type Factory func(surface Surface, options ...RendererBuilderOption) (Renderer, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[BackendType]Factory)
)

func init() {
	for _, bt := range []BackendType{BackendTypeWGPU, BackendTypeGL, BackendTypeSoftware} {
		Register(bt, func(surface Surface, options ...RendererBuilderOption) (Renderer, error) {
			return NewRenderer(bt, surface, options...)
		})
	}
}

// Register registers a backend factory. A factory already registered for the same type is replaced.
func Register(bt BackendType, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[bt] = factory
}

// Unregister removes a backend from the registry.
func Unregister(bt BackendType) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, bt)
}

// Available returns the registered backend types in ascending order.
func Available() []BackendType {
	registryMu.RLock()
	defer registryMu.RUnlock()

	types := make([]BackendType, 0, len(factories))
	for bt := range factories {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// IsRegistered checks if a backend type is registered.
func IsRegistered(bt BackendType) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[bt]
	return ok
}

// Acquire creates a Renderer able to run the given execution model on a surface. The backend is
// bt when given, otherwise the model's default backend. There is no fallback to another backend:
// if the backend is not registered, cannot be created, or does not support the model, Acquire
// returns a *DeviceUnavailableError.
//
// Parameters:
//   - model: the execution model the Renderer must support
//   - bt: an optional backend override, at most one is used
//   - surface: the drawable surface
//   - options: options passed to the backend factory
//
// Returns:
//   - Renderer: the acquired Renderer
//   - error: a *DeviceUnavailableError if no device could be acquired
func Acquire(model ExecutionModel, surface Surface, bt *BackendType, options ...RendererBuilderOption) (Renderer, error) {
	backend := model.DefaultBackend()
	if bt != nil {
		backend = *bt
	}

	registryMu.RLock()
	factory, ok := factories[backend]
	registryMu.RUnlock()
	if !ok {
		return nil, &DeviceUnavailableError{Model: model, Backend: backend, Reason: "backend not registered"}
	}

	r, err := factory(surface, options...)
	if err != nil {
		var due *DeviceUnavailableError
		if errors.As(err, &due) {
			due.Model = model
			return nil, due
		}
		return nil, &DeviceUnavailableError{Model: model, Backend: backend, Err: err}
	}
	if !r.Supports(model) {
		r.Release()
		return nil, &DeviceUnavailableError{Model: model, Backend: backend, Reason: "backend does not support the execution model"}
	}
	return r, nil
}
