package platform

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"bookgateway/internal/book"
	"bookgateway/internal/components/assert"
	"bookgateway/lib/textutil"
)

// Factory builds an adapter the first time it is requested.
type Factory func() (Adapter, error)

type registration struct {
	factory Factory
	once    sync.Once
	adapter Adapter
	err     error
}

func (r *registration) resolve() (Adapter, error) {
	r.once.Do(func() {
		r.adapter, r.err = r.factory()
	})
	return r.adapter, r.err
}

// Registry maps case insensitive platform names to adapters.
type Registry struct {
	mutex         sync.RWMutex
	registrations map[string]*registration
}

func NewRegistry() *Registry {
	return &Registry{registrations: map[string]*registration{}}
}

// Register adds the factory under name, replacing (and forgetting the adapter
// of) any earlier registration.
func (r *Registry) Register(name string, factory Factory) {
	assert.NotNil(factory, "factory")
	key := textutil.NormalizeKey(name)
	assert.NotEmptyStr(key, "name")

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.registrations[key] = &registration{factory: factory}
}

// Get returns the adapter registered under name, the same instance every time.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mutex.RLock()
	reg, ok := r.registrations[textutil.NormalizeKey(name)]
	r.mutex.RUnlock()
	if !ok {
		return nil, book.PlatformNotFoundError{Platform: name}
	}

	adapter, err := reg.resolve()
	if err != nil {
		return nil, fmt.Errorf("create %s adapter: %w", name, err)
	}
	return adapter, nil
}

// Names returns the registered keys in sorted order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.registrations))
	for name := range r.registrations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SearchAll searches every named platform (all of them when names is empty)
// concurrently. Results come back in the order the platforms were named,
// platforms that failed are left out. An error is only returned when names
// holds an unknown platform or every platform failed, in which case it is
// the error of the last one.
func (r *Registry) SearchAll(ctx context.Context, keyword string, names ...string) ([]book.SearchResult, error) {
	if len(names) == 0 {
		names = r.Names()
	}

	adapters := make([]Adapter, len(names))
	for i, name := range names {
		adapter, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		adapters[i] = adapter
	}

	results := make([]book.SearchResult, len(adapters))
	errs := make([]error, len(adapters))
	var wg sync.WaitGroup
	for i, adapter := range adapters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = adapter.Search(ctx, keyword)
		}()
	}
	wg.Wait()

	var out []book.SearchResult
	var lastErr error
	for i := range adapters {
		if errs[i] != nil {
			lastErr = errs[i]
			continue
		}
		out = append(out, results[i])
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
