package procedure

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Endpoint - процедура без типовых параметров, для сетевого транспорта.
type Endpoint interface {
	Path() string
	Kind() Kind
	Access() Access
	Invoke(ctx context.Context, raw []byte) (any, error)
}

// Registry хранит процедуры по пути.
type Registry struct {
	mu        sync.RWMutex
	endpoints map[string]Endpoint
}

// NewRegistry создает Registry и регистрирует переданные процедуры.
func NewRegistry(eps ...Endpoint) *Registry {
	r := &Registry{endpoints: make(map[string]Endpoint)}
	r.Register(eps...)
	return r
}

// Register добавляет процедуры. Повторная регистрация пути - ошибка программиста.
func (r *Registry) Register(eps ...Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ep := range eps {
		if _, ok := r.endpoints[ep.Path()]; ok {
			panic(fmt.Sprintf("procedure: %s registered twice", ep.Path()))
		}
		r.endpoints[ep.Path()] = ep
	}
}

// Lookup ищет процедуру по пути.
func (r *Registry) Lookup(path string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ep, ok := r.endpoints[path]
	return ep, ok
}

// Paths возвращает отсортированный список путей.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	paths := make([]string, 0, len(r.endpoints))
	for p := range r.endpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
