package queue

import (
	"fmt"
	"sync"
)

// Builder constructs a configured Queue backend.
type Builder func() (Queue, error)

// Factory is a registry of named queue providers with one default.
// Deployments register the backends they support and select one by name
// from configuration.
type Factory struct {
	mu          sync.Mutex
	providers   map[string]Builder
	defaultName string
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{providers: make(map[string]Builder)}
}

// Register adds a named provider. The first registration becomes the
// default unless a later one is registered with asDefault.
func (f *Factory) Register(name string, b Builder, asDefault bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.providers[name] = b
	if asDefault || f.defaultName == "" {
		f.defaultName = name
	}
}

// Open builds the named backend. An empty name selects the default.
func (f *Factory) Open(name string) (Queue, error) {
	f.mu.Lock()
	if name == "" {
		name = f.defaultName
	}
	b, ok := f.providers[name]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("queue: unknown backend %q", name)
	}
	return b()
}
