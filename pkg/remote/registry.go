package remote

import (
	"fmt"
	"strings"
	"sync"
)

// Factory builds a client for an organization/project pair.
type Factory func(organization, project string) (*Client, error)

// Registry caches one client per organization/project so that every
// operation in a process shares a single rate-limit window per project.
// It is owned by the caller and passed to whatever needs a client.
type Registry struct {
	mu      sync.Mutex
	factory Factory
	clients map[string]*Client
}

// NewRegistry returns an empty registry that creates clients with factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory: factory,
		clients: make(map[string]*Client),
	}
}

func registryKey(organization, project string) string {
	return strings.ToLower(organization) + "/" + strings.ToLower(project)
}

// Get returns the cached client for the pair, creating it on first use.
func (r *Registry) Get(organization, project string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey(organization, project)
	if c, ok := r.clients[key]; ok {
		return c, nil
	}
	c, err := r.factory(organization, project)
	if err != nil {
		return nil, fmt.Errorf("create client for %s: %w", key, err)
	}
	r.clients[key] = c
	return c, nil
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Forget drops the cached client for the pair, if any.
func (r *Registry) Forget(organization, project string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, registryKey(organization, project))
}
