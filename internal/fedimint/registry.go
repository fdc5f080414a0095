package fedimint

import (
	"errors"
	"sync"
)

var ErrUnknownFederation = errors.New("federation not registered")

// Registry maps federation ids to live clients. It is shared by every
// in-flight callback, watcher and notifier; the lock is held only long
// enough to copy a handle out, never across I/O.
type Registry struct {
	mu      sync.Mutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]Client),
	}
}

func (r *Registry) Register(federationID string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[federationID] = client
}

func (r *Registry) Get(federationID string) (Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[federationID]
	if !ok {
		return nil, ErrUnknownFederation
	}

	return client, nil
}

// IDs returns the registered federation ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}

	return ids
}
