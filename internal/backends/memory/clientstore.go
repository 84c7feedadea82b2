// Package memory holds in-process backends, used for single-instance deployments and tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"pinrelay/internal/pin"
	"pinrelay/internal/types"
)

// ClientStore keeps client records in a map. The map itself is guarded by mu, while each record
// has its own lock so PIN writes to different clients never contend.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu     sync.Mutex
	client types.Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{
		clients: make(map[string]*entry),
		now:     time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *ClientStore) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// lockEntry returns the entry for clientKey with its lock held. The entry lock is taken before the
// map lock is released, so ClearAll cannot drop the entry between lookup and use.
// Lock order is always s.mu then e.mu.
func (s *ClientStore) lockEntry(clientKey string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.clients[clientKey]
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	return e, true
}

func (s *ClientStore) GetClient(_ context.Context, clientKey string) (types.Client, error) {
	e, ok := s.lockEntry(clientKey)
	if !ok {
		return types.Client{}, types.ErrNotFound
	}
	defer e.mu.Unlock()
	return clone(e.client), nil
}

func (s *ClientStore) ListClients(_ context.Context) (map[string]types.Client, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.clients))
	for _, e := range s.clients {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make(map[string]types.Client, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out[e.client.Key] = clone(e.client)
		e.mu.Unlock()
	}
	return out, nil
}

func (s *ClientStore) PutClient(_ context.Context, client types.Client) error {
	if err := client.Validate(); err != nil {
		return types.Err(types.ErrInvalidClient, err, "")
	}
	now := s.now().Unix()
	next := clone(client)
	next.UpdatedAt = now

	s.mu.Lock()
	e, ok := s.clients[client.Key]
	if !ok {
		next.PinVersion = 0
		if next.Pin != "" {
			next.PinVersion = 1
			next.PinUpdatedAt = now
		}
		if next.CreatedAt == 0 {
			next.CreatedAt = now
		}
		s.clients[client.Key] = &entry{client: next}
		s.mu.Unlock()
		return nil
	}
	e.mu.Lock()
	s.mu.Unlock()
	defer e.mu.Unlock()
	next.CreatedAt = e.client.CreatedAt
	next.PinVersion = e.client.PinVersion
	next.PinUpdatedAt = e.client.PinUpdatedAt
	if next.Pin != e.client.Pin {
		next.PinVersion++
		next.PinUpdatedAt = now
	}
	e.client = next
	return nil
}

func (s *ClientStore) UpdatePin(_ context.Context, clientKey, newPin string) (int64, error) {
	if !pin.Valid(newPin) {
		return 0, types.Err(types.ErrInvalidClient, nil, "pin must be exactly %d digits", pin.Length)
	}
	e, ok := s.lockEntry(clientKey)
	if !ok {
		return 0, types.ErrNotFound
	}
	defer e.mu.Unlock()
	now := s.now().Unix()
	e.client.Pin = newPin
	e.client.PinVersion++
	e.client.PinUpdatedAt = now
	e.client.UpdatedAt = now
	return e.client.PinVersion, nil
}

func (s *ClientStore) ClearAll(_ context.Context) error {
	s.mu.Lock()
	s.clients = make(map[string]*entry)
	s.mu.Unlock()
	return nil
}

func clone(c types.Client) types.Client {
	c.IDs = slices.Clone(c.IDs)
	c.CustomFields = maps.Clone(c.CustomFields)
	return c
}
