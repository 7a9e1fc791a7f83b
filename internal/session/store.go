// Package session holds the durable per-browser slots the booking flow relies on
// across reloads and payment-provider redirects.
//
// Key ownership:
//
//	auth.token           written by the auth middleware, read by the wizard before step 3
//	reservation.pending  written by the submitter, cleared on confirmation, abandonment or by the sweeper
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"parkflow/internal/clock"
)

const (
	KeyCredentialToken    = "auth.token"
	KeyPendingReservation = "reservation.pending"
)

type Slot struct {
	SessionID string
	Key       string
	Value     string
	UpdatedAt time.Time
}

type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Clear(ctx context.Context, sessionID, key string) error
	// List returns every slot stored under key, oldest first.
	List(ctx context.Context, key string) ([]Slot, error)
	ClearSessions(ctx context.Context, sessionIDs []string) error
}

type MemoryStore struct {
	mu    sync.RWMutex
	clock clock.Clock
	slots map[string]map[string]Slot
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryStore{clock: c, slots: make(map[string]map[string]Slot)}
}

func (s *MemoryStore) Get(_ context.Context, sessionID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[sessionID][key]
	return slot.Value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sessionID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys, ok := s.slots[sessionID]
	if !ok {
		keys = make(map[string]Slot)
		s.slots[sessionID] = keys
	}
	keys[key] = Slot{SessionID: sessionID, Key: key, Value: value, UpdatedAt: s.clock.Now()}
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots[sessionID], key)
	if len(s.slots[sessionID]) == 0 {
		delete(s.slots, sessionID)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, key string) ([]Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Slot
	for _, keys := range s.slots {
		if slot, ok := keys[key]; ok {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *MemoryStore) ClearSessions(_ context.Context, sessionIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sessionIDs {
		delete(s.slots, id)
	}
	return nil
}
