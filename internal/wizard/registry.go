package wizard

import (
	"context"
	"sort"
	"sync"
	"time"

	"parkflow/internal/geo"

	"github.com/google/uuid"
)

type entry struct {
	wizard *Wizard
	feed   *geo.Feed
}

// Registry owns the live wizards of the gateway, one per browser session.
// Each wizard follows its own position feed from creation until removal.
type Registry struct {
	mu      sync.RWMutex
	cfg     Config
	entries map[string]*entry
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{cfg: cfg, entries: make(map[string]*entry)}
}

func (r *Registry) Create() *Wizard {
	return r.CreateWithID(uuid.NewString())
}

// CreateWithID reopens a wizard under a known session id, as when a browser
// returns with an id the gateway has already swept. An existing wizard is returned as is.
func (r *Registry) CreateWithID(id string) *Wizard {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		return e.wizard
	}
	w := New(id, r.cfg)
	feed := geo.NewFeed()
	w.WatchPosition(context.Background(), feed)
	r.entries[id] = &entry{wizard: w, feed: feed}
	return w
}

func (r *Registry) Get(id string) (*Wizard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.wizard, true
}

// Feed is the position feed the browser pushes to for wizard id.
func (r *Registry) Feed(id string) (*geo.Feed, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.feed, true
}

// Remove closes the wizard and forgets it.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	delete(r.entries, id)
	r.mu.Unlock()
	if ok {
		e.wizard.Close()
	}
	return ok
}

// Expire removes every wizard idle since before cutoff and returns their ids, sorted.
// A wizard with a submission in flight is never expired.
func (r *Registry) Expire(cutoff time.Time) []string {
	r.mu.Lock()
	var expired []*entry
	var ids []string
	for id, e := range r.entries {
		if e.wizard.LastActivity().Before(cutoff) && !e.wizard.View().Submitting {
			expired = append(expired, e)
			ids = append(ids, id)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		e.wizard.Close()
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
