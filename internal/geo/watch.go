// Package geo carries browser position updates to the views that watch them.
// Every watch is a Subscription that must be cancelled by its owner; a Scope
// collects the cancel functions of one view so teardown is a single call.
package geo

import (
	"context"
	"sync"
	"time"

	"parkflow/internal/entities"
)

type Fix struct {
	entities.Position
	Accuracy float64   `json:"accuracy"`
	At       time.Time `json:"at"`
}

// Feed fans pushed fixes out to its subscriptions. A slow subscriber only ever
// sees the most recent fix; older undelivered ones are dropped.
type Feed struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	last   Fix
	hasFix bool
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

func (f *Feed) Push(fix Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last, f.hasFix = fix, true
	for s := range f.subs {
		s.offer(fix)
	}
}

func (f *Feed) Latest() (Fix, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last, f.hasFix
}

// Watch subscribes until Cancel is called or ctx ends. The latest known fix, if
// any, is delivered first.
func (f *Feed) Watch(ctx context.Context) *Subscription {
	s := &Subscription{
		feed: f,
		ch:   make(chan Fix, 1),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	f.subs[s] = struct{}{}
	if f.hasFix {
		s.offer(f.last)
	}
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()
	return s
}

func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type Subscription struct {
	feed *Feed
	ch   chan Fix
	done chan struct{}
	once sync.Once
}

// C is closed once the subscription is cancelled.
func (s *Subscription) C() <-chan Fix { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel is idempotent. After it returns no further fix is delivered.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.ch)
		s.feed.mu.Unlock()
		close(s.done)
	})
}

// offer is called with the feed lock held.
func (s *Subscription) offer(fix Fix) {
	select {
	case s.ch <- fix:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- fix:
	default:
	}
}

// Scope records the teardown of everything a view subscribed to.
type Scope struct {
	mu      sync.Mutex
	cancels []func()
	closed  bool
}

// Add registers fn; if the scope is already closed fn runs immediately.
func (sc *Scope) Add(fn func()) {
	sc.mu.Lock()
	if sc.closed {
		sc.mu.Unlock()
		fn()
		return
	}
	sc.cancels = append(sc.cancels, fn)
	sc.mu.Unlock()
}

// Close runs every registered cancel in reverse order of registration.
func (sc *Scope) Close() {
	sc.mu.Lock()
	cancels := sc.cancels
	sc.cancels, sc.closed = nil, true
	sc.mu.Unlock()
	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}

func (sc *Scope) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.cancels)
}
