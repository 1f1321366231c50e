// Package query holds loading, error and data state for one CDN resource.
//
// A Query wraps a fetch function and tracks its outcome so rendering code
// can read {Data, Err, IsLoading, IsValidating, Stale} without keeping its
// own bookkeeping. Every typed accessor in the catalog package returns one.
package query

import (
	"context"
	"sync"
	"time"
)

// FetchFunc loads a resource. revalidate asks for a network round-trip
// that bypasses the cache read. The returned bool reports stale data.
type FetchFunc[T any] func(ctx context.Context, revalidate bool) (T, bool, error)

// State is a snapshot of a query.
type State[T any] struct {
	// Data is the last successfully loaded value
	Data T

	// HasData is false until the first successful load
	HasData bool

	// Err is the error of the most recent load, nil after a success
	Err error

	// IsLoading is true while any load is in flight
	IsLoading bool

	// IsValidating is true while a revalidating load is in flight
	IsValidating bool

	// Stale is true when Data was served from an expired cache entry
	Stale bool

	// UpdatedAt is when the last load finished
	UpdatedAt time.Time
}

// Query tracks state for one resource. It is safe for concurrent use.
type Query[T any] struct {
	fetch FetchFunc[T]

	mu          sync.Mutex
	state       State[T]
	loading     int
	validating  int
	subscribers map[int]func(State[T])
	nextID      int
}

// New creates a query around fetch.
func New[T any](fetch FetchFunc[T]) *Query[T] {
	return &Query[T]{
		fetch:       fetch,
		subscribers: make(map[int]func(State[T])),
	}
}

// Refresh re-runs the cached fetch and returns the resulting state.
func (q *Query[T]) Refresh(ctx context.Context) State[T] {
	return q.run(ctx, false)
}

// Revalidate forces a network round-trip; the result is still cached.
func (q *Query[T]) Revalidate(ctx context.Context) State[T] {
	return q.run(ctx, true)
}

// Load refreshes only if the query has never produced data.
func (q *Query[T]) Load(ctx context.Context) State[T] {
	if s := q.State(); s.HasData {
		return s
	}
	return q.Refresh(ctx)
}

// State returns the current snapshot.
func (q *Query[T]) State() State[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers fn to receive every state transition and returns
// a function that removes it.
func (q *Query[T]) Subscribe(fn func(State[T])) func() {
	q.mu.Lock()
	id := q.nextID
	q.nextID++
	q.subscribers[id] = fn
	q.mu.Unlock()

	return func() {
		q.mu.Lock()
		delete(q.subscribers, id)
		q.mu.Unlock()
	}
}

func (q *Query[T]) run(ctx context.Context, revalidate bool) State[T] {
	q.mu.Lock()
	q.loading++
	if revalidate {
		q.validating++
	}
	q.syncFlagsLocked()
	snapshot, subs := q.state, q.subscribersLocked()
	q.mu.Unlock()
	notify(subs, snapshot)

	data, stale, err := q.fetch(ctx, revalidate)

	q.mu.Lock()
	q.loading--
	if revalidate {
		q.validating--
	}
	if err != nil {
		// previous data stays available for degraded rendering
		q.state.Err = err
	} else {
		q.state.Data = data
		q.state.HasData = true
		q.state.Err = nil
		q.state.Stale = stale
	}
	q.state.UpdatedAt = time.Now()
	q.syncFlagsLocked()
	snapshot, subs = q.state, q.subscribersLocked()
	q.mu.Unlock()
	notify(subs, snapshot)

	return snapshot
}

func (q *Query[T]) syncFlagsLocked() {
	q.state.IsLoading = q.loading > 0
	q.state.IsValidating = q.validating > 0
}

func (q *Query[T]) subscribersLocked() []func(State[T]) {
	subs := make([]func(State[T]), 0, len(q.subscribers))
	for _, fn := range q.subscribers {
		subs = append(subs, fn)
	}
	return subs
}

func notify[T any](subs []func(State[T]), s State[T]) {
	for _, fn := range subs {
		fn(s)
	}
}
