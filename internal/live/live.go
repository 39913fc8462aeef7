// Package live turns store change signals into streams of full-list
// snapshots. Every delivery is the complete, currently ordered result set;
// consumers replace their previous state instead of merging.
package live

import (
	"context"
	"iter"

	"github.com/narastore/narastore/internal/storage"
)

// Watcher is implemented by storage.Store.
type Watcher interface {
	Watch(c storage.Collection) (<-chan struct{}, func())
}

// Query fetches the current list of one collection.
type Query[T any] struct {
	Collection storage.Collection
	Fetch      func(ctx context.Context) ([]T, error)
}

// Snapshot is one delivery. Err is set when the fetch failed; the
// subscription stays open and retries on the next change.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

// Source is a lazy sequence of snapshots. Ranging over it again starts a
// fresh subscription.
type Source[T any] func(ctx context.Context) iter.Seq2[[]T, error]

// Subscription delivers snapshots until closed. A consumer that falls behind
// only ever sees the newest snapshot.
type Subscription[T any] struct {
	ch     chan Snapshot[T]
	cancel context.CancelFunc
	done   chan struct{}
}

// Subscribe opens a live query. The first snapshot is delivered right away,
// then one after every change to q.Collection.
func Subscribe[T any](ctx context.Context, w Watcher, q Query[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		ch:     make(chan Snapshot[T], 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Watch before the first fetch so a write landing in between still
	// triggers a refresh.
	signals, stop := w.Watch(q.Collection)
	go func() {
		defer close(s.done)
		defer close(s.ch)
		defer stop()

		for {
			items, err := q.Fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			s.offer(Snapshot[T]{Items: items, Err: err})

			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
			}
		}
	}()
	return s
}

// C returns the delivery channel. It is closed once the subscription ends.
func (s *Subscription[T]) C() <-chan Snapshot[T] {
	return s.ch
}

// Close stops delivery and waits for the subscription goroutine to exit.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) offer(snap Snapshot[T]) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Snapshots returns a Source backed by a live query on w.
func Snapshots[T any](w Watcher, q Query[T]) Source[T] {
	return func(ctx context.Context) iter.Seq2[[]T, error] {
		return func(yield func([]T, error) bool) {
			sub := Subscribe(ctx, w, q)
			defer sub.Close()
			for snap := range sub.C() {
				if !yield(snap.Items, snap.Err) {
					return
				}
			}
		}
	}
}

// Static returns a Source that yields the given snapshots in order and ends.
// It stands in for a store in tests.
func Static[T any](snaps ...[]T) Source[T] {
	return func(ctx context.Context) iter.Seq2[[]T, error] {
		return func(yield func([]T, error) bool) {
			for _, items := range snaps {
				if ctx.Err() != nil {
					return
				}
				if !yield(items, nil) {
					return
				}
			}
		}
	}
}
