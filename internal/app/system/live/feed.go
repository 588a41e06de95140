// Package live provides snapshot streams over store queries.
//
// A Feed reloads its query whenever a change signal fires and publishes the
// newest snapshot. The consumer owns the Feed and must Close it; Close
// returns only after the change signal source has shut down.
package live

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Loader produces one snapshot.
type Loader[T any] func(ctx context.Context) (T, error)

// Signal opens a stream of change notices. Each receive means "reload".
// The channel must be closed once ctx is done and the source has released
// its resources.
type Signal func(ctx context.Context) (<-chan struct{}, error)

// Feed is a stream of snapshots. Only the latest unread snapshot is kept;
// a slow consumer skips intermediate states.
type Feed[T any] struct {
	updates chan T
	cancel  context.CancelFunc
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func newFeed[T any](parent context.Context, run func(ctx context.Context, emit func(T)) error) *Feed[T] {
	ctx, cancel := context.WithCancel(parent)
	f := &Feed[T]{
		updates: make(chan T, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(f.done)
		defer close(f.updates)
		err := run(ctx, f.emit)
		if err != nil && ctx.Err() == nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
		}
	}()
	return f
}

// emit replaces any unread snapshot with v.
func (f *Feed[T]) emit(v T) {
	for {
		select {
		case f.updates <- v:
			return
		default:
		}
		select {
		case <-f.updates:
		default:
		}
	}
}

// Updates delivers snapshots. It is closed when the feed stops.
func (f *Feed[T]) Updates() <-chan T { return f.updates }

// Done is closed once the feed has fully stopped.
func (f *Feed[T]) Done() <-chan struct{} { return f.done }

// Err reports why the feed stopped on its own, if it did.
func (f *Feed[T]) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Close stops the feed and waits for its signal source to shut down.
func (f *Feed[T]) Close() {
	f.cancel()
	<-f.done
}

// Open starts a feed that emits load's result once immediately and again
// after every burst of change notices that changed the result.
func Open[T any](parent context.Context, load Loader[T], signal Signal, log *zap.Logger) (*Feed[T], error) {
	sigCtx, sigCancel := context.WithCancel(parent)
	changes, err := signal(sigCtx)
	if err != nil {
		sigCancel()
		return nil, err
	}

	// Load after subscribing so no change between the two is lost.
	first, err := load(parent)
	if err != nil {
		sigCancel()
		for range changes {
		}
		return nil, err
	}

	return newFeed(parent, func(ctx context.Context, emit func(T)) error {
		defer func() {
			sigCancel()
			for range changes {
			}
		}()

		emit(first)
		last := first
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case _, ok := <-changes:
				if !ok {
					return errSignalClosed
				}
			}
			coalesce(changes)

			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.Warn("live: reload failed", zap.Error(err))
				continue
			}
			if reflect.DeepEqual(v, last) {
				continue
			}
			last = v
			emit(v)
		}
	}), nil
}

// coalesce drains notices that are already queued.
func coalesce(changes <-chan struct{}) {
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
