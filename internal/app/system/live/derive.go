package live

import (
	"context"

	"go.uber.org/zap"
)

// OpenFunc opens the inner feed for one pair of inputs.
type OpenFunc[A, B, T any] func(ctx context.Context, a A, b B) (*Feed[T], error)

// Derive combines two input streams into one output stream. Nothing is
// emitted until both inputs have produced a value. Whenever either input
// changes, the current inner feed is closed and drained before open is
// called with the new pair, so at most one inner feed is live at a time.
//
// The output stops when either input channel closes or parent ends.
func Derive[A, B, T any](parent context.Context, as <-chan A, bs <-chan B, open OpenFunc[A, B, T], log *zap.Logger) *Feed[T] {
	return newFeed(parent, func(ctx context.Context, emit func(T)) error {
		var (
			a          A
			b          B
			haveA      bool
			haveB      bool
			inner      *Feed[T]
			innerItems <-chan T
		)

		teardown := func() {
			if inner == nil {
				return
			}
			inner.Close()
			for range inner.Updates() {
			}
			inner, innerItems = nil, nil
		}
		defer teardown()

		reopen := func() {
			teardown()
			if !haveA || !haveB {
				return
			}
			f, err := open(ctx, a, b)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("live: open derived feed failed", zap.Error(err))
				}
				return
			}
			inner, innerItems = f, f.Updates()
		}

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()

			case v, ok := <-as:
				if !ok {
					return nil
				}
				a, haveA = v, true
				reopen()

			case v, ok := <-bs:
				if !ok {
					return nil
				}
				b, haveB = v, true
				reopen()

			case v, ok := <-innerItems:
				if !ok {
					if err := inner.Err(); err != nil {
						log.Warn("live: derived feed stopped", zap.Error(err))
					}
					innerItems = nil
					continue
				}
				emit(v)
			}
		}
	})
}

// Const returns a channel that yields v once and then blocks until ctx ends,
// for Derive inputs that never change.
func Const[T any](ctx context.Context, v T) <-chan T {
	ch := make(chan T, 1)
	ch <- v
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
