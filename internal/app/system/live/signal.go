package live

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var errSignalClosed = errors.New("live: change signal closed")

func notify(ch chan<- struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ChangeStream signals on every change event of coll that passes pipeline.
func ChangeStream(coll *mongo.Collection, pipeline mongo.Pipeline, log *zap.Logger) Signal {
	return func(ctx context.Context) (<-chan struct{}, error) {
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		cs, err := coll.Watch(ctx, pipeline, opts)
		if err != nil {
			return nil, err
		}

		ch := make(chan struct{}, 1)
		go func() {
			defer close(ch)
			defer cs.Close(context.Background())
			for cs.Next(ctx) {
				notify(ch)
			}
			if err := cs.Err(); err != nil && ctx.Err() == nil {
				log.Warn("live: change stream ended", zap.String("collection", coll.Name()), zap.Error(err))
			}
		}()
		return ch, nil
	}
}

// Poll signals every interval. Used when change streams are unavailable.
func Poll(interval time.Duration) Signal {
	return func(ctx context.Context) (<-chan struct{}, error) {
		ch := make(chan struct{}, 1)
		go func() {
			defer close(ch)
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					notify(ch)
				}
			}
		}()
		return ch, nil
	}
}

// Source builds a Signal for changes to coll that pass pipeline.
type Source func(coll *mongo.Collection, pipeline mongo.Pipeline) Signal

// ChangeStreams is the Source used against a replica set.
func ChangeStreams(log *zap.Logger) Source {
	return func(coll *mongo.Collection, pipeline mongo.Pipeline) Signal {
		return ChangeStream(coll, pipeline, log)
	}
}

// Polling is the Source used when change streams are unavailable. The
// pipeline is ignored.
func Polling(interval time.Duration) Source {
	return func(*mongo.Collection, mongo.Pipeline) Signal {
		return Poll(interval)
	}
}
