package trigger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source is one collection whose inserts become events.
type Source struct {
	Collection *mongo.Collection
	// Path maps an inserted document to its event path.
	Path func(doc bson.Raw) (string, error)
}

// ClaimField is stamped on a document by the watcher that dispatches it.
const ClaimField = "trigger_claimed_at"

const claimTimeout = 5 * time.Second

// Watcher follows insert change streams for a set of collections and
// dispatches every insert through the Router. Requires a replica set.
//
// Every running instance sees every insert. Before dispatching, a watcher
// claims the document by setting ClaimField where it is still unset; only
// the instance whose update matched runs the handler, so each document is
// handled at most once across instances and across stream resumes.
type Watcher struct {
	router   *Router
	sources  []Source
	log      *zap.Logger
	instance string

	reopenDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewWatcher(router *Router, log *zap.Logger, sources ...Source) *Watcher {
	return &Watcher{
		router:      router,
		sources:     sources,
		log:         log,
		instance:    uuid.NewString(),
		reopenDelay: time.Second,
	}
}

var insertsOnly = mongo.Pipeline{
	{{Key: "$match", Value: bson.M{"operationType": "insert"}}},
}

// Start opens one change stream per source. It fails fast if any stream
// cannot be opened; once running, streams that break are reopened from
// their last resume token.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.group != nil {
		return errors.New("trigger: watcher already started")
	}

	runCtx, cancel := context.WithCancel(context.Background())
	streams := make([]*mongo.ChangeStream, 0, len(w.sources))
	for _, src := range w.sources {
		cs, err := src.Collection.Watch(ctx, insertsOnly)
		if err != nil {
			for _, open := range streams {
				_ = open.Close(ctx)
			}
			cancel()
			return fmt.Errorf("watch %s: %w", src.Collection.Name(), err)
		}
		streams = append(streams, cs)
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i, src := range w.sources {
		src, cs := src, streams[i]
		g.Go(func() error {
			w.follow(gctx, src, cs)
			return nil
		})
	}

	w.cancel = cancel
	w.group = g
	w.log.Info("trigger watcher started", zap.Int("collections", len(w.sources)))
	return nil
}

func (w *Watcher) follow(ctx context.Context, src Source, cs *mongo.ChangeStream) {
	name := src.Collection.Name()
	for {
		for cs.Next(ctx) {
			var ev struct {
				FullDocument bson.Raw `bson:"fullDocument"`
			}
			if err := cs.Decode(&ev); err != nil {
				w.log.Warn("trigger: decode change event", zap.String("collection", name), zap.Error(err))
				continue
			}
			path, err := src.Path(ev.FullDocument)
			if err != nil {
				w.log.Warn("trigger: derive path", zap.String("collection", name), zap.Error(err))
				continue
			}
			if !w.claim(ctx, src.Collection, ev.FullDocument, path) {
				continue
			}
			w.router.Go(path, ev.FullDocument)
		}

		resume := cs.ResumeToken()
		streamErr := cs.Err()
		_ = cs.Close(context.Background())
		if ctx.Err() != nil {
			return
		}

		w.log.Warn("trigger: change stream ended; reopening",
			zap.String("collection", name), zap.Error(streamErr))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.reopenDelay):
			}
			opts := options.ChangeStream()
			if resume != nil {
				opts.SetResumeAfter(resume)
			}
			next, err := src.Collection.Watch(ctx, insertsOnly, opts)
			if err == nil {
				cs = next
				break
			}
			w.log.Error("trigger: reopen change stream", zap.String("collection", name), zap.Error(err))
		}
	}
}

// claim marks doc as taken by this instance. It reports false when another
// instance got there first or the claim could not be written; the event is
// then dropped, matching the no-retry delivery contract.
func (w *Watcher) claim(ctx context.Context, coll *mongo.Collection, doc bson.Raw, path string) bool {
	id, err := doc.LookupErr("_id")
	if err != nil {
		w.log.Warn("trigger: document has no _id", zap.String("path", path))
		return false
	}

	cctx, cancel := context.WithTimeout(ctx, claimTimeout)
	defer cancel()
	res, err := coll.UpdateOne(cctx,
		bson.M{"_id": id, ClaimField: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			ClaimField:           time.Now().UTC(),
			"trigger_claimed_by": w.instance,
		}},
	)
	if err != nil {
		w.log.Error("trigger: claim failed; event dropped", zap.String("path", path), zap.Error(err))
		return false
	}
	if res.MatchedCount == 0 {
		w.log.Debug("trigger: claimed by another instance", zap.String("path", path))
		return false
	}
	return true
}

// Stop closes the change streams and waits for in-flight handlers.
func (w *Watcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, g := w.cancel, w.group
	w.cancel, w.group = nil, nil
	w.mu.Unlock()

	if g == nil {
		return nil
	}
	cancel()
	_ = g.Wait()
	w.log.Info("trigger watcher stopped")
	return w.router.Wait(ctx)
}
