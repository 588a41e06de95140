// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"
	"sync"

	notificationstore "github.com/dalemusser/prayerodyssey/internal/app/store/notifications"
	prayerupdatestore "github.com/dalemusser/prayerodyssey/internal/app/store/prayerupdates"
	tokenstore "github.com/dalemusser/prayerodyssey/internal/app/store/tokens"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fanout"
	"github.com/dalemusser/prayerodyssey/internal/app/system/fcm"
	"github.com/dalemusser/prayerodyssey/internal/app/system/live"
	"github.com/dalemusser/prayerodyssey/internal/app/system/push"
	"github.com/dalemusser/prayerodyssey/internal/app/system/tasks"
	"github.com/dalemusser/prayerodyssey/internal/app/system/trigger"
	"github.com/dalemusser/prayerodyssey/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// runtime is the app-wide state built once by Startup and used by
// BuildHandler and Shutdown.
type runtime struct {
	router  *trigger.Router
	watcher *trigger.Watcher // nil in inline mode
	sink    trigger.Sink
	signals live.Source
	fan     *fanout.Engine
	tokens  *tokenstore.Store
	sweep   *workers.Periodic
}

var (
	rtMu sync.Mutex
	rt   *runtime
)

func current() *runtime {
	rtMu.Lock()
	defer rtMu.Unlock()
	return rt
}

// Startup runs after DB connections and schema setup, before the HTTP
// handler is built. It wires the trigger router (push delivery and the
// prayer-update fan-out), starts the change-stream watcher when enabled,
// and starts the stale-token sweep.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	r, err := buildRuntime(ctx, appCfg, deps.MongoDatabase, logger)
	if err != nil {
		return err
	}
	rtMu.Lock()
	rt = r
	rtMu.Unlock()
	return nil
}

func buildRuntime(ctx context.Context, appCfg AppConfig, db *mongo.Database, logger *zap.Logger) (*runtime, error) {
	tokens := tokenstore.New(db, tokenstore.Policy{Cap: appCfg.TokenCap, MaxAge: appCfg.TokenMaxAge})

	sender, err := newSender(ctx, appCfg, logger)
	if err != nil {
		return nil, err
	}

	r := &runtime{
		router:  trigger.NewRouter(logger, trigger.DefaultTimeout),
		sink:    trigger.Nop{},
		signals: live.ChangeStreams(logger),
		tokens:  tokens,
	}
	if appCfg.TriggerMode == TriggerInline {
		r.sink = trigger.NewInline(r.router, logger)
		r.signals = live.Polling(appCfg.LivePollInterval)
	}
	r.fan = fanout.New(db, r.sink, logger)

	pushHandler := push.NewHandler(tokens, sender, push.Options{PruneUnregistered: appCfg.PushPruneInvalidTokens}, logger)
	r.router.Handle("notifications/{id}", pushHandler.OnCreated)
	r.router.Handle("prayers/{prayerId}/updates/{id}", r.fan.OnPrayerUpdateCreated)

	if appCfg.TriggerMode == TriggerChangeStream {
		r.watcher = trigger.NewWatcher(r.router, logger,
			trigger.Source{Collection: db.Collection(notificationstore.Collection), Path: pathOf(notificationstore.Path)},
			trigger.Source{Collection: db.Collection(prayerupdatestore.Collection), Path: pathOf(prayerupdatestore.Path)},
		)
		if err := r.watcher.Start(ctx); err != nil {
			return nil, fmt.Errorf("start trigger watcher (trigger_mode=%s needs a replica set): %w", TriggerChangeStream, err)
		}
	}

	r.sweep = workers.NewPeriodic(tasks.TokenSweepJob(tokens, logger, appCfg.TokenSweepInterval), logger)
	r.sweep.Start()

	logger.Info("startup complete",
		zap.String("trigger_mode", appCfg.TriggerMode),
		zap.Bool("push_enabled", appCfg.PushEnabled))
	return r, nil
}

// stop halts background work and waits for in-flight trigger handlers.
func (r *runtime) stop(ctx context.Context) error {
	r.sweep.Stop()
	if r.watcher != nil {
		return r.watcher.Stop(ctx)
	}
	return r.router.Wait(ctx)
}

func newSender(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (push.Sender, error) {
	if !appCfg.PushEnabled {
		logger.Info("push disabled; messages will be logged only")
		return push.LogSender{Log: logger}, nil
	}
	client, err := fcm.New(ctx, appCfg.FirebaseCredentials, logger)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return client, nil
}

// pathOf adapts a typed path function to raw change-stream documents.
func pathOf[T any](path func(T) string) func(bson.Raw) (string, error) {
	return func(doc bson.Raw) (string, error) {
		var v T
		if err := bson.Unmarshal(doc, &v); err != nil {
			return "", err
		}
		return path(v), nil
	}
}
