// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/prayerodyssey/internal/app/features/errors"
	groupsfeature "github.com/dalemusser/prayerodyssey/internal/app/features/groups"
	healthfeature "github.com/dalemusser/prayerodyssey/internal/app/features/health"
	notificationsfeature "github.com/dalemusser/prayerodyssey/internal/app/features/notifications"
	prayersfeature "github.com/dalemusser/prayerodyssey/internal/app/features/prayers"
	pushfeature "github.com/dalemusser/prayerodyssey/internal/app/features/push"
	"github.com/dalemusser/prayerodyssey/internal/app/services/groupsvc"
	"github.com/dalemusser/prayerodyssey/internal/app/services/notificationsvc"
	"github.com/dalemusser/prayerodyssey/internal/app/services/prayersvc"
	"github.com/dalemusser/prayerodyssey/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Every API route reads the actor from the session
// cookie; only /health and /metrics are public.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	rt := current()
	if rt == nil {
		return nil, errors.New("bootstrap: BuildHandler called before Startup")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	errLog := uierrors.NewErrorLogger(logger)
	db := deps.MongoDatabase

	prayerSvc := prayersvc.New(db, rt.fan, rt.sink, rt.signals, logger)
	groupSvc := groupsvc.New(db, rt.fan, logger)
	notificationSvc := notificationsvc.New(db, rt.signals, logger)

	r := chi.NewRouter()

	// Loads the actor into the request context when a valid cookie is present.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, appCfg.TriggerMode, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	r.Handle("/metrics", promhttp.Handler())

	prayersHandler := prayersfeature.NewHandler(prayerSvc, errLog, logger)
	r.Mount("/prayers", prayersfeature.Routes(prayersHandler, sessionMgr))

	groupsHandler := groupsfeature.NewHandler(groupSvc, errLog, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	notificationsHandler := notificationsfeature.NewHandler(notificationSvc, errLog, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	pushHandler := pushfeature.NewHandler(rt.tokens, errLog, logger)
	r.Mount("/push", pushfeature.Routes(pushHandler, sessionMgr))

	return r, nil
}
