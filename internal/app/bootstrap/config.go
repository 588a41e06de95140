// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	tokenstore "github.com/dalemusser/prayerodyssey/internal/app/store/tokens"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for Prayer Odyssey.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: PRAYERODYSSEY_MONGO_URI, PRAYERODYSSEY_TRIGGER_MODE, etc.
//   - Command-line flags: --mongo_uri, --trigger_mode, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "prayer_odyssey", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "prayerodyssey-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime"},

	// Push delivery
	{Name: "push_enabled", Default: false, Desc: "Send push messages through Firebase Cloud Messaging"},
	{Name: "firebase_credentials", Default: "", Desc: "Path to a Firebase service account JSON file (blank uses default credentials)"},
	{Name: "push_prune_invalid_tokens", Default: false, Desc: "Remove tokens FCM reports as unregistered"},

	// Trigger dispatch
	{Name: "trigger_mode", Default: TriggerChangeStream, Desc: "How created records reach their handlers: 'changestream' or 'inline'"},
	{Name: "live_poll_interval", Default: "3s", Desc: "Refresh period of live views in inline mode"},

	// Token registry
	{Name: "token_cap", Default: tokenstore.DefaultCap, Desc: "Max push tokens kept per user"},
	{Name: "token_max_age", Default: "720h", Desc: "Push tokens registered longer ago than this are removed"},
	{Name: "token_sweep_interval", Default: "6h", Desc: "How often stale push tokens are swept for all users"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig reads .env files, config files,
// environment variables (WAFFLE_* for core, PRAYERODYSSEY_* for app) and
// flags, with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PRAYERODYSSEY", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 30*24*time.Hour),

		PushEnabled:            appValues.Bool("push_enabled"),
		FirebaseCredentials:    appValues.String("firebase_credentials"),
		PushPruneInvalidTokens: appValues.Bool("push_prune_invalid_tokens"),

		TriggerMode:      appValues.String("trigger_mode"),
		LivePollInterval: appValues.Duration("live_poll_interval", 3*time.Second),

		TokenCap:           appValues.Int("token_cap"),
		TokenMaxAge:        appValues.Duration("token_max_age", tokenstore.DefaultMaxAge),
		TokenSweepInterval: appValues.Duration("token_sweep_interval", 6*time.Hour),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before any connection is attempted, and the
// trigger mode and token policy must be usable.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.TriggerMode {
	case TriggerChangeStream, TriggerInline:
	default:
		return fmt.Errorf("trigger_mode must be %q or %q, got %q", TriggerChangeStream, TriggerInline, appCfg.TriggerMode)
	}

	if appCfg.TokenCap < 1 {
		return fmt.Errorf("token_cap must be at least 1, got %d", appCfg.TokenCap)
	}
	if appCfg.TokenMaxAge <= 0 || appCfg.TokenSweepInterval <= 0 || appCfg.LivePollInterval <= 0 {
		return fmt.Errorf("token_max_age, token_sweep_interval and live_poll_interval must be positive")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && appCfg.SessionKey == "dev-only-change-me-please-0123456789ABCDEF" {
		return fmt.Errorf("session_key must be set in production")
	}
	return nil
}
