// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Trigger modes. In changestream mode inserts are picked up from MongoDB
// change streams (replica set required); in inline mode the services
// dispatch them in-process right after the write.
const (
	TriggerChangeStream = "changestream"
	TriggerInline       = "inline"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything here is
// specific to Prayer Odyssey.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: prayerodyssey-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Push delivery
	PushEnabled            bool   // false logs messages instead of sending them
	FirebaseCredentials    string // service account JSON path; blank uses application default credentials
	PushPruneInvalidTokens bool   // drop tokens FCM reports as unregistered

	// Trigger dispatch and live views
	TriggerMode      string        // "changestream" or "inline"
	LivePollInterval time.Duration // live view refresh period in inline mode

	// Token registry policy
	TokenCap           int
	TokenMaxAge        time.Duration
	TokenSweepInterval time.Duration
}
