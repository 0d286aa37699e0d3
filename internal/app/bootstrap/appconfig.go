// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables (BLOODHUB_*), configuration
// files, or command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig
// covers ports, TLS, log level and body limits; everything specific to the
// blood donation service lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: bloodhub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Browser-facing settings for the single-page client
	CSRFKey     string   // 32-byte key for gorilla/csrf; blank disables CSRF protection
	CORSOrigins []string // Origins allowed to call the API with credentials
	FrontendURL string   // Where the Google callback redirects after sign-in
	BaseURL     string   // Public URL of this API, used for OAuth callbacks

	// Google OAuth configuration (optional)
	GoogleClientID     string
	GoogleClientSecret string

	// Event fan-out over RabbitMQ (optional)
	AMQPURL      string
	AMQPExchange string

	// S3 archive for CSV exports (optional; blank bucket disables it)
	ExportS3Region string
	ExportS3Bucket string
	ExportS3Prefix string

	// Pending requests whose donation date is older than the grace period
	// are canceled by a background worker. Zero grace disables the worker.
	RequestExpiryGrace    time.Duration
	RequestExpiryInterval time.Duration

	// Audit logging modes: "all", "db", "log" or "off"
	AuditLogAuth    string
	AuditLogAdmin   string
	AuditLogRequest string

	// Admin bootstrap: this account is created or promoted on startup.
	AdminEmail    string
	AdminPassword string
}
