// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for BloodHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: BLOODHUB_MONGO_URI, BLOODHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "bloodhub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "bloodhub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "168h", Desc: "Session cookie lifetime"},

	// Single-page client
	{Name: "csrf_key", Default: "", Desc: "32-byte CSRF key (blank disables CSRF protection)"},
	{Name: "cors_origins", Default: "http://localhost:5173", Desc: "Comma-separated origins allowed to call the API"},
	{Name: "frontend_url", Default: "http://localhost:5173", Desc: "Client URL to return to after Google sign-in"},
	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public URL of this API"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Event fan-out
	{Name: "amqp_url", Default: "", Desc: "RabbitMQ URL for request events (blank disables)"},
	{Name: "amqp_exchange", Default: "bloodhub.events", Desc: "Topic exchange for request events"},

	// Export archive
	{Name: "export_s3_region", Default: "", Desc: "AWS region for the export bucket"},
	{Name: "export_s3_bucket", Default: "", Desc: "S3 bucket that archives CSV exports (blank disables)"},
	{Name: "export_s3_prefix", Default: "exports/", Desc: "S3 key prefix for archived exports"},

	// Request expiry worker
	{Name: "request_expiry_grace", Default: "72h", Desc: "Cancel pending requests this long past their donation date (0 disables)"},
	{Name: "request_expiry_interval", Default: "15m", Desc: "How often the expiry worker sweeps"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_request", Default: "all", Desc: "Donation request event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email of the admin user (promotes/creates on startup)"},
	{Name: "admin_password", Default: "", Desc: "Password for a newly created admin user"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, BLOODHUB_* for app) and flags,
// merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "BLOODHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	// BLOODHUB_TIMEOUT_SHORT=8s etc. override the per-operation deadlines.
	timeouts.Configure(timeouts.FromEnv("BLOODHUB_TIMEOUT_"))

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 7*24*time.Hour),

		CSRFKey:     appValues.String("csrf_key"),
		CORSOrigins: splitList(appValues.String("cors_origins")),
		FrontendURL: appValues.String("frontend_url"),
		BaseURL:     appValues.String("base_url"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		AMQPURL:      appValues.String("amqp_url"),
		AMQPExchange: appValues.String("amqp_exchange"),

		ExportS3Region: appValues.String("export_s3_region"),
		ExportS3Bucket: appValues.String("export_s3_bucket"),
		ExportS3Prefix: appValues.String("export_s3_prefix"),

		RequestExpiryGrace:    appValues.Duration("request_expiry_grace", 72*time.Hour),
		RequestExpiryInterval: appValues.Duration("request_expiry_interval", 15*time.Minute),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogAdmin:   appValues.String("audit_log_admin"),
		AuditLogRequest: appValues.String("audit_log_request"),

		AdminEmail:    appValues.String("admin_email"),
		AdminPassword: appValues.String("admin_password"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.AMQPURL != "" {
		u, err := url.Parse(appCfg.AMQPURL)
		if err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			return fmt.Errorf("amqp_url must be an amqp:// or amqps:// URL")
		}
	}

	if appCfg.CSRFKey != "" && len(appCfg.CSRFKey) != 32 {
		return fmt.Errorf("csrf_key must be exactly 32 bytes, got %d", len(appCfg.CSRFKey))
	}

	if appCfg.ExportS3Bucket != "" && appCfg.ExportS3Region == "" {
		return fmt.Errorf("export_s3_bucket requires export_s3_region")
	}

	if appCfg.RequestExpiryGrace > 0 && appCfg.RequestExpiryInterval <= 0 {
		return fmt.Errorf("request_expiry_interval must be positive when request_expiry_grace is set")
	}

	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be set in production")
	}

	return nil
}

// splitList turns "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
