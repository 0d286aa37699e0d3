// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/bloodhub/internal/app/store/audit"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/authutil"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/app/system/exportsink"
	"github.com/dalemusser/bloodhub/internal/app/system/livefeed"
	"github.com/dalemusser/bloodhub/internal/app/system/ratelimit"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/app/system/workers"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It makes
// sure the bootstrap admin exists and starts the runtime services.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Services == nil {
		return errors.New("startup: DBDeps.Services is nil")
	}
	db := deps.BloodHubMongoDatabase

	if appCfg.AdminEmail != "" {
		actx, cancel := context.WithTimeout(ctx, timeouts.Medium())
		err := ensureAdmin(actx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger)
		cancel()
		if err != nil {
			return fmt.Errorf("ensure admin: %w", err)
		}
	}

	svc := deps.Services
	svc.Audit = auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Admin:   appCfg.AuditLogAdmin,
		Request: appCfg.AuditLogRequest,
	})

	// The live feed runs for the life of the process.
	feedCtx, stopFeed := context.WithCancel(context.Background())
	svc.Feed = livefeed.NewHub(logger, appCfg.CORSOrigins)
	svc.stopFeed = stopFeed
	go svc.Feed.Run(feedCtx)

	svc.Events = events.NewDispatcher(logger, svc.Feed)
	if appCfg.AMQPURL != "" {
		pub, err := events.DialAMQP(ctx, appCfg.AMQPURL, appCfg.AMQPExchange, logger)
		if err != nil {
			// Live feed still works without the broker.
			logger.Warn("amqp unavailable; request events stay in-process", zap.Error(err))
		} else {
			svc.AMQP = pub
			svc.Events.Add(pub)
		}
	}

	if appCfg.ExportS3Bucket != "" {
		sink, err := exportsink.NewS3(ctx, appCfg.ExportS3Region, appCfg.ExportS3Bucket, appCfg.ExportS3Prefix)
		if err != nil {
			return fmt.Errorf("export sink: %w", err)
		}
		svc.Exports = sink
		logger.Info("export archive enabled",
			zap.String("bucket", appCfg.ExportS3Bucket),
			zap.String("prefix", appCfg.ExportS3Prefix))
	}

	svc.Limiter = ratelimit.NewLoginLimiter()

	if appCfg.RequestExpiryGrace > 0 {
		svc.Expiry = workers.NewRequestExpiry(
			donationrequeststore.New(db), svc.Audit, svc.Events, logger,
			appCfg.RequestExpiryInterval, appCfg.RequestExpiryGrace)
		svc.Expiry.Start()
	}

	return nil
}

// ensureAdmin creates the admin account for email, or promotes and
// reactivates it if it already exists.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	users := userstore.New(deps.BloodHubMongoDatabase)

	u, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if u.Role == models.RoleAdmin && u.Status == models.StatusActive {
			return nil
		}
		if err := users.SetRole(ctx, u.ID, models.RoleAdmin); err != nil {
			return err
		}
		if err := users.SetStatus(ctx, u.ID, models.StatusActive); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin", zap.String("email", u.Email))
		return nil

	case errors.Is(err, mongo.ErrNoDocuments):
		if password == "" {
			return errors.New("admin_password is required to create the admin account")
		}
		if err := authutil.ValidatePassword(password); err != nil {
			return err
		}
		hash, err := authutil.HashPassword(password)
		if err != nil {
			return err
		}
		created, err := users.Create(ctx, models.User{
			FullName:     "Administrator",
			Email:        email,
			Role:         models.RoleAdmin,
			Status:       models.StatusActive,
			AuthMethod:   models.AuthMethodPassword,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		logger.Info("created admin user", zap.String("email", created.Email))
		return nil

	default:
		return err
	}
}
