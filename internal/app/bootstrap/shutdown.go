// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, then tears down DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if svc := deps.Services; svc != nil {
		if svc.Expiry != nil {
			svc.Expiry.Stop()
		}
		if svc.Limiter != nil {
			svc.Limiter.Stop()
		}
		if svc.stopFeed != nil {
			svc.stopFeed()
		}
		if svc.AMQP != nil {
			svc.AMQP.Close()
		}
	}

	if deps.BloodHubMongoClient != nil {
		logger.Info("disconnecting BloodHub MongoDB client")
		if err := deps.BloodHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
