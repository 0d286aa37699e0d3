// internal/app/features/settings/handler.go
package settings

import (
	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	settingsstore "github.com/dalemusser/bloodhub/internal/app/store/settings"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler owns all admin-facing Settings handlers.
type Handler struct {
	Settings *settingsstore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

// NewHandler constructs a Handler bound to the given Mongo database and logger.
func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Settings: settingsstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: auditLog,
	}
}
