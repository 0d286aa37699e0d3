// internal/app/features/exports/handler.go
package exports

import (
	"context"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Archiver keeps a copy of every export. exportsink.S3Sink satisfies it.
type Archiver interface {
	Archive(ctx context.Context, dataset, requestedBy string, body []byte) (string, error)
}

// Handler serves CSV downloads.
type Handler struct {
	Users    *userstore.Store
	Requests *donationrequeststore.Store
	Fundings *fundingstore.Store
	Archive  Archiver // optional
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
}

func NewHandler(db *mongo.Database, archive Archiver, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Requests: donationrequeststore.New(db),
		Fundings: fundingstore.New(db),
		Archive:  archive,
		Log:      logger,
		ErrLog:   errLog,
	}
}
