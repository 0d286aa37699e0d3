// internal/app/features/fundings/handler.go
package fundings

import (
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	settingsstore "github.com/dalemusser/bloodhub/internal/app/store/settings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// StatsMonths is how many calendar months GET /fundings/stats reports.
const StatsMonths = 12

// Handler serves fundings: public supporter list, contributions by signed-in
// users, and admin reconciliation.
type Handler struct {
	Fundings *fundingstore.Store
	Users    *userstore.Store
	Settings *settingsstore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Fundings: fundingstore.New(db),
		Users:    userstore.New(db),
		Settings: settingsstore.New(db),
		Log:      logger,
		ErrLog:   errLog,
		AuditLog: auditLog,
	}
}

func actor(w http.ResponseWriter, r *http.Request) (donationpolicy.Actor, bool) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return a, false
	}
	return a, true
}

func admin(w http.ResponseWriter, r *http.Request) (donationpolicy.Actor, bool) {
	a, ok := actor(w, r)
	if !ok {
		return a, false
	}
	if !donationpolicy.CanAdminister(a) {
		uierrors.RenderForbidden(w, r, "")
		return a, false
	}
	return a, true
}
