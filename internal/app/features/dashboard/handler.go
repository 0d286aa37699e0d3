// internal/app/features/dashboard/handler.go
package dashboard

import (
	"net/http"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const dashboardTimeout = 5 * time.Second

// RecentRequests is how many of their own requests a donor sees.
const RecentRequests = 3

type Handler struct {
	DB       *mongo.Database
	Requests *donationrequeststore.Store
	Log      *zap.Logger
	ErrLog   *uierrors.ErrorLogger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:       db,
		Requests: donationrequeststore.New(db),
		Log:      logger,
		ErrLog:   errLog,
	}
}

// ServeDashboard dispatches on role: admins and volunteers get
// organization-wide counts, everyone else their own recent requests.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := authz.Actor(r)
	u, uok := auth.CurrentUser(r)
	if !ok || !uok {
		uierrors.RenderUnauthorized(w, r)
		return
	}

	if donationpolicy.CanViewStats(a) {
		h.serveStaff(w, r, a, u)
		return
	}
	h.serveDonor(w, r, a, u)
}
