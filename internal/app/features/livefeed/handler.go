// internal/app/features/livefeed/handler.go
package livefeed

import (
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	hub "github.com/dalemusser/bloodhub/internal/app/system/livefeed"
	"go.uber.org/zap"
)

// Handler attaches signed-in, active users to the request event stream.
type Handler struct {
	Hub *hub.Hub
	Log *zap.Logger
}

func NewHandler(h *hub.Hub, logger *zap.Logger) *Handler {
	return &Handler{Hub: h, Log: logger}
}

// ServeRequests handles GET /ws/requests.
func (h *Handler) ServeRequests(w http.ResponseWriter, r *http.Request) {
	a, ok := authz.Actor(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	if !donationpolicy.CanUserPerformActions(a) {
		uierrors.RenderForbidden(w, r, "Your account is not active.")
		return
	}
	h.Log.Debug("livefeed connect", zap.String("user_id", a.ID.Hex()))
	h.Hub.Serve(w, r, a.ID.Hex())
}
