// internal/app/features/donationrequests/view.go
package donationrequests

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/models"
)

func permissionsFor(a donationpolicy.Actor, req models.DonationRequest) permissions {
	pr := donationpolicy.RequestOf(req)
	targets := donationpolicy.AllowedStatusTargets(a, pr)
	if targets == nil {
		targets = []models.RequestStatus{}
	}
	return permissions{
		CanEdit:     donationpolicy.CanEditRequest(a, pr),
		CanDelete:   donationpolicy.CanDeleteRequest(a, pr),
		CanDonate:   donationpolicy.CanDonateToRequest(a, pr),
		Transitions: targets,
	}
}

// ServeRequest handles GET /donation-requests/{id}.
func (h *Handler) ServeRequest(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	req, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	if !donationpolicy.CanViewRequest(c.actor, donationpolicy.RequestOf(*req)) {
		uierrors.RenderForbidden(w, r, "")
		return
	}
	jsonutil.OK(w, detailView{DonationRequest: *req, Permissions: permissionsFor(c.actor, *req)})
}

// ServeTransitions handles GET /donation-requests/{id}/transitions: the
// statuses the caller may move this request to right now.
func (h *Handler) ServeTransitions(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	req, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	allowed := donationpolicy.AllowedStatusTargets(c.actor, donationpolicy.RequestOf(*req))
	if allowed == nil {
		allowed = []models.RequestStatus{}
	}
	jsonutil.OK(w, transitionsView{Status: req.Status, Allowed: allowed})
}
