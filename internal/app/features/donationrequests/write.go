// internal/app/features/donationrequests/write.go
package donationrequests

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
)

// decodeRequest reads and validates a create/update body. The donation date
// may not be in the past.
func decodeRequest(w http.ResponseWriter, r *http.Request, now time.Time) (requestInput, bloodgroup.Group, bool) {
	var in requestInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return in, "", false
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return in, "", false
	}
	if in.DonationAt.Before(now) {
		jsonutil.Invalid(w, "Donation date must be in the future.", map[string]string{
			"donation_at": "Donation date must be in the future.",
		})
		return in, "", false
	}
	group, _ := bloodgroup.Parse(in.BloodGroup)
	in.Message = htmlsanitize.PlainText(in.Message)
	return in, group, true
}

// HandleCreate handles POST /donation-requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}
	if !donationpolicy.CanCreateRequest(c.actor) {
		uierrors.RenderForbidden(w, r, "Your account must be active to create requests.")
		return
	}
	in, group, ok := decodeRequest(w, r, time.Now())
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	req, err := h.Requests.Create(ctx, models.DonationRequest{
		Requester:     models.PersonRef{ID: c.actor.ID, Name: c.user.Name, Email: c.user.Email},
		RecipientName: in.RecipientName,
		District:      in.District,
		Upazila:       in.Upazila,
		Hospital:      in.Hospital,
		Address:       in.Address,
		BloodGroup:    group,
		DonationAt:    in.DonationAt,
		Message:       in.Message,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create donation request", err, "")
		return
	}

	h.AuditLog.RequestCreated(ctx, r, c.actor.ID, req.ID, string(req.BloodGroup))
	h.publish(ctx, events.RequestCreated, req, c.actor.ID)

	jsonutil.Write(w, http.StatusCreated, detailView{DonationRequest: req, Permissions: permissionsFor(c.actor, req)})
}

// HandleUpdate handles PUT /donation-requests/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
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
	if !donationpolicy.CanEditRequest(c.actor, donationpolicy.RequestOf(*req)) {
		uierrors.RenderForbidden(w, r, "You can't edit this request.")
		return
	}
	in, group, ok := decodeRequest(w, r, time.Now())
	if !ok {
		return
	}

	updated, err := h.Requests.UpdateContent(ctx, req.ID, req.Status, donationrequeststore.ContentUpdate{
		RecipientName: in.RecipientName,
		District:      in.District,
		Upazila:       in.Upazila,
		Hospital:      in.Hospital,
		Address:       in.Address,
		BloodGroup:    group,
		DonationAt:    in.DonationAt,
		Message:       in.Message,
	})
	if err != nil {
		h.ErrLog.Respond(w, r, "update donation request", err)
		return
	}

	h.AuditLog.RequestUpdated(ctx, r, c.actor.ID, updated.ID)
	h.publish(ctx, events.RequestUpdated, *updated, c.actor.ID)

	jsonutil.OK(w, detailView{DonationRequest: *updated, Permissions: permissionsFor(c.actor, *updated)})
}

// HandleDelete handles DELETE /donation-requests/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	if !donationpolicy.CanDeleteRequest(c.actor, donationpolicy.RequestOf(*req)) {
		uierrors.RenderForbidden(w, r, "You can't delete this request.")
		return
	}

	if err := h.Requests.Delete(ctx, req.ID, req.Status); err != nil {
		h.ErrLog.Respond(w, r, "delete donation request", err)
		return
	}

	h.AuditLog.RequestDeleted(ctx, r, c.actor.ID, req.ID, string(req.Status))
	h.publish(ctx, events.RequestDeleted, *req, c.actor.ID)

	w.WriteHeader(http.StatusNoContent)
}
