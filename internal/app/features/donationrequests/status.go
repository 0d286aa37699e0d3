// internal/app/features/donationrequests/status.go
package donationrequests

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MinDonationInterval is how long a donor must wait after a completed
// donation before volunteering again.
const MinDonationInterval = 90 * 24 * time.Hour

// HandleStatus handles POST /donation-requests/{id}/status. A move the
// caller may not make answers 409 with the moves they may make.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}

	var in statusInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}
	next, err := requeststatus.Parse(normalize.Status(in.Status))
	if err != nil {
		jsonutil.Invalid(w, "Unknown status.", map[string]string{"status": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	req, ok := h.load(ctx, w, r)
	if !ok {
		return
	}
	pr := donationpolicy.RequestOf(*req)
	if !donationpolicy.CanUpdateStatus(c.actor, pr) {
		uierrors.RenderForbidden(w, r, "You can't change the status of this request.")
		return
	}
	allowed := donationpolicy.AllowedStatusTargets(c.actor, pr)
	if !donationpolicy.CanChangeStatusTo(c.actor, pr, next) {
		uierrors.RenderConflict(w, r,
			fmt.Sprintf("A %s request can't be moved to %s.", req.Status, next),
			statusStrings(allowed))
		return
	}

	from := req.Status
	now := time.Now().UTC()
	if err := requeststatus.Apply(req, next, c.historyActor(), htmlsanitize.PlainText(in.Note), now); err != nil {
		if errors.Is(err, requeststatus.ErrInvalidTransition) {
			uierrors.RenderConflict(w, r, err.Error(), statusStrings(allowed))
			return
		}
		h.ErrLog.LogServerError(w, r, "apply status", err, "")
		return
	}
	if err := h.Requests.UpdateStatus(ctx, from, req); err != nil {
		h.ErrLog.Respond(w, r, "update request status", err)
		return
	}

	if next == requeststatus.Done && req.Donor != nil {
		if err := h.Users.MarkDonated(ctx, req.Donor.ID, now); err != nil {
			// The request is already done; the donor's date is informational.
			h.Log.Warn("mark donor donated", zap.Error(err), zap.String("donor_id", req.Donor.ID.Hex()))
		}
	}

	note := req.History[len(req.History)-1].Note
	h.AuditLog.RequestStatusChanged(ctx, r, c.actor.ID, req.ID, string(from), string(next), note)
	e := events.ForRequest(events.RequestStatusChanged, *req, c.actor.ID.Hex())
	e.From = from
	h.Events.Publish(ctx, e)

	jsonutil.OK(w, detailView{DonationRequest: *req, Permissions: permissionsFor(c.actor, *req)})
}

// HandleDonate handles POST /donation-requests/{id}/donate: the caller
// volunteers as the donor. Their blood group must be compatible with the
// request's and they must not have donated within MinDonationInterval.
func (h *Handler) HandleDonate(w http.ResponseWriter, r *http.Request) {
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
	pr := donationpolicy.RequestOf(*req)
	if !donationpolicy.CanDonateToRequest(c.actor, pr) {
		if req.Status != requeststatus.Pending && donationpolicy.CanUserPerformActions(c.actor) {
			uierrors.RenderConflict(w, r, "This request already has a donor or is closed.", nil)
			return
		}
		uierrors.RenderForbidden(w, r, "You can't donate to this request.")
		return
	}

	donor, err := h.Users.GetByID(ctx, c.actor.ID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load donor", err, "")
		return
	}
	if donor.BloodGroup == "" {
		uierrors.RenderUnprocessable(w, r, "Add your blood group to your profile before donating.")
		return
	}
	if err := bloodgroup.CheckCompatible(donor.BloodGroup, req.BloodGroup); err != nil {
		h.ErrLog.Respond(w, r, "donate", err)
		return
	}
	now := time.Now().UTC()
	if donor.LastDonationAt != nil && now.Sub(*donor.LastDonationAt) < MinDonationInterval {
		uierrors.RenderUnprocessable(w, r, "You donated recently. Please wait before donating again.")
		return
	}

	from := req.Status
	ref := models.PersonRef{ID: donor.ID, Name: donor.FullName, Email: donor.Email}
	if err := requeststatus.Assign(req, ref, c.historyActor(), now); err != nil {
		h.ErrLog.Respond(w, r, "assign donor", err)
		return
	}
	if err := h.Requests.UpdateStatus(ctx, from, req); err != nil {
		h.ErrLog.Respond(w, r, "save donor assignment", err)
		return
	}

	h.AuditLog.RequestDonorAssigned(ctx, r, donor.ID, req.ID)
	e := events.ForRequest(events.RequestDonorAssigned, *req, c.actor.ID.Hex())
	e.From = from
	h.Events.Publish(ctx, e)

	jsonutil.OK(w, detailView{DonationRequest: *req, Permissions: permissionsFor(c.actor, *req)})
}
