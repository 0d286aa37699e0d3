// internal/app/features/donationrequests/list.go
package donationrequests

import (
	"context"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"github.com/dalemusser/waffle/pantry/query"
)

// parseFilter reads blood_group, district, upazila and (when withStatus)
// status from the query string. It writes a 400 and returns false on a bad
// value.
func parseFilter(w http.ResponseWriter, r *http.Request, withStatus bool) (donationrequeststore.Filter, bool) {
	f := donationrequeststore.Filter{
		District: normalize.QueryParam(query.Get(r, "district")),
		Upazila:  normalize.QueryParam(query.Get(r, "upazila")),
	}
	if raw := normalize.BloodGroup(query.Get(r, "blood_group")); raw != "" {
		g, err := bloodgroup.Parse(raw)
		if err != nil {
			jsonutil.Invalid(w, "Unknown blood group.", map[string]string{"blood_group": err.Error()})
			return f, false
		}
		f.BloodGroups = []bloodgroup.Group{g}
	}
	if withStatus {
		if raw := normalize.Status(query.Get(r, "status")); raw != "" {
			s, err := requeststatus.Parse(raw)
			if err != nil {
				jsonutil.Invalid(w, "Unknown status.", map[string]string{"status": err.Error()})
				return f, false
			}
			f.Statuses = []models.RequestStatus{s}
		}
	}
	return f, true
}

func (h *Handler) page(ctx context.Context, f donationrequeststore.Filter, p paging.Params) ([]models.DonationRequest, int64, error) {
	items, err := h.Requests.Find(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	total, err := h.Requests.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ServePublicList handles GET /donation-requests: pending requests, soonest
// donation date first, without contact details.
func (h *Handler) ServePublicList(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r, false)
	if !ok {
		return
	}
	f.Statuses = []models.RequestStatus{requeststatus.Pending}
	f.SoonestFirst = true
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	items, total, err := h.page(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list public requests", err, "")
		return
	}
	views := make([]publicView, 0, len(items))
	for _, req := range items {
		views = append(views, toPublic(req))
	}
	jsonutil.OK(w, paging.NewPage(views, p, total))
}

// ServeMine handles GET /donation-requests/mine. ?as=donor lists the
// requests the caller volunteered for instead of the ones they created.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}
	f, ok := parseFilter(w, r, true)
	if !ok {
		return
	}
	id := c.actor.ID
	if normalize.QueryParam(query.Get(r, "as")) == "donor" {
		f.DonorID = &id
	} else {
		f.RequesterID = &id
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	items, total, err := h.page(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my requests", err, "")
		return
	}
	jsonutil.OK(w, paging.NewPage(items, p, total))
}

// ServeAll handles GET /donation-requests/all for admins and volunteers.
func (h *Handler) ServeAll(w http.ResponseWriter, r *http.Request) {
	c, ok := signedIn(w, r)
	if !ok {
		return
	}
	if !donationpolicy.CanListAllRequests(c.actor) {
		uierrors.RenderForbidden(w, r, "")
		return
	}
	f, ok := parseFilter(w, r, true)
	if !ok {
		return
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	items, total, err := h.page(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list all requests", err, "")
		return
	}
	jsonutil.OK(w, paging.NewPage(items, p, total))
}
