// internal/app/features/dashboard/donor.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/models"
)

type donorData struct {
	Role           string                   `json:"role"`
	UserName       string                   `json:"user_name"`
	RecentRequests []models.DonationRequest `json:"recent_requests"`
	TotalRequests  int64                    `json:"total_requests"`
}

func (h *Handler) serveDonor(w http.ResponseWriter, r *http.Request, a donationpolicy.Actor, u *auth.SessionUser) {
	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	id := a.ID
	f := donationrequeststore.Filter{RequesterID: &id}
	recent, err := h.Requests.Find(ctx, f, paging.Params{Page: 1, Limit: RecentRequests})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard recent requests", err, "")
		return
	}
	total, err := h.Requests.Count(ctx, f)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "dashboard request count", err, "")
		return
	}
	if recent == nil {
		recent = []models.DonationRequest{}
	}

	jsonutil.OK(w, donorData{
		Role:           string(a.Role),
		UserName:       u.Name,
		RecentRequests: recent,
		TotalRequests:  total,
	})
}
