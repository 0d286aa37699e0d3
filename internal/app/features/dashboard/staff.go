// internal/app/features/dashboard/staff.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	metricsstore "github.com/dalemusser/bloodhub/internal/app/store/metrics"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

type staffData struct {
	Role     string              `json:"role"`
	UserName string              `json:"user_name"`
	Counts   metricsstore.Counts `json:"counts"`
}

func (h *Handler) serveStaff(w http.ResponseWriter, r *http.Request, a donationpolicy.Actor, u *auth.SessionUser) {
	ctx, cancel := context.WithTimeout(r.Context(), dashboardTimeout)
	defer cancel()

	counts := metricsstore.FetchDashboardCounts(ctx, h.DB)

	h.Log.Debug("staff dashboard served", zap.String("user", u.Name), zap.String("role", string(a.Role)))

	jsonutil.OK(w, staffData{
		Role:     string(a.Role),
		UserName: u.Name,
		Counts:   counts,
	})
}
