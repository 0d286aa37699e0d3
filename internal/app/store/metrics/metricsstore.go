package metricsstore

import (
	"context"

	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

// Counts is the set of totals shown on the staff dashboard.
type Counts struct {
	Donors     int64 `json:"donors"`
	Volunteers int64 `json:"volunteers"`
	Admins     int64 `json:"admins"`

	Requests         int64                          `json:"requests"`
	RequestsByStatus map[models.RequestStatus]int64 `json:"requests_by_status"`

	FundingTotal float64 `json:"funding_total"`
	FundingCount int64   `json:"funding_count"`
}

// FetchDashboardCounts returns the high-level counts used by dashboards.
// Intentionally tolerant: on error it returns 0 for that counter.
func FetchDashboardCounts(ctx context.Context, db *mongo.Database) Counts {
	out := Counts{RequestsByStatus: map[models.RequestStatus]int64{}}

	// users by role
	if byRole, err := userstore.New(db).CountByRole(ctx); err == nil {
		out.Donors = byRole[models.RoleDonor]
		out.Volunteers = byRole[models.RoleVolunteer]
		out.Admins = byRole[models.RoleAdmin]
	}

	// requests by status
	if byStatus, err := donationrequeststore.New(db).CountByStatus(ctx, donationrequeststore.Filter{}); err == nil {
		out.RequestsByStatus = byStatus
		for _, n := range byStatus {
			out.Requests += n
		}
	}

	// completed fundings
	if t, err := fundingstore.New(db).Totals(ctx, fundingstore.Filter{}); err == nil {
		out.FundingTotal = t.Amount
		out.FundingCount = t.Count
	}

	return out
}
