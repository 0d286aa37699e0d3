// internal/app/features/donors/handler.go
package donors

import (
	"context"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// RestInterval mirrors the donate endpoint's waiting period and drives the
// "available" flag in search results.
const RestInterval = 90 * 24 * time.Hour

type Handler struct {
	Users  *userstore.Store
	Log    *zap.Logger
	ErrLog *uierrors.ErrorLogger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:  userstore.New(db),
		Log:    logger,
		ErrLog: errLog,
	}
}

// donorView is one search hit. Email is only filled in for signed-in callers.
type donorView struct {
	ID             string           `json:"id"`
	FullName       string           `json:"full_name"`
	Email          string           `json:"email,omitempty"`
	BloodGroup     bloodgroup.Group `json:"blood_group"`
	District       string           `json:"district"`
	Upazila        string           `json:"upazila"`
	AvatarURL      string           `json:"avatar_url,omitempty"`
	LastDonationAt *time.Time       `json:"last_donation_at,omitempty"`
	Available      bool             `json:"available"`
}

func toView(u models.User, withContact bool, now time.Time) donorView {
	v := donorView{
		ID:             u.ID.Hex(),
		FullName:       u.FullName,
		BloodGroup:     u.BloodGroup,
		District:       u.District,
		Upazila:        u.Upazila,
		AvatarURL:      u.AvatarURL,
		LastDonationAt: u.LastDonationAt,
		Available:      u.LastDonationAt == nil || now.Sub(*u.LastDonationAt) >= RestInterval,
	}
	if withContact {
		v.Email = u.Email
	}
	return v
}

type searchResponse struct {
	paging.Page[donorView]
	// Groups is the set of blood groups searched, most universal first.
	Groups []bloodgroup.Group `json:"groups"`
}

// ServeSearch handles GET /donors/search?blood_group=&district=&upazila=.
// With compatible=true the search widens to every group that can give to
// blood_group, ordered O- first.
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	var groups []bloodgroup.Group
	if raw := normalize.BloodGroup(query.Get(r, "blood_group")); raw != "" {
		g, err := bloodgroup.Parse(raw)
		if err != nil {
			jsonutil.Invalid(w, "Unknown blood group.", map[string]string{"blood_group": err.Error()})
			return
		}
		groups = []bloodgroup.Group{g}
		if compatible, _ := strconv.ParseBool(query.Get(r, "compatible")); compatible {
			groups = bloodgroup.CompatibleDonorGroups(g)
			bloodgroup.SortByPriority(groups)
		}
	}
	p := paging.Parse(r)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	users, total, err := h.Users.SearchDonors(ctx, userstore.DonorQuery{
		Groups:   groups,
		District: query.Get(r, "district"),
		Upazila:  query.Get(r, "upazila"),
	}, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "search donors", err, "")
		return
	}

	_, signedIn := auth.CurrentUser(r)
	now := time.Now().UTC()
	views := make([]donorView, 0, len(users))
	for _, u := range users {
		views = append(views, toView(u, signedIn, now))
	}
	if groups == nil {
		groups = []bloodgroup.Group{}
	}
	jsonutil.OK(w, searchResponse{Page: paging.NewPage(views, p, total), Groups: groups})
}

type groupRow struct {
	Group        bloodgroup.Group   `json:"group"`
	Priority     int                `json:"priority"`
	CanDonateTo  []bloodgroup.Group `json:"can_donate_to"`
	ReceivesFrom []bloodgroup.Group `json:"receives_from"`
}

// ServeBloodGroups handles GET /blood-groups: the compatibility table in
// priority order.
func (h *Handler) ServeBloodGroups(w http.ResponseWriter, r *http.Request) {
	ordered := bloodgroup.ByPriority()
	rows := make([]groupRow, 0, len(ordered))
	for _, g := range ordered {
		from := bloodgroup.CompatibleDonorGroups(g)
		bloodgroup.SortByPriority(from)
		rows = append(rows, groupRow{
			Group:        g,
			Priority:     bloodgroup.Priority(g),
			CanDonateTo:  bloodgroup.CompatibleRecipientGroups(g),
			ReceivesFrom: from,
		})
	}
	jsonutil.OK(w, rows)
}
