// internal/app/features/fundings/fundings.go
package fundings

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	"github.com/dalemusser/bloodhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Public supporters                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

type publicFunding struct {
	Name     string    `json:"name"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Message  string    `json:"message,omitempty"`
	Date     time.Time `json:"date"`
}

// ServePublic handles GET /fundings/public: completed fundings, with
// anonymous supporters shown as "Anonymous".
func (h *Handler) ServePublic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	f := fundingstore.Filter{Statuses: []models.FundingStatus{models.FundingCompleted}}
	p := paging.Parse(r)
	items, total, err := h.page(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list public fundings", err, "")
		return
	}
	out := make([]publicFunding, len(items))
	for i, fd := range items {
		out[i] = publicFunding{
			Name:     fd.PublicName(),
			Amount:   fd.Amount,
			Currency: fd.Currency,
			Message:  fd.Message,
			Date:     fd.Date,
		}
	}
	jsonutil.OK(w, paging.NewPage(out, p, total))
}

func (h *Handler) page(ctx context.Context, f fundingstore.Filter, p paging.Params) ([]models.Funding, int64, error) {
	items, err := h.Fundings.Find(ctx, f, p)
	if err != nil {
		return nil, 0, err
	}
	total, err := h.Fundings.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Contributions                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

type fundingInput struct {
	Amount        float64 `json:"amount" validate:"gt=0,lte=10000000" label:"Amount"`
	PaymentMethod string  `json:"payment_method" validate:"required,max=32" label:"Payment method"`
	TransactionID string  `json:"transaction_id" validate:"max=128" label:"Transaction ID"`
	Anonymous     bool    `json:"anonymous"`
	Message       string  `json:"message" validate:"max=500" label:"Message"`
}

// HandleCreate handles POST /fundings. The funding is recorded as pending;
// the payment provider's outcome arrives through HandleStatus.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if !donationpolicy.CanUserPerformActions(a) {
		uierrors.RenderForbidden(w, r, "Your account is not active.")
		return
	}

	var in fundingInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	in.Message = htmlsanitize.PlainText(in.Message)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, a.ID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load funding user", err, "")
		return
	}

	uid := u.ID
	fd, err := h.Fundings.Create(ctx, models.Funding{
		TransactionID: in.TransactionID,
		UserID:        &uid,
		DonorName:     u.FullName,
		DonorEmail:    u.Email,
		Amount:        in.Amount,
		PaymentMethod: in.PaymentMethod,
		Anonymous:     in.Anonymous,
		Message:       in.Message,
	})
	switch {
	case errors.Is(err, fundingstore.ErrDuplicateTransID):
		uierrors.RenderConflict(w, r, "That transaction has already been recorded.", nil)
		return
	case errors.Is(err, fundingstore.ErrInvalidAmount):
		uierrors.RenderBadRequest(w, r, "Amount must be greater than zero.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create funding", err, "")
		return
	}

	h.Log.Info("funding recorded",
		zap.String("transaction_id", fd.TransactionID),
		zap.Float64("amount", fd.Amount))
	jsonutil.Write(w, http.StatusCreated, fd)
}

// ServeMine handles GET /fundings/mine.
func (h *Handler) ServeMine(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	id := a.ID
	p := paging.Parse(r)
	items, total, err := h.page(ctx, fundingstore.Filter{UserID: &id}, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list my fundings", err, "")
		return
	}
	jsonutil.OK(w, paging.NewPage(items, p, total))
}

/*─────────────────────────────────────────────────────────────────────────────*
| Admin                                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeAll handles GET /fundings?status=.
func (h *Handler) ServeAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := admin(w, r); !ok {
		return
	}
	var f fundingstore.Filter
	if raw := normalize.Status(query.Get(r, "status")); raw != "" {
		st := models.FundingStatus(raw)
		if !st.Valid() {
			jsonutil.Invalid(w, "Unknown status.", map[string]string{"status": "Unknown funding status."})
			return
		}
		f.Statuses = []models.FundingStatus{st}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p := paging.Parse(r)
	items, total, err := h.page(ctx, f, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list fundings", err, "")
		return
	}
	jsonutil.OK(w, paging.NewPage(items, p, total))
}

type statusInput struct {
	Status string `json:"status" validate:"required,oneof=completed pending failed" label:"Status"`
}

// HandleStatus handles POST /fundings/{id}/status, recording the payment
// provider's outcome.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := admin(w, r)
	if !ok {
		return
	}
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		uierrors.RenderBadRequest(w, r, "Invalid funding id.")
		return
	}
	var in statusInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	in.Status = normalize.Status(in.Status)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	to := models.FundingStatus(in.Status)
	from, err := h.Fundings.SetStatus(ctx, id, to)
	if errors.Is(err, fundingstore.ErrNotFound) {
		uierrors.RenderNotFound(w, r, "Funding not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "set funding status", err, "")
		return
	}
	fd, err := h.Fundings.GetByID(ctx, id)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "reload funding", err, "")
		return
	}
	if from != to {
		h.AuditLog.FundingStatusChanged(ctx, r, a.ID, fd.TransactionID, string(from), string(to))
	}
	jsonutil.OK(w, fd)
}

type statsResponse struct {
	Total   fundingstore.Total        `json:"total"`
	Goal    float64                   `json:"goal,omitempty"`
	Monthly []fundingstore.MonthTotal `json:"monthly"`
}

// ServeStats handles GET /fundings/stats: all-time completed total, the
// configured goal, and the last StatsMonths months.
func (h *Handler) ServeStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := admin(w, r); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	total, err := h.Fundings.Totals(ctx, fundingstore.Filter{})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "funding totals", err, "")
		return
	}
	now := time.Now().UTC()
	since := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(StatsMonths - 1), 0)
	monthly, err := h.Fundings.MonthlyTotals(ctx, since)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "funding monthly totals", err, "")
		return
	}
	settings, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load settings", err, "")
		return
	}
	jsonutil.OK(w, statsResponse{Total: total, Goal: settings.FundingGoal, Monthly: monthly})
}
