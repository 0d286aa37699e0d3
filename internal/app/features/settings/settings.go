// internal/app/features/settings/settings.go
package settings

import (
	"context"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/policy/donationpolicy"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/normalize"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.uber.org/zap"
)

// publicSettings is what any visitor may read.
type publicSettings struct {
	SiteName     string  `json:"site_name"`
	ContactEmail string  `json:"contact_email,omitempty"`
	FundingGoal  float64 `json:"funding_goal,omitempty"`
}

// ServePublic handles GET /site.
func (h *Handler) ServePublic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	s, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load settings failed", err, "")
		return
	}
	jsonutil.OK(w, publicSettings{SiteName: s.SiteName, ContactEmail: s.ContactEmail, FundingGoal: s.FundingGoal})
}

// ServeSettings handles GET /settings.
func (h *Handler) ServeSettings(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.admin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	s, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load settings failed", err, "Failed to load settings.")
		return
	}
	jsonutil.OK(w, s)
}

type settingsInput struct {
	SiteName             string  `json:"site_name" validate:"required,max=100" label:"Site name"`
	ContactEmail         string  `json:"contact_email" validate:"omitempty,email,max=254" label:"Contact email"`
	RequireDonorApproval bool    `json:"require_donor_approval"`
	FundingGoal          float64 `json:"funding_goal" validate:"gte=0" label:"Funding goal"`
}

// HandleSettings handles PUT /settings, replacing every editable field.
func (h *Handler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	u, ok := h.admin(w, r)
	if !ok {
		return
	}

	var in settingsInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	in.SiteName = normalize.Name(in.SiteName)
	in.ContactEmail = normalize.Email(in.ContactEmail)
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	_, _, userID, _ := authz.UserCtx(r)
	now := time.Now().UTC()
	s := models.SiteSettings{
		Key:                  models.SiteSettingsKey,
		SiteName:             in.SiteName,
		ContactEmail:         in.ContactEmail,
		RequireDonorApproval: in.RequireDonorApproval,
		FundingGoal:          in.FundingGoal,
		UpdatedAt:            &now,
		UpdatedByID:          &userID,
		UpdatedByName:        u.Name,
	}
	if err := h.Settings.Save(ctx, s); err != nil {
		h.ErrLog.LogServerError(w, r, "save settings failed", err, "Failed to save settings.")
		return
	}

	h.AuditLog.SettingsUpdated(ctx, r, userID)
	h.Log.Info("site settings updated",
		zap.String("by", u.Name),
		zap.Bool("require_donor_approval", s.RequireDonorApproval))

	jsonutil.OK(w, s)
}

func (h *Handler) admin(w http.ResponseWriter, r *http.Request) (*auth.SessionUser, bool) {
	a, ok := authz.Actor(r)
	u, uok := auth.CurrentUser(r)
	if !ok || !uok {
		uierrors.RenderUnauthorized(w, r)
		return nil, false
	}
	if !donationpolicy.CanAdminister(a) {
		uierrors.RenderForbidden(w, r, "")
		return nil, false
	}
	return u, true
}
