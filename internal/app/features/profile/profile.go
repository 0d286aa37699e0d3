// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/authutil"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
)

type profileInput struct {
	FullName   string `json:"full_name" validate:"required,max=100" label:"Name"`
	AvatarURL  string `json:"avatar_url" validate:"omitempty,http_url,max=500" label:"Avatar URL"`
	BloodGroup string `json:"blood_group" validate:"required,bloodgroup" label:"Blood group"`
	District   string `json:"district" validate:"required,max=100" label:"District"`
	Upazila    string `json:"upazila" validate:"required,max=100" label:"Upazila"`
}

type passwordInput struct {
	CurrentPassword string `json:"current_password" validate:"required" label:"Current password"`
	NewPassword     string `json:"new_password" validate:"required" label:"New password"`
}

// ServeProfile handles GET /profile.
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderUnauthorized(w, r)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: load user", err, "")
		return
	}
	jsonutil.OK(w, u)
}

// HandleUpdate handles PUT /profile. Email, role and status cannot be
// changed here. Blocked and pending users may still fix their own profile.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}

	var in profileInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}
	group, _ := bloodgroup.Parse(in.BloodGroup)

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.UpdateProfile(ctx, uid, userstore.ProfileUpdate{
		FullName:   in.FullName,
		AvatarURL:  in.AvatarURL,
		BloodGroup: group,
		District:   in.District,
		Upazila:    in.Upazila,
	})
	if err != nil {
		h.ErrLog.Respond(w, r, "profile: update", err)
		return
	}
	jsonutil.OK(w, u)
}

// HandleChangePassword handles POST /profile/password for password accounts.
func (h *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, _, uid, ok := authz.UserCtx(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r)
		return
	}

	var in passwordInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}
	if err := authutil.ValidatePassword(in.NewPassword); err != nil {
		jsonutil.Invalid(w, authutil.PasswordRules(), map[string]string{"new_password": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: load user", err, "")
		return
	}
	if u.AuthMethod != "" && u.AuthMethod != models.AuthMethodPassword {
		uierrors.RenderBadRequest(w, r, "This account signs in with Google and has no password.")
		return
	}
	if !authutil.CheckPassword(in.CurrentPassword, u.PasswordHash) {
		jsonutil.Invalid(w, "Current password is incorrect.", map[string]string{"current_password": "Current password is incorrect."})
		return
	}

	hash, err := authutil.HashPassword(in.NewPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "profile: hash password", err, "")
		return
	}
	if err := h.Users.SetPasswordHash(ctx, uid, hash); err != nil {
		h.ErrLog.Respond(w, r, "profile: save password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
