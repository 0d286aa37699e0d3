// internal/app/features/login/handler.go
package login

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - Email: what users type to sign in with a password

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	settingsstore "github.com/dalemusser/bloodhub/internal/app/store/settings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/authutil"
	"github.com/dalemusser/bloodhub/internal/app/system/authz"
	"github.com/dalemusser/bloodhub/internal/app/system/inputval"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/ratelimit"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Users      *userstore.Store
	Settings   *settingsstore.Store
	Limiter    *ratelimit.LoginLimiter
}

func NewHandler(db *mongo.Database, sessionMgr *auth.SessionManager, errLog *uierrors.ErrorLogger, auditLog *auditlog.Logger, limiter *ratelimit.LoginLimiter, logger *zap.Logger) *Handler {
	return &Handler{
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   auditLog,
		Users:      userstore.New(db),
		Settings:   settingsstore.New(db),
		Limiter:    limiter,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Request / response bodies                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

type registerInput struct {
	FullName   string `json:"full_name" validate:"required,max=100" label:"Name"`
	Email      string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password   string `json:"password" validate:"required" label:"Password"`
	BloodGroup string `json:"blood_group" validate:"required,bloodgroup" label:"Blood group"`
	District   string `json:"district" validate:"required,max=100" label:"District"`
	Upazila    string `json:"upazila" validate:"required,max=100" label:"Upazila"`
	AvatarURL  string `json:"avatar_url" validate:"omitempty,http_url,max=500" label:"Avatar URL"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required,max=254" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type authResponse struct {
	User     models.User `json:"user"`
	SignedIn bool        `json:"signed_in"`
	Message  string      `json:"message,omitempty"`
}

func sessionUser(u *models.User) *auth.SessionUser {
	return &auth.SessionUser{
		ID:     u.ID.Hex(),
		Name:   u.FullName,
		Email:  u.Email,
		Role:   string(u.Role),
		Status: string(u.Status),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/register                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleRegister creates a donor account. When the site requires approval
// the account starts pending and no session is issued.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		jsonutil.Invalid(w, authutil.PasswordRules(), map[string]string{"password": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: load settings", err, "")
		return
	}
	status := models.StatusActive
	if settings.RequireDonorApproval {
		status = models.StatusPending
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "register: hash password", err, "")
		return
	}
	group, _ := bloodgroup.Parse(in.BloodGroup)

	u, err := h.Users.Create(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: hash,
		AuthMethod:   models.AuthMethodPassword,
		Role:         models.RoleDonor,
		Status:       status,
		BloodGroup:   group,
		District:     in.District,
		Upazila:      in.Upazila,
		AvatarURL:    in.AvatarURL,
	})
	if err != nil {
		h.ErrLog.Respond(w, r, "register: create user", err)
		return
	}
	h.AuditLog.Registered(ctx, r, u.ID, models.AuthMethodPassword, string(u.Status))

	resp := authResponse{User: u}
	if u.Status == models.StatusActive {
		if err := h.SessionMgr.SignIn(w, r, sessionUser(&u)); err != nil {
			h.ErrLog.LogServerError(w, r, "register: save session", err, "")
			return
		}
		resp.SignedIn = true
	} else {
		resp.Message = "Your account is awaiting approval by an administrator."
	}
	jsonutil.Write(w, http.StatusCreated, resp)
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /auth/login                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

const invalidCredentials = "Invalid email or password."

// HandleLogin checks an email/password pair and starts a session. Blocked
// and inactive accounts are refused; pending accounts may sign in but every
// action stays gated until an admin activates them.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		uierrors.RenderBadRequest(w, r, err.Error())
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		uierrors.RenderInvalid(w, r, res)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if h.Limiter != nil {
		if ok, msg := h.Limiter.Check(r, in.Email); !ok {
			h.AuditLog.LoginFailedRateLimit(ctx, r, in.Email)
			jsonutil.Error(w, http.StatusTooManyRequests, msg)
			return
		}
	}

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.AuditLog.LoginFailedUserNotFound(ctx, r, in.Email)
		jsonutil.Error(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "login: lookup user", err, "")
		return
	}

	if u.AuthMethod != "" && u.AuthMethod != models.AuthMethodPassword {
		jsonutil.Error(w, http.StatusUnauthorized, "This account signs in with Google.")
		return
	}
	if !authutil.CheckPassword(in.Password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, u.Email)
		jsonutil.Error(w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if u.Status == models.StatusBlocked || u.Status == models.StatusInactive {
		h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Email, string(u.Status))
		uierrors.RenderForbidden(w, r, "This account has been disabled.")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, sessionUser(u)); err != nil {
		h.ErrLog.LogServerError(w, r, "login: save session", err, "")
		return
	}
	if h.Limiter != nil {
		h.Limiter.ResetEmail(in.Email)
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email, models.AuthMethodPassword)

	jsonutil.OK(w, authResponse{User: *u, SignedIn: true})
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/me, GET /auth/csrf                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeMe returns the signed-in user's record.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
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
		h.ErrLog.LogServerError(w, r, "me: load user", err, "")
		return
	}
	jsonutil.OK(w, u)
}

// ServeCSRF hands the SPA the token it must echo in X-CSRF-Token.
func (h *Handler) ServeCSRF(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	jsonutil.OK(w, map[string]string{"csrf_token": csrf.Token(r)})
}
