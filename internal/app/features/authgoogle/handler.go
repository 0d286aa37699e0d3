// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	settingsstore "github.com/dalemusser/bloodhub/internal/app/store/settings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/app/system/jsonutil"
	"github.com/dalemusser/bloodhub/internal/app/system/timeouts"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie = "bloodhub_oauth_state"
	stateTTL    = 10 * time.Minute
)

// GoogleProfile is the subset of the userinfo response we use.
type GoogleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ProfileFetcher exchanges an authorization code for the user's profile.
type ProfileFetcher func(ctx context.Context, code string) (*GoogleProfile, error)

// Handler handles Google OAuth authentication.
type Handler struct {
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Users      *userstore.Store
	Settings   *settingsstore.Store

	// OAuth configuration
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://api.bloodhub.org/auth/google/callback"
	FrontendURL  string // where the browser lands after the callback
	SecureCookie bool

	// FetchProfile defaults to the real code exchange; tests replace it.
	FetchProfile ProfileFetcher

	codec *securecookie.SecureCookie
}

// NewHandler creates a new Google OAuth handler. stateKey signs the state
// cookie and should be the session key.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	stateKey string,
	clientID, clientSecret, baseURL, frontendURL string,
	secure bool,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		Log:          logger,
		SessionMgr:   sessionMgr,
		ErrLog:       errLog,
		AuditLog:     audit,
		Users:        userstore.New(db),
		Settings:     settingsstore.New(db),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  strings.TrimRight(baseURL, "/") + "/auth/google/callback",
		FrontendURL:  strings.TrimRight(frontendURL, "/"),
		SecureCookie: secure,
		codec:        securecookie.New([]byte(stateKey), nil),
	}
	h.codec.MaxAge(int(stateTTL.Seconds()))
	h.FetchProfile = h.exchangeAndFetch
	return h
}

// oauth2Config returns the Google OAuth2 configuration.
func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

type oauthState struct {
	State  string `json:"s"`
	Return string `json:"r"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/start                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeStart stores a signed state cookie and redirects to Google's
// consent screen. ?return=/path picks the SPA page to land on afterwards.
func (h *Handler) ServeStart(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		jsonutil.Error(w, http.StatusServiceUnavailable, "Google sign-in is not available.")
		return
	}

	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(32))
	encoded, err := h.codec.Encode(stateCookie, oauthState{State: state, Return: safeReturn(query.Get(r, "return"))})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "google: encode state", err, "")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    encoded,
		Path:     "/auth/google",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// safeReturn only accepts a local path so the callback cannot be turned into
// an open redirect.
func safeReturn(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, `\`) {
		return "/"
	}
	return p
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := query.Get(r, "error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", query.Get(r, "error_description")))
		h.redirectToLogin(w, r, "google_denied")
		return
	}

	saved, ok := h.readState(r)
	h.clearState(w)
	if !ok || saved.State == "" || saved.State != query.Get(r, "state") {
		h.Log.Warn("invalid or expired OAuth state")
		h.redirectToLogin(w, r, "invalid_state")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		h.redirectToLogin(w, r, "invalid_code")
		return
	}

	profile, err := h.FetchProfile(r.Context(), code)
	if err != nil {
		h.Log.Error("failed to fetch Google profile", zap.Error(err))
		h.redirectToLogin(w, r, "user_info")
		return
	}
	if profile.Email == "" || !profile.EmailVerified {
		h.redirectToLogin(w, r, "email_unverified")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.findOrCreate(ctx, r, profile)
	switch {
	case errors.Is(err, errUserDisabled):
		h.redirectToLogin(w, r, "account_disabled")
		return
	case err != nil:
		h.Log.Error("google: resolve user", zap.Error(err), zap.String("email", profile.Email))
		h.redirectToLogin(w, r, "internal")
		return
	}

	if u.Status == models.StatusPending {
		h.redirectToLogin(w, r, "pending_approval")
		return
	}

	if err := h.SessionMgr.SignIn(w, r, &auth.SessionUser{
		ID:     u.ID.Hex(),
		Name:   u.FullName,
		Email:  u.Email,
		Role:   string(u.Role),
		Status: string(u.Status),
	}); err != nil {
		h.Log.Error("google: save session", zap.Error(err))
		h.redirectToLogin(w, r, "internal")
		return
	}
	h.AuditLog.LoginSuccess(ctx, r, u.ID, u.Email, models.AuthMethodGoogle)

	http.Redirect(w, r, h.FrontendURL+saved.Return, http.StatusSeeOther)
}

func (h *Handler) readState(r *http.Request) (oauthState, bool) {
	var st oauthState
	c, err := r.Cookie(stateCookie)
	if err != nil {
		return st, false
	}
	if err := h.codec.Decode(stateCookie, c.Value, &st); err != nil {
		return st, false
	}
	return st, true
}

func (h *Handler) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.FrontendURL+"/login?error="+url.QueryEscape(code), http.StatusSeeOther)
}

/*─────────────────────────────────────────────────────────────────────────────*
| User lookup                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

var errUserDisabled = errors.New("user disabled")

// findOrCreate signs in an existing account with the verified email, or
// registers a new donor. New donors complete their blood group and location
// on the profile page.
func (h *Handler) findOrCreate(ctx context.Context, r *http.Request, p *GoogleProfile) (*models.User, error) {
	u, err := h.Users.GetByEmail(ctx, p.Email)
	if err == nil {
		if u.Status == models.StatusBlocked || u.Status == models.StatusInactive {
			h.AuditLog.LoginFailedUserDisabled(ctx, r, u.ID, u.Email, string(u.Status))
			return nil, errUserDisabled
		}
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	settings, err := h.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	status := models.StatusActive
	if settings.RequireDonorApproval {
		status = models.StatusPending
	}

	name := p.Name
	if name == "" {
		name = strings.Split(p.Email, "@")[0]
	}
	created, err := h.Users.Create(ctx, models.User{
		FullName:   name,
		Email:      p.Email,
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RoleDonor,
		Status:     status,
		AvatarURL:  p.Picture,
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Lost a race with a concurrent first sign-in.
		return h.Users.GetByEmail(ctx, p.Email)
	}
	if err != nil {
		return nil, err
	}
	h.AuditLog.Registered(ctx, r, created.ID, models.AuthMethodGoogle, string(created.Status))
	return &created, nil
}

func (h *Handler) exchangeAndFetch(ctx context.Context, code string) (*GoogleProfile, error) {
	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var p GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &p, nil
}
