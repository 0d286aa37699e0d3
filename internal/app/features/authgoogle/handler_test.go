package authgoogle_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/features/authgoogle"
	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	settingsstore "github.com/dalemusser/bloodhub/internal/app/store/settings"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const sessionKey = "test-session-key-for-testing-only"

func newTestHandler(t *testing.T, db *mongo.Database, clientID string) *authgoogle.Handler {
	t.Helper()
	logger := zap.NewNop()

	sessionMgr, err := auth.NewSessionManager(sessionKey, "test-session", "", time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return authgoogle.NewHandler(
		db,
		sessionMgr,
		uierrors.NewErrorLogger(logger),
		auditlog.NewNopLogger(),
		sessionKey,
		clientID,
		"test-client-secret",
		"http://localhost:8080",
		"http://localhost:5173",
		false,
		logger,
	)
}

func stubProfile(p authgoogle.GoogleProfile) authgoogle.ProfileFetcher {
	return func(ctx context.Context, code string) (*authgoogle.GoogleProfile, error) {
		if code != "good-code" {
			return nil, errors.New("bad code")
		}
		return &p, nil
	}
}

// start runs the start endpoint and returns the state value and cookie.
func start(t *testing.T, h *authgoogle.Handler, ret string) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeStart(rec, httptest.NewRequest("GET", "/auth/google/start?return="+url.QueryEscape(ret), nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("start: expected 307, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "bloodhub_oauth_state" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected state cookie")
	}
	return loc.Query().Get("state"), cookie
}

func callback(h *authgoogle.Handler, state, code string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/auth/google/callback?state="+url.QueryEscape(state)+"&code="+code, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeCallback(rec, req)
	return rec
}

func TestIsConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	if !newTestHandler(t, db, "test-client-id").IsConfigured() {
		t.Error("IsConfigured() should return true with client ID and secret")
	}
	if newTestHandler(t, db, "").IsConfigured() {
		t.Error("IsConfigured() should return false without client ID")
	}
}

func TestServeStart_NotConfigured(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "")

	rec := httptest.NewRecorder()
	h.ServeStart(rec, httptest.NewRequest("GET", "/auth/google/start", nil))
	testutil.AssertStatus(t, rec, http.StatusServiceUnavailable)
}

func TestServeStart_RedirectsToGoogle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")

	rec := httptest.NewRecorder()
	h.ServeStart(rec, httptest.NewRequest("GET", "/auth/google/start", nil))
	testutil.AssertStatus(t, rec, http.StatusTemporaryRedirect)

	loc := rec.Header().Get("Location")
	if !strings.HasPrefix(loc, "https://accounts.google.com/") {
		t.Errorf("unexpected redirect %q", loc)
	}
	if !strings.Contains(loc, "client_id=test-client-id") || !strings.Contains(loc, "state=") {
		t.Errorf("redirect missing client_id/state: %q", loc)
	}
}

func TestServeCallback_CreatesDonor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{
		ID: "g-1", Email: "Farhana@Example.com", EmailVerified: true, Name: "Farhana Akter",
	})

	state, cookie := start(t, h, "/requests")
	rec := callback(h, state, "good-code", cookie)
	testutil.AssertStatus(t, rec, http.StatusSeeOther)
	if got := rec.Header().Get("Location"); got != "http://localhost:5173/requests" {
		t.Errorf("Location = %q", got)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	u, err := userstore.New(db).GetByEmail(ctx, "farhana@example.com")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.AuthMethod != models.AuthMethodGoogle || u.Role != models.RoleDonor || u.Status != models.StatusActive {
		t.Errorf("unexpected user %+v", u)
	}

	signedIn := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" && c.MaxAge > 0 {
			signedIn = true
		}
	}
	if !signedIn {
		t.Error("expected a session cookie")
	}
}

func TestServeCallback_OpenRedirectIgnored(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{ID: "g-2", Email: "x@example.com", EmailVerified: true, Name: "X"})

	state, cookie := start(t, h, "//evil.example.com")
	rec := callback(h, state, "good-code", cookie)
	if got := rec.Header().Get("Location"); got != "http://localhost:5173/" {
		t.Errorf("Location = %q", got)
	}
}

func TestServeCallback_Failures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{ID: "g-3", Email: "y@example.com", EmailVerified: true})

	state, cookie := start(t, h, "/")

	tests := []struct {
		name   string
		state  string
		code   string
		cookie *http.Cookie
		want   string
	}{
		{"no cookie", state, "good-code", nil, "invalid_state"},
		{"state mismatch", "forged", "good-code", cookie, "invalid_state"},
		{"tampered cookie", state, "good-code", &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}, "invalid_state"},
		{"exchange fails", state, "bad-code", cookie, "user_info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := callback(h, tt.state, tt.code, tt.cookie)
			testutil.AssertStatus(t, rec, http.StatusSeeOther)
			if got := rec.Header().Get("Location"); !strings.HasSuffix(got, "error="+tt.want) {
				t.Errorf("Location = %q, want error=%s", got, tt.want)
			}
		})
	}
}

func TestServeCallback_UnverifiedEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{ID: "g-4", Email: "z@example.com", EmailVerified: false})

	state, cookie := start(t, h, "/")
	rec := callback(h, state, "good-code", cookie)
	if got := rec.Header().Get("Location"); !strings.HasSuffix(got, "error=email_unverified") {
		t.Errorf("Location = %q", got)
	}
}

func TestServeCallback_BlockedAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	testutil.NewFixtures(t, db).CreateUserWith(ctx, models.User{
		FullName: "Blocked", Email: "blocked@example.com", Role: models.RoleDonor, Status: models.StatusBlocked,
	})
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{ID: "g-5", Email: "blocked@example.com", EmailVerified: true})

	state, cookie := start(t, h, "/")
	rec := callback(h, state, "good-code", cookie)
	if got := rec.Header().Get("Location"); !strings.HasSuffix(got, "error=account_disabled") {
		t.Errorf("Location = %q", got)
	}
}

func TestServeCallback_ApprovalRequired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newTestHandler(t, db, "test-client-id")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	s := settingsstore.Defaults()
	s.RequireDonorApproval = true
	if err := settingsstore.New(db).Save(ctx, s); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	h.FetchProfile = stubProfile(authgoogle.GoogleProfile{ID: "g-6", Email: "new@example.com", EmailVerified: true, Name: "New"})

	state, cookie := start(t, h, "/")
	rec := callback(h, state, "good-code", cookie)
	if got := rec.Header().Get("Location"); !strings.HasSuffix(got, "error=pending_approval") {
		t.Errorf("Location = %q", got)
	}
	u, err := userstore.New(db).GetByEmail(ctx, "new@example.com")
	if err != nil || u.Status != models.StatusPending {
		t.Errorf("expected pending user, got %+v, %v", u, err)
	}
}
