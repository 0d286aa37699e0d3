package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/bloodhub/internal/app/system/auth"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID     string
	Name   string
	Email  string
	Role   string
	Status string
}

// AdminUser returns an active TestUser with admin role.
func AdminUser() TestUser { return newTestUser("Test Admin", "admin@test.com", models.RoleAdmin) }

// VolunteerUser returns an active TestUser with volunteer role.
func VolunteerUser() TestUser {
	return newTestUser("Test Volunteer", "volunteer@test.com", models.RoleVolunteer)
}

// DonorUser returns an active TestUser with donor role.
func DonorUser() TestUser { return newTestUser("Test Donor", "donor@test.com", models.RoleDonor) }

// Blocked returns a copy of u with a blocked account.
func (u TestUser) Blocked() TestUser {
	u.Status = string(models.StatusBlocked)
	return u
}

// ObjectID parses u.ID.
func (u TestUser) ObjectID() primitive.ObjectID {
	oid, _ := primitive.ObjectIDFromHex(u.ID)
	return oid
}

func newTestUser(name, email string, role models.Role) TestUser {
	return TestUser{
		ID:     primitive.NewObjectID().Hex(),
		Name:   name,
		Email:  email,
		Role:   string(role),
		Status: string(models.StatusActive),
	}
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:     user.ID,
		Name:   user.Name,
		Email:  user.Email,
		Role:   user.Role,
		Status: user.Status,
	})
}

// NewJSONRequest builds a request whose body is v encoded as JSON.
// A nil v produces an empty body.
func NewJSONRequest(t *testing.T, method, target string, v any) *http.Request {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// NewAuthenticatedRequest creates a JSON request with a user in context.
func NewAuthenticatedRequest(t *testing.T, method, target string, user TestUser, v any) *http.Request {
	t.Helper()
	return WithUser(NewJSONRequest(t, method, target, v), user)
}

// AssertStatus checks the response status code, printing the body on mismatch.
func AssertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Errorf("status code: got %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// DecodeJSON decodes the recorder body into dst.
func DecodeJSON(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}
