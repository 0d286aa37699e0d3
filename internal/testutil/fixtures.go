package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser inserts an active user with the given role and blood group.
func (f *Fixtures) CreateUser(ctx context.Context, name string, role models.Role, group bloodgroup.Group) models.User {
	f.t.Helper()
	return f.CreateUserWith(ctx, models.User{
		FullName:   name,
		Email:      uuid.NewString()[:8] + "@test.com",
		Role:       role,
		Status:     models.StatusActive,
		BloodGroup: group,
		District:   "Dhaka",
		Upazila:    "Dhanmondi",
	})
}

// CreateUserWith inserts u after filling IDs, timestamps and *_ci fields.
func (f *Fixtures) CreateUserWith(ctx context.Context, u models.User) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.AuthMethod == "" {
		u.AuthMethod = models.AuthMethodPassword
	}
	if u.Status == "" {
		u.Status = models.StatusActive
	}
	u.FullNameCI = text.Fold(u.FullName)
	u.DistrictCI = text.Fold(u.District)
	u.UpazilaCI = text.Fold(u.Upazila)
	u.CreatedAt, u.UpdatedAt = now, now

	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateDonationRequest inserts a request owned by requester in the given status.
// In-progress and done requests get a placeholder donor.
func (f *Fixtures) CreateDonationRequest(ctx context.Context, requester models.User, group bloodgroup.Group, status models.RequestStatus) models.DonationRequest {
	f.t.Helper()

	now := time.Now().UTC()
	req := models.DonationRequest{
		ID:              primitive.NewObjectID(),
		Requester:       models.PersonRef{ID: requester.ID, Name: requester.FullName, Email: requester.Email},
		RecipientName:   "Test Recipient",
		RecipientNameCI: text.Fold("Test Recipient"),
		District:        "Dhaka",
		DistrictCI:      text.Fold("Dhaka"),
		Upazila:         "Mirpur",
		UpazilaCI:       text.Fold("Mirpur"),
		Hospital:        "Dhaka Medical College Hospital",
		Address:         "Bakshibazar",
		BloodGroup:      group,
		DonationAt:      now.Add(48 * time.Hour),
		Status:          status,
		History: []models.StatusChange{{
			Status:    models.RequestPending,
			ActorID:   &requester.ID,
			ActorName: requester.FullName,
			At:        now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if status == models.RequestInProgress || status == models.RequestDone {
		req.Donor = &models.PersonRef{ID: primitive.NewObjectID(), Name: "Test Donor", Email: "donor@test.com"}
	}

	if _, err := f.db.Collection("donation_requests").InsertOne(ctx, req); err != nil {
		f.t.Fatalf("failed to create test donation request: %v", err)
	}
	return req
}

// CreateFunding inserts a completed funding of amount BDT by user.
func (f *Fixtures) CreateFunding(ctx context.Context, user models.User, amount float64) models.Funding {
	f.t.Helper()

	now := time.Now().UTC()
	fd := models.Funding{
		ID:            primitive.NewObjectID(),
		TransactionID: uuid.NewString(),
		UserID:        &user.ID,
		DonorName:     user.FullName,
		DonorEmail:    user.Email,
		Amount:        amount,
		Currency:      models.CurrencyBDT,
		PaymentMethod: "card",
		Status:        models.FundingCompleted,
		Date:          now,
		UpdatedAt:     now,
	}
	if _, err := f.db.Collection("fundings").InsertOne(ctx, fd); err != nil {
		f.t.Fatalf("failed to create test funding: %v", err)
	}
	return fd
}
