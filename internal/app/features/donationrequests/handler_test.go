package donationrequests_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/features/donationrequests"
	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func newHandler(t *testing.T, db *mongo.Database) (*donationrequests.Handler, *recorder) {
	t.Helper()
	rec := &recorder{}
	logger := zap.NewNop()
	h := donationrequests.NewHandler(db, uierrors.NewErrorLogger(logger), auditlog.NewNopLogger(), events.NewDispatcher(logger, rec), logger)
	return h, rec
}

func asUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: string(u.Role), Status: string(u.Status)}
}

func validBody() map[string]any {
	return map[string]any{
		"recipient_name": "Abdul Karim",
		"district":       "Dhaka",
		"upazila":        "Mirpur",
		"hospital":       "Dhaka Medical College Hospital",
		"address":        "Ward 5, Bakshibazar",
		"blood_group":    "A-",
		"donation_at":    time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"message":        "<b>Urgent</b> surgery",
	}
}

type detail struct {
	models.DonationRequest
	Permissions struct {
		CanEdit     bool                   `json:"can_edit"`
		CanDelete   bool                   `json:"can_delete"`
		CanDonate   bool                   `json:"can_donate"`
		Transitions []models.RequestStatus `json:"transitions"`
	} `json:"permissions"`
}
