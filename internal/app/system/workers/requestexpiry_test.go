package workers

import (
	"context"
	"errors"
	"testing"
	"time"

	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/events"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeStore struct {
	pending  []models.DonationRequest
	conflict map[primitive.ObjectID]bool
	saved    []models.DonationRequest
	findErr  error
}

func (f *fakeStore) FindExpired(ctx context.Context, cutoff time.Time, limit int64) ([]models.DonationRequest, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.DonationRequest
	for _, r := range f.pending {
		if r.Status == models.RequestPending && r.DonationAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, from models.RequestStatus, req *models.DonationRequest) error {
	if f.conflict[req.ID] {
		return donationrequeststore.ErrStatusConflict
	}
	for i := range f.pending {
		if f.pending[i].ID == req.ID {
			f.pending[i] = *req
		}
	}
	f.saved = append(f.saved, *req)
	return nil
}

type eventRecorder struct{ got []events.Event }

func (r *eventRecorder) Publish(ctx context.Context, e events.Event) error {
	r.got = append(r.got, e)
	return nil
}

func pendingAt(at time.Time) models.DonationRequest {
	return models.DonationRequest{
		ID:         primitive.NewObjectID(),
		Status:     models.RequestPending,
		BloodGroup: bloodgroup.APos,
		DonationAt: at,
		History:    []models.StatusChange{{Status: models.RequestPending, ActorName: "req"}},
	}
}

func newWorker(store RequestStore, rec *eventRecorder, now time.Time) *RequestExpiry {
	w := NewRequestExpiry(store, auditlog.NewNopLogger(), events.NewDispatcher(zap.NewNop(), rec), zap.NewNop(), time.Hour, 24*time.Hour)
	w.now = func() time.Time { return now }
	return w
}

func TestSweep_CancelsOnlyExpired(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	old := pendingAt(now.Add(-48 * time.Hour))
	recent := pendingAt(now.Add(-2 * time.Hour))
	store := &fakeStore{pending: []models.DonationRequest{old, recent}}
	rec := &eventRecorder{}

	n, err := newWorker(store, rec, now).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 || len(store.saved) != 1 || store.saved[0].ID != old.ID {
		t.Fatalf("expected only the old request canceled, got n=%d saved=%d", n, len(store.saved))
	}

	got := store.saved[0]
	if got.Status != models.RequestCanceled {
		t.Errorf("Status = %q", got.Status)
	}
	last := got.History[len(got.History)-1]
	if last.Note != ExpiryNote || last.ActorID != nil || last.ActorName != "system" {
		t.Errorf("unexpected history entry: %+v", last)
	}

	if len(rec.got) != 1 || rec.got[0].Kind != events.RequestExpired || rec.got[0].From != models.RequestPending {
		t.Errorf("unexpected events: %+v", rec.got)
	}
}

func TestSweep_SkipsConflicts(t *testing.T) {
	now := time.Now()
	a := pendingAt(now.Add(-72 * time.Hour))
	b := pendingAt(now.Add(-72 * time.Hour))
	store := &fakeStore{
		pending:  []models.DonationRequest{a, b},
		conflict: map[primitive.ObjectID]bool{a.ID: true},
	}

	n, err := newWorker(store, &eventRecorder{}, now).Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("canceled = %d, want 1", n)
	}
}

func TestSweep_PropagatesStoreErrors(t *testing.T) {
	store := &fakeStore{findErr: errors.New("mongo down")}
	if _, err := newWorker(store, &eventRecorder{}, time.Now()).Sweep(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestStartStop(t *testing.T) {
	store := &fakeStore{}
	w := newWorker(store, &eventRecorder{}, time.Now())
	w.Start()
	w.Stop()
	w.Stop()
}

func TestSweep_WithMongo(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := donationrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	created, err := store.Create(ctx, models.DonationRequest{
		Requester:     models.PersonRef{ID: u.ID, Name: u.FullName, Email: u.Email},
		RecipientName: "R",
		District:      "Dhaka",
		Upazila:       "Savar",
		Hospital:      "H",
		Address:       "A",
		BloodGroup:    bloodgroup.APos,
		DonationAt:    time.Now().Add(-96 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	live := fx.CreateDonationRequest(ctx, u, bloodgroup.APos, models.RequestPending)

	w := newWorker(store, &eventRecorder{}, time.Now())
	n, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if n != 1 {
		t.Errorf("canceled = %d, want 1", n)
	}
	got, _ := store.GetByID(ctx, created.ID)
	if got.Status != models.RequestCanceled {
		t.Errorf("expired request status = %q", got.Status)
	}
	still, _ := store.GetByID(ctx, live.ID)
	if still.Status != models.RequestPending {
		t.Errorf("future request status = %q", still.Status)
	}
}
