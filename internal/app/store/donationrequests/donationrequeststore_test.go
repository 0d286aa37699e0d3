package donationrequeststore_test

import (
	"errors"
	"testing"
	"time"

	donationrequeststore "github.com/dalemusser/bloodhub/internal/app/store/donationrequests"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newRequest(requester models.User, group bloodgroup.Group) models.DonationRequest {
	return models.DonationRequest{
		Requester:     models.PersonRef{ID: requester.ID, Name: requester.FullName, Email: requester.Email},
		RecipientName: " Karim  Ahmed ",
		District:      "Dhaka",
		Upazila:       "Savar",
		Hospital:      "Enam Medical",
		Address:       "Savar Bazar",
		BloodGroup:    group,
		DonationAt:    time.Now().Add(24 * time.Hour),
	}
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	in := newRequest(requester, bloodgroup.ONeg)
	in.Status = models.RequestDone // ignored
	in.Donor = &models.PersonRef{ID: primitive.NewObjectID()}

	created, err := store.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.Status != models.RequestPending || created.Donor != nil {
		t.Errorf("new request must be pending with no donor: %+v", created)
	}
	if created.RecipientName != "Karim Ahmed" {
		t.Errorf("RecipientName = %q", created.RecipientName)
	}
	if len(created.History) != 1 || created.History[0].Status != models.RequestPending ||
		created.History[0].ActorID == nil || *created.History[0].ActorID != requester.ID {
		t.Errorf("unexpected history: %+v", created.History)
	}

	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Requester.ID != requester.ID || got.BloodGroup != bloodgroup.ONeg {
		t.Errorf("unexpected stored request: %+v", got)
	}

	if _, err := store.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, donationrequeststore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Create_BadGroup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, newRequest(models.User{ID: primitive.NewObjectID()}, "Z+")); err == nil {
		t.Error("expected error for invalid blood group")
	}
}

func TestStore_UpdateStatus_AppendsHistory(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	donor := fx.CreateUser(ctx, "Donor", models.RoleDonor, bloodgroup.ONeg)
	created, _ := store.Create(ctx, newRequest(requester, bloodgroup.APos))

	req := created
	actor := requeststatus.Actor{ID: &donor.ID, Name: donor.FullName}
	if err := requeststatus.Assign(&req, models.PersonRef{ID: donor.ID, Name: donor.FullName}, actor, time.Now()); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := store.UpdateStatus(ctx, models.RequestPending, &req); err != nil {
		t.Fatalf("UpdateStatus (assign) failed: %v", err)
	}

	from := req.Status
	if err := requeststatus.Apply(&req, models.RequestDone, actor, "donated", time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := store.UpdateStatus(ctx, from, &req); err != nil {
		t.Fatalf("UpdateStatus (done) failed: %v", err)
	}

	got, _ := store.GetByID(ctx, created.ID)
	if got.Status != models.RequestDone {
		t.Errorf("Status = %q, want done", got.Status)
	}
	if got.Donor == nil || got.Donor.ID != donor.ID {
		t.Errorf("donor not kept: %+v", got.Donor)
	}
	if len(got.History) != 3 {
		t.Fatalf("history length = %d, want 3", len(got.History))
	}
	want := []models.RequestStatus{models.RequestPending, models.RequestInProgress, models.RequestDone}
	for i, h := range got.History {
		if h.Status != want[i] {
			t.Errorf("history[%d] = %q, want %q", i, h.Status, want[i])
		}
	}
}

func TestStore_UpdateStatus_CancelRemovesDonor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	req := fx.CreateDonationRequest(ctx, requester, bloodgroup.APos, models.RequestInProgress)

	if err := requeststatus.Apply(&req, models.RequestCanceled, requeststatus.SystemActor, "", time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := store.UpdateStatus(ctx, models.RequestInProgress, &req); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := store.GetByID(ctx, req.ID)
	if got.Status != models.RequestCanceled || got.Donor != nil {
		t.Errorf("expected canceled with no donor, got %q donor=%v", got.Status, got.Donor)
	}
	last := got.History[len(got.History)-1]
	if last.ActorID != nil || last.ActorName != "system" {
		t.Errorf("expected system actor, got %+v", last)
	}
}

func TestStore_UpdateStatus_DropsDonorOutsideActiveStatuses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	donor := fx.CreateUser(ctx, "Donor", models.RoleDonor, bloodgroup.APos)
	req := fx.CreateDonationRequest(ctx, requester, bloodgroup.APos, models.RequestPending)

	if err := requeststatus.Apply(&req, models.RequestCanceled, requeststatus.SystemActor, "", time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	// A caller that forgets to clear the donor must not persist it.
	req.Donor = &models.PersonRef{ID: donor.ID, Name: donor.FullName}
	if err := store.UpdateStatus(ctx, models.RequestPending, &req); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, err := store.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != models.RequestCanceled || got.Donor != nil {
		t.Errorf("expected canceled with no donor, got %q donor=%v", got.Status, got.Donor)
	}
}

func TestStore_UpdateStatus_Conflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	stored := fx.CreateDonationRequest(ctx, requester, bloodgroup.APos, models.RequestCanceled)

	// Caller believes the request is still pending.
	stale := stored
	stale.Status = models.RequestPending
	if err := requeststatus.Apply(&stale, models.RequestCanceled, requeststatus.SystemActor, "", time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	err := store.UpdateStatus(ctx, models.RequestPending, &stale)
	if !errors.Is(err, donationrequeststore.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}

	missing := stale
	missing.ID = primitive.NewObjectID()
	if err := store.UpdateStatus(ctx, models.RequestPending, &missing); !errors.Is(err, donationrequeststore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_UpdateContent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	req := fx.CreateDonationRequest(ctx, requester, bloodgroup.APos, models.RequestPending)

	upd := donationrequeststore.ContentUpdate{
		RecipientName: "New Recipient",
		District:      "Khulna",
		Upazila:       "Dumuria",
		Hospital:      "Khulna Medical",
		Address:       "Road 1",
		BloodGroup:    bloodgroup.BPos,
		DonationAt:    time.Now().Add(72 * time.Hour),
		Message:       "two bags",
	}
	got, err := store.UpdateContent(ctx, req.ID, models.RequestPending, upd)
	if err != nil {
		t.Fatalf("UpdateContent failed: %v", err)
	}
	if got.Hospital != "Khulna Medical" || got.BloodGroup != bloodgroup.BPos || got.Status != models.RequestPending {
		t.Errorf("unexpected request: %+v", got)
	}
	if len(got.History) != len(req.History) {
		t.Error("content edits must not touch history")
	}

	if _, err := store.UpdateContent(ctx, req.ID, models.RequestInProgress, upd); !errors.Is(err, donationrequeststore.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
}

func TestStore_Delete(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	requester := fx.CreateUser(ctx, "Requester", models.RoleDonor, bloodgroup.APos)
	req := fx.CreateDonationRequest(ctx, requester, bloodgroup.APos, models.RequestPending)

	if err := store.Delete(ctx, req.ID, models.RequestInProgress); !errors.Is(err, donationrequeststore.ErrStatusConflict) {
		t.Errorf("expected ErrStatusConflict, got %v", err)
	}
	if err := store.Delete(ctx, req.ID, models.RequestPending); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(ctx, req.ID, models.RequestPending); !errors.Is(err, donationrequeststore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FindCountAndCountByStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	alice := fx.CreateUser(ctx, "Alice", models.RoleDonor, bloodgroup.APos)
	bob := fx.CreateUser(ctx, "Bob", models.RoleDonor, bloodgroup.BPos)
	fx.CreateDonationRequest(ctx, alice, bloodgroup.APos, models.RequestPending)
	fx.CreateDonationRequest(ctx, alice, bloodgroup.ONeg, models.RequestPending)
	fx.CreateDonationRequest(ctx, alice, bloodgroup.APos, models.RequestDone)
	fx.CreateDonationRequest(ctx, bob, bloodgroup.BPos, models.RequestCanceled)

	mine := donationrequeststore.Filter{RequesterID: &alice.ID}
	n, err := store.Count(ctx, mine)
	if err != nil || n != 3 {
		t.Errorf("Count(alice) = %d, %v", n, err)
	}

	pending := donationrequeststore.Filter{Statuses: []models.RequestStatus{models.RequestPending}, BloodGroups: []bloodgroup.Group{bloodgroup.ONeg}}
	rows, err := store.Find(ctx, pending, paging.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 1 || rows[0].BloodGroup != bloodgroup.ONeg {
		t.Errorf("unexpected rows: %+v", rows)
	}

	counts, err := store.CountByStatus(ctx, donationrequeststore.Filter{})
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	want := map[models.RequestStatus]int64{
		models.RequestPending:    2,
		models.RequestInProgress: 0,
		models.RequestDone:       1,
		models.RequestCanceled:   1,
	}
	for st, w := range want {
		if counts[st] != w {
			t.Errorf("counts[%s] = %d, want %d", st, counts[st], w)
		}
	}
}

func TestStore_FindExpired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := donationrequeststore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "U", models.RoleDonor, bloodgroup.APos)
	future := fx.CreateDonationRequest(ctx, u, bloodgroup.APos, models.RequestPending)
	_ = future

	past := newRequest(u, bloodgroup.APos)
	past.DonationAt = time.Now().Add(-72 * time.Hour)
	old, err := store.Create(ctx, past)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	fx.CreateDonationRequest(ctx, u, bloodgroup.APos, models.RequestDone)

	rows, err := store.FindExpired(ctx, time.Now().Add(-24*time.Hour), 10)
	if err != nil {
		t.Fatalf("FindExpired failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != old.ID {
		t.Errorf("expected only the old pending request, got %d rows", len(rows))
	}
}
