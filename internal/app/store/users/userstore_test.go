package userstore_test

import (
	"errors"
	"testing"
	"time"

	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ensureEmailIndex(t *testing.T, db *mongo.Database) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	_, err := db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
}

func TestStore_Create_Defaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	created, err := store.Create(ctx, models.User{
		FullName:   "  Rahim   Uddin ",
		Email:      "Rahim@Example.com",
		BloodGroup: bloodgroup.OPos,
		District:   "Dhaka",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if created.ID == primitive.NilObjectID {
		t.Error("expected ID to be assigned")
	}
	if created.FullName != "Rahim Uddin" || created.FullNameCI == "" {
		t.Errorf("name not normalized: %q / %q", created.FullName, created.FullNameCI)
	}
	if created.Email != "rahim@example.com" {
		t.Errorf("email not normalized: %q", created.Email)
	}
	if created.Role != models.RoleDonor || created.Status != models.StatusActive {
		t.Errorf("defaults: role=%q status=%q", created.Role, created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps")
	}

	got, err := store.GetByEmail(ctx, "RAHIM@example.com")
	if err != nil || got.ID != created.ID {
		t.Errorf("GetByEmail: %v, %v", got, err)
	}
}

func TestStore_Create_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	tests := []struct {
		name string
		user models.User
	}{
		{"bad role", models.User{FullName: "X", Email: "x1@x.com", Role: "superuser"}},
		{"bad status", models.User{FullName: "X", Email: "x2@x.com", Status: "disabled"}},
		{"bad group", models.User{FullName: "X", Email: "x3@x.com", BloodGroup: "C+"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Create(ctx, tt.user); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStore_Create_DuplicateEmail(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ensureEmailIndex(t, db)
	store := userstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.User{FullName: "A", Email: "dup@example.com"}); err != nil {
		t.Fatalf("first Create failed: %v", err)
	}
	_, err := store.Create(ctx, models.User{FullName: "B", Email: "DUP@example.com"})
	if !errors.Is(err, userstore.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Old Name", models.RoleDonor, bloodgroup.APos)
	got, err := store.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{
		FullName:   "New Name",
		BloodGroup: bloodgroup.BNeg,
		District:   " Chattogram ",
		Upazila:    "Patiya",
	})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if got.FullName != "New Name" || got.BloodGroup != bloodgroup.BNeg || got.District != "Chattogram" {
		t.Errorf("unexpected profile: %+v", got)
	}
	if got.Role != models.RoleDonor || got.Email != u.Email {
		t.Error("role and email must not change")
	}

	if _, err := store.UpdateProfile(ctx, primitive.NewObjectID(), userstore.ProfileUpdate{FullName: "x"}); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_SetRoleAndStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Someone", models.RoleDonor, bloodgroup.OPos)
	if err := store.SetRole(ctx, u.ID, models.RoleVolunteer); err != nil {
		t.Fatalf("SetRole failed: %v", err)
	}
	if err := store.SetStatus(ctx, u.ID, models.StatusBlocked); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.Role != models.RoleVolunteer || got.Status != models.StatusBlocked {
		t.Errorf("got role=%q status=%q", got.Role, got.Status)
	}

	if err := store.SetRole(ctx, u.ID, "root"); err == nil {
		t.Error("expected error for invalid role")
	}
	if err := store.SetStatus(ctx, primitive.NewObjectID(), models.StatusActive); !errors.Is(err, userstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MarkDonated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Donor", models.RoleDonor, bloodgroup.OPos)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := store.MarkDonated(ctx, u.ID, at); err != nil {
		t.Fatalf("MarkDonated failed: %v", err)
	}
	got, _ := store.GetByID(ctx, u.ID)
	if got.LastDonationAt == nil || !got.LastDonationAt.Equal(at) {
		t.Errorf("LastDonationAt = %v", got.LastDonationAt)
	}
}

func TestStore_GetByIDs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateUser(ctx, "A", models.RoleDonor, bloodgroup.OPos)
	b := fx.CreateUser(ctx, "B", models.RoleDonor, bloodgroup.OPos)
	fx.CreateUser(ctx, "C", models.RoleDonor, bloodgroup.OPos)

	got, err := store.GetByIDs(ctx, []primitive.ObjectID{a.ID, b.ID, primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d users, want 2", len(got))
	}

	none, err := store.GetByIDs(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("GetByIDs(nil) = %v, %v", none, err)
	}
}

func TestStore_FindAndCount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Alice", models.RoleDonor, bloodgroup.APos)
	fx.CreateUser(ctx, "Albert", models.RoleVolunteer, bloodgroup.OPos)
	fx.CreateUser(ctx, "Bob", models.RoleDonor, bloodgroup.BPos)

	n, err := store.Count(ctx, userstore.ListFilter{Role: models.RoleDonor})
	if err != nil || n != 2 {
		t.Errorf("Count(donor) = %d, %v", n, err)
	}

	users, err := store.Find(ctx, userstore.ListFilter{Search: "al"}, paging.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(users) != 2 || users[0].FullName != "Albert" || users[1].FullName != "Alice" {
		t.Errorf("unexpected search result: %+v", users)
	}

	counts, err := store.CountByRole(ctx)
	if err != nil {
		t.Fatalf("CountByRole failed: %v", err)
	}
	if counts[models.RoleDonor] != 2 || counts[models.RoleVolunteer] != 1 || counts[models.RoleAdmin] != 0 {
		t.Errorf("CountByRole = %v", counts)
	}
}

func TestStore_SearchDonors(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := userstore.New(db)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx.CreateUser(ctx, "Zed", models.RoleDonor, bloodgroup.ONeg)
	fx.CreateUser(ctx, "Amy", models.RoleDonor, bloodgroup.ABNeg)
	fx.CreateUser(ctx, "Ben", models.RoleDonor, bloodgroup.ANeg)
	fx.CreateUser(ctx, "Vol", models.RoleVolunteer, bloodgroup.ONeg)
	fx.CreateUserWith(ctx, models.User{FullName: "Blocked", Email: "b@x.com", Role: models.RoleDonor, Status: models.StatusBlocked, BloodGroup: bloodgroup.ONeg, District: "Dhaka"})
	fx.CreateUserWith(ctx, models.User{FullName: "Far", Email: "f@x.com", Role: models.RoleDonor, BloodGroup: bloodgroup.ONeg, District: "Sylhet"})

	q := userstore.DonorQuery{
		Groups:   bloodgroup.CompatibleDonorGroups(bloodgroup.ABNeg),
		District: "dhaka",
	}
	donors, total, err := store.SearchDonors(ctx, q, paging.Params{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("SearchDonors failed: %v", err)
	}
	if total != 3 || len(donors) != 3 {
		t.Fatalf("expected 3 donors, got total=%d len=%d", total, len(donors))
	}
	// O- first, then A-, then AB-.
	want := []string{"Zed", "Ben", "Amy"}
	for i, d := range donors {
		if d.FullName != want[i] {
			t.Errorf("donors[%d] = %q, want %q", i, d.FullName, want[i])
		}
		if d.PasswordHash != "" {
			t.Error("password hash must not be returned")
		}
	}
}

func TestFetcher(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUserWith(ctx, models.User{FullName: "Held", Email: "held@x.com", Role: models.RoleDonor, Status: models.StatusBlocked})
	f := userstore.NewFetcher(db)

	su := f.FetchUser(ctx, u.ID.Hex())
	if su == nil {
		t.Fatal("expected session user for blocked account")
	}
	if su.Status != "blocked" || su.Role != "donor" || su.Email != "held@x.com" {
		t.Errorf("unexpected session user: %+v", su)
	}
	if f.FetchUser(ctx, primitive.NewObjectID().Hex()) != nil {
		t.Error("expected nil for unknown user")
	}
	if f.FetchUser(ctx, "bad") != nil {
		t.Error("expected nil for malformed id")
	}
}
