package fundings_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	"github.com/dalemusser/bloodhub/internal/app/features/fundings"
	fundingstore "github.com/dalemusser/bloodhub/internal/app/store/fundings"
	"github.com/dalemusser/bloodhub/internal/app/system/auditlog"
	"github.com/dalemusser/bloodhub/internal/app/system/indexes"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func newHandler(db *mongo.Database) *fundings.Handler {
	return fundings.NewHandler(db, uierrors.NewErrorLogger(zap.NewNop()), auditlog.NewNopLogger(), zap.NewNop())
}

func asUser(u models.User) testutil.TestUser {
	return testutil.TestUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: string(u.Role), Status: string(u.Status)}
}

type publicRow struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

type page[T any] struct {
	Items []T `json:"items"`
	Meta  struct {
		Total int64 `json:"total"`
	} `json:"meta"`
}

func TestServePublic_HonorsAnonymity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	u := fx.CreateUser(ctx, "Karim", models.RoleDonor, bloodgroup.OPos)

	fx.CreateFunding(ctx, u, 500)
	anon := fx.CreateFunding(ctx, u, 700)
	if _, err := db.Collection("fundings").UpdateByID(ctx, anon.ID, bson.M{"$set": bson.M{"anonymous": true}}); err != nil {
		t.Fatalf("mark anonymous: %v", err)
	}
	if _, err := fundingstore.New(db).Create(ctx, models.Funding{DonorName: "Pending", Amount: 100, PaymentMethod: "card"}); err != nil {
		t.Fatalf("create pending: %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServePublic(rec, httptest.NewRequest("GET", "/fundings/public", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	var got page[publicRow]
	testutil.DecodeJSON(t, rec, &got)
	if got.Meta.Total != 2 {
		t.Fatalf("total = %d, want 2 completed fundings", got.Meta.Total)
	}
	names := map[string]bool{}
	for _, row := range got.Items {
		names[row.Name] = true
	}
	if !names["Karim"] || !names["Anonymous"] {
		t.Errorf("names = %v, want Karim and Anonymous", names)
	}
}

func TestHandleCreate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	u := fx.CreateUser(ctx, "Supporter", models.RoleDonor, bloodgroup.APos)

	rec := httptest.NewRecorder()
	h.HandleCreate(rec, testutil.NewAuthenticatedRequest(t, "POST", "/fundings", asUser(u), map[string]any{
		"amount":         1500,
		"payment_method": "bKash",
		"message":        "<b>Keep going</b>",
	}))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	var fd models.Funding
	testutil.DecodeJSON(t, rec, &fd)
	if fd.Status != models.FundingPending || fd.TransactionID == "" || fd.Currency != models.CurrencyBDT {
		t.Errorf("unexpected funding: %+v", fd)
	}
	if fd.PaymentMethod != "bkash" || fd.Message != "Keep going" {
		t.Errorf("payment_method=%q message=%q", fd.PaymentMethod, fd.Message)
	}
	if fd.UserID == nil || *fd.UserID != u.ID || fd.DonorName != "Supporter" {
		t.Errorf("funding not attributed to caller: %+v", fd)
	}

	tests := []struct {
		name string
		user testutil.TestUser
		body map[string]any
		want int
	}{
		{"zero amount", asUser(u), map[string]any{"amount": 0, "payment_method": "card"}, http.StatusBadRequest},
		{"missing method", asUser(u), map[string]any{"amount": 10}, http.StatusBadRequest},
		{"blocked", testutil.DonorUser().Blocked(), map[string]any{"amount": 10, "payment_method": "card"}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleCreate(rec, testutil.NewAuthenticatedRequest(t, "POST", "/fundings", tt.user, tt.body))
			testutil.AssertStatus(t, rec, tt.want)
		})
	}

	rec = httptest.NewRecorder()
	h.HandleCreate(rec, httptest.NewRequest("POST", "/fundings", nil))
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
}

func TestHandleCreate_DuplicateTransaction(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	fx := testutil.NewFixtures(t, db)
	u := fx.CreateUser(ctx, "Supporter", models.RoleDonor, bloodgroup.APos)

	body := map[string]any{"amount": 10, "payment_method": "card", "transaction_id": "TX-1"}
	rec := httptest.NewRecorder()
	h.HandleCreate(rec, testutil.NewAuthenticatedRequest(t, "POST", "/fundings", asUser(u), body))
	testutil.AssertStatus(t, rec, http.StatusCreated)

	rec = httptest.NewRecorder()
	h.HandleCreate(rec, testutil.NewAuthenticatedRequest(t, "POST", "/fundings", asUser(u), body))
	testutil.AssertStatus(t, rec, http.StatusConflict)
}

func TestServeMine(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	me := fx.CreateUser(ctx, "Me", models.RoleDonor, bloodgroup.APos)
	other := fx.CreateUser(ctx, "Other", models.RoleDonor, bloodgroup.APos)
	fx.CreateFunding(ctx, me, 10)
	fx.CreateFunding(ctx, me, 20)
	fx.CreateFunding(ctx, other, 30)

	rec := httptest.NewRecorder()
	h.ServeMine(rec, testutil.NewAuthenticatedRequest(t, "GET", "/fundings/mine", asUser(me), nil))
	testutil.AssertStatus(t, rec, http.StatusOK)
	var got page[models.Funding]
	testutil.DecodeJSON(t, rec, &got)
	if got.Meta.Total != 2 {
		t.Errorf("total = %d, want 2", got.Meta.Total)
	}
}

func TestAdminEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := newHandler(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	adm := fx.CreateUser(ctx, "Admin", models.RoleAdmin, bloodgroup.APos)
	u := fx.CreateUser(ctx, "Donor", models.RoleDonor, bloodgroup.APos)
	fx.CreateFunding(ctx, u, 250)
	pending, err := fundingstore.New(db).Create(ctx, models.Funding{DonorName: "Later", Amount: 750, PaymentMethod: "card"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	t.Run("list filters by status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeAll(rec, testutil.NewAuthenticatedRequest(t, "GET", "/fundings?status=pending", asUser(adm), nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
		var got page[models.Funding]
		testutil.DecodeJSON(t, rec, &got)
		if got.Meta.Total != 1 {
			t.Errorf("total = %d, want 1", got.Meta.Total)
		}
	})

	t.Run("donor cannot list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeAll(rec, testutil.NewAuthenticatedRequest(t, "GET", "/fundings", asUser(u), nil))
		testutil.AssertStatus(t, rec, http.StatusForbidden)
	})

	t.Run("reconcile status", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest(t, "POST", "/", asUser(adm), map[string]string{"status": "completed"})
		rec := httptest.NewRecorder()
		h.HandleStatus(rec, testutil.WithChiURLParam(req, "id", pending.ID.Hex()))
		testutil.AssertStatus(t, rec, http.StatusOK)

		var fd models.Funding
		testutil.DecodeJSON(t, rec, &fd)
		if fd.Status != models.FundingCompleted {
			t.Errorf("status = %s", fd.Status)
		}
	})

	t.Run("reconcile unknown", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest(t, "POST", "/", asUser(adm), map[string]string{"status": "completed"})
		rec := httptest.NewRecorder()
		h.HandleStatus(rec, testutil.WithChiURLParam(req, "id", testutil.DonorUser().ID))
		testutil.AssertStatus(t, rec, http.StatusNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeStats(rec, testutil.NewAuthenticatedRequest(t, "GET", "/fundings/stats", asUser(adm), nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
		var got struct {
			Total struct {
				Amount float64 `json:"amount"`
				Count  int64   `json:"count"`
			} `json:"total"`
			Monthly []struct {
				Amount float64 `json:"amount"`
			} `json:"monthly"`
		}
		testutil.DecodeJSON(t, rec, &got)
		if got.Total.Amount != 1000 || got.Total.Count != 2 {
			t.Errorf("total = %+v, want 1000 over 2", got.Total)
		}
		if len(got.Monthly) != 1 || got.Monthly[0].Amount != 1000 {
			t.Errorf("monthly = %+v", got.Monthly)
		}
	})
}
