package donors_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/app/features/donors"
	uierrors "github.com/dalemusser/bloodhub/internal/app/features/errors"
	userstore "github.com/dalemusser/bloodhub/internal/app/store/users"
	"github.com/dalemusser/bloodhub/internal/app/system/paging"
	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/testutil"
	"go.uber.org/zap"
)

type hit struct {
	ID         string           `json:"id"`
	Email      string           `json:"email"`
	BloodGroup bloodgroup.Group `json:"blood_group"`
	Available  bool             `json:"available"`
}

type result struct {
	Items  []hit              `json:"items"`
	Meta   paging.Meta        `json:"meta"`
	Groups []bloodgroup.Group `json:"groups"`
}

func TestServeSearch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := donors.NewHandler(db, uierrors.NewErrorLogger(zap.NewNop()), zap.NewNop())
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fx := testutil.NewFixtures(t, db)
	fx.CreateUser(ctx, "A Neg", models.RoleDonor, bloodgroup.ANeg)
	oneg := fx.CreateUser(ctx, "O Neg", models.RoleDonor, bloodgroup.ONeg)
	fx.CreateUser(ctx, "A Pos", models.RoleDonor, bloodgroup.APos)
	fx.CreateUser(ctx, "Vol A Neg", models.RoleVolunteer, bloodgroup.ANeg)
	if err := userstore.New(db).MarkDonated(ctx, oneg.ID, time.Now().Add(-10*24*time.Hour)); err != nil {
		t.Fatalf("MarkDonated: %v", err)
	}

	t.Run("exact group", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeSearch(rec, httptest.NewRequest("GET", "/donors/search?blood_group=A-", nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
		var got result
		testutil.DecodeJSON(t, rec, &got)
		if got.Meta.Total != 1 || got.Items[0].BloodGroup != bloodgroup.ANeg {
			t.Errorf("unexpected result %+v", got)
		}
		if got.Items[0].Email != "" {
			t.Error("visitors must not see donor email")
		}
	})

	t.Run("compatible widens and orders by priority", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeSearch(rec, httptest.NewRequest("GET", "/donors/search?blood_group=A-&compatible=true", nil))
		testutil.AssertStatus(t, rec, http.StatusOK)
		var got result
		testutil.DecodeJSON(t, rec, &got)
		if got.Meta.Total != 2 {
			t.Fatalf("total = %d, want 2", got.Meta.Total)
		}
		if got.Items[0].BloodGroup != bloodgroup.ONeg || got.Items[1].BloodGroup != bloodgroup.ANeg {
			t.Errorf("order = %v, %v", got.Items[0].BloodGroup, got.Items[1].BloodGroup)
		}
		if got.Items[0].Available {
			t.Error("donor who gave 10 days ago should not be available")
		}
		if len(got.Groups) != 2 || got.Groups[0] != bloodgroup.ONeg {
			t.Errorf("groups = %v", got.Groups)
		}
	})

	t.Run("signed in sees email", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeSearch(rec, testutil.NewAuthenticatedRequest(t, "GET", "/donors/search?blood_group=O-", testutil.DonorUser(), nil))
		var got result
		testutil.DecodeJSON(t, rec, &got)
		if len(got.Items) != 1 || got.Items[0].Email == "" {
			t.Errorf("expected email for signed-in caller, got %+v", got.Items)
		}
	})

	t.Run("bad group", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeSearch(rec, httptest.NewRequest("GET", "/donors/search?blood_group=XY", nil))
		testutil.AssertStatus(t, rec, http.StatusBadRequest)
	})
}

func TestServeBloodGroups(t *testing.T) {
	h := &donors.Handler{Log: zap.NewNop()}
	rec := httptest.NewRecorder()
	h.ServeBloodGroups(rec, httptest.NewRequest("GET", "/blood-groups", nil))
	testutil.AssertStatus(t, rec, http.StatusOK)

	var rows []struct {
		Group        bloodgroup.Group   `json:"group"`
		Priority     int                `json:"priority"`
		CanDonateTo  []bloodgroup.Group `json:"can_donate_to"`
		ReceivesFrom []bloodgroup.Group `json:"receives_from"`
	}
	testutil.DecodeJSON(t, rec, &rows)
	if len(rows) != 8 {
		t.Fatalf("rows = %d, want 8", len(rows))
	}
	first, last := rows[0], rows[7]
	if first.Group != bloodgroup.ONeg || len(first.CanDonateTo) != 8 || len(first.ReceivesFrom) != 1 {
		t.Errorf("O- row = %+v", first)
	}
	if last.Group != bloodgroup.ABPos || len(last.CanDonateTo) != 1 || len(last.ReceivesFrom) != 8 {
		t.Errorf("AB+ row = %+v", last)
	}
	if last.ReceivesFrom[0] != bloodgroup.ONeg {
		t.Errorf("receives_from should start with O-, got %v", last.ReceivesFrom)
	}
}
