package csvutil

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func readAll(t *testing.T, s string) [][]string {
	t.Helper()
	recs, err := csv.NewReader(strings.NewReader(s)).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	return recs
}

func TestSafeCell(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"Dhaka", "Dhaka"},
		{"=HYPERLINK(\"x\")", "'=HYPERLINK(\"x\")"},
		{"+8801700", "'+8801700"},
		{"@cmd", "'@cmd"},
		{"-1", "'-1"},
		{"A-", "A-"},
	}
	for _, tt := range tests {
		if got := SafeCell(tt.in); got != tt.want {
			t.Errorf("SafeCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWrite_Users(t *testing.T) {
	u := models.User{
		ID:           primitive.NewObjectID(),
		FullName:     "Rahim, Uddin",
		Email:        "rahim@example.com",
		PasswordHash: "secret-hash",
		Role:         models.RoleDonor,
		Status:       models.StatusActive,
		BloodGroup:   bloodgroup.BNeg,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	var b strings.Builder
	if err := Write(&b, Users, []models.User{u}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if strings.Contains(b.String(), "secret-hash") {
		t.Error("password hash leaked into export")
	}
	recs := readAll(t, b.String())
	if len(recs) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(recs))
	}
	row := recs[1]
	if row[1] != "Rahim, Uddin" || row[5] != "B-" || row[8] != "2026-01-02T03:04:05Z" {
		t.Errorf("unexpected row: %v", row)
	}
}

func TestWrite_DonationRequests_DonorOptional(t *testing.T) {
	reqs := []models.DonationRequest{
		{ID: primitive.NewObjectID(), Status: models.RequestPending, BloodGroup: bloodgroup.OPos},
		{ID: primitive.NewObjectID(), Status: models.RequestDone, BloodGroup: bloodgroup.OPos,
			Donor: &models.PersonRef{Name: "Karim", Email: "k@example.com"}},
	}
	var b strings.Builder
	if err := Write(&b, DonationRequests, reqs); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	recs := readAll(t, b.String())
	if recs[1][11] != "" || recs[2][11] != "Karim" {
		t.Errorf("donor columns wrong: %v / %v", recs[1], recs[2])
	}
}

func TestWrite_Fundings(t *testing.T) {
	var b strings.Builder
	err := Write(&b, Fundings, []models.Funding{{TransactionID: "tx", Amount: 1234.5, Currency: "BDT", Status: models.FundingCompleted, Anonymous: true}})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	recs := readAll(t, b.String())
	if recs[1][4] != "1234.50" || recs[1][8] != "true" {
		t.Errorf("unexpected row: %v", recs[1])
	}
}

func TestWrite_EmptyHasHeader(t *testing.T) {
	var b strings.Builder
	if err := Write(&b, Donors, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	recs := readAll(t, b.String())
	if len(recs) != 1 || recs[0][0] != "full_name" {
		t.Errorf("unexpected output: %v", recs)
	}
}

func TestFilename(t *testing.T) {
	got := Filename("My-Requests", time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	if got != "bloodhub-my-requests-20261017.csv" {
		t.Errorf("Filename = %q", got)
	}
}
