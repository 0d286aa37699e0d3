package requeststatus

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCanChange_FullTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{Pending, InProgress}:  true,
		{Pending, Canceled}:    true,
		{InProgress, Done}:     true,
		{InProgress, Canceled}: true,
	}

	trueCount := 0
	for _, from := range All {
		for _, to := range All {
			want := allowed[[2]Status{from, to}]
			if got := CanChange(from, to); got != want {
				t.Errorf("CanChange(%s, %s) = %v, want %v", from, to, got, want)
			}
			if want {
				trueCount++
			}
		}
	}
	if trueCount != 4 {
		t.Fatalf("expected 4 allowed pairs, table has %d", trueCount)
	}
}

func TestCanChange_SelfTransitionRejected(t *testing.T) {
	for _, s := range All {
		if CanChange(s, s) {
			t.Errorf("CanChange(%s, %s) should be false", s, s)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []Status{Done, Canceled} {
		if !IsTerminal(s) {
			t.Errorf("%s should be terminal", s)
		}
		if len(Next(s)) != 0 {
			t.Errorf("Next(%s) = %v, want empty", s, Next(s))
		}
		for _, to := range All {
			if CanChange(s, to) {
				t.Errorf("terminal %s should not reach %s", s, to)
			}
		}
	}
	for _, s := range []Status{Pending, InProgress} {
		if IsTerminal(s) {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if IsTerminal(Status("bogus")) {
		t.Error("unknown status should not be reported terminal")
	}
}

func TestNext(t *testing.T) {
	if got := Next(Pending); !slices.Equal(got, []Status{InProgress, Canceled}) {
		t.Errorf("Next(pending) = %v", got)
	}
	if got := Next(InProgress); !slices.Equal(got, []Status{Done, Canceled}) {
		t.Errorf("Next(inprogress) = %v", got)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Pending, InProgress); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Validate(Done, Pending)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"pending", Pending, true},
		{"In-Progress", InProgress, true},
		{"in progress", InProgress, true},
		{"inprogress", InProgress, true},
		{"DONE", Done, true},
		{"cancelled", Canceled, true},
		{"canceled", Canceled, true},
		{"approved", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.ok && err != nil {
			t.Errorf("Parse(%q) unexpected error: %v", tt.in, err)
		}
		if !tt.ok && !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("Parse(%q) expected ErrUnknownStatus, got %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func newRequest() *models.DonationRequest {
	return &models.DonationRequest{
		ID:     primitive.NewObjectID(),
		Status: Pending,
		History: []models.StatusChange{
			{Status: Pending, ActorName: "Requester", At: time.Now().UTC()},
		},
	}
}

func TestApply_AppendsHistory(t *testing.T) {
	req := newRequest()
	uid := primitive.NewObjectID()
	actor := Actor{ID: &uid, Name: "Admin"}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := Apply(req, InProgress, actor, "  on the way ", now); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := Apply(req, Done, actor, "", now.Add(time.Hour)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	if req.Status != Done {
		t.Errorf("status: got %s, want done", req.Status)
	}
	if len(req.History) != 3 {
		t.Fatalf("history length: got %d, want 3", len(req.History))
	}
	if req.History[0].Status != Pending {
		t.Error("earlier history entries must be preserved")
	}
	h := req.History[1]
	if h.Status != InProgress || h.ActorName != "Admin" || h.Note != "on the way" || !h.At.Equal(now) {
		t.Errorf("unexpected history entry: %+v", h)
	}
	if h.ActorID == nil || *h.ActorID != uid {
		t.Error("expected actor id recorded")
	}
}

func TestApply_RejectsInvalidWithoutMutation(t *testing.T) {
	req := newRequest()
	before := len(req.History)

	err := Apply(req, Done, SystemActor, "", time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if req.Status != Pending {
		t.Errorf("status changed to %s on rejected transition", req.Status)
	}
	if len(req.History) != before {
		t.Error("history appended on rejected transition")
	}

	if err := Apply(req, Pending, SystemActor, "", time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("self-transition: expected ErrInvalidTransition, got %v", err)
	}
}

func TestApply_CancelClearsDonor(t *testing.T) {
	req := newRequest()
	donor := models.PersonRef{ID: primitive.NewObjectID(), Name: "Donor"}
	if err := Assign(req, donor, Actor{Name: "Donor"}, time.Now()); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if req.Donor == nil {
		t.Fatal("expected donor after Assign")
	}

	if err := Apply(req, Canceled, SystemActor, "", time.Now()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if req.Donor != nil {
		t.Error("donor must be cleared when canceled")
	}
	if DonorAllowed(req.Status) {
		t.Error("canceled requests must not allow a donor")
	}
}

func TestAssign(t *testing.T) {
	req := newRequest()
	donor := models.PersonRef{ID: primitive.NewObjectID(), Name: "Rahim", Email: "rahim@example.com"}

	if err := Assign(req, models.PersonRef{}, SystemActor, time.Now()); !errors.Is(err, ErrDonorRequired) {
		t.Errorf("expected ErrDonorRequired, got %v", err)
	}

	if err := Assign(req, donor, Actor{ID: &donor.ID, Name: donor.Name}, time.Now()); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if req.Status != InProgress {
		t.Errorf("status: got %s, want inprogress", req.Status)
	}
	if req.Donor == nil || req.Donor.ID != donor.ID {
		t.Error("donor not recorded")
	}
	if last := req.History[len(req.History)-1]; last.Status != InProgress {
		t.Errorf("last history status: got %s", last.Status)
	}

	// A second assignment would be inprogress -> inprogress.
	other := models.PersonRef{ID: primitive.NewObjectID(), Name: "Karim"}
	if err := Assign(req, other, SystemActor, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	if req.Donor.ID != donor.ID {
		t.Error("donor replaced by rejected assignment")
	}
}

func TestDonorAllowed(t *testing.T) {
	want := map[Status]bool{Pending: false, InProgress: true, Done: true, Canceled: false}
	for s, w := range want {
		if DonorAllowed(s) != w {
			t.Errorf("DonorAllowed(%s) = %v, want %v", s, !w, w)
		}
	}
}
