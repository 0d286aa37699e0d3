// Package requeststatus is the state machine for a donation request's status.
//
//	pending ──► inprogress ──► done
//	   │             │
//	   └──► canceled ◄┘
//
// pending is the only initial state. done and canceled are terminal.
// Every accepted change appends one entry to the request's history; entries
// are never edited or removed.
package requeststatus

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is an alias so callers can stay inside this package's vocabulary.
type Status = models.RequestStatus

const (
	Pending    = models.RequestPending
	InProgress = models.RequestInProgress
	Done       = models.RequestDone
	Canceled   = models.RequestCanceled
)

// All lists every status in lifecycle order.
var All = []Status{Pending, InProgress, Done, Canceled}

var (
	// ErrInvalidTransition is returned when next is not reachable from current.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnknownStatus is returned by Parse for unrecognized labels.
	ErrUnknownStatus = errors.New("unknown request status")
	// ErrDonorRequired is returned by Assign when the donor reference is empty.
	ErrDonorRequired = errors.New("donor is required")
)

// transitions is the exhaustive table. Terminal states have no entry.
var transitions = map[Status][]Status{
	Pending:    {InProgress, Canceled},
	InProgress: {Done, Canceled},
}

// Parse normalizes a status label. "in-progress" and "in progress" are
// accepted for inprogress; "cancelled" for canceled.
func Parse(s string) (Status, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.NewReplacer("-", "", " ", "", "_", "").Replace(v)
	if v == "cancelled" {
		v = string(Canceled)
	}
	st := Status(v)
	if !slices.Contains(All, st) {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Valid reports whether s is one of the four statuses.
func Valid(s Status) bool {
	return slices.Contains(All, s)
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	return Valid(s) && len(transitions[s]) == 0
}

// CanChange reports whether current may move to next. Self-transitions are
// never allowed.
func CanChange(current, next Status) bool {
	return slices.Contains(transitions[current], next)
}

// Next returns the statuses reachable from current, in table order.
func Next(current Status) []Status {
	return slices.Clone(transitions[current])
}

// Validate returns ErrInvalidTransition when current cannot move to next.
func Validate(current, next Status) error {
	if !CanChange(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	return nil
}

// Actor identifies who made a change. A nil ID means the system.
type Actor struct {
	ID   *primitive.ObjectID
	Name string
}

// SystemActor is recorded for automated changes.
var SystemActor = Actor{Name: "system"}

// Entry builds the history record for a change.
func Entry(next Status, actor Actor, note string, now time.Time) models.StatusChange {
	return models.StatusChange{
		Status:    next,
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Note:      strings.TrimSpace(note),
		At:        now.UTC(),
	}
}

// Apply moves req to next and appends a history entry. On error req is left
// untouched. Canceling drops any assigned donor.
func Apply(req *models.DonationRequest, next Status, actor Actor, note string, now time.Time) error {
	if err := Validate(req.Status, next); err != nil {
		return err
	}
	req.Status = next
	if next == Canceled {
		req.Donor = nil
	}
	req.History = append(req.History, Entry(next, actor, note, now))
	req.UpdatedAt = now.UTC()
	return nil
}

// Assign records donor on a pending request and moves it to inprogress.
// Blood-group compatibility and donor availability must be checked by the
// caller beforehand.
func Assign(req *models.DonationRequest, donor models.PersonRef, actor Actor, now time.Time) error {
	if donor.ID.IsZero() {
		return ErrDonorRequired
	}
	if err := Validate(req.Status, InProgress); err != nil {
		return err
	}
	d := donor
	req.Donor = &d
	req.Status = InProgress
	req.History = append(req.History, Entry(InProgress, actor, "donor assigned: "+donor.Name, now))
	req.UpdatedAt = now.UTC()
	return nil
}

// DonorAllowed reports whether a request in status s may carry a donor.
func DonorAllowed(s Status) bool {
	return s == InProgress || s == Done
}
