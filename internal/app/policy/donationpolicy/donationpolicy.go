// Package donationpolicy is the permission matrix for donation requests,
// user administration, and data export.
//
// Every predicate is a pure function of an Actor and, where the action is
// scoped to a request, the request's owner and status. Nothing here touches
// the database or the HTTP request; handlers build the inputs (see
// authz.Actor) and translate a false result into a 403.
//
// Authorization rules:
//   - An account that is not active (blocked, pending, inactive) can do nothing
//   - Admins can edit, delete, and change the status of any request
//   - Volunteers can change the status of any request but not edit its content
//   - Donors can edit their own pending requests, delete their own pending or
//     canceled requests, and close out their own in-progress requests
//   - Only active donors can donate, never to their own request, and only
//     while the request is pending
package donationpolicy

import (
	"errors"

	"github.com/dalemusser/bloodhub/internal/domain/models"
	"github.com/dalemusser/bloodhub/internal/domain/requeststatus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrPermissionDenied is what handlers return when a predicate is false.
var ErrPermissionDenied = errors.New("permission denied")

// Actor is the user attempting an action.
type Actor struct {
	ID     primitive.ObjectID
	Role   models.Role
	Status models.AccountStatus
}

// Request is the subset of a donation request the matrix needs.
type Request struct {
	RequesterID primitive.ObjectID
	Status      models.RequestStatus
}

// RequestOf extracts the policy view of a stored request.
func RequestOf(r models.DonationRequest) Request {
	return Request{RequesterID: r.Requester.ID, Status: r.Status}
}

func (a Actor) owns(req Request) bool {
	return !a.ID.IsZero() && a.ID == req.RequesterID
}

// CanUserPerformActions gates every other predicate: the account must be
// active and hold a known role.
func CanUserPerformActions(a Actor) bool {
	return a.Status == models.StatusActive && a.Role.Valid()
}

// CanCreateRequest reports whether a may open a new donation request.
func CanCreateRequest(a Actor) bool {
	return CanUserPerformActions(a)
}

// CanEditRequest reports whether a may change the content of req.
func CanEditRequest(a Actor, req Request) bool {
	if !CanUserPerformActions(a) {
		return false
	}
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDonor:
		return a.owns(req) && req.Status == models.RequestPending
	default:
		return false
	}
}

// CanDeleteRequest reports whether a may delete req.
func CanDeleteRequest(a Actor, req Request) bool {
	if !CanUserPerformActions(a) {
		return false
	}
	switch a.Role {
	case models.RoleAdmin:
		return true
	case models.RoleDonor:
		return a.owns(req) && (req.Status == models.RequestPending || req.Status == models.RequestCanceled)
	default:
		return false
	}
}

// CanUpdateStatus reports whether a may change the status of req at all.
// Which targets are offered is decided by AllowedStatusTargets.
func CanUpdateStatus(a Actor, req Request) bool {
	if !CanUserPerformActions(a) {
		return false
	}
	switch a.Role {
	case models.RoleAdmin, models.RoleVolunteer:
		return true
	case models.RoleDonor:
		return a.owns(req) && req.Status == models.RequestInProgress
	default:
		return false
	}
}

// AllowedStatusTargets returns the statuses a may move req to. Admins and
// volunteers get the full state machine. A donor only closes out their own
// in-progress request (done or canceled); they never move it out of pending.
func AllowedStatusTargets(a Actor, req Request) []models.RequestStatus {
	if !CanUpdateStatus(a, req) {
		return nil
	}
	if a.Role == models.RoleDonor {
		return []models.RequestStatus{models.RequestDone, models.RequestCanceled}
	}
	return requeststatus.Next(req.Status)
}

// CanChangeStatusTo combines CanUpdateStatus, the role's target set, and the
// state machine.
func CanChangeStatusTo(a Actor, req Request, next models.RequestStatus) bool {
	for _, s := range AllowedStatusTargets(a, req) {
		if s == next {
			return requeststatus.CanChange(req.Status, next)
		}
	}
	return false
}

// CanDonateToRequest reports whether a may volunteer as donor for req.
func CanDonateToRequest(a Actor, req Request) bool {
	return CanUserPerformActions(a) &&
		a.Role == models.RoleDonor &&
		!a.owns(req) &&
		req.Status == models.RequestPending
}

// CanViewRequest reports whether a may see the full details (contact info
// and history) of req. The public list exposes pending requests without it.
func CanViewRequest(a Actor, req Request) bool {
	if !CanUserPerformActions(a) {
		return false
	}
	switch a.Role {
	case models.RoleAdmin, models.RoleVolunteer:
		return true
	default:
		return a.owns(req) || req.Status == models.RequestPending || req.Status == models.RequestInProgress
	}
}

// CanListAllRequests reports whether a may page through every request
// regardless of owner.
func CanListAllRequests(a Actor) bool {
	return CanUserPerformActions(a) && (a.Role == models.RoleAdmin || a.Role == models.RoleVolunteer)
}

// CanAdminister covers user administration, analytics, settings, audit, and
// funding management.
func CanAdminister(a Actor) bool {
	return CanUserPerformActions(a) && a.Role == models.RoleAdmin
}

// CanViewStats reports whether a sees the organization-wide dashboard.
func CanViewStats(a Actor) bool {
	return CanListAllRequests(a)
}
