// internal/domain/models/donationrequest.go
package models

import (
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the lifecycle state of a donation request.
// Legal transitions live in package requeststatus.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "inprogress"
	RequestDone       RequestStatus = "done"
	RequestCanceled   RequestStatus = "canceled"
)

// PersonRef is a denormalized pointer to a user, kept on the request so
// lists render without a join.
type PersonRef struct {
	ID    primitive.ObjectID `bson:"id" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Email string             `bson:"email" json:"email"`
}

// StatusChange is one entry in a request's append-only history.
// ActorID is nil for changes made by the system (e.g. expiry).
type StatusChange struct {
	Status    RequestStatus       `bson:"status" json:"status"`
	ActorID   *primitive.ObjectID `bson:"actor_id,omitempty" json:"actor_id,omitempty"`
	ActorName string              `bson:"actor_name" json:"actor_name"`
	Note      string              `bson:"note,omitempty" json:"note,omitempty"`
	At        time.Time           `bson:"at" json:"at"`
}

// DonationRequest asks for a donor of a given blood group at a hospital.
//
// Donor is set only while Status is inprogress or done.
type DonationRequest struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	Requester PersonRef `bson:"requester" json:"requester"`

	RecipientName   string           `bson:"recipient_name" json:"recipient_name"`
	RecipientNameCI string           `bson:"recipient_name_ci" json:"-"`
	District        string           `bson:"district" json:"district"`
	DistrictCI      string           `bson:"district_ci" json:"-"`
	Upazila         string           `bson:"upazila" json:"upazila"`
	UpazilaCI       string           `bson:"upazila_ci" json:"-"`
	Hospital        string           `bson:"hospital" json:"hospital"`
	Address         string           `bson:"address" json:"address"`
	BloodGroup      bloodgroup.Group `bson:"blood_group" json:"blood_group"`
	DonationAt      time.Time        `bson:"donation_at" json:"donation_at"`
	Message         string           `bson:"message,omitempty" json:"message,omitempty"`

	Status  RequestStatus  `bson:"status" json:"status"`
	Donor   *PersonRef     `bson:"donor,omitempty" json:"donor,omitempty"`
	History []StatusChange `bson:"history,omitempty" json:"history,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
