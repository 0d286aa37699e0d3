// internal/app/features/donationrequests/types.go
package donationrequests

import (
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"github.com/dalemusser/bloodhub/internal/domain/models"
)

// requestInput is the body of create and update.
type requestInput struct {
	RecipientName string    `json:"recipient_name" validate:"required,max=100" label:"Recipient name"`
	District      string    `json:"district" validate:"required,max=100" label:"District"`
	Upazila       string    `json:"upazila" validate:"required,max=100" label:"Upazila"`
	Hospital      string    `json:"hospital" validate:"required,max=200" label:"Hospital"`
	Address       string    `json:"address" validate:"required,max=300" label:"Address"`
	BloodGroup    string    `json:"blood_group" validate:"required,bloodgroup" label:"Blood group"`
	DonationAt    time.Time `json:"donation_at" validate:"required" label:"Donation date"`
	Message       string    `json:"message" validate:"max=2000" label:"Message"`
}

type statusInput struct {
	Status string `json:"status" validate:"required" label:"Status"`
	Note   string `json:"note" validate:"max=500" label:"Note"`
}

// publicView is what visitors see in the open-request list: no contact
// details and no history.
type publicView struct {
	ID            string               `json:"id"`
	RecipientName string               `json:"recipient_name"`
	District      string               `json:"district"`
	Upazila       string               `json:"upazila"`
	Hospital      string               `json:"hospital"`
	BloodGroup    bloodgroup.Group     `json:"blood_group"`
	DonationAt    time.Time            `json:"donation_at"`
	Status        models.RequestStatus `json:"status"`
}

func toPublic(req models.DonationRequest) publicView {
	return publicView{
		ID:            req.ID.Hex(),
		RecipientName: req.RecipientName,
		District:      req.District,
		Upazila:       req.Upazila,
		Hospital:      req.Hospital,
		BloodGroup:    req.BloodGroup,
		DonationAt:    req.DonationAt,
		Status:        req.Status,
	}
}

// permissions tells the client which actions to offer.
type permissions struct {
	CanEdit     bool                   `json:"can_edit"`
	CanDelete   bool                   `json:"can_delete"`
	CanDonate   bool                   `json:"can_donate"`
	Transitions []models.RequestStatus `json:"transitions"`
}

type detailView struct {
	models.DonationRequest
	Permissions permissions `json:"permissions"`
}

type transitionsView struct {
	Status  models.RequestStatus   `json:"status"`
	Allowed []models.RequestStatus `json:"allowed"`
}
