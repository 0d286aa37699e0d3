// internal/domain/models/funding.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CurrencyBDT is the only currency accepted for fundings.
const CurrencyBDT = "BDT"

// FundingStatus mirrors the payment provider's outcome. The provider owns the
// lifecycle; we only record what it reports.
type FundingStatus string

const (
	FundingCompleted FundingStatus = "completed"
	FundingPending   FundingStatus = "pending"
	FundingFailed    FundingStatus = "failed"
)

// Valid reports whether s is a known funding status.
func (s FundingStatus) Valid() bool {
	switch s {
	case FundingCompleted, FundingPending, FundingFailed:
		return true
	}
	return false
}

// Funding is a monetary contribution to the organization.
type Funding struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TransactionID string              `bson:"transaction_id" json:"transaction_id"`
	UserID        *primitive.ObjectID `bson:"user_id,omitempty" json:"user_id,omitempty"`
	DonorName     string              `bson:"donor_name" json:"donor_name"`
	DonorEmail    string              `bson:"donor_email,omitempty" json:"donor_email,omitempty"`
	Amount        float64             `bson:"amount" json:"amount"`
	Currency      string              `bson:"currency" json:"currency"`
	PaymentMethod string              `bson:"payment_method" json:"payment_method"`
	Status        FundingStatus       `bson:"status" json:"status"`
	Anonymous     bool                `bson:"anonymous" json:"anonymous"`
	Message       string              `bson:"message,omitempty" json:"message,omitempty"`
	Date          time.Time           `bson:"date" json:"date"`
	UpdatedAt     time.Time           `bson:"updated_at" json:"updated_at"`
}

// PublicName is the name shown on public supporter lists.
func (f Funding) PublicName() string {
	if f.Anonymous || f.DonorName == "" {
		return "Anonymous"
	}
	return f.DonorName
}
