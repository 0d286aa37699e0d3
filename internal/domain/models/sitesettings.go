// internal/domain/models/sitesettings.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SiteSettings holds the admin-editable configuration. There is a single
// settings document keyed by SiteSettingsKey.
type SiteSettings struct {
	ID  primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Key string             `bson:"key" json:"-"`

	SiteName     string `bson:"site_name" json:"site_name"`
	ContactEmail string `bson:"contact_email,omitempty" json:"contact_email,omitempty"`

	// New self-registered donors start as pending until an admin activates them.
	RequireDonorApproval bool `bson:"require_donor_approval" json:"require_donor_approval"`

	// Target amount (BDT) shown on the funding page. Zero hides the goal.
	FundingGoal float64 `bson:"funding_goal,omitempty" json:"funding_goal,omitempty"`

	UpdatedAt     *time.Time          `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	UpdatedByID   *primitive.ObjectID `bson:"updated_by_id,omitempty" json:"updated_by_id,omitempty"`
	UpdatedByName string              `bson:"updated_by_name,omitempty" json:"updated_by_name,omitempty"`
}

// SiteSettingsKey identifies the settings document.
const SiteSettingsKey = "site"

// DefaultSiteName is used when no settings have been saved.
const DefaultSiteName = "BloodHub"
