// internal/domain/models/user.go
package models

import (
	"time"

	"github.com/dalemusser/bloodhub/internal/domain/bloodgroup"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is the user's function in the system. It is independent of
// AccountStatus; both gate permission checks.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleDonor     Role = "donor"
	RoleVolunteer Role = "volunteer"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleDonor, RoleVolunteer}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDonor, RoleVolunteer:
		return true
	}
	return false
}

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	StatusActive   AccountStatus = "active"
	StatusBlocked  AccountStatus = "blocked"
	StatusPending  AccountStatus = "pending"
	StatusInactive AccountStatus = "inactive"
)

// AccountStatuses lists every valid account status.
var AccountStatuses = []AccountStatus{StatusActive, StatusBlocked, StatusPending, StatusInactive}

// Valid reports whether s is a known account status.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusBlocked, StatusPending, StatusInactive:
		return true
	}
	return false
}

// Auth methods.
const (
	AuthMethodPassword = "password"
	AuthMethodGoogle   = "google"
)

// User is an admin, donor, or volunteer account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName     string             `bson:"full_name" json:"full_name"`
	FullNameCI   string             `bson:"full_name_ci" json:"-"` // lowercase, diacritics-stripped
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash,omitempty" json:"-"`
	AuthMethod   string             `bson:"auth_method,omitempty" json:"auth_method,omitempty"`
	Role         Role               `bson:"role" json:"role"`
	Status       AccountStatus      `bson:"status" json:"status"`

	BloodGroup bloodgroup.Group `bson:"blood_group,omitempty" json:"blood_group,omitempty"`
	District   string           `bson:"district,omitempty" json:"district,omitempty"`
	DistrictCI string           `bson:"district_ci,omitempty" json:"-"`
	Upazila    string           `bson:"upazila,omitempty" json:"upazila,omitempty"`
	UpazilaCI  string           `bson:"upazila_ci,omitempty" json:"-"`
	AvatarURL  string           `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`

	LastDonationAt *time.Time `bson:"last_donation_at,omitempty" json:"last_donation_at,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
