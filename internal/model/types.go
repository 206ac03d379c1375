package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the account role chosen at first verification
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
)

// ParseRole maps the optional request role to a Role. Empty means customer.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case "":
		return RoleCustomer, true
	case RoleCustomer, RoleDriver:
		return Role(s), true
	default:
		return "", false
	}
}

// OtpRecord is the single active OTP state for a phone number.
// ID changes on every issuance and is the generation key for conditional updates.
type OtpRecord struct {
	ID             uuid.UUID
	PhoneNumber    string
	Code           string
	ExpiresAt      time.Time
	Verified       bool
	VerifiedAt     *time.Time
	Attempts       int
	AccountID      *uuid.UUID
	// ResolvingUntil is the lease held by the request provisioning the account.
	ResolvingUntil *time.Time
	CreatedAt      time.Time
}

// Expired reports whether the record is past its expiry at now
func (r OtpRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Profile is the account shared by drivers and customers
type Profile struct {
	ID        uuid.UUID
	Phone     string
	FullName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Driver is the driver sub-profile, keyed by profile ID
type Driver struct {
	ID         uuid.UUID
	IsApproved bool
	IsOnline   bool
	Rating     float64
	TotalRides int
	UpdatedAt  time.Time
}

// Customer is the customer sub-profile, keyed by profile ID
type Customer struct {
	ID                     uuid.UUID
	PreferredPaymentMethod string
	Rating                 float64
	TotalRides             int
	UpdatedAt              time.Time
}

// NewAccount carries what is needed to provision a profile and its role record
type NewAccount struct {
	ID       uuid.UUID
	Phone    string
	FullName string
	Role     Role
}
