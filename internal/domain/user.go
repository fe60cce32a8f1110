package domain

import "time"

// Role identifies what an account may do. Role legitimacy is owned by the identity layer.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleDispatcher Role = "dispatcher"
	RoleEngineer   Role = "engineer"
	RoleQA         Role = "qa"
)

// Valid reports whether r is one of the four known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleDispatcher, RoleEngineer, RoleQA:
		return true
	}
	return false
}

// ReferralStatus tracks a referred citizen's progress towards the reward.
type ReferralStatus string

const (
	ReferralStatusNone      ReferralStatus = "none"
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
)

// EngineerStatus is an engineer's availability for new work.
type EngineerStatus string

const (
	EngineerAvailable EngineerStatus = "Available"
	EngineerBusy      EngineerStatus = "Busy"
	EngineerHoliday   EngineerStatus = "Holiday"
)

// Valid reports whether s is a known availability.
func (s EngineerStatus) Valid() bool {
	switch s {
	case EngineerAvailable, EngineerBusy, EngineerHoliday:
		return true
	}
	return false
}

// Zone is the polygon an engineer covers, as an ordered ring of vertices.
type Zone []Coordinate

// User is an account of any role.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	Role           Role
	Name           string
	Username       *string
	Balance        int64
	ReportCount    int
	ReferralCode   string
	ReferredBy     *string
	ReferralStatus ReferralStatus
	NeighborCount  int
	// engineer-only
	EngineerStatus    EngineerStatus
	LastKnownLocation *Coordinate
	Zone              Zone
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ReferralPolicy parameterizes the referral reward.
type ReferralPolicy struct {
	Threshold int
	Reward    int64
}

// ReferralOutcome is what the reward transaction did.
type ReferralOutcome struct {
	ReportCount int
	PaidOut     bool
	ReferrerID  string
	Reward      int64
}
