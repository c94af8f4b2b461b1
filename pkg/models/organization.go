package models

import "time"

// ApprovalStatus tracks the review state of an organization or membership application
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusDenied   ApprovalStatus = "denied"
)

// Valid reports whether s is one of the known approval states
func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDenied:
		return true
	}
	return false
}

type MemberRole string

const (
	// RoleSuperadmin is held only by the organization's original registrant
	RoleSuperadmin MemberRole = "superadmin"
	RoleAdmin      MemberRole = "admin"
	RoleRegular    MemberRole = "regular"
)

// CanAdminister reports whether the role alone would permit admin actions.
// Callers must also check the member's ApplicationStatus.
func (r MemberRole) CanAdminister() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Organization is a school/campus tenant, the unit of data isolation
type Organization struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Address        string         `json:"address,omitempty" db:"address"`
	Latitude       *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude      *float64       `json:"longitude,omitempty" db:"longitude"`
	ApprovalStatus ApprovalStatus `json:"approval_status" db:"approval_status"`
	AppliedAt      time.Time      `json:"applied_at" db:"applied_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// Member is a user's role + approval record within one organization.
// The store keys it by UserID, so there is exactly one per (org, user) pair.
type Member struct {
	OrganizationID    string         `json:"organization_id" db:"organization_id"`
	UserID            string         `json:"user_id" db:"user_id"`
	Role              MemberRole     `json:"role" db:"role"`
	ApplicationStatus ApprovalStatus `json:"application_status" db:"application_status"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// UserMembership pairs an organization with the caller's member record in it
type UserMembership struct {
	Organization Organization `json:"organization"`
	Member       Member       `json:"member"`
}
