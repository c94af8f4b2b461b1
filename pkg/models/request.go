package models

import "time"

// Request is a student's report of a missing (not yet found) item.
// Write-only for students; admins review the list per organization.
type Request struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	ItemName       string    `json:"item_name" db:"item_name"`
	Description    string    `json:"description,omitempty" db:"description"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
