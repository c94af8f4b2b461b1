package models

import "time"

// Claim is a user's assertion of ownership over a found item.
// Claims live in a top-level collection but carry the owning organization id
// alongside the item id, so no resolve-through-reference step is needed.
type Claim struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	ItemID         string    `json:"item_id" db:"item_id"`
	UserID         string    `json:"user_id" db:"user_id"`
	Evidence       string    `json:"evidence" db:"evidence"`
	Answer         string    `json:"answer,omitempty" db:"answer"` // claimant's answer to the item's verify question
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
