package models

import "time"

// Item is a found object cataloged by an organization's admins.
// LocationID must resolve within the same organization at creation time;
// a later location delete may leave it dangling (reads degrade, not crash).
type Item struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    string    `json:"description,omitempty" db:"description"`
	LocationID     string    `json:"location_id" db:"location_id"`
	ImageURL       string    `json:"image_url,omitempty" db:"image_url"`
	VerifyQuestion string    `json:"verify_question,omitempty" db:"verify_question"`
	VerifyAnswer   string    `json:"-" db:"verify_answer"` // only admins see the expected answer
	FoundAt        time.Time `json:"found_at" db:"found_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SearchResult is one fuzzy-search hit with the location name resolved for display
type SearchResult struct {
	Item             Item   `json:"item"`
	OrganizationName string `json:"organization_name"`
	LocationName     string `json:"location_name"`
}
