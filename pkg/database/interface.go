package database

import (
	"errors"

	"reunitems-backend/pkg/models"
)

// ErrNotFound is returned when a referenced document does not exist.
// Callers must treat it as a result, not a failure: dangling references
// (e.g. an item pointing at a deleted location) are expected and handled
// by degrading to a placeholder, never by crashing.
var ErrNotFound = errors.New("not found")

// DatabaseInterface is the document-store adapter: typed accessors over
// collections keyed by opaque string ids. Creation timestamps are assigned
// by the implementation; caller-supplied values are ignored.
//
// Update*Partial methods perform a field-level merge: keys absent from the
// patch are left untouched. Concurrent non-overlapping patches both survive;
// overlapping patches are last-write-wins. Allowed keys are listed per method.
type DatabaseInterface interface {
	// Users (keyed by the identity provider's user id)
	UpsertUser(user *models.User) error
	GetUserByID(id string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)

	// Site-owner allow-list: presence of the user id grants owner privilege,
	// document content is irrelevant.
	IsAppAdmin(userID string) (bool, error)

	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganization(orgID string) (*models.Organization, error)
	ListOrganizations() ([]models.Organization, error)
	ListOrganizationsByStatus(status models.ApprovalStatus) ([]models.Organization, error)
	// Allowed keys: "name", "address", "latitude", "longitude", "approval_status".
	UpdateOrganizationPartial(orgID string, patch map[string]interface{}) error

	// Members: one document per (organization, user) pair, keyed by user id.
	// PutMember overwrites any existing document for the pair.
	PutMember(member *models.Member) error
	GetMember(orgID, userID string) (*models.Member, error)
	ListMembers(orgID string) ([]models.Member, error)
	// Allowed keys: "role", "application_status".
	UpdateMemberPartial(orgID, userID string, patch map[string]interface{}) error

	// Locations (organization-scoped)
	CreateLocation(loc *models.Location) error
	GetLocation(orgID, locID string) (*models.Location, error)
	ListLocations(orgID string) ([]models.Location, error)
	// Allowed keys: "name", "description", "latitude", "longitude".
	UpdateLocationPartial(orgID, locID string, patch map[string]interface{}) error
	// DeleteLocation is unconditional: items referencing the location keep
	// their reference and resolve it to ErrNotFound on next read.
	DeleteLocation(orgID, locID string) error

	// Items (organization-scoped)
	CreateItem(item *models.Item) error
	GetItem(orgID, itemID string) (*models.Item, error)
	ListItems(orgID string) ([]models.Item, error)
	// Allowed keys: "name", "description", "location_id", "image_url",
	// "verify_question", "verify_answer".
	UpdateItemPartial(orgID, itemID string, patch map[string]interface{}) error
	DeleteItem(orgID, itemID string) error

	// Claims (top-level, addressed globally; carry org + item ids explicitly)
	CreateClaim(claim *models.Claim) error
	GetClaim(claimID string) (*models.Claim, error)
	ListClaimsByItem(orgID, itemID string) ([]models.Claim, error)
	ListClaimsByUser(userID string) ([]models.Claim, error)
	// Allowed keys: "evidence", "answer".
	UpdateClaimPartial(claimID string, patch map[string]interface{}) error

	// Requests (organization-scoped missing-item reports)
	CreateRequest(req *models.Request) error
	ListRequests(orgID string) ([]models.Request, error)

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects the backing implementation
type DatabaseConfig struct {
	UseLocalDB   bool
	LocalDataDir string
	PostgresDSN  string
	Debug        bool
}

// NewDatabase picks an implementation from the config: PostgreSQL when a DSN
// is configured, the local JSON-file store otherwise (development only).
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" && !config.UseLocalDB {
		return NewPostgresDatabase(config.PostgresDSN)
	}
	return NewLocalDatabase(config.LocalDataDir)
}
