// Package membership implements the organization/member approval state
// machine: organizations apply and are approved or denied by the site owner,
// users apply to approved organizations and are approved or denied by that
// organization's admins.
package membership

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/models"
)

var (
	// ErrNameRequired rejects organization applications with a blank name.
	ErrNameRequired = errors.New("organization name is required")
	// ErrInvalidRole rejects membership applications for roles that cannot
	// be requested; superadmin belongs to founders only.
	ErrInvalidRole = errors.New("requested role must be admin or regular")
	// ErrAlreadyReviewed rejects transitions out of a reviewed state:
	// a denied organization stays denied, an approved one stays approved.
	ErrAlreadyReviewed = errors.New("organization application already reviewed")
)

// PartialError reports a multi-write operation that stopped partway: the
// completed steps are not rolled back, so callers must surface the partial
// state instead of pretending the whole operation failed.
type PartialError struct {
	Completed string
	Failed    string
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%s succeeded but %s failed: %v", e.Completed, e.Failed, e.Err)
}

func (e *PartialError) Unwrap() error {
	return e.Err
}

// Service drives all membership transitions over the document store
type Service struct {
	db database.DatabaseInterface
}

func NewService(db database.DatabaseInterface) *Service {
	return &Service{db: db}
}

// RegisterOrganization files an application for a new organization and
// records the founder as its pending superadmin. Both documents start
// pending; nothing is visible publicly until the site owner approves.
// The two writes are not atomic: if the member write fails the organization
// application still exists, reported via PartialError.
func (s *Service) RegisterOrganization(founderID, name, address string, lat, lng *float64) (*models.Organization, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}

	org := &models.Organization{
		Name:           strings.TrimSpace(name),
		Address:        address,
		Latitude:       lat,
		Longitude:      lng,
		ApprovalStatus: models.StatusPending,
	}
	if err := s.db.CreateOrganization(org); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	founder := &models.Member{
		OrganizationID:    org.ID,
		UserID:            founderID,
		Role:              models.RoleSuperadmin,
		ApplicationStatus: models.StatusPending,
	}
	if err := s.db.PutMember(founder); err != nil {
		return org, &PartialError{
			Completed: "organization application",
			Failed:    "founding member record",
			Err:       err,
		}
	}

	log.Info().Str("org_id", org.ID).Str("founder_id", founderID).Msg("organization application filed")
	return org, nil
}

// ApproveOrganization flips a pending organization to approved, then
// promotes the founding superadmin member to approved. The second write
// failing leaves the organization approved with its founder still pending
// (PartialError). Denial is terminal: a denied organization cannot be
// approved afterwards. Re-approving is a no-op.
func (s *Service) ApproveOrganization(orgID string) error {
	org, err := s.db.GetOrganization(orgID)
	if err != nil {
		return err
	}
	if org.ApprovalStatus == models.StatusApproved {
		return nil
	}
	if org.ApprovalStatus == models.StatusDenied {
		return ErrAlreadyReviewed
	}

	patch := map[string]interface{}{"approval_status": string(models.StatusApproved)}
	if err := s.db.UpdateOrganizationPartial(orgID, patch); err != nil {
		return fmt.Errorf("failed to approve organization: %w", err)
	}

	founder, err := s.findFounder(orgID)
	if err != nil {
		return &PartialError{
			Completed: "organization approval",
			Failed:    "founding member lookup",
			Err:       err,
		}
	}

	memberPatch := map[string]interface{}{"application_status": string(models.StatusApproved)}
	if err := s.db.UpdateMemberPartial(orgID, founder.UserID, memberPatch); err != nil {
		return &PartialError{
			Completed: "organization approval",
			Failed:    "founding member approval",
			Err:       err,
		}
	}

	log.Info().Str("org_id", orgID).Msg("organization approved")
	return nil
}

// DenyOrganization marks a pending application denied, which is terminal:
// the founding member record stays pending forever and the organization can
// never be approved. An already-approved organization cannot be denied.
// Re-denying is a no-op.
func (s *Service) DenyOrganization(orgID string) error {
	org, err := s.db.GetOrganization(orgID)
	if err != nil {
		return err
	}
	if org.ApprovalStatus == models.StatusDenied {
		return nil
	}
	if org.ApprovalStatus == models.StatusApproved {
		return ErrAlreadyReviewed
	}
	patch := map[string]interface{}{"approval_status": string(models.StatusDenied)}
	if err := s.db.UpdateOrganizationPartial(orgID, patch); err != nil {
		return fmt.Errorf("failed to deny organization: %w", err)
	}
	log.Info().Str("org_id", orgID).Msg("organization denied")
	return nil
}

// findFounder locates the superadmin member record for an organization
func (s *Service) findFounder(orgID string) (*models.Member, error) {
	members, err := s.db.ListMembers(orgID)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].Role == models.RoleSuperadmin {
			return &members[i], nil
		}
	}
	return nil, database.ErrNotFound
}

// ApplyToOrganization files (or re-files) a membership application for the
// requested role, admin or regular. The organization must be approved. The
// member document is keyed by user id, so a re-application after a denial
// overwrites the denied record back to pending with the newly requested
// role.
func (s *Service) ApplyToOrganization(orgID, userID string, role models.MemberRole) (*models.Member, error) {
	if role != models.RoleAdmin && role != models.RoleRegular {
		return nil, ErrInvalidRole
	}

	org, err := s.db.GetOrganization(orgID)
	if err != nil {
		return nil, err
	}
	if org.ApprovalStatus != models.StatusApproved {
		return nil, fmt.Errorf("organization is not accepting members")
	}

	if existing, err := s.db.GetMember(orgID, userID); err == nil {
		// Approved and pending applications are idempotent; only a denied
		// record is reset.
		if existing.ApplicationStatus != models.StatusDenied {
			return existing, nil
		}
	}

	member := &models.Member{
		OrganizationID:    orgID,
		UserID:            userID,
		Role:              role,
		ApplicationStatus: models.StatusPending,
	}
	if err := s.db.PutMember(member); err != nil {
		return nil, fmt.Errorf("failed to file membership application: %w", err)
	}
	return member, nil
}

// ApproveMember approves a pending membership application
func (s *Service) ApproveMember(orgID, userID string) error {
	return s.setMemberStatus(orgID, userID, models.StatusApproved)
}

// DenyMember denies a membership application. The record is kept so the
// user can re-apply later.
func (s *Service) DenyMember(orgID, userID string) error {
	return s.setMemberStatus(orgID, userID, models.StatusDenied)
}

func (s *Service) setMemberStatus(orgID, userID string, status models.ApprovalStatus) error {
	if _, err := s.db.GetMember(orgID, userID); err != nil {
		return err
	}
	patch := map[string]interface{}{"application_status": string(status)}
	return s.db.UpdateMemberPartial(orgID, userID, patch)
}

// UserOrganizations returns every organization the user has a membership
// record in, approved or not, paired with that record. The store has no
// reverse index, so this scans all organizations and probes each for the
// user's member document.
func (s *Service) UserOrganizations(userID string) ([]models.UserMembership, error) {
	orgs, err := s.db.ListOrganizations()
	if err != nil {
		return nil, err
	}

	var memberships []models.UserMembership
	for i := range orgs {
		member, err := s.db.GetMember(orgs[i].ID, userID)
		if err == database.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, models.UserMembership{
			Organization: orgs[i],
			Member:       *member,
		})
	}
	return memberships, nil
}

// ApprovedOrganizations returns the organizations the user is an approved
// member of. Used to scope item search.
func (s *Service) ApprovedOrganizations(userID string) ([]models.UserMembership, error) {
	all, err := s.UserOrganizations(userID)
	if err != nil {
		return nil, err
	}
	var approved []models.UserMembership
	for _, m := range all {
		if m.Member.ApplicationStatus == models.StatusApproved &&
			m.Organization.ApprovalStatus == models.StatusApproved {
			approved = append(approved, m)
		}
	}
	return approved, nil
}

// CanAdminister reports whether the user is an approved admin or superadmin
// of the organization. It is recomputed from the store on every call; there
// is no cached or session-scoped privilege.
func (s *Service) CanAdminister(orgID, userID string) (bool, error) {
	member, err := s.db.GetMember(orgID, userID)
	if err == database.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.ApplicationStatus == models.StatusApproved && member.Role.CanAdminister(), nil
}

// IsApprovedMember reports whether the user is an approved member (any role)
func (s *Service) IsApprovedMember(orgID, userID string) (bool, error) {
	member, err := s.db.GetMember(orgID, userID)
	if err == database.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.ApplicationStatus == models.StatusApproved, nil
}

// IsSiteOwner reports whether the user is on the site-owner allow-list
func (s *Service) IsSiteOwner(userID string) (bool, error) {
	return s.db.IsAppAdmin(userID)
}
