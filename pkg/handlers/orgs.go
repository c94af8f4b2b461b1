package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/utils"
)

// OrgHandler serves organization registration, review and membership
type OrgHandler struct {
	db         database.DatabaseInterface
	membership *membership.Service
}

func NewOrgHandler(db database.DatabaseInterface, ms *membership.Service) *OrgHandler {
	return &OrgHandler{db: db, membership: ms}
}

// OrgRegisterRequest is the payload for registering a new organization
type OrgRegisterRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Register files a new organization application with the caller as founder
func (h *OrgHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req OrgRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	org, err := h.membership.RegisterOrganization(user.ID, req.Name, req.Address, req.Latitude, req.Longitude)
	var partial *membership.PartialError
	if errors.As(err, &partial) {
		utils.WriteMultiStatusResponse(w, org, partial.Error())
		return
	}
	if errors.Is(err, membership.ErrNameRequired) {
		utils.WriteValidationErrorResponse(w, err.Error(), "name")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to register organization")
		return
	}

	utils.WriteCreatedResponse(w, org)
}

// ListApproved returns approved organizations; the public discovery list
func (h *OrgHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.db.ListOrganizationsByStatus(models.StatusApproved)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list organizations")
		return
	}
	utils.WriteSuccessResponse(w, orgs)
}

// Get returns one organization. Unapproved organizations are visible only to
// the site owner and their own (pending) founder.
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	org, err := h.db.GetOrganization(orgID)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	if org.ApprovalStatus != models.StatusApproved {
		user, ok := middleware.GetUserFromContext(r.Context())
		if !ok || !h.canSeeUnapproved(org.ID, user.ID) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
	}

	utils.WriteSuccessResponse(w, org)
}

func (h *OrgHandler) canSeeUnapproved(orgID, userID string) bool {
	if isOwner, err := h.membership.IsSiteOwner(userID); err == nil && isOwner {
		return true
	}
	_, err := h.db.GetMember(orgID, userID)
	return err == nil
}

// Mine returns the caller's memberships across all organizations
func (h *OrgHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	memberships, err := h.membership.UserOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load memberships")
		return
	}
	utils.WriteSuccessResponse(w, memberships)
}

// ListPending returns organizations awaiting review (site owner only)
func (h *OrgHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	if !h.requireSiteOwner(w, r) {
		return
	}

	orgs, err := h.db.ListOrganizationsByStatus(models.StatusPending)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list pending organizations")
		return
	}
	utils.WriteSuccessResponse(w, orgs)
}

// Approve approves a pending organization (site owner only)
func (h *OrgHandler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.requireSiteOwner(w, r) {
		return
	}

	orgID := chi.URLParam(r, "orgID")
	err := h.membership.ApproveOrganization(orgID)
	var partial *membership.PartialError
	if errors.As(err, &partial) {
		log.Warn().Err(partial).Str("org_id", orgID).Msg("organization approval partially applied")
		utils.WriteMultiStatusResponse(w, map[string]string{"organization_id": orgID}, partial.Error())
		return
	}
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if errors.Is(err, membership.ErrAlreadyReviewed) {
		utils.WriteConflictResponse(w, err.Error())
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to approve organization")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"organization_id": orgID, "approval_status": string(models.StatusApproved)})
}

// Deny denies a pending organization (site owner only)
func (h *OrgHandler) Deny(w http.ResponseWriter, r *http.Request) {
	if !h.requireSiteOwner(w, r) {
		return
	}

	orgID := chi.URLParam(r, "orgID")
	err := h.membership.DenyOrganization(orgID)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if errors.Is(err, membership.ErrAlreadyReviewed) {
		utils.WriteConflictResponse(w, err.Error())
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to deny organization")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"organization_id": orgID, "approval_status": string(models.StatusDenied)})
}

func (h *OrgHandler) requireSiteOwner(w http.ResponseWriter, r *http.Request) bool {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return false
	}
	isOwner, err := h.membership.IsSiteOwner(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check privileges")
		return false
	}
	if !isOwner {
		utils.WriteForbiddenResponse(w, "Site owner privileges required")
		return false
	}
	return true
}

// ApplyRequest is the payload for a membership application. Role defaults
// to regular when the body is omitted; superadmin cannot be requested.
type ApplyRequest struct {
	Role models.MemberRole `json:"role"`
}

// Apply files a membership application to an approved organization
func (h *OrgHandler) Apply(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req ApplyRequest
	if err := utils.ParseJSONBody(r, &req); err != nil && err != io.EOF {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleRegular
	}

	orgID := chi.URLParam(r, "orgID")
	member, err := h.membership.ApplyToOrganization(orgID, user.ID, req.Role)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Organization not found")
		return
	}
	if errors.Is(err, membership.ErrInvalidRole) {
		utils.WriteValidationErrorResponse(w, err.Error(), "role")
		return
	}
	if err != nil {
		utils.WriteConflictResponse(w, err.Error())
		return
	}

	utils.WriteCreatedResponse(w, member)
}

// ListMembers returns all member records for an organization (admins only)
func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	members, err := h.db.ListMembers(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list members")
		return
	}
	utils.WriteSuccessResponse(w, members)
}

// ApproveMember approves a pending membership application (admins only)
func (h *OrgHandler) ApproveMember(w http.ResponseWriter, r *http.Request) {
	h.reviewMember(w, r, models.StatusApproved)
}

// DenyMember denies a membership application (admins only)
func (h *OrgHandler) DenyMember(w http.ResponseWriter, r *http.Request) {
	h.reviewMember(w, r, models.StatusDenied)
}

func (h *OrgHandler) reviewMember(w http.ResponseWriter, r *http.Request, status models.ApprovalStatus) {
	orgID := chi.URLParam(r, "orgID")
	userID := chi.URLParam(r, "userID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	var err error
	if status == models.StatusApproved {
		err = h.membership.ApproveMember(orgID, userID)
	} else {
		err = h.membership.DenyMember(orgID, userID)
	}
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Membership application not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update membership")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{
		"organization_id":    orgID,
		"user_id":            userID,
		"application_status": string(status),
	})
}
