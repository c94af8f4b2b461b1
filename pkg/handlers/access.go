package handlers

import (
	"net/http"

	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/utils"
)

// requireOrgAdmin authenticates the caller and checks approved admin or
// superadmin membership in the organization. Privilege is re-derived from
// the store on every request; nothing is trusted from the token beyond
// identity. Writes the error response itself and returns nil on failure.
func requireOrgAdmin(w http.ResponseWriter, r *http.Request, ms *membership.Service, orgID string) *models.User {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil
	}
	ok, err := ms.CanAdminister(orgID, user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check privileges")
		return nil
	}
	if !ok {
		utils.WriteForbiddenResponse(w, "Organization admin privileges required")
		return nil
	}
	return user
}

// requireOrgMember authenticates the caller and checks approved membership
// of any role in the organization.
func requireOrgMember(w http.ResponseWriter, r *http.Request, ms *membership.Service, orgID string) *models.User {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil
	}
	ok, err := ms.IsApprovedMember(orgID, user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check privileges")
		return nil
	}
	if !ok {
		utils.WriteForbiddenResponse(w, "Organization membership required")
		return nil
	}
	return user
}
