package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/utils"
)

// LocationHandler serves the pickup-location catalog of an organization
type LocationHandler struct {
	db         database.DatabaseInterface
	membership *membership.Service
}

func NewLocationHandler(db database.DatabaseInterface, ms *membership.Service) *LocationHandler {
	return &LocationHandler{db: db, membership: ms}
}

// LocationRequest is the payload for creating or updating a location
type LocationRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// Create adds a location (admins only)
func (h *LocationHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	var req LocationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		utils.WriteValidationErrorResponse(w, "Location name is required", "name")
		return
	}

	loc := &models.Location{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(*req.Name),
	}
	if req.Description != nil {
		loc.Description = *req.Description
	}
	if req.Latitude != nil {
		loc.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		loc.Longitude = *req.Longitude
	}

	if err := h.db.CreateLocation(loc); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to create location")
		return
	}
	utils.WriteCreatedResponse(w, loc)
}

// List returns the organization's locations (approved members)
func (h *LocationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgMember(w, r, h.membership, orgID) == nil {
		return
	}

	locs, err := h.db.ListLocations(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list locations")
		return
	}
	utils.WriteSuccessResponse(w, locs)
}

// Get returns one location (approved members)
func (h *LocationHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgMember(w, r, h.membership, orgID) == nil {
		return
	}

	loc, err := h.db.GetLocation(orgID, chi.URLParam(r, "locationID"))
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Location not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load location")
		return
	}
	utils.WriteSuccessResponse(w, loc)
}

// Update patches the provided fields only (admins only)
func (h *LocationHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	var req LocationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	patch := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.WriteValidationErrorResponse(w, "Location name cannot be empty", "name")
			return
		}
		patch["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.Latitude != nil {
		patch["latitude"] = *req.Latitude
	}
	if req.Longitude != nil {
		patch["longitude"] = *req.Longitude
	}
	if len(patch) == 0 {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}

	locID := chi.URLParam(r, "locationID")
	if err := h.db.UpdateLocationPartial(orgID, locID, patch); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Location not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update location")
		return
	}

	loc, err := h.db.GetLocation(orgID, locID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load updated location")
		return
	}
	utils.WriteSuccessResponse(w, loc)
}

// Delete removes a location unconditionally. Items referencing it keep a
// dangling reference that reads degrade to a placeholder name.
func (h *LocationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	if err := h.db.DeleteLocation(orgID, chi.URLParam(r, "locationID")); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Location not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to delete location")
		return
	}
	utils.WriteSuccessResponse(w, map[string]string{"message": "Location deleted"})
}
