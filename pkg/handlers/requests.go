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

// RequestHandler serves missing-item reports
type RequestHandler struct {
	db         database.DatabaseInterface
	membership *membership.Service
}

func NewRequestHandler(db database.DatabaseInterface, ms *membership.Service) *RequestHandler {
	return &RequestHandler{db: db, membership: ms}
}

// MissingItemRequest is the payload for reporting a lost item
type MissingItemRequest struct {
	ItemName    string `json:"item_name"`
	Description string `json:"description"`
}

// Create files a missing-item report (any approved member)
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	user := requireOrgMember(w, r, h.membership, orgID)
	if user == nil {
		return
	}

	var req MissingItemRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.ItemName) == "" {
		utils.WriteValidationErrorResponse(w, "Item name is required", "item_name")
		return
	}

	record := &models.Request{
		OrganizationID: orgID,
		UserID:         user.ID,
		ItemName:       strings.TrimSpace(req.ItemName),
		Description:    req.Description,
	}
	if err := h.db.CreateRequest(record); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to file report")
		return
	}
	utils.WriteCreatedResponse(w, record)
}

// List returns the organization's missing-item reports (admins only)
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	reports, err := h.db.ListRequests(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list reports")
		return
	}
	utils.WriteSuccessResponse(w, reports)
}
