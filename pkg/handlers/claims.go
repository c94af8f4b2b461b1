package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/utils"
)

// ClaimHandler serves ownership claims against found items
type ClaimHandler struct {
	db         database.DatabaseInterface
	membership *membership.Service
}

func NewClaimHandler(db database.DatabaseInterface, ms *membership.Service) *ClaimHandler {
	return &ClaimHandler{db: db, membership: ms}
}

// ClaimRequest is the payload for filing or amending a claim
type ClaimRequest struct {
	Evidence *string `json:"evidence"`
	Answer   *string `json:"answer"`
}

// Create files a claim on an item. The caller must be an approved member of
// the item's organization; the claim records both the organization and item
// ids so it can be addressed without resolving references.
func (h *ClaimHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	user := requireOrgMember(w, r, h.membership, orgID)
	if user == nil {
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if _, err := h.db.GetItem(orgID, itemID); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Item not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load item")
		return
	}

	var req ClaimRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Evidence == nil || strings.TrimSpace(*req.Evidence) == "" {
		utils.WriteValidationErrorResponse(w, "Evidence is required", "evidence")
		return
	}

	claim := &models.Claim{
		OrganizationID: orgID,
		ItemID:         itemID,
		UserID:         user.ID,
		Evidence:       *req.Evidence,
	}
	if req.Answer != nil {
		claim.Answer = *req.Answer
	}

	if err := h.db.CreateClaim(claim); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to file claim")
		return
	}
	utils.WriteCreatedResponse(w, claim)
}

// ListByItem returns all claims on an item (admins reviewing them)
func (h *ClaimHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	claims, err := h.db.ListClaimsByItem(orgID, chi.URLParam(r, "itemID"))
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list claims")
		return
	}
	utils.WriteSuccessResponse(w, claims)
}

// Mine returns the caller's claims across all organizations
func (h *ClaimHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	claims, err := h.db.ListClaimsByUser(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list claims")
		return
	}
	utils.WriteSuccessResponse(w, claims)
}

// Update lets the claimant amend their evidence or answer
func (h *ClaimHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	claimID := chi.URLParam(r, "claimID")
	claim, err := h.db.GetClaim(claimID)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Claim not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load claim")
		return
	}
	if claim.UserID != user.ID {
		utils.WriteForbiddenResponse(w, "Only the claimant can amend a claim")
		return
	}

	var req ClaimRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	patch := map[string]interface{}{}
	if req.Evidence != nil {
		if strings.TrimSpace(*req.Evidence) == "" {
			utils.WriteValidationErrorResponse(w, "Evidence cannot be empty", "evidence")
			return
		}
		patch["evidence"] = *req.Evidence
	}
	if req.Answer != nil {
		patch["answer"] = *req.Answer
	}
	if len(patch) == 0 {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}

	if err := h.db.UpdateClaimPartial(claimID, patch); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to update claim")
		return
	}

	updated, err := h.db.GetClaim(claimID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load updated claim")
		return
	}
	utils.WriteSuccessResponse(w, updated)
}
