package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/search"
	"reunitems-backend/pkg/storage"
	"reunitems-backend/pkg/utils"
)

const maxImageSize = 10 << 20 // 10 MiB

// unknownLocationName is shown when an item's location was deleted
const unknownLocationName = "Unknown location"

// ItemHandler serves the found-item catalog, image uploads and search
type ItemHandler struct {
	db         database.DatabaseInterface
	membership *membership.Service
	storage    *storage.MinIOStorage // nil when object storage is not configured
}

func NewItemHandler(db database.DatabaseInterface, ms *membership.Service, st *storage.MinIOStorage) *ItemHandler {
	return &ItemHandler{db: db, membership: ms, storage: st}
}

// ItemRequest is the payload for creating or updating an item
type ItemRequest struct {
	Name           *string `json:"name"`
	Description    *string `json:"description"`
	LocationID     *string `json:"location_id"`
	ImageURL       *string `json:"image_url"`
	VerifyQuestion *string `json:"verify_question"`
	VerifyAnswer   *string `json:"verify_answer"`
}

// Create catalogs a found item (admins only). The location must exist in the
// same organization at creation time.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	var req ItemRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Name == nil || strings.TrimSpace(*req.Name) == "" {
		utils.WriteValidationErrorResponse(w, "Item name is required", "name")
		return
	}
	if req.LocationID == nil || *req.LocationID == "" {
		utils.WriteValidationErrorResponse(w, "Location is required", "location_id")
		return
	}
	if _, err := h.db.GetLocation(orgID, *req.LocationID); err != nil {
		if err == database.ErrNotFound {
			utils.WriteValidationErrorResponse(w, "Location does not exist in this organization", "location_id")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to check location")
		return
	}

	item := &models.Item{
		OrganizationID: orgID,
		Name:           strings.TrimSpace(*req.Name),
		LocationID:     *req.LocationID,
	}
	if req.Description != nil {
		item.Description = *req.Description
	}
	if req.ImageURL != nil {
		item.ImageURL = *req.ImageURL
	}
	if req.VerifyQuestion != nil {
		item.VerifyQuestion = *req.VerifyQuestion
	}
	if req.VerifyAnswer != nil {
		item.VerifyAnswer = *req.VerifyAnswer
	}

	if err := h.db.CreateItem(item); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to create item")
		return
	}
	utils.WriteCreatedResponse(w, item)
}

// List returns the organization's items (approved members)
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgMember(w, r, h.membership, orgID) == nil {
		return
	}

	items, err := h.db.ListItems(orgID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to list items")
		return
	}
	utils.WriteSuccessResponse(w, items)
}

// Get returns one item with its location name resolved. A deleted location
// degrades to a placeholder instead of failing the read.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgMember(w, r, h.membership, orgID) == nil {
		return
	}

	item, err := h.db.GetItem(orgID, chi.URLParam(r, "itemID"))
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Item not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load item")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"item":          item,
		"location_name": h.locationName(orgID, item.LocationID),
	})
}

// AdminDetail returns the item including the expected verification answer.
// Only admins reviewing claims may see the answer.
func (h *ItemHandler) AdminDetail(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	item, err := h.db.GetItem(orgID, chi.URLParam(r, "itemID"))
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Item not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load item")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"item":          item,
		"verify_answer": item.VerifyAnswer,
		"location_name": h.locationName(orgID, item.LocationID),
	})
}

// Update patches the provided fields only (admins only). A location change
// is validated against the organization's location catalog.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	var req ItemRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	patch := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.WriteValidationErrorResponse(w, "Item name cannot be empty", "name")
			return
		}
		patch["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		patch["description"] = *req.Description
	}
	if req.LocationID != nil {
		if _, err := h.db.GetLocation(orgID, *req.LocationID); err != nil {
			utils.WriteValidationErrorResponse(w, "Location does not exist in this organization", "location_id")
			return
		}
		patch["location_id"] = *req.LocationID
	}
	if req.ImageURL != nil {
		patch["image_url"] = *req.ImageURL
	}
	if req.VerifyQuestion != nil {
		patch["verify_question"] = *req.VerifyQuestion
	}
	if req.VerifyAnswer != nil {
		patch["verify_answer"] = *req.VerifyAnswer
	}
	if len(patch) == 0 {
		utils.WriteBadRequestResponse(w, "No fields to update")
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if err := h.db.UpdateItemPartial(orgID, itemID, patch); err != nil {
		if err == database.ErrNotFound {
			utils.WriteNotFoundResponse(w, "Item not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to update item")
		return
	}

	item, err := h.db.GetItem(orgID, itemID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load updated item")
		return
	}
	utils.WriteSuccessResponse(w, item)
}

// Delete removes an item (admins only). Claims against it are kept for the
// audit trail and resolve their item reference to a not-found on read.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}

	itemID := chi.URLParam(r, "itemID")
	item, err := h.db.GetItem(orgID, itemID)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Item not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load item")
		return
	}

	if err := h.db.DeleteItem(orgID, itemID); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to delete item")
		return
	}

	if h.storage != nil && item.ImageURL != "" {
		if err := h.storage.DeleteImage(r.Context(), item.ImageURL); err != nil {
			log.Warn().Err(err).Str("item_id", itemID).Msg("failed to delete item image")
		}
	}

	utils.WriteSuccessResponse(w, map[string]string{"message": "Item deleted"})
}

// UploadImage accepts a multipart image and attaches its URL to the item
func (h *ItemHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if requireOrgAdmin(w, r, h.membership, orgID) == nil {
		return
	}
	if h.storage == nil {
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable,
			"STORAGE_UNAVAILABLE", "Image storage is not configured", "")
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

	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid multipart form or file too large")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		utils.WriteBadRequestResponse(w, "Missing image file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		utils.WriteValidationErrorResponse(w, "File must be an image", "image")
		return
	}

	imageURL, err := h.storage.UploadImage(r.Context(), file, header.Size, contentType, header.Filename)
	if err != nil {
		log.Error().Err(err).Msg("image upload failed")
		utils.WriteInternalServerErrorResponse(w, "Failed to upload image")
		return
	}

	if err := h.db.UpdateItemPartial(orgID, itemID, map[string]interface{}{"image_url": imageURL}); err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to attach image to item")
		return
	}

	utils.WriteSuccessResponse(w, map[string]string{"image_url": imageURL})
}

// Search runs a typo-tolerant query over the items of every organization the
// caller is an approved member of, ranked best match first. An empty q
// returns everything; a whitespace-only q returns nothing.
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	memberships, err := h.membership.ApprovedOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load memberships")
		return
	}

	var records []search.Record
	for _, m := range memberships {
		items, err := h.db.ListItems(m.Organization.ID)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to list items")
			return
		}
		for i := range items {
			locName := h.locationName(m.Organization.ID, items[i].LocationID)
			records = append(records, search.Record{
				ID:       items[i].ID,
				Name:     items[i].Name,
				Location: locName,
				Payload: models.SearchResult{
					Item:             items[i],
					OrganizationName: m.Organization.Name,
					LocationName:     locName,
				},
			})
		}
	}

	matched := search.Filter(records, r.URL.Query().Get("q"))
	results := make([]models.SearchResult, 0, len(matched))
	for _, rec := range matched {
		results = append(results, rec.Payload.(models.SearchResult))
	}
	utils.WriteSuccessResponse(w, results)
}

// locationName resolves a location id, degrading to a placeholder when the
// location has been deleted out from under the item.
func (h *ItemHandler) locationName(orgID, locationID string) string {
	loc, err := h.db.GetLocation(orgID, locationID)
	if err != nil {
		return unknownLocationName
	}
	return loc.Name
}
