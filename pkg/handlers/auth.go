package handlers

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/membership"
	"reunitems-backend/pkg/middleware"
	"reunitems-backend/pkg/models"
	"reunitems-backend/pkg/utils"
)

// AuthHandler serves registration, login and token refresh
type AuthHandler struct {
	db         database.DatabaseInterface
	jwt        *utils.JWTService
	membership *membership.Service
}

func NewAuthHandler(db database.DatabaseInterface, jwt *utils.JWTService, ms *membership.Service) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt, membership: ms}
}

// Register creates a new user account and returns a token pair
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.UserRegisterRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		utils.WriteValidationErrorResponse(w, "Invalid email address", "email")
		return
	}
	if len(req.Password) < 8 {
		utils.WriteValidationErrorResponse(w, "Password must be at least 8 characters", "password")
		return
	}

	if _, err := h.db.GetUserByEmail(req.Email); err == nil {
		utils.WriteConflictResponse(w, "Email is already registered")
		return
	} else if err != database.ErrNotFound {
		utils.WriteInternalServerErrorResponse(w, "Failed to check existing account")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to process password")
		return
	}

	user := &models.User{
		ID:          uuid.New().String(),
		Email:       req.Email,
		Password:    hash,
		DisplayName: req.DisplayName,
	}
	if err := h.db.UpsertUser(user); err != nil {
		log.Error().Err(err).Msg("failed to create user")
		utils.WriteInternalServerErrorResponse(w, "Failed to create account")
		return
	}

	h.writeLoginResponse(w, user, http.StatusCreated)
}

// Login verifies credentials and returns a token pair plus the caller's
// memberships so clients can pick an organization to work in.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.UserLoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	user, err := h.db.GetUserByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err == database.ErrNotFound || (err == nil && !utils.CheckPassword(user.Password, req.Password)) {
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to look up account")
		return
	}

	h.writeLoginResponse(w, user, http.StatusOK)
}

func (h *AuthHandler) writeLoginResponse(w http.ResponseWriter, user *models.User, status int) {
	accessToken, refreshToken, expiresIn, err := h.jwt.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		log.Error().Err(err).Msg("failed to generate token pair")
		utils.WriteInternalServerErrorResponse(w, "Failed to generate tokens")
		return
	}

	memberships, err := h.membership.UserOrganizations(user.ID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to load memberships for login response")
		memberships = nil
	}

	utils.WriteJSONResponse(w, status, models.UserLoginResponse{
		User:         *user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    expiresIn,
		Memberships:  memberships,
	})
}

// Refresh exchanges a refresh token for a new access token
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshTokenRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	accessToken, expiresIn, err := h.jwt.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Invalid refresh token")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"access_token": accessToken,
		"expires_in":   expiresIn,
	})
}

// Me returns the caller's profile and memberships
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.RequireUser(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	profile, err := h.db.GetUserByID(user.ID)
	if err == database.ErrNotFound {
		utils.WriteNotFoundResponse(w, "Account not found")
		return
	}
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load profile")
		return
	}

	memberships, err := h.membership.UserOrganizations(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load memberships")
		return
	}

	isOwner, err := h.membership.IsSiteOwner(user.ID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to check privileges")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user":          profile,
		"memberships":   memberships,
		"is_site_owner": isOwner,
	})
}

// Logout is a no-op server side; tokens simply expire. Kept so clients have
// a uniform endpoint to call.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]string{"message": "Logged out"})
}
