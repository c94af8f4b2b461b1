package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunitems-backend/pkg/config"
	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func testRouter(t *testing.T) (http.Handler, *database.LocalDatabase) {
	t.Helper()
	cfg := &config.Config{
		Environment:    "test",
		JWTSecret:      "test-secret-used-only-in-unit-tests!",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	return NewRouter(cfg, db, nil), db
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env),
		"response body: %s", rec.Body.String())
	return rec, env
}

func registerUser(t *testing.T, router http.Handler, email string) (userID, token string) {
	t.Helper()
	rec, env := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register %s: %s", email, rec.Body.String())

	var login models.UserLoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login.User.ID, login.AccessToken
}

func TestRegisterRejectsBadInput(t *testing.T) {
	router, _ := testRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "not-an-email", "password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "ok@example.com", "password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDuplicateEmailConflicts(t *testing.T) {
	router, _ := testRouter(t)

	registerUser(t, router, "dup@example.com")
	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginWithWrongPassword(t *testing.T) {
	router, _ := testRouter(t)

	registerUser(t, router, "who@example.com")
	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "who@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedEndpointsRequireAuth(t *testing.T) {
	router, _ := testRouter(t)

	rec, _ := doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/items/search?q=keys", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// TestLostAndFoundFlow walks the whole lifecycle: organization registration
// and approval, member application and approval, cataloging, and search.
func TestLostAndFoundFlow(t *testing.T) {
	router, db := testRouter(t)

	ownerID, ownerToken := registerUser(t, router, "owner@example.com")
	require.NoError(t, db.AddAppAdmin(ownerID))

	_, founderToken := registerUser(t, router, "founder@example.com")
	studentID, studentToken := registerUser(t, router, "student@example.com")

	// founder registers an organization; it starts pending
	rec, env := doJSON(t, router, http.MethodPost, "/api/orgs/", founderToken, map[string]interface{}{
		"name":    "North Campus",
		"address": "1 Main St",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var org models.Organization
	require.NoError(t, json.Unmarshal(env.Data, &org))
	assert.Equal(t, models.StatusPending, org.ApprovalStatus)

	// not discoverable while pending
	rec, env = doJSON(t, router, http.MethodGet, "/api/orgs/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var publicOrgs []models.Organization
	if len(env.Data) > 0 && string(env.Data) != "null" {
		require.NoError(t, json.Unmarshal(env.Data, &publicOrgs))
	}
	assert.Empty(t, publicOrgs)

	// only the site owner sees the review queue
	rec, _ = doJSON(t, router, http.MethodGet, "/api/orgs/pending", founderToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = doJSON(t, router, http.MethodGet, "/api/orgs/pending", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []models.Organization
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)

	// approval also promotes the founding superadmin
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/approve", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// student applies and is approved by the founder
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/apply", studentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, env = doJSON(t, router, http.MethodGet, "/api/orgs/"+org.ID+"/members", founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var members []models.Member
	require.NoError(t, json.Unmarshal(env.Data, &members))
	assert.Len(t, members, 2)

	rec, _ = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/orgs/%s/members/%s/approve", org.ID, studentID), founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// founder catalogs a location and an item
	rec, env = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/locations/", founderToken,
		map[string]string{"name": "Front Desk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loc models.Location
	require.NoError(t, json.Unmarshal(env.Data, &loc))

	rec, env = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/items/", founderToken,
		map[string]string{
			"name":            "Water Bottle",
			"description":     "Blue, dented",
			"location_id":     loc.ID,
			"verify_question": "What sticker is on it?",
			"verify_answer":   "A whale",
		})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var item models.Item
	require.NoError(t, json.Unmarshal(env.Data, &item))

	// students cannot catalog items
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/items/", studentToken,
		map[string]string{"name": "Fake", "location_id": loc.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// typo-tolerant search finds the item with its location resolved
	rec, env = doJSON(t, router, http.MethodGet, "/api/items/search?q=botle", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var results []models.SearchResult
	require.NoError(t, json.Unmarshal(env.Data, &results))
	require.Len(t, results, 1)
	assert.Equal(t, item.ID, results[0].Item.ID)
	assert.Equal(t, "North Campus", results[0].OrganizationName)
	assert.Equal(t, "Front Desk", results[0].LocationName)

	// the expected answer never leaks through search results
	assert.NotContains(t, rec.Body.String(), "A whale")

	// whitespace-only query matches nothing
	rec, env = doJSON(t, router, http.MethodGet, "/api/items/search?q="+url.QueryEscape("   "), studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	results = nil
	require.NoError(t, json.Unmarshal(env.Data, &results))
	assert.Empty(t, results)

	// student files a claim on the item
	rec, env = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/orgs/%s/items/%s/claims", org.ID, item.ID), studentToken,
		map[string]string{"evidence": "Bought it last week", "answer": "A whale"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var claim models.Claim
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	assert.Equal(t, org.ID, claim.OrganizationID)
	assert.Equal(t, item.ID, claim.ItemID)

	// founder reviews claims; students cannot
	rec, _ = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/orgs/%s/items/%s/claims", org.ID, item.ID), studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/orgs/%s/items/%s/claims", org.ID, item.ID), founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var claims []models.Claim
	require.NoError(t, json.Unmarshal(env.Data, &claims))
	assert.Len(t, claims, 1)

	// deleting the location leaves the item readable with a placeholder
	rec, _ = doJSON(t, router, http.MethodDelete,
		fmt.Sprintf("/api/orgs/%s/locations/%s", org.ID, loc.ID), founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = doJSON(t, router, http.MethodGet,
		fmt.Sprintf("/api/orgs/%s/items/%s", org.ID, item.ID), studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		LocationName string `json:"location_name"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "Unknown location", detail.LocationName)
}

func TestApplyWithRequestedAdminRole(t *testing.T) {
	router, db := testRouter(t)

	ownerID, ownerToken := registerUser(t, router, "owner@example.com")
	require.NoError(t, db.AddAppAdmin(ownerID))
	_, founderToken := registerUser(t, router, "founder@example.com")
	helperID, helperToken := registerUser(t, router, "helper@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/orgs/", founderToken,
		map[string]string{"name": "East Campus"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org models.Organization
	require.NoError(t, json.Unmarshal(env.Data, &org))
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/approve", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// superadmin cannot be requested
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/apply", helperToken,
		map[string]string{"role": "superadmin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// an admin application carries the requested role
	rec, env = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/apply", helperToken,
		map[string]string{"role": "admin"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var member models.Member
	require.NoError(t, json.Unmarshal(env.Data, &member))
	assert.Equal(t, models.RoleAdmin, member.Role)
	assert.Equal(t, models.StatusPending, member.ApplicationStatus)

	// not an admin until approved
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/locations/", helperToken,
		map[string]string{"name": "Too Early"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/orgs/%s/members/%s/approve", org.ID, helperID), founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// the approved admin can administer
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/locations/", helperToken,
		map[string]string{"name": "Lost Property Office"})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestDeniedOrganizationCannotBeApproved(t *testing.T) {
	router, db := testRouter(t)

	ownerID, ownerToken := registerUser(t, router, "owner@example.com")
	require.NoError(t, db.AddAppAdmin(ownerID))
	_, founderToken := registerUser(t, router, "founder@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/orgs/", founderToken,
		map[string]string{"name": "West Campus"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org models.Organization
	require.NoError(t, json.Unmarshal(env.Data, &org))

	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/deny", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/approve", ownerToken, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	got, err := db.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, got.ApprovalStatus)
}

// brokenOrgStore fails organization writes to exercise error mapping
type brokenOrgStore struct {
	*database.LocalDatabase
}

func (b *brokenOrgStore) CreateOrganization(org *models.Organization) error {
	return errors.New("write failed")
}

func TestOrgRegisterStoreFailureIsNotAValidationError(t *testing.T) {
	cfg := &config.Config{
		Environment:    "test",
		JWTSecret:      "test-secret-used-only-in-unit-tests!",
		AllowedOrigins: []string{"http://localhost:3000"},
	}
	local, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	router := NewRouter(cfg, &brokenOrgStore{LocalDatabase: local}, nil)

	_, token := registerUser(t, router, "founder@example.com")

	// a blank name is the caller's fault
	rec, env := doJSON(t, router, http.MethodPost, "/api/orgs/", token,
		map[string]string{"name": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	// a store failure is not
	rec, env = doJSON(t, router, http.MethodPost, "/api/orgs/", token,
		map[string]string{"name": "Valid Name"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", env.Error.Code)
}

func TestMissingItemReports(t *testing.T) {
	router, db := testRouter(t)

	ownerID, ownerToken := registerUser(t, router, "owner@example.com")
	require.NoError(t, db.AddAppAdmin(ownerID))
	_, founderToken := registerUser(t, router, "founder@example.com")
	studentID, studentToken := registerUser(t, router, "student@example.com")

	rec, env := doJSON(t, router, http.MethodPost, "/api/orgs/", founderToken,
		map[string]string{"name": "South Campus"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var org models.Organization
	require.NoError(t, json.Unmarshal(env.Data, &org))

	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/approve", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/apply", studentToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doJSON(t, router, http.MethodPost,
		fmt.Sprintf("/api/orgs/%s/members/%s/approve", org.ID, studentID), founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// student reports a lost item
	rec, _ = doJSON(t, router, http.MethodPost, "/api/orgs/"+org.ID+"/requests/", studentToken,
		map[string]string{"item_name": "AirPods case", "description": "White, scratched"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// only admins read the report list
	rec, _ = doJSON(t, router, http.MethodGet, "/api/orgs/"+org.ID+"/requests/", studentToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = doJSON(t, router, http.MethodGet, "/api/orgs/"+org.ID+"/requests/", founderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var reports []models.Request
	require.NoError(t, json.Unmarshal(env.Data, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "AirPods case", reports[0].ItemName)
}
