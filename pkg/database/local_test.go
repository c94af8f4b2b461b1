package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunitems-backend/pkg/models"
)

func newTestDB(t *testing.T) *LocalDatabase {
	t.Helper()
	db, err := NewLocalDatabase("")
	require.NoError(t, err)
	return db
}

func seedOrg(t *testing.T, db *LocalDatabase) *models.Organization {
	t.Helper()
	org := &models.Organization{Name: "Test Campus", ApprovalStatus: models.StatusApproved}
	require.NoError(t, db.CreateOrganization(org))
	return org
}

func TestGetMissingDocumentsReturnNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetOrganization("nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetMember("nope", "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = db.GetClaim("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateItemPartialMergesFields(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db)

	loc := &models.Location{OrganizationID: org.ID, Name: "Front Desk"}
	require.NoError(t, db.CreateLocation(loc))

	item := &models.Item{
		OrganizationID: org.ID,
		Name:           "Water Bottle",
		Description:    "Blue, dented",
		LocationID:     loc.ID,
	}
	require.NoError(t, db.CreateItem(item))

	err := db.UpdateItemPartial(org.ID, item.ID, map[string]interface{}{"name": "Blue Water Bottle"})
	require.NoError(t, err)

	got, err := db.GetItem(org.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blue Water Bottle", got.Name)
	assert.Equal(t, "Blue, dented", got.Description, "untouched field survives the patch")
	assert.Equal(t, loc.ID, got.LocationID)
}

func TestUpdatePartialRejectsUnknownKeys(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db)

	err := db.UpdateOrganizationPartial(org.ID, map[string]interface{}{"owner": "someone"})
	assert.Error(t, err)
}

func TestPutMemberKeepsOneDocumentPerPair(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db)

	first := &models.Member{
		OrganizationID:    org.ID,
		UserID:            "user-1",
		Role:              models.RoleRegular,
		ApplicationStatus: models.StatusDenied,
	}
	require.NoError(t, db.PutMember(first))

	second := &models.Member{
		OrganizationID:    org.ID,
		UserID:            "user-1",
		Role:              models.RoleRegular,
		ApplicationStatus: models.StatusPending,
	}
	require.NoError(t, db.PutMember(second))

	members, err := db.ListMembers(org.ID)
	require.NoError(t, err)
	require.Len(t, members, 1, "re-filing overwrites, never duplicates")
	assert.Equal(t, models.StatusPending, members[0].ApplicationStatus)
}

func TestDeleteLocationLeavesDanglingItemReference(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db)

	loc := &models.Location{OrganizationID: org.ID, Name: "Gym"}
	require.NoError(t, db.CreateLocation(loc))

	item := &models.Item{OrganizationID: org.ID, Name: "Towel", LocationID: loc.ID}
	require.NoError(t, db.CreateItem(item))

	require.NoError(t, db.DeleteLocation(org.ID, loc.ID))

	// The item survives with a reference that no longer resolves
	got, err := db.GetItem(org.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, loc.ID, got.LocationID)

	_, err = db.GetLocation(org.ID, loc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestItemsAreOrganizationScoped(t *testing.T) {
	db := newTestDB(t)
	orgA := seedOrg(t, db)
	orgB := &models.Organization{Name: "Other Campus", ApprovalStatus: models.StatusApproved}
	require.NoError(t, db.CreateOrganization(orgB))

	loc := &models.Location{OrganizationID: orgA.ID, Name: "Desk"}
	require.NoError(t, db.CreateLocation(loc))
	item := &models.Item{OrganizationID: orgA.ID, Name: "Umbrella", LocationID: loc.ID}
	require.NoError(t, db.CreateItem(item))

	_, err := db.GetItem(orgB.ID, item.ID)
	assert.ErrorIs(t, err, ErrNotFound, "items are not visible through another organization")

	itemsB, err := db.ListItems(orgB.ID)
	require.NoError(t, err)
	assert.Empty(t, itemsB)
}

func TestClaimsAddressableWithoutItemResolution(t *testing.T) {
	db := newTestDB(t)
	org := seedOrg(t, db)

	claim := &models.Claim{
		OrganizationID: org.ID,
		ItemID:         "item-1",
		UserID:         "user-1",
		Evidence:       "It has my name on it",
	}
	require.NoError(t, db.CreateClaim(claim))
	require.NotEmpty(t, claim.ID)

	got, err := db.GetClaim(claim.ID)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.OrganizationID)
	assert.Equal(t, "item-1", got.ItemID)

	byItem, err := db.ListClaimsByItem(org.ID, "item-1")
	require.NoError(t, err)
	assert.Len(t, byItem, 1)

	byUser, err := db.ListClaimsByUser("user-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)
}

func TestUpsertUserPreservesPasswordWhenBlank(t *testing.T) {
	db := newTestDB(t)

	user := &models.User{ID: "u1", Email: "a@example.com", Password: "hash1"}
	require.NoError(t, db.UpsertUser(user))

	update := &models.User{ID: "u1", Email: "a@example.com", DisplayName: "Alice"}
	require.NoError(t, db.UpsertUser(update))

	got, err := db.GetUserByID("u1")
	require.NoError(t, err)
	assert.Equal(t, "hash1", got.Password)
	assert.Equal(t, "Alice", got.DisplayName)
}

func TestIsAppAdminDefaultsFalse(t *testing.T) {
	db := newTestDB(t)

	ok, err := db.IsAppAdmin("nobody")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddAppAdmin("owner"))
	ok, err = db.IsAppAdmin("owner")
	require.NoError(t, err)
	assert.True(t, ok)
}
