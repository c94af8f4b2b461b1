package membership

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunitems-backend/pkg/database"
	"reunitems-backend/pkg/models"
)

func newTestService(t *testing.T) (*Service, *database.LocalDatabase) {
	t.Helper()
	db, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	return NewService(db), db
}

func TestRegisterOrganizationRequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RegisterOrganization("founder", "   ", "", nil, nil)
	assert.Error(t, err)
}

func TestRegisterOrganizationStartsPendingWithPendingFounder(t *testing.T) {
	svc, db := newTestService(t)

	org, err := svc.RegisterOrganization("founder", "North Campus", "1 Main St", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, org.ApprovalStatus)

	founder, err := db.GetMember(org.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSuperadmin, founder.Role)
	assert.Equal(t, models.StatusPending, founder.ApplicationStatus)
}

func TestApproveOrganizationPromotesFounder(t *testing.T) {
	svc, db := newTestService(t)

	org, err := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ApproveOrganization(org.ID))

	approved, err := db.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.ApprovalStatus)

	founder, err := db.GetMember(org.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, founder.ApplicationStatus)

	// the founder can administer immediately
	ok, err := svc.CanAdminister(org.ID, "founder")
	require.NoError(t, err)
	assert.True(t, ok)
}

// flakyStore fails member updates on demand to exercise the non-atomic
// approve path.
type flakyStore struct {
	database.DatabaseInterface
	failMemberUpdates bool
}

func (f *flakyStore) UpdateMemberPartial(orgID, userID string, patch map[string]interface{}) error {
	if f.failMemberUpdates {
		return errors.New("simulated write failure")
	}
	return f.DatabaseInterface.UpdateMemberPartial(orgID, userID, patch)
}

func TestApproveOrganizationPartialFailureIsVisible(t *testing.T) {
	local, err := database.NewLocalDatabase("")
	require.NoError(t, err)
	flaky := &flakyStore{DatabaseInterface: local}
	svc := NewService(flaky)

	org, err := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, err)

	flaky.failMemberUpdates = true
	err = svc.ApproveOrganization(org.ID)

	var partial *PartialError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "organization approval", partial.Completed)

	// the first write stuck: the org is approved, the founder is not
	approved, err := local.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.ApprovalStatus)

	founder, err := local.GetMember(org.ID, "founder")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, founder.ApplicationStatus)
}

func TestApplyRequiresApprovedOrganization(t *testing.T) {
	svc, _ := newTestService(t)

	org, err := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, err)

	_, err = svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	assert.Error(t, err, "pending organizations do not accept members")

	require.NoError(t, svc.ApproveOrganization(org.ID))

	member, err := svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	assert.Equal(t, models.RoleRegular, member.Role)
	assert.Equal(t, models.StatusPending, member.ApplicationStatus)
}

func TestApplyIsIdempotentWhileNotDenied(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(org.ID))

	_, err := svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	require.NoError(t, svc.ApproveMember(org.ID, "student"))

	// re-applying while approved does not reset the record
	member, err := svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, member.ApplicationStatus)

	members, err := db.ListMembers(org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2, "founder plus one student")
}

func TestDeniedMemberCanReapply(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(org.ID))

	_, err := svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	require.NoError(t, svc.DenyMember(org.ID, "student"))

	member, err := svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, member.ApplicationStatus, "denial is overwritten, not permanent")

	members, err := db.ListMembers(org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2, "still one record per pair")
}

func TestCanAdministerRequiresApprovedStatus(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)

	// founder is superadmin but still pending before the org is approved
	ok, err := svc.CanAdminister(org.ID, "founder")
	require.NoError(t, err)
	assert.False(t, ok)

	// a regular approved member cannot administer either
	require.NoError(t, svc.ApproveOrganization(org.ID))
	_, err = svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	require.NoError(t, err)
	require.NoError(t, svc.ApproveMember(org.ID, "student"))

	ok, err = svc.CanAdminister(org.ID, "student")
	require.NoError(t, err)
	assert.False(t, ok)

	// promoting the role flips the answer on the next call
	require.NoError(t, db.UpdateMemberPartial(org.ID, "student",
		map[string]interface{}{"role": string(models.RoleAdmin)}))
	ok, err = svc.CanAdminister(org.ID, "student")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserOrganizationsProbesEveryOrg(t *testing.T) {
	svc, _ := newTestService(t)

	orgA, _ := svc.RegisterOrganization("founder-a", "Campus A", "", nil, nil)
	orgB, _ := svc.RegisterOrganization("founder-b", "Campus B", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(orgA.ID))
	require.NoError(t, svc.ApproveOrganization(orgB.ID))

	_, err := svc.ApplyToOrganization(orgA.ID, "student", models.RoleRegular)
	require.NoError(t, err)

	memberships, err := svc.UserOrganizations("student")
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	assert.Equal(t, orgA.ID, memberships[0].Organization.ID)
	assert.Equal(t, models.StatusPending, memberships[0].Member.ApplicationStatus)

	// pending membership does not count as approved
	approved, err := svc.ApprovedOrganizations("student")
	require.NoError(t, err)
	assert.Empty(t, approved)

	require.NoError(t, svc.ApproveMember(orgA.ID, "student"))
	approved, err = svc.ApprovedOrganizations("student")
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, orgA.ID, approved[0].Organization.ID)
}

func TestDenyOrganization(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.DenyOrganization(org.ID))

	denied, err := db.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, denied.ApprovalStatus)

	_, err = svc.ApplyToOrganization(org.ID, "student", models.RoleRegular)
	assert.Error(t, err)
}

func TestApplyWithRequestedAdminRole(t *testing.T) {
	svc, _ := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(org.ID))

	member, err := svc.ApplyToOrganization(org.ID, "helper", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, member.Role)
	assert.Equal(t, models.StatusPending, member.ApplicationStatus)

	// approval makes the requested role effective
	require.NoError(t, svc.ApproveMember(org.ID, "helper"))
	ok, err := svc.CanAdminister(org.ID, "helper")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestApplyRejectsUnrequestableRoles(t *testing.T) {
	svc, _ := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(org.ID))

	_, err := svc.ApplyToOrganization(org.ID, "sneaky", models.RoleSuperadmin)
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = svc.ApplyToOrganization(org.ID, "typo", models.MemberRole("moderator"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestDenialIsTerminal(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.DenyOrganization(org.ID))

	// approving a denied organization is rejected and nothing changes
	err := svc.ApproveOrganization(org.ID)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	got, err := db.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDenied, got.ApprovalStatus)

	// re-denying is a no-op, not an error
	assert.NoError(t, svc.DenyOrganization(org.ID))
}

func TestApprovedOrganizationCannotBeDenied(t *testing.T) {
	svc, db := newTestService(t)

	org, _ := svc.RegisterOrganization("founder", "North Campus", "", nil, nil)
	require.NoError(t, svc.ApproveOrganization(org.ID))

	err := svc.DenyOrganization(org.ID)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)

	got, err := db.GetOrganization(org.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.ApprovalStatus)

	// re-approving is a no-op, not an error
	assert.NoError(t, svc.ApproveOrganization(org.ID))
}

func TestIsSiteOwner(t *testing.T) {
	svc, db := newTestService(t)

	ok, err := svc.IsSiteOwner("someone")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.AddAppAdmin("owner"))
	ok, err = svc.IsSiteOwner("owner")
	require.NoError(t, err)
	assert.True(t, ok)
}
