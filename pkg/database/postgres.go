package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"reunitems-backend/pkg/models"
)

// PostgresDatabase implements DatabaseInterface on PostgreSQL.
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase opens a connection pool sized for a small serverless
// deployment and verifies connectivity.
func NewPostgresDatabase(dsn string) (*PostgresDatabase, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("connected to postgres")
	return &PostgresDatabase{db: db}, nil
}

// ==== Users ====

func (p *PostgresDatabase) UpsertUser(user *models.User) error {
	query := `
		INSERT INTO users (id, email, password, display_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			password = CASE WHEN EXCLUDED.password = '' THEN users.password ELSE EXCLUDED.password END,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	return p.db.QueryRow(query, user.ID, user.Email, user.Password, user.DisplayName).
		Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (p *PostgresDatabase) GetUserByID(id string) (*models.User, error) {
	var user models.User
	query := `SELECT id, email, password, display_name, created_at, updated_at FROM users WHERE id = $1`
	err := p.db.QueryRow(query, id).
		Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (p *PostgresDatabase) GetUserByEmail(email string) (*models.User, error) {
	var user models.User
	query := `SELECT id, email, password, display_name, created_at, updated_at FROM users WHERE email = $1`
	err := p.db.QueryRow(query, email).
		Scan(&user.ID, &user.Email, &user.Password, &user.DisplayName, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ==== Site-owner allow-list ====

func (p *PostgresDatabase) IsAppAdmin(userID string) (bool, error) {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM app_admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ==== Organizations ====

func (p *PostgresDatabase) CreateOrganization(org *models.Organization) error {
	query := `
		INSERT INTO organizations (id, name, address, latitude, longitude, approval_status, applied_at, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id, applied_at, created_at`

	return p.db.QueryRow(query, org.ID, org.Name, org.Address, org.Latitude, org.Longitude, org.ApprovalStatus).
		Scan(&org.ID, &org.AppliedAt, &org.CreatedAt)
}

func (p *PostgresDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	var org models.Organization
	query := `SELECT id, name, address, latitude, longitude, approval_status, applied_at, created_at
		FROM organizations WHERE id = $1`
	err := p.db.QueryRow(query, orgID).
		Scan(&org.ID, &org.Name, &org.Address, &org.Latitude, &org.Longitude, &org.ApprovalStatus, &org.AppliedAt, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (p *PostgresDatabase) ListOrganizations() ([]models.Organization, error) {
	query := `SELECT id, name, address, latitude, longitude, approval_status, applied_at, created_at
		FROM organizations ORDER BY created_at`
	return p.scanOrganizations(p.db.Query(query))
}

func (p *PostgresDatabase) ListOrganizationsByStatus(status models.ApprovalStatus) ([]models.Organization, error) {
	query := `SELECT id, name, address, latitude, longitude, approval_status, applied_at, created_at
		FROM organizations WHERE approval_status = $1 ORDER BY created_at`
	return p.scanOrganizations(p.db.Query(query, status))
}

func (p *PostgresDatabase) scanOrganizations(rows *sql.Rows, err error) ([]models.Organization, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Address, &org.Latitude, &org.Longitude,
			&org.ApprovalStatus, &org.AppliedAt, &org.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

var organizationPatchKeys = map[string]bool{
	"name": true, "address": true, "latitude": true, "longitude": true, "approval_status": true,
}

func (p *PostgresDatabase) UpdateOrganizationPartial(orgID string, patch map[string]interface{}) error {
	return p.applyPatch("organizations", patch, organizationPatchKeys, "id = $%d", orgID)
}

// ==== Members ====

func (p *PostgresDatabase) PutMember(member *models.Member) error {
	query := `
		INSERT INTO org_members (organization_id, user_id, role, application_status, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (organization_id, user_id) DO UPDATE SET
			role = EXCLUDED.role,
			application_status = EXCLUDED.application_status,
			created_at = NOW()
		RETURNING created_at`

	return p.db.QueryRow(query, member.OrganizationID, member.UserID, member.Role, member.ApplicationStatus).
		Scan(&member.CreatedAt)
}

func (p *PostgresDatabase) GetMember(orgID, userID string) (*models.Member, error) {
	var m models.Member
	query := `SELECT organization_id, user_id, role, application_status, created_at
		FROM org_members WHERE organization_id = $1 AND user_id = $2`
	err := p.db.QueryRow(query, orgID, userID).
		Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.ApplicationStatus, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresDatabase) ListMembers(orgID string) ([]models.Member, error) {
	query := `SELECT organization_id, user_id, role, application_status, created_at
		FROM org_members WHERE organization_id = $1 ORDER BY created_at`
	rows, err := p.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &m.Role, &m.ApplicationStatus, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

var memberPatchKeys = map[string]bool{"role": true, "application_status": true}

func (p *PostgresDatabase) UpdateMemberPartial(orgID, userID string, patch map[string]interface{}) error {
	return p.applyPatch("org_members", patch, memberPatchKeys,
		"organization_id = $%d AND user_id = $%d", orgID, userID)
}

// ==== Locations ====

func (p *PostgresDatabase) CreateLocation(loc *models.Location) error {
	query := `
		INSERT INTO org_locations (id, organization_id, name, description, latitude, longitude, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`

	return p.db.QueryRow(query, loc.ID, loc.OrganizationID, loc.Name, loc.Description, loc.Latitude, loc.Longitude).
		Scan(&loc.ID, &loc.CreatedAt)
}

func (p *PostgresDatabase) GetLocation(orgID, locID string) (*models.Location, error) {
	var loc models.Location
	query := `SELECT id, organization_id, name, description, latitude, longitude, created_at
		FROM org_locations WHERE organization_id = $1 AND id = $2`
	err := p.db.QueryRow(query, orgID, locID).
		Scan(&loc.ID, &loc.OrganizationID, &loc.Name, &loc.Description, &loc.Latitude, &loc.Longitude, &loc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (p *PostgresDatabase) ListLocations(orgID string) ([]models.Location, error) {
	query := `SELECT id, organization_id, name, description, latitude, longitude, created_at
		FROM org_locations WHERE organization_id = $1 ORDER BY created_at`
	rows, err := p.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []models.Location
	for rows.Next() {
		var loc models.Location
		if err := rows.Scan(&loc.ID, &loc.OrganizationID, &loc.Name, &loc.Description,
			&loc.Latitude, &loc.Longitude, &loc.CreatedAt); err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

var locationPatchKeys = map[string]bool{
	"name": true, "description": true, "latitude": true, "longitude": true,
}

func (p *PostgresDatabase) UpdateLocationPartial(orgID, locID string, patch map[string]interface{}) error {
	return p.applyPatch("org_locations", patch, locationPatchKeys,
		"organization_id = $%d AND id = $%d", orgID, locID)
}

func (p *PostgresDatabase) DeleteLocation(orgID, locID string) error {
	return p.deleteScoped("org_locations", orgID, locID)
}

// ==== Items ====

func (p *PostgresDatabase) CreateItem(item *models.Item) error {
	query := `
		INSERT INTO org_items (id, organization_id, name, description, location_id, image_url,
			verify_question, verify_answer, found_at, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, found_at, created_at`

	return p.db.QueryRow(query, item.ID, item.OrganizationID, item.Name, item.Description,
		item.LocationID, item.ImageURL, item.VerifyQuestion, item.VerifyAnswer).
		Scan(&item.ID, &item.FoundAt, &item.CreatedAt)
}

func (p *PostgresDatabase) GetItem(orgID, itemID string) (*models.Item, error) {
	var item models.Item
	query := `SELECT id, organization_id, name, description, location_id, image_url,
			verify_question, verify_answer, found_at, created_at
		FROM org_items WHERE organization_id = $1 AND id = $2`
	err := p.db.QueryRow(query, orgID, itemID).
		Scan(&item.ID, &item.OrganizationID, &item.Name, &item.Description, &item.LocationID,
			&item.ImageURL, &item.VerifyQuestion, &item.VerifyAnswer, &item.FoundAt, &item.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (p *PostgresDatabase) ListItems(orgID string) ([]models.Item, error) {
	query := `SELECT id, organization_id, name, description, location_id, image_url,
			verify_question, verify_answer, found_at, created_at
		FROM org_items WHERE organization_id = $1 ORDER BY created_at`
	rows, err := p.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var item models.Item
		if err := rows.Scan(&item.ID, &item.OrganizationID, &item.Name, &item.Description,
			&item.LocationID, &item.ImageURL, &item.VerifyQuestion, &item.VerifyAnswer,
			&item.FoundAt, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

var itemPatchKeys = map[string]bool{
	"name": true, "description": true, "location_id": true, "image_url": true,
	"verify_question": true, "verify_answer": true,
}

func (p *PostgresDatabase) UpdateItemPartial(orgID, itemID string, patch map[string]interface{}) error {
	return p.applyPatch("org_items", patch, itemPatchKeys,
		"organization_id = $%d AND id = $%d", orgID, itemID)
}

func (p *PostgresDatabase) DeleteItem(orgID, itemID string) error {
	return p.deleteScoped("org_items", orgID, itemID)
}

// ==== Claims ====

func (p *PostgresDatabase) CreateClaim(claim *models.Claim) error {
	query := `
		INSERT INTO claims (id, organization_id, item_id, user_id, evidence, answer, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`

	return p.db.QueryRow(query, claim.ID, claim.OrganizationID, claim.ItemID, claim.UserID,
		claim.Evidence, claim.Answer).
		Scan(&claim.ID, &claim.CreatedAt)
}

func (p *PostgresDatabase) GetClaim(claimID string) (*models.Claim, error) {
	var c models.Claim
	query := `SELECT id, organization_id, item_id, user_id, evidence, answer, created_at
		FROM claims WHERE id = $1`
	err := p.db.QueryRow(query, claimID).
		Scan(&c.ID, &c.OrganizationID, &c.ItemID, &c.UserID, &c.Evidence, &c.Answer, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (p *PostgresDatabase) ListClaimsByItem(orgID, itemID string) ([]models.Claim, error) {
	query := `SELECT id, organization_id, item_id, user_id, evidence, answer, created_at
		FROM claims WHERE organization_id = $1 AND item_id = $2 ORDER BY created_at`
	return p.scanClaims(p.db.Query(query, orgID, itemID))
}

func (p *PostgresDatabase) ListClaimsByUser(userID string) ([]models.Claim, error) {
	query := `SELECT id, organization_id, item_id, user_id, evidence, answer, created_at
		FROM claims WHERE user_id = $1 ORDER BY created_at`
	return p.scanClaims(p.db.Query(query, userID))
}

func (p *PostgresDatabase) scanClaims(rows *sql.Rows, err error) ([]models.Claim, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		var c models.Claim
		if err := rows.Scan(&c.ID, &c.OrganizationID, &c.ItemID, &c.UserID, &c.Evidence,
			&c.Answer, &c.CreatedAt); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

var claimPatchKeys = map[string]bool{"evidence": true, "answer": true}

func (p *PostgresDatabase) UpdateClaimPartial(claimID string, patch map[string]interface{}) error {
	return p.applyPatch("claims", patch, claimPatchKeys, "id = $%d", claimID)
}

// ==== Requests ====

func (p *PostgresDatabase) CreateRequest(req *models.Request) error {
	query := `
		INSERT INTO org_requests (id, organization_id, user_id, item_name, description, created_at)
		VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	return p.db.QueryRow(query, req.ID, req.OrganizationID, req.UserID, req.ItemName, req.Description).
		Scan(&req.ID, &req.CreatedAt)
}

func (p *PostgresDatabase) ListRequests(orgID string) ([]models.Request, error) {
	query := `SELECT id, organization_id, user_id, item_name, description, created_at
		FROM org_requests WHERE organization_id = $1 ORDER BY created_at`
	rows, err := p.db.Query(query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []models.Request
	for rows.Next() {
		var r models.Request
		if err := rows.Scan(&r.ID, &r.OrganizationID, &r.UserID, &r.ItemName, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

func (p *PostgresDatabase) HealthCheck() error {
	return p.db.Ping()
}

func (p *PostgresDatabase) Close() error {
	return p.db.Close()
}

// ==== helpers ====

// applyPatch builds a dynamic UPDATE from a validated patch map. whereFmt
// uses $%d placeholders that are numbered after the SET arguments.
func (p *PostgresDatabase) applyPatch(table string, patch map[string]interface{},
	allowed map[string]bool, whereFmt string, whereArgs ...interface{}) error {

	if len(patch) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(patch))
	args := make([]interface{}, 0, len(patch)+len(whereArgs))
	i := 1
	for key, value := range patch {
		if !allowed[key] {
			return fmt.Errorf("unsupported %s patch key: %s", table, key)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", key, i))
		args = append(args, value)
		i++
	}

	placeholders := make([]interface{}, len(whereArgs))
	for j := range whereArgs {
		placeholders[j] = i + j
		args = append(args, whereArgs[j])
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		table, strings.Join(setClauses, ", "), fmt.Sprintf(whereFmt, placeholders...))

	result, err := p.db.Exec(query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresDatabase) deleteScoped(table, orgID, id string) error {
	result, err := p.db.Exec(
		fmt.Sprintf("DELETE FROM %s WHERE organization_id = $1 AND id = $2", table), orgID, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
