package database

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reunitems-backend/pkg/models"
)

// LocalDatabase is a JSON-file backed store for development and tests.
// With an empty data directory it is memory-only. All collections are held
// in memory and flushed to disk after each mutation, mirroring the behavior
// of a hosted document store closely enough for the repository contract
// (not-found results, partial merges, unconditional deletes) to be tested
// against it.
type LocalDatabase struct {
	mu      sync.Mutex
	dataDir string

	users     map[string]models.User
	appAdmins map[string]bool
	orgs      map[string]models.Organization
	// members[orgID][userID] — one document per pair, keyed by user id
	members   map[string]map[string]models.Member
	locations map[string]map[string]models.Location
	items     map[string]map[string]models.Item
	claims    map[string]models.Claim
	requests  map[string]map[string]models.Request
}

type localState struct {
	Users     map[string]models.User                 `json:"users"`
	AppAdmins map[string]bool                        `json:"app_admins"`
	Orgs      map[string]models.Organization         `json:"organizations"`
	Members   map[string]map[string]models.Member    `json:"members"`
	Locations map[string]map[string]models.Location  `json:"locations"`
	Items     map[string]map[string]models.Item      `json:"items"`
	Claims    map[string]models.Claim                `json:"claims"`
	Requests  map[string]map[string]models.Request   `json:"requests"`
}

// NewLocalDatabase creates a local store. dataDir may be empty for a
// memory-only instance (tests); otherwise state is loaded from and saved to
// dataDir/reunitems.json.
func NewLocalDatabase(dataDir string) (*LocalDatabase, error) {
	db := &LocalDatabase{
		dataDir:   dataDir,
		users:     map[string]models.User{},
		appAdmins: map[string]bool{},
		orgs:      map[string]models.Organization{},
		members:   map[string]map[string]models.Member{},
		locations: map[string]map[string]models.Location{},
		items:     map[string]map[string]models.Item{},
		claims:    map[string]models.Claim{},
		requests:  map[string]map[string]models.Request{},
	}
	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		if err := db.load(); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func (db *LocalDatabase) statePath() string {
	return filepath.Join(db.dataDir, "reunitems.json")
}

func (db *LocalDatabase) load() error {
	data, err := os.ReadFile(db.statePath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var st localState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("failed to parse local database file: %w", err)
	}
	if st.Users != nil {
		db.users = st.Users
	}
	if st.AppAdmins != nil {
		db.appAdmins = st.AppAdmins
	}
	if st.Orgs != nil {
		db.orgs = st.Orgs
	}
	if st.Members != nil {
		db.members = st.Members
	}
	if st.Locations != nil {
		db.locations = st.Locations
	}
	if st.Items != nil {
		db.items = st.Items
	}
	if st.Claims != nil {
		db.claims = st.Claims
	}
	if st.Requests != nil {
		db.requests = st.Requests
	}
	return nil
}

// save flushes state to disk; callers hold the mutex.
func (db *LocalDatabase) save() error {
	if db.dataDir == "" {
		return nil
	}
	st := localState{
		Users:     db.users,
		AppAdmins: db.appAdmins,
		Orgs:      db.orgs,
		Members:   db.members,
		Locations: db.locations,
		Items:     db.items,
		Claims:    db.claims,
		Requests:  db.requests,
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(db.statePath(), data, 0644)
}

// ==== Users ====

func (db *LocalDatabase) UpsertUser(user *models.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if existing, ok := db.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
		if user.Password == "" {
			user.Password = existing.Password
		}
	} else {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	db.users[user.ID] = *user
	return db.save()
}

func (db *LocalDatabase) GetUserByID(id string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	user, ok := db.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (db *LocalDatabase) GetUserByEmail(email string) (*models.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, user := range db.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// ==== Site-owner allow-list ====

func (db *LocalDatabase) IsAppAdmin(userID string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.appAdmins[userID], nil
}

// AddAppAdmin grants site-owner privilege. Only the local store exposes this;
// production rows are inserted out of band.
func (db *LocalDatabase) AddAppAdmin(userID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.appAdmins[userID] = true
	return db.save()
}

// ==== Organizations ====

func (db *LocalDatabase) CreateOrganization(org *models.Organization) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if org.ID == "" {
		org.ID = uuid.New().String()
	}
	now := time.Now()
	org.CreatedAt = now
	if org.AppliedAt.IsZero() {
		org.AppliedAt = now
	}
	db.orgs[org.ID] = *org
	return db.save()
}

func (db *LocalDatabase) GetOrganization(orgID string) (*models.Organization, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	org, ok := db.orgs[orgID]
	if !ok {
		return nil, ErrNotFound
	}
	return &org, nil
}

func (db *LocalDatabase) ListOrganizations() ([]models.Organization, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	orgs := make([]models.Organization, 0, len(db.orgs))
	for _, org := range db.orgs {
		orgs = append(orgs, org)
	}
	sortByCreatedAt(orgs, func(o models.Organization) time.Time { return o.CreatedAt })
	return orgs, nil
}

func (db *LocalDatabase) ListOrganizationsByStatus(status models.ApprovalStatus) ([]models.Organization, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var orgs []models.Organization
	for _, org := range db.orgs {
		if org.ApprovalStatus == status {
			orgs = append(orgs, org)
		}
	}
	sortByCreatedAt(orgs, func(o models.Organization) time.Time { return o.CreatedAt })
	return orgs, nil
}

func (db *LocalDatabase) UpdateOrganizationPartial(orgID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	org, ok := db.orgs[orgID]
	if !ok {
		return ErrNotFound
	}
	for key, value := range patch {
		switch key {
		case "name":
			org.Name = asString(value)
		case "address":
			org.Address = asString(value)
		case "latitude":
			v := asFloat(value)
			org.Latitude = &v
		case "longitude":
			v := asFloat(value)
			org.Longitude = &v
		case "approval_status":
			org.ApprovalStatus = models.ApprovalStatus(asString(value))
		default:
			return fmt.Errorf("unsupported organization patch key: %s", key)
		}
	}
	db.orgs[orgID] = org
	return db.save()
}

// ==== Members ====

func (db *LocalDatabase) PutMember(member *models.Member) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.orgs[member.OrganizationID]; !ok {
		return ErrNotFound
	}
	if db.members[member.OrganizationID] == nil {
		db.members[member.OrganizationID] = map[string]models.Member{}
	}
	// Overwrite keeps the invariant: one document per (org, user) pair.
	member.CreatedAt = time.Now()
	db.members[member.OrganizationID][member.UserID] = *member
	return db.save()
}

func (db *LocalDatabase) GetMember(orgID, userID string) (*models.Member, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	member, ok := db.members[orgID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &member, nil
}

func (db *LocalDatabase) ListMembers(orgID string) ([]models.Member, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	members := make([]models.Member, 0, len(db.members[orgID]))
	for _, m := range db.members[orgID] {
		members = append(members, m)
	}
	sortByCreatedAt(members, func(m models.Member) time.Time { return m.CreatedAt })
	return members, nil
}

func (db *LocalDatabase) UpdateMemberPartial(orgID, userID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	member, ok := db.members[orgID][userID]
	if !ok {
		return ErrNotFound
	}
	for key, value := range patch {
		switch key {
		case "role":
			member.Role = models.MemberRole(asString(value))
		case "application_status":
			member.ApplicationStatus = models.ApprovalStatus(asString(value))
		default:
			return fmt.Errorf("unsupported member patch key: %s", key)
		}
	}
	db.members[orgID][userID] = member
	return db.save()
}

// ==== Locations ====

func (db *LocalDatabase) CreateLocation(loc *models.Location) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.orgs[loc.OrganizationID]; !ok {
		return ErrNotFound
	}
	if loc.ID == "" {
		loc.ID = uuid.New().String()
	}
	loc.CreatedAt = time.Now()
	if db.locations[loc.OrganizationID] == nil {
		db.locations[loc.OrganizationID] = map[string]models.Location{}
	}
	db.locations[loc.OrganizationID][loc.ID] = *loc
	return db.save()
}

func (db *LocalDatabase) GetLocation(orgID, locID string) (*models.Location, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	loc, ok := db.locations[orgID][locID]
	if !ok {
		return nil, ErrNotFound
	}
	return &loc, nil
}

func (db *LocalDatabase) ListLocations(orgID string) ([]models.Location, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	locs := make([]models.Location, 0, len(db.locations[orgID]))
	for _, loc := range db.locations[orgID] {
		locs = append(locs, loc)
	}
	sortByCreatedAt(locs, func(l models.Location) time.Time { return l.CreatedAt })
	return locs, nil
}

func (db *LocalDatabase) UpdateLocationPartial(orgID, locID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	loc, ok := db.locations[orgID][locID]
	if !ok {
		return ErrNotFound
	}
	for key, value := range patch {
		switch key {
		case "name":
			loc.Name = asString(value)
		case "description":
			loc.Description = asString(value)
		case "latitude":
			loc.Latitude = asFloat(value)
		case "longitude":
			loc.Longitude = asFloat(value)
		default:
			return fmt.Errorf("unsupported location patch key: %s", key)
		}
	}
	db.locations[orgID][locID] = loc
	return db.save()
}

func (db *LocalDatabase) DeleteLocation(orgID, locID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.locations[orgID][locID]; !ok {
		return ErrNotFound
	}
	// No cascading check: items referencing this location keep a dangling
	// reference that resolves to ErrNotFound on the next read.
	delete(db.locations[orgID], locID)
	return db.save()
}

// ==== Items ====

func (db *LocalDatabase) CreateItem(item *models.Item) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.orgs[item.OrganizationID]; !ok {
		return ErrNotFound
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	now := time.Now()
	item.CreatedAt = now
	item.FoundAt = now
	if db.items[item.OrganizationID] == nil {
		db.items[item.OrganizationID] = map[string]models.Item{}
	}
	db.items[item.OrganizationID][item.ID] = *item
	return db.save()
}

func (db *LocalDatabase) GetItem(orgID, itemID string) (*models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[orgID][itemID]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (db *LocalDatabase) ListItems(orgID string) ([]models.Item, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	items := make([]models.Item, 0, len(db.items[orgID]))
	for _, item := range db.items[orgID] {
		items = append(items, item)
	}
	sortByCreatedAt(items, func(i models.Item) time.Time { return i.CreatedAt })
	return items, nil
}

func (db *LocalDatabase) UpdateItemPartial(orgID, itemID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	item, ok := db.items[orgID][itemID]
	if !ok {
		return ErrNotFound
	}
	for key, value := range patch {
		switch key {
		case "name":
			item.Name = asString(value)
		case "description":
			item.Description = asString(value)
		case "location_id":
			item.LocationID = asString(value)
		case "image_url":
			item.ImageURL = asString(value)
		case "verify_question":
			item.VerifyQuestion = asString(value)
		case "verify_answer":
			item.VerifyAnswer = asString(value)
		default:
			return fmt.Errorf("unsupported item patch key: %s", key)
		}
	}
	db.items[orgID][itemID] = item
	return db.save()
}

func (db *LocalDatabase) DeleteItem(orgID, itemID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.items[orgID][itemID]; !ok {
		return ErrNotFound
	}
	delete(db.items[orgID], itemID)
	return db.save()
}

// ==== Claims ====

func (db *LocalDatabase) CreateClaim(claim *models.Claim) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if claim.ID == "" {
		claim.ID = uuid.New().String()
	}
	claim.CreatedAt = time.Now()
	db.claims[claim.ID] = *claim
	return db.save()
}

func (db *LocalDatabase) GetClaim(claimID string) (*models.Claim, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	claim, ok := db.claims[claimID]
	if !ok {
		return nil, ErrNotFound
	}
	return &claim, nil
}

func (db *LocalDatabase) ListClaimsByItem(orgID, itemID string) ([]models.Claim, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var claims []models.Claim
	for _, c := range db.claims {
		if c.OrganizationID == orgID && c.ItemID == itemID {
			claims = append(claims, c)
		}
	}
	sortByCreatedAt(claims, func(c models.Claim) time.Time { return c.CreatedAt })
	return claims, nil
}

func (db *LocalDatabase) ListClaimsByUser(userID string) ([]models.Claim, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var claims []models.Claim
	for _, c := range db.claims {
		if c.UserID == userID {
			claims = append(claims, c)
		}
	}
	sortByCreatedAt(claims, func(c models.Claim) time.Time { return c.CreatedAt })
	return claims, nil
}

func (db *LocalDatabase) UpdateClaimPartial(claimID string, patch map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	claim, ok := db.claims[claimID]
	if !ok {
		return ErrNotFound
	}
	for key, value := range patch {
		switch key {
		case "evidence":
			claim.Evidence = asString(value)
		case "answer":
			claim.Answer = asString(value)
		default:
			return fmt.Errorf("unsupported claim patch key: %s", key)
		}
	}
	db.claims[claimID] = claim
	return db.save()
}

// ==== Requests ====

func (db *LocalDatabase) CreateRequest(req *models.Request) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.orgs[req.OrganizationID]; !ok {
		return ErrNotFound
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	req.CreatedAt = time.Now()
	if db.requests[req.OrganizationID] == nil {
		db.requests[req.OrganizationID] = map[string]models.Request{}
	}
	db.requests[req.OrganizationID][req.ID] = *req
	return db.save()
}

func (db *LocalDatabase) ListRequests(orgID string) ([]models.Request, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	reqs := make([]models.Request, 0, len(db.requests[orgID]))
	for _, r := range db.requests[orgID] {
		reqs = append(reqs, r)
	}
	sortByCreatedAt(reqs, func(r models.Request) time.Time { return r.CreatedAt })
	return reqs, nil
}

func (db *LocalDatabase) HealthCheck() error {
	if db.dataDir == "" {
		return nil
	}
	if _, err := os.Stat(db.dataDir); os.IsNotExist(err) {
		return fmt.Errorf("data directory does not exist: %s", db.dataDir)
	}
	return nil
}

func (db *LocalDatabase) Close() error {
	return nil
}

// ==== helpers ====

func sortByCreatedAt[T any](s []T, at func(T) time.Time) {
	sort.SliceStable(s, func(i, j int) bool { return at(s[i]).Before(at(s[j])) })
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}
