// Package storetest provides in-memory repositories with the same
// observable behavior as the PostgreSQL store, for service and handler
// tests.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sarpras-lapor/apiserver/internal/store"
	"github.com/sarpras-lapor/apiserver/types"
)

type sarprasRow struct {
	item     types.Sarpras
	archived bool
}

// DB holds every table. Repositories built from the same DB share state,
// so foreign keys and joins behave like the real schema.
type DB struct {
	mu sync.Mutex

	clock time.Time

	users    map[int]types.User
	sarpras  map[int]*sarprasRow
	laporan  map[int]types.Laporan
	lastUser int
	lastSarp int
	lastLap  int

	// BeforeStatusUpdate, when set, runs before a conditional status write
	// is evaluated. Tests use it to simulate a concurrent admin.
	BeforeStatusUpdate func(id int)
}

func New() *DB {
	return &DB{
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:   make(map[int]types.User),
		sarpras: make(map[int]*sarprasRow),
		laporan: make(map[int]types.Laporan),
	}
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (d *DB) tick() time.Time {
	d.clock = d.clock.Add(time.Second)
	return d.clock
}

func (d *DB) Users() *UserRepository { return &UserRepository{db: d} }
func (d *DB) Sarpras() *SarprasRepository { return &SarprasRepository{db: d} }
func (d *DB) Laporan() *LaporanRepository { return &LaporanRepository{db: d} }
func (d *DB) Dashboard() *DashboardRepository { return &DashboardRepository{db: d} }

// SetStatus overwrites a report's status directly.
func (d *DB) SetStatus(id int, status types.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if item, ok := d.laporan[id]; ok {
		item.Status = status
		d.laporan[id] = item
	}
}

// UserRepository is an in-memory store.UserRepository.
type UserRepository struct {
	db *DB
}

func (r *UserRepository) GetByID(_ context.Context, id int) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	user, ok := r.db.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByUsername(_ context.Context, username string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, user := range r.db.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) List(_ context.Context) ([]types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	users := make([]types.User, 0, len(r.db.users))
	for _, user := range r.db.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID > users[j].ID
		}
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Username == user.Username {
			return types.User{}, fmt.Errorf("%w: users_username_key", store.ErrConflict)
		}
		if existing.Email == user.Email {
			return types.User{}, fmt.Errorf("%w: users_email_key", store.ErrConflict)
		}
	}
	r.db.lastUser++
	user.ID = r.db.lastUser
	user.CreatedAt = r.db.tick()
	user.UpdatedAt = user.CreatedAt
	r.db.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[id]; !ok {
		return store.ErrNotFound
	}
	for _, item := range r.db.laporan {
		if item.UserID == id {
			return fmt.Errorf("%w: laporan_user_id_fkey", store.ErrInUse)
		}
	}
	delete(r.db.users, id)
	return nil
}

// SarprasRepository is an in-memory store.SarprasRepository.
type SarprasRepository struct {
	db *DB
}

func (r *SarprasRepository) List(_ context.Context) ([]types.Sarpras, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	items := make([]types.Sarpras, 0, len(r.db.sarpras))
	for _, row := range r.db.sarpras {
		if !row.archived {
			items = append(items, row.item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *SarprasRepository) GetByID(_ context.Context, id int) (types.Sarpras, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.sarpras[id]
	if !ok || row.archived {
		return types.Sarpras{}, store.ErrNotFound
	}
	return row.item, nil
}

func (r *SarprasRepository) GetByCode(_ context.Context, code string) (types.Sarpras, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, row := range r.db.sarpras {
		if !row.archived && row.item.Code == code {
			return row.item, nil
		}
	}
	return types.Sarpras{}, store.ErrNotFound
}

func (r *SarprasRepository) Create(_ context.Context, item types.Sarpras) (types.Sarpras, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, row := range r.db.sarpras {
		if row.item.Code == item.Code {
			return types.Sarpras{}, fmt.Errorf("%w: sarpras_kode_sarpras_key", store.ErrConflict)
		}
	}
	r.db.lastSarp++
	item.ID = r.db.lastSarp
	item.CreatedAt = r.db.tick()
	item.UpdatedAt = item.CreatedAt
	r.db.sarpras[item.ID] = &sarprasRow{item: item}
	return item, nil
}

func (r *SarprasRepository) Update(_ context.Context, id int, patch types.SarprasPatch) (types.Sarpras, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.sarpras[id]
	if !ok || row.archived {
		return types.Sarpras{}, store.ErrNotFound
	}
	if patch.Name != nil {
		row.item.Name = *patch.Name
	}
	if patch.Category != nil {
		row.item.Category = *patch.Category
	}
	if patch.Location != nil {
		row.item.Location = *patch.Location
	}
	if patch.Condition != nil {
		row.item.Condition = *patch.Condition
	}
	row.item.UpdatedAt = r.db.tick()
	return row.item, nil
}

func (r *SarprasRepository) Archive(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.sarpras[id]
	if !ok || row.archived {
		return store.ErrNotFound
	}
	for _, item := range r.db.laporan {
		if item.SarprasID == id && item.Status.Open() {
			return store.ErrInUse
		}
	}
	row.archived = true
	row.item.UpdatedAt = r.db.tick()
	return nil
}

// LaporanRepository is an in-memory store.LaporanRepository.
type LaporanRepository struct {
	db *DB
}

func (r *LaporanRepository) List(_ context.Context, filter types.LaporanFilter) ([]types.Laporan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.listLaporan(filter), nil
}

func (r *LaporanRepository) Get(_ context.Context, id int) (types.Laporan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.laporan[id]
	if !ok {
		return types.Laporan{}, store.ErrNotFound
	}
	return r.db.joined(item), nil
}

func (r *LaporanRepository) Create(_ context.Context, item types.Laporan) (types.Laporan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.sarpras[item.SarprasID]
	if !ok || row.archived {
		return types.Laporan{}, store.ErrReferenceNotFound
	}
	if _, ok := r.db.users[item.UserID]; !ok {
		return types.Laporan{}, fmt.Errorf("%w: laporan_user_id_fkey", store.ErrReferenceNotFound)
	}
	if item.Location == "" {
		item.Location = row.item.Location
	}
	r.db.lastLap++
	item.ID = r.db.lastLap
	item.CreatedAt = r.db.tick()
	item.UpdatedAt = item.CreatedAt
	r.db.laporan[item.ID] = item
	return item, nil
}

func (r *LaporanRepository) Update(_ context.Context, id int, patch types.LaporanPatch) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.laporan[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Description != nil {
		item.Description = *patch.Description
	}
	if patch.Location != nil {
		item.Location = *patch.Location
	}
	if patch.ReportDate != nil {
		item.ReportDate = *patch.ReportDate
	}
	if patch.Photo != nil {
		item.Photo = *patch.Photo
	}
	item.UpdatedAt = r.db.tick()
	r.db.laporan[id] = item
	return nil
}

func (r *LaporanRepository) UpdateStatus(_ context.Context, id int, from, to types.Status, note *string) error {
	if hook := r.db.BeforeStatusUpdate; hook != nil {
		hook(id)
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	item, ok := r.db.laporan[id]
	if !ok {
		return store.ErrNotFound
	}
	if item.Status != from {
		return fmt.Errorf("%w: status changed concurrently", store.ErrConflict)
	}
	item.Status = to
	if note != nil {
		item.AdminNote = *note
	}
	item.UpdatedAt = r.db.tick()
	r.db.laporan[id] = item
	return nil
}

func (r *LaporanRepository) Delete(_ context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.laporan[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.db.laporan, id)
	return nil
}

// DashboardRepository is an in-memory store.DashboardRepository.
type DashboardRepository struct {
	db *DB
}

func (r *DashboardRepository) Stats(_ context.Context, recent int) (types.Dashboard, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	dashboard := types.Dashboard{TotalLaporan: len(r.db.laporan)}
	byStatus := make(map[types.Status]int)
	for _, item := range r.db.laporan {
		byStatus[item.Status]++
	}
	for _, status := range types.Statuses {
		dashboard.StatusCount = append(dashboard.StatusCount, types.StatusCount{Status: status, Count: byStatus[status]})
	}

	byCondition := make(map[string]int)
	for _, row := range r.db.sarpras {
		if row.archived {
			continue
		}
		dashboard.TotalSarpras++
		byCondition[row.item.Condition]++
	}
	dashboard.KondisiCount = make([]types.ConditionCount, 0, len(byCondition))
	for condition, count := range byCondition {
		dashboard.KondisiCount = append(dashboard.KondisiCount, types.ConditionCount{Condition: condition, Count: count})
	}
	sort.Slice(dashboard.KondisiCount, func(i, j int) bool {
		return dashboard.KondisiCount[i].Condition < dashboard.KondisiCount[j].Condition
	})

	dashboard.RecentLaporan = r.db.listLaporan(types.LaporanFilter{Limit: recent})
	return dashboard, nil
}

// listLaporan mirrors the SQL listing. Callers hold mu.
func (d *DB) listLaporan(filter types.LaporanFilter) []types.Laporan {
	items := make([]types.Laporan, 0, len(d.laporan))
	for _, item := range d.laporan {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.UserID > 0 && item.UserID != filter.UserID {
			continue
		}
		items = append(items, d.joined(item))
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID > items[j].ID
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []types.Laporan{}
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}
	return items
}

// joined fills the asset and reporter columns. Callers hold mu.
func (d *DB) joined(item types.Laporan) types.Laporan {
	if row, ok := d.sarpras[item.SarprasID]; ok {
		item.SarprasName = row.item.Name
		item.SarprasCode = row.item.Code
		item.SarprasCategory = row.item.Category
	}
	if user, ok := d.users[item.UserID]; ok {
		item.ReporterName = user.Name
		item.ReporterEmail = user.Email
	}
	return item
}

// Revocations is an in-memory auth.RevocationList.
type Revocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewRevocations() *Revocations {
	return &Revocations{revoked: make(map[string]time.Time)}
}

func (r *Revocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked[sessionID] = until
	return nil
}

func (r *Revocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.revoked[sessionID]
	return ok, nil
}
