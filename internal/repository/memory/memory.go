// Package memory implements the repository contracts on top of maps. It backs
// the "memory" store driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewStore returns an empty in-memory store.
func NewStore() *repository.Store {
	return &repository.Store{
		Users:        NewUsers(),
		Files:        NewFiles(),
		Folders:      NewFolders(),
		Shares:       NewShares(),
		ActivityLogs: NewActivityLogs(),
	}
}

func assignID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

type Users struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.User
}

func NewUsers() *Users {
	return &Users{byID: make(map[primitive.ObjectID]models.User)}
}

func (r *Users) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return repository.ErrAlreadyExists
		}
	}
	assignID(&u.ID)
	r.byID[u.ID] = *u
	return nil
}

func (r *Users) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *Users) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *Users) List(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *Users) Search(_ context.Context, query string, limit int) ([]models.User, error) {
	q := strings.ToLower(query)
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.User, 0)
	for _, u := range r.byID {
		if strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q) {
			u.Password = ""
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Users) SetRole(_ context.Context, id primitive.ObjectID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	r.byID[id] = u
	return nil
}

type Files struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.File
}

func NewFiles() *Files {
	return &Files{byID: make(map[primitive.ObjectID]models.File)}
}

func (r *Files) Create(_ context.Context, f *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&f.ID)
	r.byID[f.ID] = *f
	return nil
}

func (r *Files) FindByID(_ context.Context, id primitive.ObjectID) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *Files) ListByOwner(_ context.Context, owner primitive.ObjectID, folderID *primitive.ObjectID) ([]models.File, error) {
	return r.filter(func(f models.File) bool {
		if f.Owner != owner {
			return false
		}
		return folderID == nil || (f.FolderID != nil && *f.FolderID == *folderID)
	}), nil
}

func (r *Files) ListInFolders(_ context.Context, folderIDs []primitive.ObjectID) ([]models.File, error) {
	set := idSet(folderIDs)
	return r.filter(func(f models.File) bool {
		return f.FolderID != nil && set[*f.FolderID]
	}), nil
}

func (r *Files) List(_ context.Context) ([]models.File, error) {
	return r.filter(func(models.File) bool { return true }), nil
}

func (r *Files) Update(_ context.Context, f *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[f.ID]; !ok {
		return repository.ErrNotFound
	}
	r.byID[f.ID] = *f
	return nil
}

func (r *Files) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
	return nil
}

func (r *Files) filter(keep func(models.File) bool) []models.File {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.File, 0)
	for _, f := range r.byID {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type Folders struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Folder
}

func NewFolders() *Folders {
	return &Folders{byID: make(map[primitive.ObjectID]models.Folder)}
}

func (r *Folders) Create(_ context.Context, f *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&f.ID)
	r.byID[f.ID] = *f
	return nil
}

func (r *Folders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *Folders) FindByName(_ context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.byID {
		if f.Owner == owner && f.Name == name && sameParent(f.ParentID, parentID) {
			return &f, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Folders) ListChildren(_ context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Folder, 0)
	for _, f := range r.byID {
		if f.Owner == owner && sameParent(f.ParentID, parentID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Folders) Update(_ context.Context, f *models.Folder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[f.ID]; !ok {
		return repository.ErrNotFound
	}
	r.byID[f.ID] = *f
	return nil
}

func (r *Folders) DeleteMany(_ context.Context, ids []primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.byID, id)
	}
	return nil
}

func sameParent(a, b *primitive.ObjectID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type Shares struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Share
}

func NewShares() *Shares {
	return &Shares{byID: make(map[primitive.ObjectID]models.Share)}
}

func (r *Shares) Create(_ context.Context, s *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&s.ID)
	r.byID[s.ID] = *s
	return nil
}

func (r *Shares) FindByID(_ context.Context, id primitive.ObjectID) (*models.Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (r *Shares) ListByOwner(_ context.Context, owner primitive.ObjectID) ([]models.Share, error) {
	return r.filter(func(s models.Share) bool { return s.CreatedBy == owner }), nil
}

func (r *Shares) ListAllocatedTo(_ context.Context, userID primitive.ObjectID) ([]models.Share, error) {
	return r.filter(func(s models.Share) bool { return s.IsAllocated(userID) }), nil
}

// Len reports how many shares are stored.
func (r *Shares) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Shares) filter(keep func(models.Share) bool) []models.Share {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Share, 0)
	for _, s := range r.byID {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

type ActivityLogs struct {
	mu      sync.RWMutex
	entries []models.ActivityLog
}

func NewActivityLogs() *ActivityLogs {
	return &ActivityLogs{}
}

func (r *ActivityLogs) Insert(_ context.Context, entry *models.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&entry.ID)
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *ActivityLogs) InsertMany(ctx context.Context, entries []*models.ActivityLog) error {
	for _, e := range entries {
		if err := r.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *ActivityLogs) Find(_ context.Context, filter repository.LogFilter, page repository.Page) ([]models.ActivityLog, error) {
	matched := r.match(filter)
	if page.Limit <= 0 {
		return matched, nil
	}
	start := int(page.Skip())
	if start >= len(matched) {
		return []models.ActivityLog{}, nil
	}
	end := min(start+page.Limit, len(matched))
	return matched[start:end], nil
}

func (r *ActivityLogs) Count(_ context.Context, filter repository.LogFilter) (int64, error) {
	return int64(len(r.match(filter))), nil
}

// Len reports how many entries are stored.
func (r *ActivityLogs) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *ActivityLogs) match(f repository.LogFilter) []models.ActivityLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var shares map[primitive.ObjectID]bool
	if f.ShareIDs != nil {
		shares = idSet(f.ShareIDs)
	}
	out := make([]models.ActivityLog, 0)
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		switch {
		case shares != nil && !shares[e.ShareID]:
		case f.AccessedBy != nil && e.AccessedBy != *f.AccessedBy:
		case f.Action != "" && e.Action != f.Action:
		case f.From != nil && e.CreatedAt.Before(*f.From):
		case f.To != nil && e.CreatedAt.After(*f.To):
		default:
			out = append(out, e)
		}
	}
	// Collected newest-inserted first; the stable sort keeps that order for equal timestamps.
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func idSet(ids []primitive.ObjectID) map[primitive.ObjectID]bool {
	set := make(map[primitive.ObjectID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
