// Package repository defines the persistence contracts of the server and their
// MongoDB implementations. An in-memory implementation lives in
// repository/memory.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arzan03/cloudvault/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

type Users interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	// FindByIDs returns the users that exist among ids, in no particular order.
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Search matches query case-insensitively against name or email.
	Search(ctx context.Context, query string, limit int) ([]models.User, error)
	SetRole(ctx context.Context, id primitive.ObjectID, role string) error
}

type Files interface {
	Create(ctx context.Context, f *models.File) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.File, error)
	// ListByOwner lists the owner's files. A nil folderID matches every file.
	ListByOwner(ctx context.Context, owner primitive.ObjectID, folderID *primitive.ObjectID) ([]models.File, error)
	ListInFolders(ctx context.Context, folderIDs []primitive.ObjectID) ([]models.File, error)
	List(ctx context.Context) ([]models.File, error)
	// Update replaces the stored file. A missing file is ErrNotFound.
	Update(ctx context.Context, f *models.File) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type Folders interface {
	Create(ctx context.Context, f *models.Folder) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Folder, error)
	FindByName(ctx context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID, name string) (*models.Folder, error)
	ListChildren(ctx context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error)
	Update(ctx context.Context, f *models.Folder) error
	DeleteMany(ctx context.Context, ids []primitive.ObjectID) error
}

type Shares interface {
	Create(ctx context.Context, s *models.Share) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Share, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Share, error)
	ListAllocatedTo(ctx context.Context, userID primitive.ObjectID) ([]models.Share, error)
}

// LogFilter selects activity log entries. Zero values mean "no constraint".
type LogFilter struct {
	ShareIDs   []primitive.ObjectID
	AccessedBy *primitive.ObjectID
	Action     models.Action
	From       *time.Time
	To         *time.Time
}

// Page is a 1-indexed page request.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Skip() int64 {
	return int64((p.Page - 1) * p.Limit)
}

type ActivityLogs interface {
	Insert(ctx context.Context, entry *models.ActivityLog) error
	InsertMany(ctx context.Context, entries []*models.ActivityLog) error
	// Find returns matching entries newest first. A zero Page returns everything.
	Find(ctx context.Context, filter LogFilter, page Page) ([]models.ActivityLog, error)
	Count(ctx context.Context, filter LogFilter) (int64, error)
}

// Store bundles the repositories a server instance needs.
type Store struct {
	Users        Users
	Files        Files
	Folders      Folders
	Shares       Shares
	ActivityLogs ActivityLogs
}
