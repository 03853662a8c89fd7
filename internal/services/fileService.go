package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"github.com/arzan03/cloudvault/internal/storage"
	"github.com/arzan03/cloudvault/internal/utils"
	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// maxParallelRemovals bounds concurrent object-store deletes during a folder delete.
const maxParallelRemovals = 8

// ResourceService owns files and folders. It is the resource registry the
// sharing services consult.
type ResourceService struct {
	files   repository.Files
	folders repository.Folders
	objects storage.ObjectStore
	now     func() time.Time
	log     *zap.Logger
}

func NewResourceService(files repository.Files, folders repository.Folders, objects storage.ObjectStore, log *zap.Logger) *ResourceService {
	return &ResourceService{files: files, folders: folders, objects: objects, now: time.Now, log: log}
}

// UploadInput describes an incoming file.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	FolderID    *primitive.ObjectID
	IsPublic    bool
}

// UploadFile stores the bytes first and the record second, so a record never
// points at missing bytes. The object is removed if the record cannot be saved.
func (s *ResourceService) UploadFile(ctx context.Context, owner primitive.ObjectID, in UploadInput) (*models.File, error) {
	name, ok := cleanFilename(in.Filename)
	if !ok {
		return nil, apperrors.Validation("file name is required")
	}
	if in.FolderID != nil {
		if _, err := s.ownedFolder(ctx, owner, *in.FolderID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	file := &models.File{
		ID:           primitive.NewObjectID(),
		Filename:     name,
		OriginalName: in.Filename,
		ObjectName:   fmt.Sprintf("%s/%s_%s", owner.Hex(), xid.New().String(), name),
		MimeType:     in.ContentType,
		Size:         in.Size,
		FolderID:     in.FolderID,
		IsPublic:     in.IsPublic,
		Owner:        owner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if file.MimeType == "" {
		file.MimeType = "application/octet-stream"
	}

	if err := s.objects.Put(ctx, file.ObjectName, in.Body, in.Size, file.MimeType); err != nil {
		return nil, apperrors.Service("failed to upload file to storage", err)
	}
	if err := s.files.Create(ctx, file); err != nil {
		if rmErr := s.objects.Remove(context.WithoutCancel(ctx), file.ObjectName); rmErr != nil {
			s.log.Warn("failed to clean up orphaned object", zap.String("object", file.ObjectName), zap.Error(rmErr))
		}
		return nil, apperrors.Service("failed to save file metadata", err)
	}
	return file, nil
}

func cleanFilename(raw string) (string, bool) {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(raw), "\\", "/"))
	return name, name != "" && name != "." && name != "/"
}

func (s *ResourceService) ListFiles(ctx context.Context, owner primitive.ObjectID, folderID *primitive.ObjectID) ([]models.File, error) {
	files, err := s.files.ListByOwner(ctx, owner, folderID)
	if err != nil {
		return nil, apperrors.Service("failed to retrieve files", err)
	}
	return files, nil
}

func (s *ResourceService) ListAllFiles(ctx context.Context) ([]models.File, error) {
	files, err := s.files.List(ctx)
	if err != nil {
		return nil, apperrors.Service("failed to fetch files", err)
	}
	return files, nil
}

// GetFile returns the owner's file. Files of other users look like missing files.
func (s *ResourceService) GetFile(ctx context.Context, owner, id primitive.ObjectID) (*models.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.NotFound("file not found"), "file lookup")
	}
	if file.Owner != owner {
		return nil, apperrors.NotFound("file not found")
	}
	return file, nil
}

// UpdateFile renames a file and toggles its visibility. Nil fields are left
// unchanged; the stored bytes never move.
func (s *ResourceService) UpdateFile(ctx context.Context, owner, id primitive.ObjectID, originalName *string, isPublic *bool) (*models.File, error) {
	file, err := s.GetFile(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if originalName != nil && strings.TrimSpace(*originalName) != "" {
		name, ok := cleanFilename(*originalName)
		if !ok {
			return nil, apperrors.Validation("invalid file name")
		}
		file.OriginalName = strings.TrimSpace(*originalName)
		file.Filename = name
	}
	if isPublic != nil {
		file.IsPublic = *isPublic
	}
	file.UpdatedAt = s.now()

	if err := s.files.Update(ctx, file); err != nil {
		return nil, storeErr(err, apperrors.NotFound("file not found"), "file update")
	}
	return file, nil
}

// StorageTotals sums an owner's files.
type StorageTotals struct {
	TotalFiles int   `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}

// MimeTypeUsage is one row of the per-type storage breakdown.
type MimeTypeUsage struct {
	MimeType  string `json:"mimeType"`
	Count     int    `json:"count"`
	TotalSize int64  `json:"totalSize"`
}

type FileStats struct {
	Stats             StorageTotals   `json:"stats"`
	MimeTypeBreakdown []MimeTypeUsage `json:"mimeTypeBreakdown"`
}

// FileStats reports the owner's storage usage, largest mime types first.
func (s *ResourceService) FileStats(ctx context.Context, owner primitive.ObjectID) (*FileStats, error) {
	files, err := s.files.ListByOwner(ctx, owner, nil)
	if err != nil {
		return nil, apperrors.Service("failed to compute file stats", err)
	}

	stats := &FileStats{MimeTypeBreakdown: []MimeTypeUsage{}}
	byType := map[string]int{}
	for _, f := range files {
		stats.Stats.TotalFiles++
		stats.Stats.TotalSize += f.Size
		i, ok := byType[f.MimeType]
		if !ok {
			i = len(stats.MimeTypeBreakdown)
			byType[f.MimeType] = i
			stats.MimeTypeBreakdown = append(stats.MimeTypeBreakdown, MimeTypeUsage{MimeType: f.MimeType})
		}
		stats.MimeTypeBreakdown[i].Count++
		stats.MimeTypeBreakdown[i].TotalSize += f.Size
	}
	sort.Slice(stats.MimeTypeBreakdown, func(i, j int) bool {
		a, b := stats.MimeTypeBreakdown[i], stats.MimeTypeBreakdown[j]
		if a.TotalSize != b.TotalSize {
			return a.TotalSize > b.TotalSize
		}
		return a.MimeType < b.MimeType
	})
	return stats, nil
}

// DeleteFile removes the bytes and the record in parallel.
func (s *ResourceService) DeleteFile(ctx context.Context, owner, id primitive.ObjectID) error {
	file, err := s.GetFile(ctx, owner, id)
	if err != nil {
		return err
	}
	return s.removeFile(ctx, file)
}

// AdminDeleteFile deletes any file regardless of owner.
func (s *ResourceService) AdminDeleteFile(ctx context.Context, id primitive.ObjectID) error {
	file, err := s.files.FindByID(ctx, id)
	if err != nil {
		return storeErr(err, apperrors.NotFound("file not found"), "file lookup")
	}
	return s.removeFile(ctx, file)
}

func (s *ResourceService) removeFile(ctx context.Context, file *models.File) error {
	err := utils.RunParallel(ctx,
		func(ctx context.Context) error { return s.objects.Remove(ctx, file.ObjectName) },
		func(ctx context.Context) error { return s.files.Delete(ctx, file.ID) },
	)
	if err != nil {
		return apperrors.Service("failed to delete file", err)
	}
	return nil
}

// CreateFolder creates a root folder or a child of parentID, keeping Path equal
// to the parent's path plus the parent.
func (s *ResourceService) CreateFolder(ctx context.Context, owner primitive.ObjectID, name string, parentID *primitive.ObjectID, isPublic bool) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.Validation("folder name is required")
	}

	folderPath := []primitive.ObjectID{}
	if parentID != nil {
		parent, err := s.ownedFolder(ctx, owner, *parentID)
		if err != nil {
			return nil, err
		}
		folderPath = append(append(folderPath, parent.Path...), parent.ID)
	}

	_, err := s.folders.FindByName(ctx, owner, parentID, name)
	switch {
	case err == nil:
		return nil, apperrors.Conflict("folder with this name already exists in this location")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.Service("folder lookup failed", err)
	}

	now := s.now()
	folder := &models.Folder{
		ID:        primitive.NewObjectID(),
		Name:      name,
		ParentID:  parentID,
		Path:      folderPath,
		IsPublic:  isPublic,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, apperrors.Service("failed to create folder", err)
	}
	return folder, nil
}

// UpdateFolder renames a folder and toggles its visibility. A new name must be
// unique among the folder's siblings.
func (s *ResourceService) UpdateFolder(ctx context.Context, owner, id primitive.ObjectID, name *string, isPublic *bool) (*models.Folder, error) {
	folder, err := s.ownedFolder(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.Validation("folder name is required")
		}
		if trimmed != folder.Name {
			existing, err := s.folders.FindByName(ctx, owner, folder.ParentID, trimmed)
			switch {
			case err == nil && existing.ID != folder.ID:
				return nil, apperrors.Conflict("folder with this name already exists in this location")
			case err != nil && !errors.Is(err, repository.ErrNotFound):
				return nil, apperrors.Service("folder lookup failed", err)
			}
			folder.Name = trimmed
		}
	}
	if isPublic != nil {
		folder.IsPublic = *isPublic
	}
	folder.UpdatedAt = s.now()

	if err := s.folders.Update(ctx, folder); err != nil {
		return nil, storeErr(err, apperrors.NotFound("folder not found"), "folder update")
	}
	return folder, nil
}

func (s *ResourceService) ListFolders(ctx context.Context, owner primitive.ObjectID, parentID *primitive.ObjectID) ([]models.Folder, error) {
	folders, err := s.folders.ListChildren(ctx, owner, parentID)
	if err != nil {
		return nil, apperrors.Service("failed to retrieve folders", err)
	}
	return folders, nil
}

// FolderDeletion reports what a folder delete removed.
type FolderDeletion struct {
	Folders int `json:"folders"`
	Files   int `json:"files"`
}

// DeleteFolder removes a folder, every descendant folder and every file inside
// them. A folder holding anything is only removed when deleteContents is set.
// The subtree is walked with an explicit stack. Files go first, then
// descendant folders, then the folder itself, so a retry after a partial
// failure finds the root again and finishes the job.
func (s *ResourceService) DeleteFolder(ctx context.Context, owner, id primitive.ObjectID, deleteContents bool) (*FolderDeletion, error) {
	root, err := s.ownedFolder(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	subtree := []primitive.ObjectID{}
	visited := map[primitive.ObjectID]bool{}
	stack := []primitive.ObjectID{root.ID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[current] {
			continue
		}
		visited[current] = true
		subtree = append(subtree, current)

		children, err := s.folders.ListChildren(ctx, owner, &current)
		if err != nil {
			return nil, apperrors.Service("failed to list subfolders", err)
		}
		for _, child := range children {
			stack = append(stack, child.ID)
		}
	}

	files, err := s.files.ListInFolders(ctx, subtree)
	if err != nil {
		return nil, apperrors.Service("failed to list folder files", err)
	}
	if !deleteContents && (len(subtree) > 1 || len(files) > 0) {
		return nil, apperrors.Validation("folder is not empty, use ?deleteContents=true to delete the folder and all its contents")
	}
	tasks := make([]utils.Task, 0, len(files))
	for _, f := range files {
		tasks = append(tasks, func(ctx context.Context) error {
			if err := s.objects.Remove(ctx, f.ObjectName); err != nil {
				return err
			}
			return s.files.Delete(ctx, f.ID)
		})
	}
	if err := utils.RunParallelLimit(ctx, maxParallelRemovals, tasks...); err != nil {
		return nil, apperrors.Service("failed to delete folder files", err)
	}

	if err := s.folders.DeleteMany(ctx, subtree[1:]); err != nil {
		return nil, apperrors.Service("failed to delete subfolders", err)
	}
	if err := s.folders.DeleteMany(ctx, subtree[:1]); err != nil {
		return nil, apperrors.Service("failed to delete folder", err)
	}

	s.log.Info("folder deleted",
		zap.String("folder_id", root.ID.Hex()),
		zap.Int("folders", len(subtree)),
		zap.Int("files", len(files)))
	return &FolderDeletion{Folders: len(subtree), Files: len(files)}, nil
}

func (s *ResourceService) ownedFolder(ctx context.Context, owner, id primitive.ObjectID) (*models.Folder, error) {
	folder, err := s.folders.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.NotFound("folder not found"), "folder lookup")
	}
	if folder.Owner != owner {
		return nil, apperrors.NotFound("folder not found")
	}
	return folder, nil
}

// GetResource implements ResourceRegistry.
func (s *ResourceService) GetResource(ctx context.Context, id primitive.ObjectID, typ models.ResourceType) (*Resource, error) {
	switch typ {
	case models.ResourceFile:
		f, err := s.files.FindByID(ctx, id)
		if err != nil {
			return nil, storeErr(err, apperrors.NotFound("resource not found"), "resource lookup")
		}
		return &Resource{
			ID:             f.ID,
			Type:           models.ResourceFile,
			OwnerID:        f.Owner,
			Name:           f.Filename,
			ContentLocator: f.ObjectName,
			MimeType:       f.MimeType,
			Size:           f.Size,
		}, nil
	case models.ResourceFolder:
		f, err := s.folders.FindByID(ctx, id)
		if err != nil {
			return nil, storeErr(err, apperrors.NotFound("resource not found"), "resource lookup")
		}
		return &Resource{ID: f.ID, Type: models.ResourceFolder, OwnerID: f.Owner, Name: f.Name}, nil
	default:
		return nil, apperrors.Validation("resourceType must be 'file' or 'folder'")
	}
}

// ResourceExists implements ResourceRegistry.
func (s *ResourceService) ResourceExists(ctx context.Context, id primitive.ObjectID, typ models.ResourceType) (bool, error) {
	_, err := s.GetResource(ctx, id, typ)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return false, nil
	}
	return err == nil, err
}
