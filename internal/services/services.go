// Package services holds the business logic: the identity provider, the
// resource registry, the share grant manager, the access gateway and the
// activity log service.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IdentityProvider resolves user ids. AuthService implements it.
type IdentityProvider interface {
	// ResolveIdentities returns the subset of ids that belong to existing users.
	ResolveIdentities(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error)
	LookupUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
}

// ResourceRegistry answers ownership and existence questions about files and
// folders. ResourceService implements it.
type ResourceRegistry interface {
	GetResource(ctx context.Context, id primitive.ObjectID, typ models.ResourceType) (*Resource, error)
	ResourceExists(ctx context.Context, id primitive.ObjectID, typ models.ResourceType) (bool, error)
}

// Resource is the registry's view of a shareable file or folder.
type Resource struct {
	ID      primitive.ObjectID
	Type    models.ResourceType
	OwnerID primitive.ObjectID
	Name    string
	// ContentLocator is the object name of a file's bytes. Empty for folders.
	ContentLocator string
	MimeType       string
	Size           int64
}

// RequestMeta carries the request attributes recorded in the activity log.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// storeErr maps a repository error to the error taxonomy. notFound is returned
// for repository.ErrNotFound; anything else is a service failure.
func storeErr(err error, notFound *apperrors.Error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return apperrors.Service(op+" failed", err)
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
