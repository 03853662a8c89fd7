package services

import (
	"context"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/storage"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ViewResult is what a recipient gets for a successful view. URL is empty for
// folders, which have no bytes of their own.
type ViewResult struct {
	ShareID      primitive.ObjectID  `json:"shareId"`
	ResourceID   primitive.ObjectID  `json:"resourceId"`
	ResourceType models.ResourceType `json:"resourceType"`
	Name         string              `json:"name"`
	MimeType     string              `json:"mimeType,omitempty"`
	Size         int64               `json:"size,omitempty"`
	URL          string              `json:"url,omitempty"`
	Permissions  models.Permissions  `json:"permissions"`
	Owner        models.UserRef      `json:"owner"`
	ExpiresAt    *time.Time          `json:"expiresAt"`
}

type DownloadResult struct {
	ShareID  primitive.ObjectID `json:"shareId"`
	URL      string             `json:"url"`
	Filename string             `json:"filename"`
	MimeType string             `json:"mimeType"`
	Size     int64              `json:"size"`
}

// GatewayService is the access gateway: it authorizes a recipient against a
// grant, hands out a short-lived content locator and records the access.
type GatewayService struct {
	shares     *ShareService
	resources  ResourceRegistry
	identities IdentityProvider
	objects    storage.ObjectStore
	audit      *ActivityLogService
	locatorTTL time.Duration
	timeout    time.Duration
	log        *zap.Logger
}

func NewGatewayService(
	shares *ShareService,
	resources ResourceRegistry,
	identities IdentityProvider,
	objects storage.ObjectStore,
	audit *ActivityLogService,
	locatorTTL time.Duration,
	timeout time.Duration,
	log *zap.Logger,
) *GatewayService {
	return &GatewayService{
		shares:     shares,
		resources:  resources,
		identities: identities,
		objects:    objects,
		audit:      audit,
		locatorTTL: locatorTTL,
		timeout:    timeout,
		log:        log,
	}
}

// AccessForView authorizes callerID to view the shared resource. A view
// needs the read permission.
func (g *GatewayService) AccessForView(ctx context.Context, shareID, callerID primitive.ObjectID, meta RequestMeta) (*ViewResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	share, resource, err := g.authorize(ctx, shareID, callerID, func(p models.Permissions) bool { return p.Read }, "you do not have permission to view this resource")
	if err != nil {
		return nil, err
	}

	var url string
	if resource.Type == models.ResourceFile {
		if url, err = g.locator(ctx, resource, ""); err != nil {
			return nil, err
		}
	}

	owners, err := g.identities.LookupUsers(ctx, []primitive.ObjectID{share.CreatedBy})
	if err != nil {
		return nil, apperrors.Service("failed to resolve share owner", err)
	}
	owner := models.UserRef{ID: share.CreatedBy}
	if u, ok := owners[share.CreatedBy]; ok {
		owner = u.Ref()
	}

	if err := g.observe(ctx, share, callerID, models.ActionView, meta); err != nil {
		return nil, err
	}

	return &ViewResult{
		ShareID:      share.ID,
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
		Name:         resource.Name,
		MimeType:     resource.MimeType,
		Size:         resource.Size,
		URL:          url,
		Permissions:  share.Permissions,
		Owner:        owner,
		ExpiresAt:    share.ExpiresAt,
	}, nil
}

// AccessForDownload authorizes callerID to fetch the raw bytes of a shared
// file. Only the download permission is consulted.
func (g *GatewayService) AccessForDownload(ctx context.Context, shareID, callerID primitive.ObjectID, meta RequestMeta) (*DownloadResult, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	share, resource, err := g.authorize(ctx, shareID, callerID, func(p models.Permissions) bool { return p.Download }, "download permission not granted")
	if err != nil {
		return nil, err
	}
	if resource.Type != models.ResourceFile {
		return nil, apperrors.Forbidden("folders cannot be downloaded")
	}

	url, err := g.locator(ctx, resource, resource.Name)
	if err != nil {
		return nil, err
	}

	if err := g.observe(ctx, share, callerID, models.ActionDownload, meta); err != nil {
		return nil, err
	}

	return &DownloadResult{
		ShareID:  share.ID,
		URL:      url,
		Filename: resource.Name,
		MimeType: resource.MimeType,
		Size:     resource.Size,
	}, nil
}

// authorize runs the grant checks, then the permission check, then confirms
// the resource still exists. A grant whose resource was deleted stays in the
// store and is refused here.
func (g *GatewayService) authorize(ctx context.Context, shareID, callerID primitive.ObjectID, allowed func(models.Permissions) bool, denied string) (*models.Share, *Resource, error) {
	share, err := g.shares.Authorize(ctx, shareID, callerID)
	if err != nil {
		return nil, nil, err
	}
	if !allowed(share.Permissions) {
		return nil, nil, apperrors.Forbidden("%s", denied)
	}

	resource, err := g.resources.GetResource(ctx, share.ResourceID, share.ResourceType)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		return nil, nil, apperrors.Forbidden("shared resource no longer exists")
	case err != nil:
		return nil, nil, err
	}
	return share, resource, nil
}

func (g *GatewayService) locator(ctx context.Context, resource *Resource, attachment string) (string, error) {
	url, err := g.objects.PresignedURL(ctx, resource.ContentLocator, g.locatorTTL, attachment)
	if err != nil {
		return "", apperrors.Service("failed to generate access URL", err)
	}
	return url, nil
}

func (g *GatewayService) observe(ctx context.Context, share *models.Share, callerID primitive.ObjectID, action models.Action, meta RequestMeta) error {
	g.log.Debug("share accessed",
		zap.String("share_id", share.ID.Hex()),
		zap.String("accessed_by", callerID.Hex()),
		zap.String("action", string(action)))
	return g.audit.Observe(ctx, Event{
		ShareID:    share.ID,
		AccessedBy: callerID,
		Action:     action,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
	})
}
