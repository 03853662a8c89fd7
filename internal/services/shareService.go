package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Reasons reported by ValidateGrant.
const (
	ReasonNotFound     = "share not found"
	ReasonInvalidToken = "invalid token"
	ReasonExpired      = "share expired"
	ReasonLookupFailed = "lookup failed"
)

// CreateGrantInput is a grant request. ExpiresAt, when set, wins over the
// Days/Hours/Minutes duration.
type CreateGrantInput struct {
	OwnerID      primitive.ObjectID
	ResourceID   primitive.ObjectID
	ResourceType models.ResourceType
	AllocatedTo  []primitive.ObjectID
	Permissions  *models.Permissions
	ExpiresAt    *time.Time
	Days         int
	Hours        int
	Minutes      int
	Meta         RequestMeta
}

// GrantSummary is returned to the owner on creation. It never includes the
// resource's content locator.
type GrantSummary struct {
	ShareID      primitive.ObjectID   `json:"shareId"`
	ShareURL     string               `json:"shareUrl"`
	Token        string               `json:"token"`
	ResourceID   primitive.ObjectID   `json:"resourceId"`
	ResourceType models.ResourceType  `json:"resourceType"`
	AllocatedTo  []primitive.ObjectID `json:"allocatedTo"`
	ExpiresAt    *time.Time           `json:"expiresAt"`
	Permissions  models.Permissions   `json:"permissions"`
	CreatedAt    time.Time            `json:"createdAt"`
	Expired      bool                 `json:"expired"`
}

// ReceivedGrant is a grant as its recipients see it.
type ReceivedGrant struct {
	ShareID      primitive.ObjectID  `json:"shareId"`
	ResourceID   primitive.ObjectID  `json:"resourceId"`
	ResourceType models.ResourceType `json:"resourceType"`
	Permissions  models.Permissions  `json:"permissions"`
	ExpiresAt    *time.Time          `json:"expiresAt"`
	Expired      bool                `json:"expired"`
	Owner        models.UserRef      `json:"owner"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// GrantValidity is the result of the lightweight validity check.
type GrantValidity struct {
	Valid        bool                `json:"valid"`
	Reason       string              `json:"reason,omitempty"`
	ResourceType models.ResourceType `json:"resourceType,omitempty"`
	Permissions  *models.Permissions `json:"permissions,omitempty"`
	ExpiresAt    *time.Time          `json:"expiresAt,omitempty"`
}

// ShareService is the share grant manager.
type ShareService struct {
	shares     repository.Shares
	identities IdentityProvider
	resources  ResourceRegistry
	audit      *ActivityLogService
	tokens     *ShareTokens
	baseURL    string
	timeout    time.Duration
	now        func() time.Time
	log        *zap.Logger
}

func NewShareService(
	shares repository.Shares,
	identities IdentityProvider,
	resources ResourceRegistry,
	audit *ActivityLogService,
	tokens *ShareTokens,
	baseURL string,
	timeout time.Duration,
	log *zap.Logger,
) *ShareService {
	return &ShareService{
		shares:     shares,
		identities: identities,
		resources:  resources,
		audit:      audit,
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		now:        time.Now,
		log:        log,
	}
}

// CreateGrant validates the request, mints the token, stores the grant and
// records a share event. Every check runs before the single insert, so a
// rejected request leaves neither a grant nor a log entry behind.
func (s *ShareService) CreateGrant(ctx context.Context, in CreateGrantInput) (*GrantSummary, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if in.ResourceID.IsZero() || in.ResourceType == "" {
		return nil, apperrors.Validation("resourceId and resourceType are required")
	}
	if !in.ResourceType.Valid() {
		return nil, apperrors.Validation("resourceType must be 'file' or 'folder'")
	}
	if len(in.AllocatedTo) == 0 {
		return nil, apperrors.Validation("allocatedTo must be a non-empty array of user IDs")
	}
	for _, id := range in.AllocatedTo {
		if id.IsZero() {
			return nil, apperrors.Validation("allocatedTo contains an empty user ID")
		}
	}
	if in.Days < 0 || in.Hours < 0 || in.Minutes < 0 {
		return nil, apperrors.Validation("days, hours and minutes must not be negative")
	}

	recipients := dedupeIDs(in.AllocatedTo)
	existing, err := s.identities.ResolveIdentities(ctx, recipients)
	if err != nil {
		return nil, apperrors.Service("failed to verify recipients", err)
	}
	var missing []string
	for _, id := range recipients {
		if !existing[id] {
			missing = append(missing, id.Hex())
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.NotFound("one or more users in allocatedTo do not exist: %s", strings.Join(missing, ", "))
	}

	resource, err := s.resources.GetResource(ctx, in.ResourceID, in.ResourceType)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		return nil, apperrors.Forbidden("you are not the owner of this resource")
	case err != nil:
		return nil, err
	case resource.OwnerID != in.OwnerID:
		return nil, apperrors.Forbidden("you are not the owner of this resource")
	}

	now := s.now()
	expiresAt := resolveExpiry(now, in)

	perms := models.DefaultPermissions()
	if in.Permissions != nil {
		perms = *in.Permissions
	}

	share := &models.Share{
		ID:           primitive.NewObjectID(),
		CreatedBy:    in.OwnerID,
		ResourceID:   in.ResourceID,
		ResourceType: in.ResourceType,
		AllocatedTo:  recipients,
		Permissions:  perms,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
	}
	share.Token, err = s.tokens.Mint(share)
	if err != nil {
		return nil, apperrors.Service("failed to sign share token", err)
	}

	if err := s.shares.Create(ctx, share); err != nil {
		return nil, apperrors.Service("failed to create share", err)
	}

	// The grant exists at this point. Failing the request would invite a retry
	// that creates a duplicate grant, so a failed share event is only logged.
	if _, err := s.audit.RecordEvent(ctx, Event{
		ShareID:    share.ID,
		AccessedBy: in.OwnerID,
		Action:     models.ActionShare,
		IP:         in.Meta.IP,
		UserAgent:  in.Meta.UserAgent,
	}); err != nil {
		s.log.Error("failed to record share creation", zap.String("share_id", share.ID.Hex()), zap.Error(err))
	}

	s.log.Info("share created",
		zap.String("share_id", share.ID.Hex()),
		zap.String("owner", in.OwnerID.Hex()),
		zap.Int("recipients", len(recipients)))

	summary := s.summarize(share, now)
	summary.Token = share.Token
	return summary, nil
}

// resolveExpiry returns the explicit expiry verbatim, or now plus the summed
// duration, or nil when neither yields a positive window.
// An explicit expiry already in the past is kept as given; such a grant is
// simply never valid.
func resolveExpiry(now time.Time, in CreateGrantInput) *time.Time {
	if in.ExpiresAt != nil {
		at := *in.ExpiresAt
		return &at
	}
	d := time.Duration(in.Days)*24*time.Hour + time.Duration(in.Hours)*time.Hour + time.Duration(in.Minutes)*time.Minute
	if d <= 0 {
		return nil
	}
	at := now.Add(d)
	return &at
}

func (s *ShareService) shareURL(id primitive.ObjectID) string {
	return fmt.Sprintf("%s/public/%s", s.baseURL, id.Hex())
}

func (s *ShareService) summarize(share *models.Share, now time.Time) *GrantSummary {
	return &GrantSummary{
		ShareID:      share.ID,
		ShareURL:     s.shareURL(share.ID),
		ResourceID:   share.ResourceID,
		ResourceType: share.ResourceType,
		AllocatedTo:  share.AllocatedTo,
		ExpiresAt:    share.ExpiresAt,
		Permissions:  share.Permissions,
		CreatedAt:    share.CreatedAt,
		Expired:      share.Expired(now),
	}
}

// ValidateGrant is the unauthenticated pre-flight check. It never fails; the
// outcome is encoded in the result.
func (s *ShareService) ValidateGrant(ctx context.Context, shareID primitive.ObjectID) GrantValidity {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return GrantValidity{Reason: ReasonNotFound}
		}
		s.log.Warn("share validation lookup failed", zap.String("share_id", shareID.Hex()), zap.Error(err))
		return GrantValidity{Reason: ReasonLookupFailed}
	}
	if reason := s.validity(share); reason != "" {
		return GrantValidity{Reason: reason}
	}
	perms := share.Permissions
	return GrantValidity{
		Valid:        true,
		ResourceType: share.ResourceType,
		Permissions:  &perms,
		ExpiresAt:    share.ExpiresAt,
	}
}

// validity checks both expiry representations: the token's own and the stored
// one. They come from the same timestamp; both are checked anyway.
func (s *ShareService) validity(share *models.Share) string {
	if _, err := s.tokens.Verify(share.Token, share.ID); err != nil {
		if errors.Is(err, ErrShareTokenExpired) {
			return ReasonExpired
		}
		return ReasonInvalidToken
	}
	if share.Expired(s.now()) {
		return ReasonExpired
	}
	return ""
}

// Authorize runs the checks common to every access: the grant exists, its
// token verifies, it has not expired and callerID is a recipient.
func (s *ShareService) Authorize(ctx context.Context, shareID, callerID primitive.ObjectID) (*models.Share, error) {
	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		return nil, storeErr(err, apperrors.NotFound(ReasonNotFound), "share lookup")
	}
	if reason := s.validity(share); reason != "" {
		return nil, apperrors.Forbidden("%s", reason)
	}
	if !share.IsAllocated(callerID) {
		return nil, apperrors.Forbidden("you do not have access to this share")
	}
	return share, nil
}

// ListMyGrants lists the grants ownerID created, newest first.
func (s *ShareService) ListMyGrants(ctx context.Context, ownerID primitive.ObjectID) ([]GrantSummary, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	shares, err := s.shares.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Service("failed to fetch shares", err)
	}
	now := s.now()
	out := make([]GrantSummary, len(shares))
	for i := range shares {
		out[i] = *s.summarize(&shares[i], now)
		out[i].Token = shares[i].Token
	}
	return out, nil
}

// ListSharedWithMe lists the grants allocated to userID, newest first. Tokens
// are not included.
func (s *ShareService) ListSharedWithMe(ctx context.Context, userID primitive.ObjectID) ([]ReceivedGrant, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	shares, err := s.shares.ListAllocatedTo(ctx, userID)
	if err != nil {
		return nil, apperrors.Service("failed to fetch shares", err)
	}
	owners := make([]primitive.ObjectID, len(shares))
	for i, sh := range shares {
		owners[i] = sh.CreatedBy
	}
	users, err := s.identities.LookupUsers(ctx, owners)
	if err != nil {
		return nil, apperrors.Service("failed to resolve share owners", err)
	}

	now := s.now()
	out := make([]ReceivedGrant, len(shares))
	for i, sh := range shares {
		owner := models.UserRef{ID: sh.CreatedBy}
		if u, ok := users[sh.CreatedBy]; ok {
			owner = u.Ref()
		}
		out[i] = ReceivedGrant{
			ShareID:      sh.ID,
			ResourceID:   sh.ResourceID,
			ResourceType: sh.ResourceType,
			Permissions:  sh.Permissions,
			ExpiresAt:    sh.ExpiresAt,
			Expired:      sh.Expired(now),
			Owner:        owner,
			CreatedAt:    sh.CreatedAt,
		}
	}
	return out, nil
}

// GetOwnedGrant returns the grant if ownerID created it.
func (s *ShareService) GetOwnedGrant(ctx context.Context, ownerID, shareID primitive.ObjectID) (*models.Share, error) {
	share, err := s.shares.FindByID(ctx, shareID)
	if err != nil {
		return nil, storeErr(err, apperrors.NotFound(ReasonNotFound), "share lookup")
	}
	if share.CreatedBy != ownerID {
		return nil, apperrors.Forbidden("only the share owner can view its activity")
	}
	return share, nil
}

// OwnedGrantIDs lists the ids of every grant ownerID created.
func (s *ShareService) OwnedGrantIDs(ctx context.Context, ownerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	shares, err := s.shares.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperrors.Service("failed to fetch shares", err)
	}
	ids := make([]primitive.ObjectID, len(shares))
	for i, sh := range shares {
		ids[i] = sh.ID
	}
	return ids, nil
}

// Analytics aggregates the activity of one grant for its owner.
func (s *ShareService) Analytics(ctx context.Context, ownerID, shareID primitive.ObjectID) (*Analytics, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.GetOwnedGrant(ctx, ownerID, shareID); err != nil {
		return nil, err
	}
	return s.audit.AggregateForGrants(ctx, []primitive.ObjectID{shareID})
}

// OverviewAnalytics aggregates the activity of every grant ownerID created.
func (s *ShareService) OverviewAnalytics(ctx context.Context, ownerID primitive.ObjectID) (*Analytics, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.OwnedGrantIDs(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.audit.AggregateForGrants(ctx, ids)
}
