package services

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arzan03/cloudvault/internal/config"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"github.com/arzan03/cloudvault/internal/repository/memory"
	"github.com/arzan03/cloudvault/internal/storage"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	store     *repository.Store
	logs      *memory.ActivityLogs
	shareRepo *memory.Shares
	objects   storage.ObjectStore
	clock     *testClock

	auth      *AuthService
	resources *ResourceService
	audit     *ActivityLogService
	tokens    *ShareTokens
	shares    *ShareService
	gateway   *GatewayService
}

type harnessOptions struct {
	failClosed bool
	logs       repository.ActivityLogs
	objects    storage.ObjectStore
	timeout    time.Duration
}

type harnessOption func(*harnessOptions)

func withFailClosed() harnessOption {
	return func(o *harnessOptions) { o.failClosed = true }
}

func withActivityLogs(logs repository.ActivityLogs) harnessOption {
	return func(o *harnessOptions) { o.logs = logs }
}

func withObjectStore(objects storage.ObjectStore, timeout time.Duration) harnessOption {
	return func(o *harnessOptions) {
		o.objects = objects
		o.timeout = timeout
	}
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	o := harnessOptions{timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	store := memory.NewStore()
	h := &harness{
		store:     store,
		logs:      store.ActivityLogs.(*memory.ActivityLogs),
		shareRepo: store.Shares.(*memory.Shares),
		clock:     &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
	}
	if o.logs != nil {
		store.ActivityLogs = o.logs
	}
	h.objects = o.objects
	if h.objects == nil {
		h.objects = storage.NewMemoryStore("test")
	}

	log := zaptest.NewLogger(t)
	h.auth = NewAuthService(store.Users, config.AuthConfig{JWTSecret: "session-secret", AccessTokenTTL: time.Hour}, log)
	h.resources = NewResourceService(store.Files, store.Folders, h.objects, log)
	h.audit = NewActivityLogService(store.ActivityLogs, h.auth, o.failClosed, log)
	h.tokens = NewShareTokens([]byte("share-secret"))
	h.shares = NewShareService(store.Shares, h.auth, h.resources, h.audit, h.tokens, "https://vault.test/", o.timeout, log)
	h.gateway = NewGatewayService(h.shares, h.resources, h.auth, h.objects, h.audit, 15*time.Minute, o.timeout, log)

	h.auth.now = h.clock.Now
	h.resources.now = h.clock.Now
	h.audit.now = h.clock.Now
	h.tokens.now = h.clock.Now
	h.shares.now = h.clock.Now
	return h
}

func (h *harness) user(t *testing.T, name, email string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Role: models.RoleUser, CreatedAt: h.clock.Now()}
	require.NoError(t, h.store.Users.Create(context.Background(), u))
	return u
}

func (h *harness) file(t *testing.T, owner *models.User, name string) *models.File {
	t.Helper()
	body := []byte("contents of " + name)
	f, err := h.resources.UploadFile(context.Background(), owner.ID, UploadInput{
		Filename:    name,
		ContentType: "text/plain",
		Size:        int64(len(body)),
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)
	return f
}

func (h *harness) grant(t *testing.T, owner *models.User, file *models.File, perms models.Permissions, days int, to ...*models.User) *GrantSummary {
	t.Helper()
	ids := make([]primitive.ObjectID, len(to))
	for i, u := range to {
		ids[i] = u.ID
	}
	g, err := h.shares.CreateGrant(context.Background(), CreateGrantInput{
		OwnerID:      owner.ID,
		ResourceID:   file.ID,
		ResourceType: models.ResourceFile,
		AllocatedTo:  ids,
		Permissions:  &perms,
		Days:         days,
	})
	require.NoError(t, err)
	return g
}
