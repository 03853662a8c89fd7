package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arzan03/cloudvault/internal/config"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository/memory"
	"github.com/arzan03/cloudvault/internal/services"
	"github.com/arzan03/cloudvault/internal/storage"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	app *fiber.App
	svc Services
}

type session struct {
	user  *models.User
	token string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{BaseURL: "https://vault.test", RequestTimeout: 5 * time.Second, ProxyHeader: fiber.HeaderXForwardedFor},
		Minio:    config.MinioConfig{LocatorTTL: 10 * time.Minute},
		Auth:     config.AuthConfig{JWTSecret: "session-secret", AccessTokenTTL: time.Hour},
		Share:    config.ShareConfig{TokenSecret: "share-secret"},
		Validate: config.ValidateConfig{Rate: 1, Burst: 3},
	}
	log := zaptest.NewLogger(t)
	store := memory.NewStore()
	objects := storage.NewMemoryStore("test")

	auth := services.NewAuthService(store.Users, cfg.Auth, log)
	resources := services.NewResourceService(store.Files, store.Folders, objects, log)
	audit := services.NewActivityLogService(store.ActivityLogs, auth, cfg.Share.AuditFailClosed, log)
	shares := services.NewShareService(store.Shares, auth, resources, audit, services.NewShareTokens(cfg.ShareSecret()), cfg.Server.BaseURL, cfg.Server.RequestTimeout, log)
	gateway := services.NewGatewayService(shares, resources, auth, objects, audit, cfg.Minio.LocatorTTL, cfg.Server.RequestTimeout, log)

	svc := Services{Auth: auth, Resources: resources, Shares: shares, Gateway: gateway, Logs: audit}
	return &testServer{app: NewApp(cfg, svc, log), svc: svc}
}

func (s *testServer) signUp(t *testing.T, name, email string) session {
	t.Helper()
	ctx := context.Background()
	_, err := s.svc.Auth.Register(ctx, name, email, "password1")
	require.NoError(t, err)
	token, user, err := s.svc.Auth.Login(ctx, email, "password1")
	require.NoError(t, err)
	return session{user: user, token: token}
}

func (s *testServer) upload(t *testing.T, owner session, name string) *models.File {
	t.Helper()
	f, err := s.svc.Resources.UploadFile(context.Background(), owner.user.ID, services.UploadInput{
		Filename: name, Size: 4, Body: strings.NewReader("data"),
	})
	require.NoError(t, err)
	return f
}

type response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, response) {
	t.Helper()
	return s.doFrom(t, "192.0.2.1", method, path, token, body)
}

// doFrom sends the request as the client at ip.
func (s *testServer) doFrom(t *testing.T, ip, method, path, token string, body any) (*http.Response, response) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	req.Header.Set(fiber.HeaderXForwardedFor, ip)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	var out response
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (s *testServer) createShare(t *testing.T, owner session, file *models.File, perms map[string]bool, to ...session) services.GrantSummary {
	t.Helper()
	ids := make([]string, len(to))
	for i, u := range to {
		ids[i] = u.user.ID.Hex()
	}
	resp, body := s.do(t, http.MethodPost, "/shares/create", owner.token, fiber.Map{
		"resourceId":   file.ID.Hex(),
		"resourceType": "file",
		"allocatedTo":  ids,
		"permissions":  perms,
		"days":         1,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var summary services.GrantSummary
	require.NoError(t, json.Unmarshal(body.Data, &summary))
	return summary
}

func TestCreateShare(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice", "a@x.com")
	file := s.upload(t, owner, "doc.txt")

	summary := s.createShare(t, owner, file, map[string]bool{"download": true}, alice)
	assert.Equal(t, "https://vault.test/public/"+summary.ShareID.Hex(), summary.ShareURL)
	assert.Equal(t, models.Permissions{Read: true, Download: true}, summary.Permissions)
	assert.NotEmpty(t, summary.Token)
	require.NotNil(t, summary.ExpiresAt)

	resp, body := s.do(t, http.MethodPost, "/shares/create", owner.token, fiber.Map{
		"resourceId":   file.ID.Hex(),
		"resourceType": "album",
		"allocatedTo":  []string{alice.user.ID.Hex()},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Message)

	resp, _ = s.do(t, http.MethodPost, "/shares/create", owner.token, fiber.Map{
		"resourceId":   file.ID.Hex(),
		"resourceType": "file",
		"allocatedTo":  []string{"not-an-id"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/shares/create", owner.token, fiber.Map{
		"resourceId":   file.ID.Hex(),
		"resourceType": "file",
		"allocatedTo":  []string{alice.user.ID.Hex(), "64b7f0c2a1b2c3d4e5f60718"},
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/shares/create", alice.token, fiber.Map{
		"resourceId":   file.ID.Hex(),
		"resourceType": "file",
		"allocatedTo":  []string{owner.user.ID.Hex()},
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/shares/create", "", fiber.Map{})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAccessAndDownload(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice", "a@x.com")
	bob := s.signUp(t, "Bob", "b@x.com")
	file := s.upload(t, owner, "doc.txt")
	summary := s.createShare(t, owner, file, nil, alice)
	shareID := summary.ShareID.Hex()

	resp, body := s.do(t, http.MethodGet, "/shares/access/"+shareID, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	var view services.ViewResult
	require.NoError(t, json.Unmarshal(body.Data, &view))
	assert.Equal(t, "doc.txt", view.Name)
	assert.NotEmpty(t, view.URL)

	resp, body = s.do(t, http.MethodGet, "/shares/access/"+shareID, bob.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.False(t, body.Success)

	resp, _ = s.do(t, http.MethodGet, "/shares/download/"+shareID, alice.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode, "download is off by default")

	resp, _ = s.do(t, http.MethodGet, "/shares/access/64b7f0c2a1b2c3d4e5f60718", alice.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	for _, route := range []string{"/shares/access/not-a-share", "/shares/download/not-a-share"} {
		resp, body = s.do(t, http.MethodGet, route, alice.token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, route)
		assert.Equal(t, services.ReasonNotFound, body.Message, route)
	}

	resp, body = s.do(t, http.MethodGet, "/shares/shared-with-me", alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, string(body.Data), "token")
	assert.Contains(t, string(body.Data), shareID)
}

func TestValidateShare(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice", "a@x.com")
	file := s.upload(t, owner, "doc.txt")
	summary := s.createShare(t, owner, file, nil, alice)

	resp, body := s.do(t, http.MethodGet, "/shares/validate/"+summary.ShareID.Hex(), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	assert.Contains(t, string(body.Data), `"valid":true`)

	resp, body = s.do(t, http.MethodGet, "/shares/validate/64b7f0c2a1b2c3d4e5f60718", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, services.ReasonNotFound, body.Message)
	assert.Contains(t, string(body.Data), `"valid":false`)

	resp, body = s.do(t, http.MethodGet, "/shares/validate/garbage", "", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, services.ReasonNotFound, body.Message)
}

func TestValidateShare_ThrottlesPerClient(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice", "a@x.com")
	file := s.upload(t, owner, "doc.txt")
	summary := s.createShare(t, owner, file, nil, alice)
	path := "/shares/validate/" + summary.ShareID.Hex()

	for i := 0; i < 3; i++ {
		resp, _ := s.doFrom(t, "203.0.113.7", http.MethodGet, "/shares/validate/garbage", "", nil)
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	}
	resp, _ := s.doFrom(t, "203.0.113.7", http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "the noisy client used up its own burst")

	resp, body := s.doFrom(t, "198.51.100.20", http.MethodGet, path, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "other clients are unaffected")
	assert.Contains(t, string(body.Data), `"valid":true`)
}

func TestLogsAndExport(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice", "a@x.com")
	file := s.upload(t, owner, "doc.txt")
	summary := s.createShare(t, owner, file, nil, alice)
	shareID := summary.ShareID.Hex()

	resp, _ := s.do(t, http.MethodGet, "/shares/access/"+shareID, alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/logs/share/"+shareID+"?limit=1", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page services.LogPage
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, services.Pagination{Page: 1, Limit: 1, Total: 2, Pages: 2}, page.Pagination)
	assert.Equal(t, models.ActionView, page.Logs[0].Action)

	resp, _ = s.do(t, http.MethodGet, "/logs/share/"+shareID, alice.token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/logs/share/"+shareID+"?startDate=yesterday", owner.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/logs/my-activity", alice.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(1), page.Pagination.Total)

	resp, body = s.do(t, http.MethodGet, "/logs/my-shares-activity", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body.Data, &page))
	assert.Equal(t, int64(2), page.Pagination.Total)

	resp, body = s.do(t, http.MethodGet, "/logs/analytics/overview", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats services.Analytics
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.Equal(t, 2, stats.TotalAccess)
	assert.Equal(t, 2, stats.UniqueUsers)

	req := httptest.NewRequest(http.MethodGet, "/logs/export/"+shareID, nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+owner.token)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/csv"))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "Viewed,Alice,a@x.com")
}

func TestFilesAndFolders(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")

	resp, body := s.do(t, http.MethodPost, "/folder", owner.token, fiber.Map{"name": "Docs"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	var folder models.Folder
	require.NoError(t, json.Unmarshal(body.Data, &folder))

	resp, _ = s.do(t, http.MethodPost, "/folder", owner.token, fiber.Map{"name": "Docs"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("folderId", folder.ID.Hex()))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/file/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+owner.token)
	resp, err = s.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/file/list?folderId="+folder.ID.Hex(), owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var files []models.File
	require.NoError(t, json.Unmarshal(body.Data, &files))
	require.Len(t, files, 1)
	assert.Equal(t, "notes.txt", files[0].Filename)

	resp, body = s.do(t, http.MethodGet, "/file/stats", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	var stats services.FileStats
	require.NoError(t, json.Unmarshal(body.Data, &stats))
	assert.Equal(t, services.StorageTotals{TotalFiles: 1, TotalSize: 5}, stats.Stats)
	require.Len(t, stats.MimeTypeBreakdown, 1)

	resp, body = s.do(t, http.MethodPatch, "/file/"+files[0].ID.Hex(), owner.token, fiber.Map{"originalName": "renamed.txt", "isPublic": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	var updated models.File
	require.NoError(t, json.Unmarshal(body.Data, &updated))
	assert.Equal(t, "renamed.txt", updated.OriginalName)
	assert.True(t, updated.IsPublic)

	resp, body = s.do(t, http.MethodPost, "/folder", owner.token, fiber.Map{"name": "Archive"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	resp, _ = s.do(t, http.MethodPut, "/folder/"+folder.ID.Hex(), owner.token, fiber.Map{"name": "Archive"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, body = s.do(t, http.MethodPut, "/folder/"+folder.ID.Hex(), owner.token, fiber.Map{"name": "Papers", "isPublic": true})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	assert.Contains(t, string(body.Data), `"name":"Papers"`)

	resp, body = s.do(t, http.MethodDelete, "/folder/"+folder.ID.Hex(), owner.token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body.Message, "deleteContents")

	resp, body = s.do(t, http.MethodDelete, "/folder/"+folder.ID.Hex()+"?deleteContents=true", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	assert.Contains(t, string(body.Data), `"files":1`)

	resp, _ = s.do(t, http.MethodGet, "/file/"+files[0].ID.Hex(), owner.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthRoutes(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/auth/register", "", fiber.Map{"name": "Alice", "email": "a@x.com", "password": "password1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body.Message)
	assert.NotContains(t, string(body.Data), "password")

	resp, _ = s.do(t, http.MethodPost, "/auth/register", "", fiber.Map{"name": "Alice", "email": "a@x.com", "password": "password1"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{"email": "a@x.com", "password": "password1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "accessToken" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(cookie)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/admin/users", cookie.Value, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, err = s.svc.Auth.EnsureAdmin(context.Background(), "Root", "root@x.com", "changeme")
	require.NoError(t, err)
	resp, body = s.do(t, http.MethodPost, "/auth/login", "", fiber.Map{"email": "root@x.com", "password": "changeme"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &login))
	resp, body = s.do(t, http.MethodGet, "/admin/users", login.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	assert.Contains(t, string(body.Data), "a@x.com")

	resp, _ = s.do(t, http.MethodGet, "/auth/me", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUserDirectory(t *testing.T) {
	s := newTestServer(t)
	owner := s.signUp(t, "Owner", "o@x.com")
	alice := s.signUp(t, "Alice Liddell", "alice@x.com")

	resp, body := s.do(t, http.MethodGet, "/users?search=lidd", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body.Message)
	var found []models.UserRef
	require.NoError(t, json.Unmarshal(body.Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, alice.user.ID, found[0].ID)
	assert.NotContains(t, string(body.Data), "password")
	assert.NotContains(t, string(body.Data), "role")

	resp, body = s.do(t, http.MethodGet, "/users", owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(body.Data))

	resp, body = s.do(t, http.MethodGet, "/users/"+alice.user.ID.Hex(), owner.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body.Data), "alice@x.com")

	resp, _ = s.do(t, http.MethodGet, "/users/64b7f0c2a1b2c3d4e5f60718", owner.token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/users?search=alice", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
