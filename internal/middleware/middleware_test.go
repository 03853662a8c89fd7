package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap/zaptest"
)

type stubAuth map[string]*models.User

func (s stubAuth) Authenticate(_ context.Context, token string) (*models.User, error) {
	if u, ok := s[token]; ok {
		return u, nil
	}
	return nil, apperrors.Authentication("invalid token")
}

func errorStatus(c *fiber.Ctx, err error) error {
	switch apperrors.KindOf(err) {
	case apperrors.KindAuthentication:
		return c.SendStatus(fiber.StatusUnauthorized)
	case apperrors.KindForbidden:
		return c.SendStatus(fiber.StatusForbidden)
	}
	return fiber.DefaultErrorHandler(c, err)
}

func TestAuth(t *testing.T) {
	alice := &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser}
	admin := &models.User{ID: primitive.NewObjectID(), Role: models.RoleAdmin}
	auth := stubAuth{"alice-token": alice, "admin-token": admin}

	app := fiber.New(fiber.Config{ErrorHandler: errorStatus})
	app.Use(RequestLogger(zaptest.NewLogger(t)))
	app.Get("/me", Auth(auth), func(c *fiber.Ctx) error {
		id, err := CallerID(c)
		if err != nil {
			return err
		}
		return c.SendString(id.Hex())
	})
	app.Get("/admin", Auth(auth), AdminOnly, func(c *fiber.Ctx) error {
		return c.SendString(Caller(c).Role)
	})

	tests := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
	}{
		{name: "no token", path: "/me", want: http.StatusUnauthorized},
		{name: "bearer", path: "/me", header: "Bearer alice-token", want: http.StatusOK},
		{name: "cookie", path: "/me", cookie: "alice-token", want: http.StatusOK},
		{name: "bad token", path: "/me", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "user on admin route", path: "/admin", header: "Bearer alice-token", want: http.StatusForbidden},
		{name: "admin", path: "/admin", header: "Bearer admin-token", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.cookie})
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(HeaderRequestID))
		})
	}
}

func TestRequestLogger_KeepsIncomingID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestLogger(zaptest.NewLogger(t)))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "req-123", resp.Header.Get(HeaderRequestID))
}

func TestRateLimit(t *testing.T) {
	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Get("/limited", RateLimit(0.001, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/open", RateLimit(0, 0), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	get := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(fiber.HeaderXForwardedFor, ip)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, get("/limited", "10.0.0.1"))
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, http.StatusOK, get("/limited", "10.0.0.2"), "another client keeps its own bucket")
	assert.Equal(t, http.StatusTooManyRequests, get("/limited", "10.0.0.1"))

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, get("/open", "10.0.0.1"))
	}
}

func TestClientLimiters_EvictsIdleClients(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	l := newClientLimiters(0.001, 1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	assert.Equal(t, 2, l.size())

	now = now.Add(2 * time.Minute)
	assert.True(t, l.allow("b"), "b was idle long enough to start over")
	assert.Equal(t, 1, l.size())
	assert.True(t, l.allow("a"))
}
