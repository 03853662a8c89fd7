package middleware

import (
	"context"
	"strings"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// AccessTokenCookie is the cookie browsers carry the session token in.
	AccessTokenCookie = "accessToken"

	localUserID = "user_id"
	localRole   = "role"
	localUser   = "user"
)

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// Auth validates the session token from the Authorization header or the
// accessToken cookie and stores the caller in the request locals.
func Auth(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(AccessTokenCookie)
		if header := c.Get(fiber.HeaderAuthorization); header != "" {
			token = strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		if token == "" {
			return apperrors.Authentication("access token required")
		}

		user, err := auth.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}

		c.Locals(localUserID, user.ID)
		c.Locals(localRole, user.Role)
		c.Locals(localUser, user)
		return c.Next()
	}
}

// CallerID returns the id stored by Auth.
func CallerID(c *fiber.Ctx) (primitive.ObjectID, error) {
	id, ok := c.Locals(localUserID).(primitive.ObjectID)
	if !ok || id.IsZero() {
		return primitive.NilObjectID, apperrors.Authentication("not authenticated")
	}
	return id, nil
}

// Caller returns the user stored by Auth, or nil.
func Caller(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localUser).(*models.User)
	return user
}
