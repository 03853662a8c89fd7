package services

import (
	"errors"
	"time"

	"github.com/arzan03/cloudvault/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrShareTokenInvalid = errors.New("invalid share token")
	ErrShareTokenExpired = errors.New("share token expired")
)

// ShareClaims is the payload of a share token. The JWT id is the grant id.
type ShareClaims struct {
	jwt.RegisteredClaims
	ResourceID   string              `json:"resourceId"`
	ResourceType models.ResourceType `json:"resourceType"`
	AllocatedTo  []string            `json:"allocatedTo"`
	Permissions  models.Permissions  `json:"permissions"`
}

// ShareTokens mints and verifies share tokens with a server-held HMAC secret.
// A token is verifiable on its own: nothing but the token and the secret is
// needed to check it.
type ShareTokens struct {
	secret []byte
	now    func() time.Time
}

func NewShareTokens(secret []byte) *ShareTokens {
	return &ShareTokens{secret: secret, now: time.Now}
}

// Mint signs a token for share. The token expiry is derived from
// share.ExpiresAt, the same timestamp that is stored on the grant.
func (t *ShareTokens) Mint(share *models.Share) (string, error) {
	allocated := make([]string, len(share.AllocatedTo))
	for i, id := range share.AllocatedTo {
		allocated[i] = id.Hex()
	}

	claims := ShareClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       share.ID.Hex(),
			Subject:  share.CreatedBy.Hex(),
			IssuedAt: jwt.NewNumericDate(share.CreatedAt),
		},
		ResourceID:   share.ResourceID.Hex(),
		ResourceType: share.ResourceType,
		AllocatedTo:  allocated,
		Permissions:  share.Permissions,
	}
	if share.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(tokenExpiry(*share.ExpiresAt))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, algorithm and expiry of token and that it was minted
// for shareID.
func (t *ShareTokens) Verify(token string, shareID primitive.ObjectID) (*ShareClaims, error) {
	claims := &ShareClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrShareTokenExpired
		}
		return nil, ErrShareTokenInvalid
	}
	if !parsed.Valid || claims.ID != shareID.Hex() {
		return nil, ErrShareTokenInvalid
	}
	return claims, nil
}

// tokenExpiry rounds up to the whole second JWT numeric dates carry, so the
// token never expires before the stored expiry. The stored expiry stays the
// tighter bound and is always checked as well.
func tokenExpiry(expiresAt time.Time) time.Time {
	truncated := expiresAt.Truncate(time.Second)
	if truncated.Before(expiresAt) {
		return truncated.Add(time.Second)
	}
	return truncated
}
