package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/arzan03/cloudvault/internal/apperrors"
	"github.com/arzan03/cloudvault/internal/config"
	"github.com/arzan03/cloudvault/internal/models"
	"github.com/arzan03/cloudvault/internal/repository"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// SessionClaims are the claims of a login token.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// AuthService is the identity provider: it registers users, issues session
// tokens and resolves tokens and ids back to users.
type AuthService struct {
	users  repository.Users
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger
}

func NewAuthService(users repository.Users, cfg config.AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.AccessTokenTTL,
		now:    time.Now,
		log:    log,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateJWT signs a session token for user.
func (s *AuthService) GenerateJWT(user *models.User) (string, error) {
	now := s.now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID: user.ID.Hex(),
		Role:   user.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Register creates a user with the default role.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return nil, apperrors.Validation("name, email and password are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.Validation("invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.Validation("password must be at least %d characters", minPasswordLength)
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return nil, apperrors.Service("failed to hash password", err)
	}

	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Password:  hashed,
		Role:      models.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, apperrors.Conflict("email already in use")
		}
		return nil, apperrors.Service("failed to create user", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID.Hex()))
	return user, nil
}

// Login checks credentials and returns a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, apperrors.Authentication("invalid credentials")
		}
		return "", nil, apperrors.Service("failed to load user", err)
	}
	if !VerifyPassword(password, user.Password) {
		return "", nil, apperrors.Authentication("invalid credentials")
	}

	token, err := s.GenerateJWT(user)
	if err != nil {
		return "", nil, apperrors.Service("failed to sign token", err)
	}
	return token, user, nil
}

// Authenticate resolves a session token to its user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	if tokenString == "" {
		return nil, apperrors.Authentication("token not found")
	}

	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.Authentication("token expired")
		}
		return nil, apperrors.Authentication("invalid token")
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperrors.Authentication("invalid token payload")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.Authentication("token invalid"), "user lookup")
	}
	return user, nil
}

func (s *AuthService) GetProfile(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, apperrors.NotFound("user not found"), "user lookup")
	}
	return user, nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.Service("failed to fetch users", err)
	}
	return users, nil
}

func (s *AuthService) ResolveIdentities(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	users, err := s.users.FindByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]bool, len(users))
	for _, u := range users {
		out[u.ID] = true
	}
	return out, nil
}

func (s *AuthService) LookupUsers(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	users, err := s.users.FindByIDs(ctx, dedupeIDs(ids))
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// userSearchLimit caps the user directory lookup.
const userSearchLimit = 10

// SearchUsers is the user directory owners use to pick grant recipients. An
// empty query returns nothing rather than the whole user base.
func (s *AuthService) SearchUsers(ctx context.Context, query string) ([]models.UserRef, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.UserRef{}, nil
	}
	users, err := s.users.Search(ctx, query, userSearchLimit)
	if err != nil {
		return nil, apperrors.Service("failed to search users", err)
	}
	out := make([]models.UserRef, len(users))
	for i := range users {
		out[i] = users[i].Ref()
	}
	return out, nil
}

// LookupUser returns the public projection of one user.
func (s *AuthService) LookupUser(ctx context.Context, id primitive.ObjectID) (models.UserRef, error) {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return models.UserRef{}, err
	}
	return user.Ref(), nil
}

// EnsureAdmin makes sure an administrator with email exists. A missing account
// is registered with password; an existing one is promoted and its password is
// left alone.
func (s *AuthService) EnsureAdmin(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		user, err = s.Register(ctx, name, email, password)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, apperrors.Service("failed to load user", err)
	case user.Role == models.RoleAdmin:
		return user, nil
	}

	if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
		return nil, apperrors.Service("failed to promote admin", err)
	}
	user.Role = models.RoleAdmin
	s.log.Info("admin account ensured", zap.String("user_id", user.ID.Hex()))
	return user, nil
}
