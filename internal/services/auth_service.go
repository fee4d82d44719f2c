package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

var ErrInvalidCredentials = errors.New("invalid email or password")

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Claims is the token payload. Subject carries the user id.
type Claims struct {
	UserID domain.ID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	Store  repositories.Store
	Secret []byte
	TTL    time.Duration
}

func (s AuthService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return 24 * time.Hour
}

// Register creates a rider account.
func (s AuthService) Register(ctx context.Context, in RegisterInput) (models.PublicUser, error) {
	return s.createUser(ctx, in, domain.RoleUser)
}

// EnsureAdmin creates the admin account for in.Email unless it already
// exists. An existing account with another role is a conflict.
func (s AuthService) EnsureAdmin(ctx context.Context, in RegisterInput) (models.PublicUser, bool, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	existing, err := s.Store.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == domain.RoleAdmin:
		return existing.ToPublic(), false, nil
	case err == nil:
		return models.PublicUser{}, false, domain.ConflictError{Resource: "user", Msg: email + " is registered without the admin role"}
	case !errors.Is(err, repositories.ErrNotFound):
		return models.PublicUser{}, false, storeError(err, "user", "lookup")
	}

	u, err := s.createUser(ctx, in, domain.RoleAdmin)
	if err != nil {
		return models.PublicUser{}, false, err
	}
	return u, true, nil
}

func (s AuthService) createUser(ctx context.Context, in RegisterInput, role string) (models.PublicUser, error) {
	name := utils.NormalizeSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" {
		return models.PublicUser{}, domain.ValidationError{Field: "name", Msg: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return models.PublicUser{}, domain.ValidationError{Field: "email", Msg: "is invalid", Err: err}
	}
	if len(in.Password) < minPasswordLength {
		return models.PublicUser{}, domain.ValidationError{Field: "password", Msg: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.PublicUser{}, domain.InternalError{Msg: "hash password", Err: err}
	}

	u := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    utils.NowUTC(),
	}
	if err := s.Store.CreateUser(ctx, &u); err != nil {
		return models.PublicUser{}, storeError(err, "user", "email already registered")
	}
	return u.ToPublic(), nil
}

// Login returns a signed HS256 token for valid credentials.
func (s AuthService) Login(ctx context.Context, email, password string) (string, models.PublicUser, error) {
	u, err := s.Store.GetUserByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", models.PublicUser{}, domain.ValidationError{Field: "credentials", Err: ErrInvalidCredentials, Msg: ErrInvalidCredentials.Error()}
	}
	if err != nil {
		return "", models.PublicUser{}, storeError(err, "user", "lookup")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", models.PublicUser{}, domain.ValidationError{Field: "credentials", Err: ErrInvalidCredentials, Msg: ErrInvalidCredentials.Error()}
	}

	token, err := s.Issue(u.ID, u.Role)
	if err != nil {
		return "", models.PublicUser{}, err
	}
	return token, u.ToPublic(), nil
}

func (s AuthService) Issue(userID domain.ID, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl())),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Secret)
	if err != nil {
		return "", domain.InternalError{Msg: "sign token", Err: err}
	}
	return signed, nil
}

// ParseToken validates signature and expiry and returns the caller identity.
func (s AuthService) ParseToken(raw string) (domain.RequestContext, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.RequestContext{}, err
	}
	if claims.UserID <= 0 {
		return domain.RequestContext{}, errors.New("token has no user id")
	}
	return domain.RequestContext{UserID: claims.UserID, Role: claims.Role}, nil
}
