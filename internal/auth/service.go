package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"hotpot-chat/internal/config"
	"hotpot-chat/internal/database"
	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
)

const issuer = "hotpot-chat"

// Claims carries the identity every chat operation is performed as.
type Claims struct {
	UserID   int         `json:"user_id"`
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	users    database.UserRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(users database.UserRepository, cfg config.AuthConfig) *Service {
	return &Service{
		users:    users,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
		now:      time.Now,
	}
}

// Register creates a customer or manager account. Requests are expected to
// be validated by the caller.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.LoginResponse, error) {
	role := req.Role
	if role == "" {
		role = models.RoleCustomer
	}
	if role == models.RoleAdmin || !role.Valid() {
		return nil, apperrors.Validation("role must be customer or manager")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Unauthorized("invalid credentials")
	}

	return s.issue(user)
}

func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, apperrors.Unauthorized("invalid or expired token").WithInternal(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID <= 0 {
		return nil, apperrors.Unauthorized("invalid token")
	}
	return claims, nil
}

// GetUserFromToken validates the token and loads the current account, so a
// deleted user or changed role takes effect immediately.
func (s *Service) GetUserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*models.LoginResponse, error) {
	token, err := s.generateToken(user)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate token")
	}

	out := *user
	out.PasswordHash = ""
	return &models.LoginResponse{Token: token, User: out}, nil
}

func (s *Service) generateToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash password")
	}
	return string(hash), nil
}
