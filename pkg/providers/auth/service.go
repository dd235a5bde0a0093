package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
	"github.com/tphan267/xui-hub/pkg/utils"
)

var (
	// ErrInvalidCredentials is returned for a wrong username or password
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned for malformed, forged or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInvalidPassword is returned when a new password is unacceptable
	ErrInvalidPassword = errors.New("new password must not be empty")
)

const (
	defaultUsername = "admin"
	defaultPassword = "admin123"
	issuer          = "xui-hub"
)

type tokenClaims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service implements authentication service backed by the admin_users table
type Service struct {
	admins   *repositories.AdminRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewService creates a new auth service
func NewService() *Service {
	return &Service{now: time.Now}
}

// Name returns the service name
func (s *Service) Name() string {
	return "auth"
}

// Initialize loads the signing key and seeds the default admin on first run
func (s *Service) Initialize(ctx context.Context, registry *providers.Registry) error {
	s.logger = registry.Logger().Named("auth")
	s.admins = registry.DB().Admins()
	s.tokenTTL = 24 * time.Hour

	username, password := defaultUsername, defaultPassword
	if cfg := registry.Config(); cfg != nil {
		s.secret = []byte(cfg.JWTSecret)
		s.tokenTTL = cfg.TokenDuration()
		if cfg.Admin.Username != "" {
			username = cfg.Admin.Username
		}
		if cfg.Admin.Password != "" {
			password = cfg.Admin.Password
		}
	}

	if len(s.secret) == 0 {
		secret, err := utils.GenerateRandomString(48)
		if err != nil {
			return fmt.Errorf("failed to generate jwt secret: %w", err)
		}
		s.secret = []byte(secret)
		s.logger.Warn("No jwt secret configured, tokens will not survive a restart")
	}

	count, err := s.admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count == 0 {
		hash, err := hashPassword(password)
		if err != nil {
			return err
		}
		if _, err := s.admins.Create(ctx, username, hash); err != nil {
			return fmt.Errorf("failed to seed admin: %w", err)
		}
		s.logger.Warn("Created default admin account %q, change its password after first login", username)
	}

	return nil
}

// IsRunnable returns false as auth service doesn't need background processing
func (s *Service) IsRunnable() bool {
	return false
}

func (s *Service) Start(ctx context.Context) error {
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	return nil
}

// RegisterAPIRoutes is a no-op. Login and password routes are owned by the API server.
func (s *Service) RegisterAPIRoutes(router fiber.Router, middlewares ...fiber.Handler) error {
	return nil
}

// Authenticate validates credentials and returns a signed token
func (s *Service) Authenticate(ctx context.Context, username, password string) (*providers.Token, error) {
	user, err := s.admins.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.tokenTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &providers.Token{
		Token:     signed,
		Username:  user.Username,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken verifies signature, expiry and that the admin still exists
func (s *Service) ValidateToken(ctx context.Context, tokenString string) (*providers.Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	user, err := s.admins.GetByID(ctx, claims.UserID)
	if err != nil || user.Username != claims.Username {
		return nil, ErrInvalidToken
	}

	return &providers.Claims{UserID: user.ID, Username: user.Username}, nil
}

// ChangePassword verifies the old password before storing the new one
func (s *Service) ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrInvalidPassword
	}

	user, err := s.admins.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.admins.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.Info("Password changed for admin %q", user.Username)
	return nil
}

// ResetPassword sets the password of username, creating the account if missing
func (s *Service) ResetPassword(ctx context.Context, username, newPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username is required", repositories.ErrInvalid)
	}
	if newPassword == "" {
		return ErrInvalidPassword
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	user, err := s.admins.GetByUsername(ctx, username)
	if errors.Is(err, repositories.ErrNotFound) {
		_, err = s.admins.Create(ctx, username, hash)
		return err
	}
	if err != nil {
		return err
	}
	return s.admins.UpdatePasswordHash(ctx, user.ID, hash)
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify that Service implements both Service and AuthProvider interfaces
var _ providers.Service = (*Service)(nil)
var _ providers.AuthProvider = (*Service)(nil)
