package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tphan267/xui-hub/pkg/providers"
)

var (
	// ErrMissingCredentials is returned when username or password is empty
	ErrMissingCredentials = errors.New("username and password are required")
)

// MainApp is the main application implementation
type MainApp struct {
	providers *providers.Registry
}

// NewMainApp creates a new main application instance
func NewMainApp(p *providers.Registry) *MainApp {
	return &MainApp{
		providers: p,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// Login authenticates an admin and returns a bearer token
func (a *MainApp) Login(ctx context.Context, req LoginRequest) (*providers.Token, error) {
	if req.Username == "" || req.Password == "" {
		return nil, ErrMissingCredentials
	}

	auth, err := a.providers.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth provider: %w", err)
	}

	start := time.Now()
	token, err := auth.Authenticate(ctx, req.Username, req.Password)

	a.providers.Track(ctx, providers.Event{
		Type:      "login",
		Success:   err == nil,
		Duration:  time.Since(start),
		Timestamp: start,
		UserID:    req.Username,
	})

	if err != nil {
		a.providers.Logger().Warn("Failed login for %q", req.Username)
		return nil, err
	}
	return token, nil
}

// Authorize validates a bearer token
func (a *MainApp) Authorize(ctx context.Context, token string) (*providers.Claims, error) {
	auth, err := a.providers.GetAuth()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth provider: %w", err)
	}
	return auth.ValidateToken(ctx, token)
}

// ChangePassword rotates the password of the admin behind claims
func (a *MainApp) ChangePassword(ctx context.Context, claims *providers.Claims, req ChangePasswordRequest) error {
	auth, err := a.providers.GetAuth()
	if err != nil {
		return fmt.Errorf("failed to get auth provider: %w", err)
	}

	err = auth.ChangePassword(ctx, claims.UserID, req.OldPassword, req.NewPassword)

	a.providers.Track(ctx, providers.Event{
		Type:    "change_password",
		Success: err == nil,
		UserID:  claims.Username,
	})
	return err
}

// Verify that MainApp implements App interface
var _ App = (*MainApp)(nil)
