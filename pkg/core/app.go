package core

import (
	"context"

	"github.com/tphan267/xui-hub/pkg/providers"
)

// App defines the core application business logic interface
type App interface {
	// Login authenticates an admin and returns a bearer token
	Login(ctx context.Context, req LoginRequest) (*providers.Token, error)

	// Authorize validates a bearer token
	Authorize(ctx context.Context, token string) (*providers.Claims, error)

	// ChangePassword rotates the password of the admin behind claims
	ChangePassword(ctx context.Context, claims *providers.Claims, req ChangePasswordRequest) error
}
