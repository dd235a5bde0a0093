package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/sharelink"
	"github.com/tphan267/xui-hub/pkg/xui"
)

// Token is an issued dashboard bearer token
type Token struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Claims identifies the admin behind a validated token
type Claims struct {
	UserID   uint
	Username string
}

// AuthProvider defines authentication operations
type AuthProvider interface {
	// Authenticate validates admin credentials and returns a token
	Authenticate(ctx context.Context, username, password string) (*Token, error)
	// ValidateToken verifies a token and returns its claims
	ValidateToken(ctx context.Context, token string) (*Claims, error)
	// ChangePassword rotates the password of an authenticated admin
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
	// ResetPassword sets a password without knowing the old one, creating the admin if needed
	ResetPassword(ctx context.Context, username, newPassword string) error
}

// AnalyticsProvider defines analytics operations
type AnalyticsProvider interface {
	// Track records an analytics event
	Track(ctx context.Context, event Event) error
}

// Event represents an analytics event
type Event struct {
	Type      string
	Success   bool
	Duration  time.Duration
	Timestamp time.Time
	UserID    string
	Data      map[string]any
}

// ServerProvider manages the registry of remote panels
type ServerProvider interface {
	AddServer(ctx context.Context, in models.ServerInput) (*models.Server, error)
	UpdateServer(ctx context.Context, id string, patch models.ServerPatch) (*models.Server, error)
	DeleteServer(ctx context.Context, id string) error
	GetServers(ctx context.Context) ([]*models.Server, error)
	GetServer(ctx context.Context, id string) (*models.Server, error)

	// OnChange registers a callback invoked with the id of every updated or deleted server
	OnChange(fn func(serverID string))
}

// PanelProvider performs operations on remote panels
type PanelProvider interface {
	Status(ctx context.Context, serverID string) (json.RawMessage, error)
	Inbounds(ctx context.Context, serverID string) (json.RawMessage, error)
	AddInbound(ctx context.Context, serverID string, payload []byte) (json.RawMessage, error)
	UpdateInbound(ctx context.Context, serverID, inboundID string, payload []byte) (json.RawMessage, error)
	DeleteInbound(ctx context.Context, serverID, inboundID string) (json.RawMessage, error)
	Links(ctx context.Context, serverID string) ([]sharelink.InboundLinks, error)

	// Fan-out across every registered server
	AllStatus(ctx context.Context) ([]xui.Result, error)
	AllInbounds(ctx context.Context) ([]xui.Result, error)
}
