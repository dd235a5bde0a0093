package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/tphan267/xui-hub/pkg/api"
	"github.com/tphan267/xui-hub/pkg/core"
	"github.com/tphan267/xui-hub/pkg/logger"
	"github.com/tphan267/xui-hub/pkg/providers"
	"github.com/tphan267/xui-hub/pkg/providers/auth"
	"github.com/tphan267/xui-hub/ui"
)

const claimsKey = "claims"

// ApiServer is the HTTP server using Fiber
type ApiServer struct {
	app       *fiber.App
	api       fiber.Router
	coreApp   core.App
	providers *providers.Registry
}

// New creates the HTTP server and mounts the routes of every registered service
func New(p *providers.Registry) (*ApiServer, error) {
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: true,
	})

	s := &ApiServer{
		app:       app,
		coreApp:   core.NewMainApp(p),
		providers: p,
	}

	s.setupMiddleware()
	s.setupRoutes()

	if err := p.RegisterAllRoutes(s.api, s.authMiddleware); err != nil {
		return nil, err
	}

	// Unmatched API paths never fall through to the UI
	s.api.Use(func(c *fiber.Ctx) error {
		return api.ErrorNotFoundResp(c, "Not found")
	})

	s.setupUI()

	return s, nil
}

func (s *ApiServer) setupMiddleware() {
	s.app.Use(recover.New())
	if s.providers.Logger().Level() <= logger.DebugLevel {
		s.app.Use(fiberlogger.New())
	}
	s.app.Use(cors.New(cors.Config{
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
}

func (s *ApiServer) setupRoutes() {
	s.api = s.app.Group("/api")

	s.api.Get("/health", s.handleHealth)
	s.api.Post("/auth/login", s.handleLogin)
	s.api.Post("/auth/change-password", s.authMiddleware, s.handleChangePassword)
}

func (s *ApiServer) setupUI() {
	s.app.Use("/", filesystem.New(filesystem.Config{
		Root:         http.FS(ui.FS),
		Browse:       false,
		Index:        "index.html",
		NotFoundFile: "index.html",
	}))
}

// App returns the underlying Fiber app
func (s *ApiServer) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server
func (s *ApiServer) Start(addr string) error {
	s.providers.Logger().Info("Starting server on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *ApiServer) Shutdown(ctx context.Context) error {
	s.providers.Logger().Info("Server shutdown requested")
	return s.app.ShutdownWithContext(ctx)
}

// authMiddleware validates the bearer token. A missing token is 401, a bad one 403.
func (s *ApiServer) authMiddleware(c *fiber.Ctx) error {
	token := extractToken(c)
	if token == "" {
		return api.ErrorUnauthorizedResp(c, "Missing authorization token")
	}

	claims, err := s.coreApp.Authorize(c.UserContext(), token)
	if err != nil {
		return api.ErrorForbiddenResp(c, "Invalid or expired token")
	}

	c.Locals(claimsKey, claims)
	return c.Next()
}

// handleLogin handles POST /api/auth/login
func (s *ApiServer) handleLogin(c *fiber.Ctx) error {
	var req core.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return api.ErrorBadRequestResp(c, "Invalid request body")
	}

	token, err := s.coreApp.Login(c.UserContext(), req)
	switch {
	case err == nil:
		return api.SuccessResp(c, token)
	case errors.Is(err, core.ErrMissingCredentials):
		return api.ErrorBadRequestResp(c, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.ErrorUnauthorizedResp(c, "Invalid username or password")
	default:
		s.providers.Logger().Error("Login failed: %v", err)
		return api.ErrorInternalServerErrorResp(c, "Login failed")
	}
}

// handleChangePassword handles POST /api/auth/change-password
func (s *ApiServer) handleChangePassword(c *fiber.Ctx) error {
	claims, _ := c.Locals(claimsKey).(*providers.Claims)
	if claims == nil {
		return api.ErrorUnauthorizedResp(c)
	}

	var req core.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return api.ErrorBadRequestResp(c, "Invalid request body")
	}

	err := s.coreApp.ChangePassword(c.UserContext(), claims, req)
	switch {
	case err == nil:
		return api.SuccessResp(c, fiber.Map{"username": claims.Username})
	case errors.Is(err, auth.ErrInvalidPassword):
		return api.ErrorBadRequestResp(c, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.ErrorUnauthorizedResp(c, "Old password is incorrect")
	default:
		s.providers.Logger().Error("Password change failed: %v", err)
		return api.ErrorInternalServerErrorResp(c, "Failed to change password")
	}
}

// handleHealth handles health checks
func (s *ApiServer) handleHealth(c *fiber.Ctx) error {
	return api.SuccessResp(c, fiber.Map{
		"status": "healthy",
	})
}

// extractToken extracts the bearer token from the Authorization header
func extractToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	if header == "" {
		return ""
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// customErrorHandler renders unhandled errors in the standard envelope
func customErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		status = e.Code
	}

	return api.ErrorCodeResp(c, status, err.Error())
}
