package servers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/api"
	"github.com/tphan267/xui-hub/pkg/models"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
)

// ServerRequest is the body of POST and PUT /api/servers.
// Port may be sent as a number or a numeric string.
type ServerRequest struct {
	Name        *string  `json:"name"`
	Host        *string  `json:"host"`
	Port        *flexInt `json:"port"`
	Username    *string  `json:"username"`
	Password    *string  `json:"password"`
	WebBasePath *string  `json:"webBasePath"`
	UseTLS      *bool    `json:"useTls"`
}

type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid number %q", s)
		}
		*f = flexInt(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func (r ServerRequest) input() models.ServerInput {
	in := models.ServerInput{}
	if r.Name != nil {
		in.Name = *r.Name
	}
	if r.Host != nil {
		in.Host = *r.Host
	}
	if r.Port != nil {
		in.Port = int(*r.Port)
	}
	if r.Username != nil {
		in.Username = *r.Username
	}
	if r.Password != nil {
		in.Password = *r.Password
	}
	if r.WebBasePath != nil {
		in.WebBasePath = *r.WebBasePath
	}
	if r.UseTLS != nil {
		in.UseTLS = *r.UseTLS
	}
	return in
}

func (r ServerRequest) patch() models.ServerPatch {
	p := models.ServerPatch{
		Name:        r.Name,
		Host:        r.Host,
		Username:    r.Username,
		Password:    r.Password,
		WebBasePath: r.WebBasePath,
		UseTLS:      r.UseTLS,
	}
	if r.Port != nil {
		port := int(*r.Port)
		p.Port = &port
	}
	return p
}

// RegisterRoutes registers all server registry routes on the given group
func (s *Service) RegisterRoutes(router fiber.Router) {
	router.Get("/", s.handleGetServers)
	router.Post("/", s.handleCreateServer)
	router.Get("/:id", s.handleGetServer)
	router.Put("/:id", s.handleUpdateServer)
	router.Delete("/:id", s.handleDeleteServer)
}

// handleGetServers handles GET /api/servers - credentials are never included
func (s *Service) handleGetServers(c *fiber.Ctx) error {
	servers, err := s.GetServers(c.UserContext())
	if err != nil {
		s.logger.Error("Error listing servers: %v", err)
		return api.ErrorInternalServerErrorResp(c, "Failed to list servers")
	}

	if servers == nil {
		servers = []*models.Server{}
	}
	return api.SuccessResp(c, servers)
}

// handleGetServer handles GET /api/servers/:id
func (s *Service) handleGetServer(c *fiber.Ctx) error {
	server, err := s.GetServer(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.errorResp(c, err, "Failed to get server")
	}
	return api.SuccessResp(c, server)
}

// handleCreateServer handles POST /api/servers
func (s *Service) handleCreateServer(c *fiber.Ctx) error {
	var req ServerRequest
	if err := c.BodyParser(&req); err != nil {
		return api.ErrorBadRequestResp(c, "Invalid request body")
	}

	server, err := s.AddServer(c.UserContext(), req.input())
	if err != nil {
		return s.errorResp(c, err, "Failed to create server")
	}

	return api.SuccessCodeResp(c, fiber.StatusCreated, server)
}

// handleUpdateServer handles PUT /api/servers/:id
func (s *Service) handleUpdateServer(c *fiber.Ctx) error {
	var req ServerRequest
	if err := c.BodyParser(&req); err != nil {
		return api.ErrorBadRequestResp(c, "Invalid request body")
	}

	server, err := s.UpdateServer(c.UserContext(), c.Params("id"), req.patch())
	if err != nil {
		return s.errorResp(c, err, "Failed to update server")
	}

	return api.SuccessResp(c, server)
}

// handleDeleteServer handles DELETE /api/servers/:id
func (s *Service) handleDeleteServer(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.DeleteServer(c.UserContext(), id); err != nil {
		return s.errorResp(c, err, "Failed to delete server")
	}

	return api.SuccessResp(c, fiber.Map{"id": id})
}

func (s *Service) errorResp(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, repositories.ErrInvalid):
		return api.ErrorBadRequestResp(c, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return api.ErrorNotFoundResp(c, "Server not found")
	default:
		s.logger.Error("%s: %v", fallback, err)
		return api.ErrorInternalServerErrorResp(c, fallback)
	}
}
