package panel

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/tphan267/xui-hub/pkg/api"
	"github.com/tphan267/xui-hub/pkg/storage/repositories"
	"github.com/tphan267/xui-hub/pkg/xui"
)

// RegisterRoutes registers the panel proxy and fan-out routes on the given group
func (s *Service) RegisterRoutes(router fiber.Router) {
	server := router.Group("/server/:id")
	server.Get("/status", s.handleStatus)
	server.Get("/inbounds", s.handleListInbounds)
	server.Post("/inbounds", s.handleAddInbound)
	server.Post("/inbounds/del/:inboundId", s.handleDeleteInbound)
	server.Post("/inbounds/:inboundId", s.handleUpdateInbound)
	server.Get("/links", s.handleLinks)

	all := router.Group("/all-servers")
	all.Get("/status", s.handleAllStatus)
	all.Get("/inbounds", s.handleAllInbounds)
}

// handleStatus handles GET /api/xui/server/:id/status
func (s *Service) handleStatus(c *fiber.Ctx) error {
	raw, err := s.Status(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, raw)
}

// handleListInbounds handles GET /api/xui/server/:id/inbounds
func (s *Service) handleListInbounds(c *fiber.Ctx) error {
	raw, err := s.Inbounds(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, raw)
}

// handleAddInbound handles POST /api/xui/server/:id/inbounds
func (s *Service) handleAddInbound(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	raw, err := s.AddInbound(c.UserContext(), c.Params("id"), payload)
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, raw)
}

// handleUpdateInbound handles POST /api/xui/server/:id/inbounds/:inboundId
func (s *Service) handleUpdateInbound(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)

	raw, err := s.UpdateInbound(c.UserContext(), c.Params("id"), c.Params("inboundId"), payload)
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, raw)
}

// handleDeleteInbound handles POST /api/xui/server/:id/inbounds/del/:inboundId
func (s *Service) handleDeleteInbound(c *fiber.Ctx) error {
	raw, err := s.DeleteInbound(c.UserContext(), c.Params("id"), c.Params("inboundId"))
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, raw)
}

// handleLinks handles GET /api/xui/server/:id/links
func (s *Service) handleLinks(c *fiber.Ctx) error {
	links, err := s.Links(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.errorResp(c, err)
	}
	return api.SuccessResp(c, links)
}

// handleAllStatus handles GET /api/xui/all-servers/status
func (s *Service) handleAllStatus(c *fiber.Ctx) error {
	results, err := s.AllStatus(c.UserContext())
	if err != nil {
		s.logger.Error("Fan-out failed: %v", err)
		return api.ErrorInternalServerErrorResp(c, err.Error())
	}
	return api.SuccessResp(c, results, api.ApiResponseMeta{Total: len(results), Failed: xui.Failed(results)})
}

// handleAllInbounds handles GET /api/xui/all-servers/inbounds
func (s *Service) handleAllInbounds(c *fiber.Ctx) error {
	results, err := s.AllInbounds(c.UserContext())
	if err != nil {
		s.logger.Error("Fan-out failed: %v", err)
		return api.ErrorInternalServerErrorResp(c, err.Error())
	}
	return api.SuccessResp(c, results, api.ApiResponseMeta{Total: len(results), Failed: xui.Failed(results)})
}

// errorResp maps registry and panel errors to the failure envelope.
// Panel failures are 500 with the underlying message.
func (s *Service) errorResp(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, repositories.ErrInvalid):
		return api.ErrorBadRequestResp(c, err.Error())
	case errors.Is(err, repositories.ErrNotFound):
		return api.ErrorNotFoundResp(c, "Server not found")
	default:
		return api.ErrorInternalServerErrorResp(c, err.Error())
	}
}
