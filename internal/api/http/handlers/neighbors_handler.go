package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
)

// NeighborsHandler serves neighbor requests and the neighbor list.
type NeighborsHandler struct {
	neighbors *service.NeighborService
}

// NewNeighborsHandler constructs handler.
func NewNeighborsHandler(neighborService *service.NeighborService) *NeighborsHandler {
	return &NeighborsHandler{neighbors: neighborService}
}

// SendRequest POST /neighbors/requests.
func (h *NeighborsHandler) SendRequest(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.NeighborRequestCreate
	if err := bind(c, &req); err != nil {
		return err
	}
	created, err := h.neighbors.SendRequest(c.UserContext(), principal.ID(), req.ToUserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": requestResponse(created)})
}

// ListRequests GET /neighbors/requests?direction=incoming|outgoing.
func (h *NeighborsHandler) ListRequests(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	incoming := c.Query("direction", "incoming") != "outgoing"
	list, err := h.neighbors.ListRequests(c.UserContext(), principal.ID(), incoming)
	if err != nil {
		return err
	}
	items := make([]dto.NeighborRequestResponse, 0, len(list))
	for i := range list {
		items = append(items, requestResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Accept POST /neighbors/requests/:id/accept.
func (h *NeighborsHandler) Accept(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	neighbor, err := h.neighbors.AcceptRequest(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": neighborResponse(*neighbor)})
}

// Decline POST /neighbors/requests/:id/decline.
func (h *NeighborsHandler) Decline(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	declined, err := h.neighbors.DeclineRequest(c.UserContext(), c.Params("id"), principal.ID())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": requestResponse(declined)})
}

// Clear DELETE /neighbors/requests/:id.
func (h *NeighborsHandler) Clear(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.neighbors.ClearRequest(c.UserContext(), c.Params("id"), principal.ID()); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// List GET /neighbors.
func (h *NeighborsHandler) List(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	list, err := h.neighbors.ListNeighbors(c.UserContext(), principal.ID())
	if err != nil {
		return err
	}
	items := make([]dto.NeighborResponse, 0, len(list))
	for _, n := range list {
		items = append(items, neighborResponse(n))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Remove DELETE /neighbors/:id.
func (h *NeighborsHandler) Remove(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.neighbors.RemoveNeighbor(c.UserContext(), principal.ID(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func requestResponse(r *domain.FriendRequest) dto.NeighborRequestResponse {
	return dto.NeighborRequestResponse{
		ID:        r.ID,
		FromID:    r.FromID,
		FromName:  r.FromName,
		ToID:      r.ToID,
		ToName:    r.ToName,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
	}
}

func neighborResponse(n domain.Neighbor) dto.NeighborResponse {
	return dto.NeighborResponse{UserID: n.UserID, Name: n.Name, Since: n.Since}
}
