package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
)

// StaffHandler exposes dispatcher-only account management.
type StaffHandler struct {
	staff *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{staff: staffService}
}

// CreateStaff POST /dispatch/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	var req dto.CreateStaffRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.staff.CreateStaff(c.UserContext(), service.StaffInput{
		Role:     req.Role,
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

// ListStaff GET /dispatch/staff?role=engineer.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	role := domain.Role(c.Query("role", string(domain.RoleEngineer)))
	users, err := h.staff.ListStaff(c.UserContext(), role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(users)})
}

// SetZone PUT /dispatch/engineers/:id/zone.
func (h *StaffHandler) SetZone(c *fiber.Ctx) error {
	var req dto.ZoneRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	engineer, err := h.staff.SetZone(c.UserContext(), c.Params("id"), domain.Zone(req.Polygon))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(engineer)})
}
