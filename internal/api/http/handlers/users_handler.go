package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/api/dto"
	"github.com/streetfix/resolve-service/internal/domain"
	"github.com/streetfix/resolve-service/internal/service"
)

// UsersHandler exposes auth, profile and engineer self-service endpoints.
type UsersHandler struct {
	auth  *service.AuthService
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService, userService *service.UserService) *UsersHandler {
	return &UsersHandler{auth: authService, users: userService}
}

// Register handles POST /auth/register.
func (h *UsersHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, token, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:         req.Name,
		Email:        req.Email,
		Username:     req.Username,
		Password:     req.Password,
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": authResponse(token),
		},
	})
}

// Login handles POST /auth/login for every role.
func (h *UsersHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user": userResponse(user),
			"auth": authResponse(token),
		},
	})
}

// Me handles GET /me.
func (h *UsersHandler) Me(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(principal.User)})
}

// Profile handles GET /profiles/:id.
func (h *UsersHandler) Profile(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	profile, err := h.users.ViewProfile(c.UserContext(), principal.ID(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ProfileResponse{
		ID:            profile.User.ID,
		Name:          profile.User.Name,
		Username:      profile.User.Username,
		Role:          profile.User.Role,
		ReportCount:   profile.User.ReportCount,
		NeighborCount: profile.User.NeighborCount,
		IsNeighbor:    profile.IsNeighbor,
	}})
}

// SetEngineerStatus handles PUT /engineer/status.
func (h *UsersHandler) SetEngineerStatus(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.EngineerStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.SetEngineerStatus(c.UserContext(), principal.ID(), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

// UpdateLocation handles PUT /engineer/location.
func (h *UsersHandler) UpdateLocation(c *fiber.Ctx) error {
	principal, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.LocationRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	user, err := h.users.UpdateLocation(c.UserContext(), principal.ID(), domain.Coordinate{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponse(user)})
}

func authResponse(token domain.Token) dto.AuthResponse {
	return dto.AuthResponse{Token: token.Value, ExpiresAt: token.ExpiresAt}
}
