package auth

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/streetfix/resolve-service/internal/domain"
	apperrors "github.com/streetfix/resolve-service/pkg/util/errorutil"
)

// RequireRoles lets the request through only when the account's stored role is one of
// allowed. It must run after AuthMiddleware.Handle.
func RequireRoles(allowed ...domain.Role) fiber.Handler {
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}
	details := map[string]any{"required_roles": names}
	message := "requires role " + strings.Join(names, " or ")

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		for _, role := range allowed {
			if principal.Role() == role {
				return c.Next()
			}
		}
		if len(allowed) == 0 {
			return c.Next()
		}
		return apperrors.NewDomainError(apperrors.CodeForbidden, message, http.StatusForbidden, details)
	}
}

// RequireAnyRole only checks that a principal is present.
func RequireAnyRole() fiber.Handler {
	return RequireRoles()
}
