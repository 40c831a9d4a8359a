package auth

import (
	"strings"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/tenant"

	"github.com/gofiber/fiber/v2"
)

const CtxClaimsKey = "auth_claims"

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", apperr.NotAuthenticated()
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", &apperr.Error{Kind: apperr.KindNotAuthenticated, Message: "authorization header must be 'Bearer <token>'"}
	}
	return strings.TrimSpace(parts[1]), nil
}

// JWTMiddleware authenticates the request and puts the tenant scope on the
// request's user context, where every service reads it from.
func JWTMiddleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := bearerToken(c)
		if err != nil {
			return err
		}
		claims, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		scope, err := claims.Scope()
		if err != nil {
			return apperr.NotAuthenticated()
		}

		c.Locals(CtxClaimsKey, claims)
		c.SetUserContext(tenant.WithScope(c.UserContext(), scope))
		return c.Next()
	}
}

func ClaimsFrom(c *fiber.Ctx) (*Claims, bool) {
	claims, ok := c.Locals(CtxClaimsKey).(*Claims)
	return claims, ok
}

func RequireRole(allowedRoles ...tenant.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return apperr.NotAuthenticated()
		}
		for _, r := range allowedRoles {
			if r == claims.Role {
				return c.Next()
			}
		}
		return apperr.Forbidden("you are not allowed to perform this action")
	}
}
