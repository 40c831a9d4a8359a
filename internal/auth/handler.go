package auth

import (
	"time"

	"dhuni-backend/internal/account"
	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type SignUpRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FullName     string `json:"full_name" validate:"required"`
	BusinessName string `json:"business_name" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token" validate:"required"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type SessionResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at"`
	User      UserSummary `json:"user"`
}

type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	VendorID string `json:"vendor_id"`
}

func sessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		Token:     s.Token,
		ExpiresAt: s.ExpiresAt.UTC().Format(time.RFC3339),
		User: UserSummary{
			ID:       s.Scope.UserID.String(),
			Email:    s.Email,
			FullName: s.FullName,
			Role:     string(s.Scope.Role),
			VendorID: s.Scope.VendorID.String(),
		},
	}
}

// POST /api/auth/signup
func SignUpHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SignUpRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		sess, err := svc.SignUp(c.UserContext(), body.Email, body.Password, account.ProfileAttrs{
			FullName:     body.FullName,
			BusinessName: body.BusinessName,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(sessionResponse(sess))
	}
}

// POST /api/auth/login
func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		sess, err := svc.SignIn(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return err
		}
		return c.JSON(sessionResponse(sess))
	}
}

// POST /api/auth/logout
func LogoutHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return apperr.NotAuthenticated()
		}
		if err := svc.SignOut(c.UserContext(), claims); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/auth/me
func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFrom(c)
		if !ok {
			return apperr.NotAuthenticated()
		}
		cred, vendor, err := svc.Profile(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"user": UserSummary{
				ID:       cred.ID.String(),
				Email:    cred.Email,
				FullName: cred.FullName,
				Role:     string(claims.Role),
				VendorID: vendor.ID.String(),
			},
			"vendor": fiber.Map{
				"id":      vendor.ID,
				"name":    vendor.Name,
				"email":   vendor.Email,
				"phone":   vendor.Phone,
				"address": vendor.Address,
			},
		})
	}
}

// POST /api/auth/password
func ChangePasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := svc.ChangePassword(c.UserContext(), body.Password, body.ConfirmPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "password updated"})
	}
}

// POST /api/auth/password/forgot
func ForgotPasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ForgotPasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		if err := svc.RequestPasswordReset(c.UserContext(), body.Email); err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"message": "if an account exists for this email, a reset link has been sent",
		})
	}
}

// POST /api/auth/password/reset
func ResetPasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ResetPasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		if err := svc.ResetPassword(c.UserContext(), body.Token, body.Password, body.ConfirmPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "password updated"})
	}
}
