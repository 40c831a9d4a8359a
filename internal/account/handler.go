package account

import (
	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
)

type VendorResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type UpdateVendorRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email" validate:"omitempty,email"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

// GET /api/vendor
func GetVendorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v, err := svc.GetVendor(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(VendorResponse{ID: v.ID.String(), Name: v.Name, Email: v.Email, Phone: v.Phone, Address: v.Address})
	}
}

// PUT /api/vendor
func UpdateVendorHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateVendorRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		v, err := svc.UpdateVendor(c.UserContext(), VendorPatch{
			Name:    body.Name,
			Email:   body.Email,
			Phone:   body.Phone,
			Address: body.Address,
		})
		if err != nil {
			return err
		}
		return c.JSON(VendorResponse{ID: v.ID.String(), Name: v.Name, Email: v.Email, Phone: v.Phone, Address: v.Address})
	}
}
