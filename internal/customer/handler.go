package customer

import (
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/httpx"
	"dhuni-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CustomerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Address   string `json:"address"`
	Notes     string `json:"notes"`
	CreatedAt string `json:"created_at"`
}

func toResponse(c *models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		Address:   c.Address,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// GET /api/customers?search=
func ListCustomersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		customers, err := svc.List(c.UserContext(), c.Query("search"))
		if err != nil {
			return err
		}
		resp := make([]CustomerResponse, 0, len(customers))
		for i := range customers {
			resp = append(resp, toResponse(&customers[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/customers
func CreateCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		cust, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(cust))
	}
}

// GET /api/customers/:id
func GetCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		cust, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(cust))
	}
}

// PUT /api/customers/:id
func UpdateCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body Input
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		cust, err := svc.Update(c.UserContext(), id, body)
		if err != nil {
			return err
		}
		return c.JSON(toResponse(cust))
	}
}

// DELETE /api/customers/:id
func DeleteCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
