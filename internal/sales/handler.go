package sales

import (
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/httpx"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateSaleRequest struct {
	CustomerID    string          `json:"customer_id" validate:"required,uuid"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Discount      decimal.Decimal `json:"discount"`
	ItemsCost     decimal.Decimal `json:"items_cost"`
	PaymentStatus string          `json:"payment_status" validate:"omitempty,oneof=paid pending partial"`
	PaymentMethod string          `json:"payment_method" validate:"max=50"`
	InvoiceNumber string          `json:"invoice_number" validate:"max=50"`
	Notes         string          `json:"notes"`
	Date          string          `json:"date"`
}

type UpdateSaleRequest struct {
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	Discount      *decimal.Decimal `json:"discount"`
	ItemsCost     *decimal.Decimal `json:"items_cost"`
	PaymentStatus *string          `json:"payment_status" validate:"omitempty,oneof=paid pending partial"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,max=50"`
	Notes         *string          `json:"notes"`
}

func parseDay(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Validation("date must be YYYY-MM-DD")
}

// GET /api/sales?payment_status=&customer_id=&from=&to=
func ListSalesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := Filter{PaymentStatus: models.PaymentStatus(c.Query("payment_status"))}
		if v := c.Query("customer_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return apperr.Validation("invalid customer_id")
			}
			filter.CustomerID = &id
		}
		for key, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
			t, err := parseDay(c.Query(key))
			if err != nil {
				return err
			}
			if !t.IsZero() {
				*dst = &t
			}
		}
		rows, err := svc.List(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// POST /api/sales
func CreateSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		date, err := parseDay(body.Date)
		if err != nil {
			return err
		}
		sale, err := svc.Create(c.UserContext(), NewSale{
			CustomerID:    uuid.MustParse(body.CustomerID),
			TotalAmount:   body.TotalAmount,
			Discount:      body.Discount,
			ItemsCost:     body.ItemsCost,
			PaymentStatus: models.PaymentStatus(body.PaymentStatus),
			PaymentMethod: body.PaymentMethod,
			InvoiceNumber: body.InvoiceNumber,
			Notes:         body.Notes,
			Date:          date,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(sale)
	}
}

// GET /api/sales/:id
func GetSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		sale, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(sale)
	}
}

// PUT /api/sales/:id
func UpdateSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body UpdateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		patch := SalePatch{
			TotalAmount:   body.TotalAmount,
			Discount:      body.Discount,
			ItemsCost:     body.ItemsCost,
			PaymentMethod: body.PaymentMethod,
			Notes:         body.Notes,
		}
		if body.PaymentStatus != nil {
			st := models.PaymentStatus(*body.PaymentStatus)
			patch.PaymentStatus = &st
		}
		sale, err := svc.Update(c.UserContext(), id, patch)
		if err != nil {
			return err
		}
		return c.JSON(sale)
	}
}
