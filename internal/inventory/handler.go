package inventory

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/httpx"
	"dhuni-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateItemRequest struct {
	Name            string          `json:"name" validate:"required,max=200"`
	Category        string          `json:"category" validate:"required,max=100"`
	Description     string          `json:"description"`
	Unit            string          `json:"unit" validate:"max=30"`
	CostPrice       decimal.Decimal `json:"cost_price"`
	SellingPrice    decimal.Decimal `json:"selling_price"`
	InitialQuantity int             `json:"initial_quantity" validate:"gte=0"`
}

type AddStockRequest struct {
	Quantity    int             `json:"quantity" validate:"gt=0"`
	CostPerUnit decimal.Decimal `json:"cost_per_unit"`
}

type AllocateRequest struct {
	ItemID             string          `json:"item_id" validate:"required,uuid"`
	CustomerID         string          `json:"customer_id" validate:"omitempty,uuid"`
	NewCustomer        *customer.Input `json:"new_customer"`
	Quantity           int             `json:"quantity" validate:"gt=0"`
	EventName          string          `json:"event_name" validate:"max=200"`
	EventDate          string          `json:"event_date"`
	ExpectedReturnDate string          `json:"expected_return_date"`
}

// parseDate accepts a plain date or an RFC 3339 timestamp.
func parseDate(field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Validationf("%s must be YYYY-MM-DD", field)
}

func readUploads(c *fiber.Ctx, field string, maxBytes int64) ([]Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.Validation("invalid multipart form")
	}
	headers := form.File[field]
	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, apperr.Validationf("cannot read %s", fh.Filename)
		}
		// One byte past the limit is enough for the size check to fail.
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil {
			return nil, apperr.Validationf("cannot read %s", fh.Filename)
		}
		uploads = append(uploads, Upload{FileName: fh.Filename, Data: data})
	}
	return uploads, nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm)
}

func decimalField(c *fiber.Ctx, name string) (decimal.Decimal, error) {
	v := strings.TrimSpace(c.FormValue(name))
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, apperr.Validationf("%s must be a number", name)
	}
	return d, nil
}

func parseCreateItem(c *fiber.Ctx, maxBytes int64) (CreateItemRequest, []Upload, error) {
	var body CreateItemRequest
	if !isMultipart(c) {
		if err := c.BodyParser(&body); err != nil {
			return body, nil, apperr.Validation("invalid request body")
		}
		return body, nil, nil
	}

	body.Name = c.FormValue("name")
	body.Category = c.FormValue("category")
	body.Description = c.FormValue("description")
	body.Unit = c.FormValue("unit")
	var err error
	if body.CostPrice, err = decimalField(c, "cost_price"); err != nil {
		return body, nil, err
	}
	if body.SellingPrice, err = decimalField(c, "selling_price"); err != nil {
		return body, nil, err
	}
	if q := strings.TrimSpace(c.FormValue("initial_quantity")); q != "" {
		if body.InitialQuantity, err = strconv.Atoi(q); err != nil {
			return body, nil, apperr.Validation("initial_quantity must be a whole number")
		}
	}
	uploads, err := readUploads(c, "images", maxBytes)
	return body, uploads, err
}

// GET /api/items?search=&category=
func ListItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items, err := svc.ListItems(c.UserContext(), ItemFilter{
			Search:   c.Query("search"),
			Category: c.Query("category"),
		})
		if err != nil {
			return err
		}
		return c.JSON(items)
	}
}

// POST /api/items (JSON, or multipart with "images" files)
func CreateItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, uploads, err := parseCreateItem(c, svc.limits.MaxUploadBytes)
		if err != nil {
			return err
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		res, err := svc.CreateItem(c.UserContext(), NewItem{
			Name:            body.Name,
			Category:        body.Category,
			Description:     body.Description,
			Unit:            body.Unit,
			CostPrice:       body.CostPrice,
			SellingPrice:    body.SellingPrice,
			InitialQuantity: body.InitialQuantity,
		}, uploads)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/items/:id
func GetItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		detail, err := svc.GetItemDetail(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(detail)
	}
}

// GET /api/items/export
func ExportItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := svc.ExportItems(c.UserContext())
		if err != nil {
			return err
		}
		name := fmt.Sprintf("items-%s.xlsx", svc.now().UTC().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
		return c.Send(data)
	}
}

// POST /api/items/:id/stock
func AddStockHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		var body AddStockRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		entry, err := svc.AddStock(c.UserContext(), id, body.Quantity, body.CostPerUnit)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	}
}

// POST /api/items/:id/images (multipart "images")
func AttachImagesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		uploads, err := readUploads(c, "images", svc.limits.MaxUploadBytes)
		if err != nil {
			return err
		}
		if len(uploads) == 0 {
			return apperr.Validation("no images uploaded")
		}
		results, err := svc.AttachImages(c.UserContext(), id, uploads)
		if err != nil {
			return err
		}
		status := fiber.StatusCreated
		for _, r := range results {
			if r.Error != "" {
				status = fiber.StatusMultiStatus
				break
			}
		}
		return c.Status(status).JSON(fiber.Map{"results": results})
	}
}

// PUT /api/items/:id/images/:imageId/primary
func SetPrimaryImageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		imageID, err := httpx.ParamUUID(c, "imageId")
		if err != nil {
			return err
		}
		img, err := svc.SetPrimaryImage(c.UserContext(), id, imageID)
		if err != nil {
			return err
		}
		return c.JSON(img)
	}
}

// DELETE /api/items/:id/images/:imageId
func DeleteImageHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		imageID, err := httpx.ParamUUID(c, "imageId")
		if err != nil {
			return err
		}
		if err := svc.DeleteImage(c.UserContext(), id, imageID); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/allocations?status=pending|returned|overdue|all
func ListAllocationsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filter := AllocationFilter{Status: c.Query("status")}
		if v := c.Query("item_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return apperr.Validation("invalid item_id")
			}
			filter.ItemID = &id
		}
		rows, err := svc.ListAllocations(c.UserContext(), filter)
		if err != nil {
			return err
		}
		return c.JSON(rows)
	}
}

// POST /api/allocations
func AllocateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body AllocateRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Validation("invalid request body")
		}
		if err := validation.Struct(body); err != nil {
			return err
		}
		in := NewAllocation{
			ItemID:      uuid.MustParse(body.ItemID),
			NewCustomer: body.NewCustomer,
			Quantity:    body.Quantity,
			EventName:   body.EventName,
		}
		if body.CustomerID != "" {
			id := uuid.MustParse(body.CustomerID)
			in.CustomerID = &id
		}
		var err error
		if in.EventDate, err = parseDate("event_date", body.EventDate); err != nil {
			return err
		}
		if in.ExpectedReturnDate, err = parseDate("expected_return_date", body.ExpectedReturnDate); err != nil {
			return err
		}

		alloc, err := svc.Allocate(c.UserContext(), in)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(alloc)
	}
}

// POST /api/allocations/:id/return
func MarkReturnedHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		alloc, err := svc.MarkReturned(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(alloc)
	}
}

// POST /api/allocations/:id/undo-return
func UndoReturnHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamUUID(c, "id")
		if err != nil {
			return err
		}
		alloc, err := svc.UndoReturn(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(alloc)
	}
}

// POST /api/items/import (multipart "file", .xlsx)
func ImportItemsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return apperr.Validation("file is required")
		}
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".xlsx") {
			return apperr.Validation("only .xlsx files can be imported")
		}
		f, err := fh.Open()
		if err != nil {
			return apperr.Validationf("cannot read %s", fh.Filename)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return apperr.Validationf("cannot read %s", fh.Filename)
		}

		res, err := svc.ImportItems(c.UserContext(), data)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}
