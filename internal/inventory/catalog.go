package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/config"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type NewItem struct {
	Name            string
	Category        string
	Description     string
	Unit            string
	CostPrice       decimal.Decimal
	SellingPrice    decimal.Decimal
	InitialQuantity int
}

type ItemFilter struct {
	Search   string
	Category string
}

type ItemSummary struct {
	ID                uuid.UUID       `json:"id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Unit              string          `json:"unit"`
	CostPrice         decimal.Decimal `json:"cost_price"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	AllocatedQuantity int             `json:"allocated_quantity"`
	PrimaryImageURL   string          `json:"primary_image_url"`
	CreatedAt         time.Time       `json:"created_at"`
}

type ImageView struct {
	ID           uuid.UUID `json:"id"`
	URL          string    `json:"url"`
	ThumbnailURL string    `json:"thumbnail_url"`
	FileName     string    `json:"file_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

type StockEntryView struct {
	ID            uuid.UUID       `json:"id"`
	QuantityAdded int             `json:"quantity_added"`
	CostPerUnit   decimal.Decimal `json:"cost_per_unit"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	CreatedBy     uuid.UUID       `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AllocationView struct {
	ID                 uuid.UUID               `json:"id"`
	ItemID             uuid.UUID               `json:"item_id"`
	ItemName           string                  `json:"item_name"`
	CustomerID         uuid.UUID               `json:"customer_id"`
	CustomerName       string                  `json:"customer_name"`
	QuantityUsed       int                     `json:"quantity_used"`
	EventName          string                  `json:"event_name"`
	EventDate          *time.Time              `json:"event_date"`
	ExpectedReturnDate *time.Time              `json:"expected_return_date"`
	Status             models.AllocationStatus `json:"status"`
	ReturnedAt         *time.Time              `json:"returned_at"`
	IsOverdue          bool                    `json:"is_overdue"`
	CreatedAt          time.Time               `json:"created_at"`
}

type ItemDetail struct {
	ItemSummary
	Description  string           `json:"description"`
	Images       []ImageView      `json:"images"`
	StockHistory []StockEntryView `json:"stock_history"`
	Allocations  []AllocationView `json:"allocations"`
}

// CreateItemResult carries per-file image outcomes next to the item. A
// failed image never undoes the item.
type CreateItemResult struct {
	Item   ItemDetail    `json:"item"`
	Images []ImageResult `json:"images"`
}

// CreateItem inserts the item, books InitialQuantity as a stock entry at
// cost price, then attaches the uploads. The first upload becomes primary.
func (s *Service) CreateItem(ctx context.Context, in NewItem, uploads []Upload) (*CreateItemResult, error) {
	scope, err := tenant.RequireWriter(ctx)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.Name == "":
		return nil, apperr.Validation("name is required")
	case in.Category == "":
		return nil, apperr.Validation("category is required")
	case in.CostPrice.IsNegative():
		return nil, apperr.Validation("cost price cannot be negative")
	case in.SellingPrice.IsNegative():
		return nil, apperr.Validation("selling price cannot be negative")
	case in.InitialQuantity < 0:
		return nil, apperr.Validation("initial quantity cannot be negative")
	}

	item := models.Item{
		Name:         in.Name,
		Category:     in.Category,
		Description:  strings.TrimSpace(in.Description),
		Unit:         strings.TrimSpace(in.Unit),
		CostPrice:    in.CostPrice,
		SellingPrice: in.SellingPrice,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		if in.InitialQuantity > 0 {
			if _, err := s.addStock(tx, scope, item.ID, in.InitialQuantity, in.CostPrice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	item.TotalQuantity = in.InitialQuantity
	item.AvailableQuantity = in.InitialQuantity

	// The item is committed from here on, so later failures are reported in
	// the result instead of failing the call.
	result := &CreateItemResult{Images: []ImageResult{}}
	if len(uploads) > 0 {
		images, err := s.AttachImages(ctx, item.ID, uploads)
		if err != nil {
			config.LogError(config.GetLogger(), "inventory", "CreateItem", "attach images", item.ID, err)
			images = make([]ImageResult, 0, len(uploads))
			for _, up := range uploads {
				images = append(images, ImageResult{FileName: up.FileName, Error: apperr.PublicMessage(err)})
			}
		}
		result.Images = images
	}
	detail, err := s.GetItemDetail(ctx, item.ID)
	if err != nil {
		config.LogError(config.GetLogger(), "inventory", "CreateItem", "reload item", item.ID, err)
		detail = &ItemDetail{
			ItemSummary:  summarize(item, ""),
			Description:  item.Description,
			Images:       []ImageView{},
			StockHistory: []StockEntryView{},
			Allocations:  []AllocationView{},
		}
	}
	result.Item = *detail
	return result, nil
}

func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]ItemSummary, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + search + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(category) LIKE ?", like, like)
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		q = q.Where("category = ?", category)
	}
	var items []models.Item
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	primary, err := s.primaryImageURLs(ctx, items)
	if err != nil {
		return nil, err
	}
	out := make([]ItemSummary, 0, len(items))
	for _, it := range items {
		out = append(out, summarize(it, primary[it.ID]))
	}
	return out, nil
}

func (s *Service) primaryImageURLs(ctx context.Context, items []models.Item) (map[uuid.UUID]string, error) {
	urls := make(map[uuid.UUID]string, len(items))
	if len(items) == 0 {
		return urls, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	var images []models.ItemImage
	err := s.db.WithContext(ctx).
		Where("item_id IN ? AND is_primary = ?", ids, true).
		Find(&images).Error
	if err != nil {
		return nil, fmt.Errorf("load primary images: %w", err)
	}
	for _, img := range images {
		urls[img.ItemID] = displayURL(img)
	}
	return urls, nil
}

func displayURL(img models.ItemImage) string {
	if img.ThumbnailURL != "" {
		return img.ThumbnailURL
	}
	return img.URL
}

func summarize(it models.Item, primaryURL string) ItemSummary {
	return ItemSummary{
		ID:                it.ID,
		Name:              it.Name,
		Category:          it.Category,
		Unit:              it.Unit,
		CostPrice:         it.CostPrice,
		SellingPrice:      it.SellingPrice,
		TotalQuantity:     it.TotalQuantity,
		AvailableQuantity: it.AvailableQuantity,
		AllocatedQuantity: it.Allocated(),
		PrimaryImageURL:   primaryURL,
		CreatedAt:         it.CreatedAt,
	}
}

// GetItemDetail reads the item with its images, stock history and
// allocation history. Histories are newest first.
func (s *Service) GetItemDetail(ctx context.Context, id uuid.UUID) (*ItemDetail, error) {
	if _, err := tenant.Require(ctx); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var item models.Item
	err := db.Preload("Images", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at ASC")
	}).Preload("StockEntries", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("created_at DESC")
	}).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("item")
	}
	if err != nil {
		return nil, fmt.Errorf("load item: %w", err)
	}

	allocations, err := s.ListAllocations(ctx, AllocationFilter{ItemID: &item.ID})
	if err != nil {
		return nil, err
	}

	detail := &ItemDetail{
		Description:  item.Description,
		Images:       make([]ImageView, 0, len(item.Images)),
		StockHistory: make([]StockEntryView, 0, len(item.StockEntries)),
		Allocations:  allocations,
	}
	primaryURL := ""
	for _, img := range item.Images {
		detail.Images = append(detail.Images, imageView(img))
		if img.IsPrimary {
			primaryURL = displayURL(img)
		}
	}
	detail.ItemSummary = summarize(item, primaryURL)
	for _, e := range item.StockEntries {
		detail.StockHistory = append(detail.StockHistory, StockEntryView{
			ID:            e.ID,
			QuantityAdded: e.QuantityAdded,
			CostPerUnit:   e.CostPerUnit,
			TotalCost:     e.TotalCost,
			CreatedBy:     e.CreatedBy,
			CreatedAt:     e.CreatedAt,
		})
	}
	return detail, nil
}

func imageView(img models.ItemImage) ImageView {
	return ImageView{
		ID:           img.ID,
		URL:          img.URL,
		ThumbnailURL: img.ThumbnailURL,
		FileName:     img.FileName,
		FileSize:     img.FileSize,
		MimeType:     img.MimeType,
		IsPrimary:    img.IsPrimary,
		CreatedAt:    img.CreatedAt,
	}
}
