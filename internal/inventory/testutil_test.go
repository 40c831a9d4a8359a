package inventory

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/customer"
	"dhuni-backend/internal/database/dbtest"
	"dhuni-backend/internal/lock"
	"dhuni-backend/internal/models"
	"dhuni-backend/internal/storage"
	"dhuni-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	store *storage.LocalStore
	ctx   context.Context
	scope tenant.Scope
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	store, err := storage.NewLocalStore(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	ctx, scope := dbtest.NewTenant(t, db, "Rai Decor", tenant.RoleOwner)
	svc := NewService(db, customer.NewService(db, "IN"), store, lock.NewLocalLocker(), Limits{
		MaxUploadBytes:   1 << 20,
		MaxImagesPerItem: 3,
	})
	return &fixture{db: db, svc: svc, store: store, ctx: ctx, scope: scope}
}

func (f *fixture) item(t *testing.T, name string) uuid.UUID {
	t.Helper()
	res, err := f.svc.CreateItem(f.ctx, NewItem{
		Name:         name,
		Category:     "Lighting",
		CostPrice:    decimal.NewFromInt(5),
		SellingPrice: decimal.NewFromInt(12),
	}, nil)
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	return res.Item.ID
}

func (f *fixture) customer(t *testing.T, name string) uuid.UUID {
	t.Helper()
	c, err := f.svc.customers.Create(f.ctx, customer.Input{Name: name})
	if err != nil {
		t.Fatalf("create customer: %v", err)
	}
	return c.ID
}

func (f *fixture) quantities(t *testing.T, itemID uuid.UUID) (total, available int) {
	t.Helper()
	var it models.Item
	if err := f.db.WithContext(f.ctx).First(&it, "id = ?", itemID).Error; err != nil {
		t.Fatalf("load item: %v", err)
	}
	return it.TotalQuantity, it.AvailableQuantity
}

// checkInvariant asserts 0 <= available <= total for every item.
func (f *fixture) checkInvariant(t *testing.T) {
	t.Helper()
	var items []models.Item
	if err := f.db.WithContext(tenant.WithoutScope(context.Background())).Find(&items).Error; err != nil {
		t.Fatalf("load items: %v", err)
	}
	for _, it := range items {
		if it.AvailableQuantity < 0 || it.AvailableQuantity > it.TotalQuantity {
			t.Fatalf("item %s: available=%d total=%d", it.Name, it.AvailableQuantity, it.TotalQuantity)
		}
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// faultyStore fails selected uploads or removals of the wrapped store.
type faultyStore struct {
	storage.ObjectStore
	failUpload func(objectPath string, data []byte) bool
	failRemove func(objectPath string) bool
}

func (s *faultyStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	if s.failUpload != nil && s.failUpload(objectPath, data) {
		return "", apperr.Storage("upload", objectPath, errors.New("bucket unavailable"))
	}
	return s.ObjectStore.Upload(ctx, objectPath, data, contentType)
}

func (s *faultyStore) Remove(ctx context.Context, objectPath string) error {
	if s.failRemove != nil && s.failRemove(objectPath) {
		return apperr.Storage("remove", objectPath, errors.New("bucket unavailable"))
	}
	return s.ObjectStore.Remove(ctx, objectPath)
}

type busyLocker struct{}

func (busyLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, lock.ErrNotObtained
}
