package inventory

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestCreateItemWithInitialStockAndImages(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateItem(f.ctx, NewItem{
		Name:            "  Marigold garland ",
		Category:        "Flowers",
		Unit:            "piece",
		CostPrice:       decimal.RequireFromString("2.50"),
		SellingPrice:    decimal.NewFromInt(6),
		InitialQuantity: 40,
	}, []Upload{
		{FileName: "front.png", Data: pngBytes(t, 640, 480)},
		{FileName: "notes.txt", Data: []byte("not an image")},
		{FileName: "side.png", Data: pngBytes(t, 100, 100)},
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	item := res.Item
	if item.Name != "Marigold garland" || item.TotalQuantity != 40 || item.AvailableQuantity != 40 {
		t.Fatalf("item = %+v", item.ItemSummary)
	}
	if len(item.StockHistory) != 1 || !item.StockHistory[0].TotalCost.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("stock history = %+v", item.StockHistory)
	}

	if len(res.Images) != 3 {
		t.Fatalf("image results = %d", len(res.Images))
	}
	if res.Images[0].Image == nil || !res.Images[0].Image.IsPrimary {
		t.Fatalf("first image result = %+v", res.Images[0])
	}
	if res.Images[1].Error == "" || res.Images[1].Image != nil {
		t.Fatalf("text file result = %+v", res.Images[1])
	}
	if res.Images[2].Image == nil || res.Images[2].Image.IsPrimary {
		t.Fatalf("third image result = %+v", res.Images[2])
	}

	if len(item.Images) != 2 {
		t.Fatalf("stored images = %d, want 2", len(item.Images))
	}
	primary := res.Images[0].Image
	if primary.ThumbnailURL == "" || item.PrimaryImageURL != primary.ThumbnailURL {
		t.Fatalf("primary url = %q, thumbnail = %q", item.PrimaryImageURL, primary.ThumbnailURL)
	}
	rel := strings.TrimPrefix(primary.URL, "/files/")
	if !strings.HasPrefix(rel, f.scope.VendorID.String()+"/"+item.ID.String()+"/") {
		t.Fatalf("object path %q is not under the vendor/item prefix", rel)
	}
	if _, err := os.Stat(filepath.Join(f.store.Root, filepath.FromSlash(rel))); err != nil {
		t.Fatalf("uploaded object missing: %v", err)
	}
}

func TestCreateItemValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]NewItem{
		"missing name":     {Category: "x"},
		"missing category": {Name: "x"},
		"negative cost":    {Name: "x", Category: "y", CostPrice: decimal.NewFromInt(-1)},
		"negative selling": {Name: "x", Category: "y", SellingPrice: decimal.NewFromInt(-1)},
		"negative qty":     {Name: "x", Category: "y", InitialQuantity: -1},
	}
	for name, in := range cases {
		if _, err := f.svc.CreateItem(f.ctx, in, nil); !apperr.Is(err, apperr.KindValidation) {
			t.Fatalf("%s: CreateItem() error = %v", name, err)
		}
	}
}

func TestListItemsFilters(t *testing.T) {
	f := newFixture(t)
	f.item(t, "Fairy lights")
	f.item(t, "Paper lanterns")
	if _, err := f.svc.CreateItem(f.ctx, NewItem{Name: "Round table", Category: "Furniture"}, nil); err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}

	all, err := f.svc.ListItems(f.ctx, ItemFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("ListItems() = %d, %v", len(all), err)
	}
	lights, _ := f.svc.ListItems(f.ctx, ItemFilter{Search: "LIGHT"})
	if len(lights) != 2 {
		t.Fatalf("search light = %d, want 2 (name and category match)", len(lights))
	}
	furniture, _ := f.svc.ListItems(f.ctx, ItemFilter{Category: "Furniture"})
	if len(furniture) != 1 || furniture[0].Name != "Round table" {
		t.Fatalf("category filter = %+v", furniture)
	}
}

func TestItemDetailHistories(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Chairs")
	customerID := f.customer(t, "Sita")
	f.svc.AddStock(f.ctx, itemID, 10, decimal.NewFromInt(3))
	f.svc.AddStock(f.ctx, itemID, 5, decimal.NewFromInt(4))
	if _, err := f.svc.Allocate(f.ctx, NewAllocation{ItemID: itemID, CustomerID: &customerID, Quantity: 6, EventName: "Puja"}); err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}

	detail, err := f.svc.GetItemDetail(f.ctx, itemID)
	if err != nil {
		t.Fatalf("GetItemDetail() error = %v", err)
	}
	if detail.TotalQuantity != 15 || detail.AvailableQuantity != 9 || detail.AllocatedQuantity != 6 {
		t.Fatalf("quantities = %+v", detail.ItemSummary)
	}
	if len(detail.StockHistory) != 2 || len(detail.Allocations) != 1 {
		t.Fatalf("histories = %d stock, %d allocations", len(detail.StockHistory), len(detail.Allocations))
	}
	if a := detail.Allocations[0]; a.CustomerName != "Sita" || a.EventName != "Puja" || a.Status != models.AllocationPending {
		t.Fatalf("allocation view = %+v", a)
	}
}

func TestImageLimitAndPrimaryRules(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Backdrop")
	img := pngBytes(t, 32, 32)

	results, err := f.svc.AttachImages(f.ctx, itemID, []Upload{
		{FileName: "a.png", Data: img},
		{FileName: "b.png", Data: img},
		{FileName: "c.png", Data: img},
		{FileName: "d.png", Data: img},
	})
	if err != nil {
		t.Fatalf("AttachImages() error = %v", err)
	}
	if results[3].Error == "" || results[3].Image != nil {
		t.Fatalf("fourth image should exceed the limit: %+v", results[3])
	}
	a, b, c := results[0].Image, results[1].Image, results[2].Image
	if !a.IsPrimary || b.IsPrimary || c.IsPrimary {
		t.Fatalf("primary flags = %v %v %v", a.IsPrimary, b.IsPrimary, c.IsPrimary)
	}

	if _, err := f.svc.SetPrimaryImage(f.ctx, itemID, c.ID); err != nil {
		t.Fatalf("SetPrimaryImage() error = %v", err)
	}
	assertPrimary(t, f, itemID, c.ID)

	// Deleting the primary promotes the oldest remaining image.
	if err := f.svc.DeleteImage(f.ctx, itemID, c.ID); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	assertPrimary(t, f, itemID, a.ID)

	if err := f.svc.DeleteImage(f.ctx, itemID, c.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("DeleteImage(deleted) error = %v", err)
	}
	if _, err := f.svc.SetPrimaryImage(f.ctx, f.item(t, "Other"), a.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("SetPrimaryImage(wrong item) error = %v", err)
	}

	rel := strings.TrimPrefix(c.URL, "/files/")
	if _, err := os.Stat(filepath.Join(f.store.Root, filepath.FromSlash(rel))); !os.IsNotExist(err) {
		t.Fatalf("deleted object still present: %v", err)
	}
}

func TestDeleteImageCommitsRowBeforeObjects(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Backdrop")
	results, err := f.svc.AttachImages(f.ctx, itemID, []Upload{
		{FileName: "a.png", Data: pngBytes(t, 40, 40)},
		{FileName: "b.png", Data: pngBytes(t, 50, 50)},
	})
	if err != nil {
		t.Fatalf("AttachImages() error = %v", err)
	}
	a, b := results[0].Image, results[1].Image

	var row models.ItemImage
	if err := f.db.WithContext(f.ctx).First(&row, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("load image: %v", err)
	}
	if row.ThumbnailPath == "" {
		t.Fatal("expected a thumbnail")
	}

	f.svc.store = &faultyStore{
		ObjectStore: f.store,
		failRemove:  func(p string) bool { return strings.Contains(p, "/thumb_") },
	}
	if err := f.svc.DeleteImage(f.ctx, itemID, a.ID); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}

	var count int64
	if err := f.db.WithContext(f.ctx).Model(&models.ItemImage{}).Where("id = ?", a.ID).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatal("image row survived the delete")
	}
	assertPrimary(t, f, itemID, b.ID)

	if _, err := os.Stat(filepath.Join(f.store.Root, filepath.FromSlash(row.Path))); !os.IsNotExist(err) {
		t.Fatalf("main object still present: %v", err)
	}
	// The failed removal only leaves an orphaned thumbnail behind.
	if _, err := os.Stat(filepath.Join(f.store.Root, filepath.FromSlash(row.ThumbnailPath))); err != nil {
		t.Fatalf("thumbnail stat error = %v", err)
	}
}

func TestAttachImagesIsolatesStorageFailures(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Backdrop")
	broken := pngBytes(t, 60, 60)
	f.svc.store = &faultyStore{
		ObjectStore: f.store,
		failUpload:  func(_ string, data []byte) bool { return bytes.Equal(data, broken) },
	}

	results, err := f.svc.AttachImages(f.ctx, itemID, []Upload{
		{FileName: "broken.png", Data: broken},
		{FileName: "front.png", Data: pngBytes(t, 40, 40)},
		{FileName: "side.png", Data: pngBytes(t, 50, 50)},
	})
	if err != nil {
		t.Fatalf("AttachImages() error = %v", err)
	}
	if results[0].Image != nil || !strings.Contains(results[0].Error, "storage upload") {
		t.Fatalf("broken result = %+v", results[0])
	}
	if results[1].Image == nil || !results[1].Image.IsPrimary {
		t.Fatalf("second result = %+v, want primary image", results[1])
	}
	if results[2].Image == nil || results[2].Image.IsPrimary {
		t.Fatalf("third result = %+v", results[2])
	}
	assertPrimary(t, f, itemID, results[1].Image.ID)
}

func TestCreateItemKeepsItemWhenImagesFail(t *testing.T) {
	f := newFixture(t)
	f.svc.locker = busyLocker{}

	res, err := f.svc.CreateItem(f.ctx, NewItem{
		Name:            "Chandelier",
		Category:        "Lighting",
		CostPrice:       decimal.NewFromInt(5),
		InitialQuantity: 4,
	}, []Upload{{FileName: "front.png", Data: pngBytes(t, 20, 20)}})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	if res.Item.ID == uuid.Nil || res.Item.TotalQuantity != 4 || res.Item.AvailableQuantity != 4 {
		t.Fatalf("item = %+v", res.Item.ItemSummary)
	}
	if len(res.Images) != 1 || res.Images[0].Error == "" || res.Images[0].Image != nil {
		t.Fatalf("image results = %+v", res.Images)
	}

	var count int64
	if err := f.db.WithContext(f.ctx).Model(&models.Item{}).Count(&count).Error; err != nil {
		t.Fatalf("count items: %v", err)
	}
	if count != 1 {
		t.Fatalf("items = %d, want 1", count)
	}
}

func assertPrimary(t *testing.T, f *fixture, itemID, want uuid.UUID) {
	t.Helper()
	var images []models.ItemImage
	if err := f.db.WithContext(f.ctx).Where("item_id = ? AND is_primary = ?", itemID, true).Find(&images).Error; err != nil {
		t.Fatalf("load primary: %v", err)
	}
	if len(images) != 1 || images[0].ID != want {
		t.Fatalf("primary images = %+v, want exactly %s", images, want)
	}
}

func TestExportItems(t *testing.T) {
	f := newFixture(t)
	itemID := f.item(t, "Fairy lights")
	if _, err := f.svc.AddStock(f.ctx, itemID, 8, decimal.NewFromInt(5)); err != nil {
		t.Fatalf("AddStock() error = %v", err)
	}

	data, err := f.svc.ExportItems(f.ctx)
	if err != nil {
		t.Fatalf("ExportItems() error = %v", err)
	}
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Name" {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][0] != "Fairy lights" || rows[1][5] != "8" || rows[1][6] != "8" {
		t.Fatalf("item row = %v", rows[1])
	}
}

func TestImportItemsRoundTripsExport(t *testing.T) {
	f := newFixture(t)

	wb := excelize.NewFile()
	rows := [][]any{
		{"Name", "Category", "Unit", "Cost Price", "Selling Price", "Total Quantity"},
		{"Fairy lights", "Lighting", "string", "5", "12", 8},
		{},
		{"", "Lighting"},
		{"Lantern", "Lighting", "piece", "abc"},
		{"Round table", "Furniture", "piece", "1,200.50", "2000"},
	}
	for i, r := range rows {
		cellName, _ := excelize.CoordinatesToCellName(1, i+1)
		row := r
		if err := wb.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	res, err := f.svc.ImportItems(f.ctx, buf.Bytes())
	if err != nil {
		t.Fatalf("ImportItems() error = %v", err)
	}
	if res.Created != 2 || res.Failed != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Rows[0].Row != 2 || res.Rows[0].ItemID == "" {
		t.Fatalf("first row = %+v", res.Rows[0])
	}
	if res.Rows[1].Row != 4 || res.Rows[1].Error != "name is required" {
		t.Fatalf("nameless row = %+v", res.Rows[1])
	}

	items, _ := f.svc.ListItems(f.ctx, ItemFilter{})
	byName := map[string]ItemSummary{}
	for _, it := range items {
		byName[it.Name] = it
	}
	if it := byName["Fairy lights"]; it.TotalQuantity != 8 || !it.CostPrice.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("fairy lights = %+v", it)
	}
	if it := byName["Round table"]; !it.CostPrice.Equal(decimal.RequireFromString("1200.5")) {
		t.Fatalf("round table = %+v", it)
	}

	if _, err := f.svc.ImportItems(f.ctx, []byte("not xlsx")); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("ImportItems(garbage) error = %v", err)
	}
}
