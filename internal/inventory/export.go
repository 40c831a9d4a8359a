package inventory

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Items"

var exportHeaders = []string{
	"Name", "Category", "Unit", "Cost Price", "Selling Price",
	"Total Quantity", "Available Quantity", "Allocated Quantity", "Created At",
}

// ExportItems renders the catalog as an xlsx workbook.
func (s *Service) ExportItems(ctx context.Context) ([]byte, error) {
	items, err := s.ListItems(ctx, ItemFilter{})
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}
	for r, it := range items {
		cost, _ := it.CostPrice.Float64()
		selling, _ := it.SellingPrice.Float64()
		row := []any{
			it.Name, it.Category, it.Unit, cost, selling,
			it.TotalQuantity, it.AvailableQuantity, it.AllocatedQuantity,
			it.CreatedAt.UTC().Format("2006-01-02"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", r+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
