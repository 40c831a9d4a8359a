package inventory

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"dhuni-backend/internal/apperr"
	"dhuni-backend/internal/tenant"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ImportRow reports one spreadsheet row. Row is 1-based as shown in a
// spreadsheet program.
type ImportRow struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	ItemID string `json:"item_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type ImportResult struct {
	Created int         `json:"created"`
	Failed  int         `json:"failed"`
	Rows    []ImportRow `json:"rows"`
}

// ImportItems creates one item per row of the first sheet. Columns are
// name, category, unit, cost price, selling price and initial quantity,
// the same order ExportItems writes. A header row is detected and skipped.
// Bad rows are reported and skipped.
func (s *Service) ImportItems(ctx context.Context, data []byte) (*ImportResult, error) {
	if _, err := tenant.RequireWriter(ctx); err != nil {
		return nil, err
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Validation("file is not a readable xlsx workbook")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Validation("cannot read the first sheet")
	}

	start := 0
	if len(rows) > 0 && len(rows[0]) > 0 && strings.EqualFold(strings.TrimSpace(rows[0][0]), "name") {
		start = 1
	}

	result := &ImportResult{Rows: []ImportRow{}}
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		report := ImportRow{Row: i + 1, Name: cell(row, 0)}
		in, err := parseImportRow(row)
		if err == nil {
			var created *CreateItemResult
			created, err = s.CreateItem(ctx, in, nil)
			if err == nil {
				report.ItemID = created.Item.ID.String()
			}
		}
		if err != nil {
			report.Error = apperr.PublicMessage(err)
			result.Failed++
		} else {
			result.Created++
		}
		result.Rows = append(result.Rows, report)
	}
	return result, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseImportRow(row []string) (NewItem, error) {
	in := NewItem{
		Name:     cell(row, 0),
		Category: cell(row, 1),
		Unit:     cell(row, 2),
	}
	var err error
	if in.CostPrice, err = parseAmount("cost price", cell(row, 3)); err != nil {
		return in, err
	}
	if in.SellingPrice, err = parseAmount("selling price", cell(row, 4)); err != nil {
		return in, err
	}
	if q := cell(row, 5); q != "" {
		if in.InitialQuantity, err = strconv.Atoi(q); err != nil {
			return in, apperr.Validationf("quantity %q is not a whole number", q)
		}
	}
	return in, nil
}

func parseAmount(field, v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
	if err != nil {
		return decimal.Zero, apperr.Validationf("%s %q is not a number", field, v)
	}
	return d, nil
}
