package handlers

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"atlastel.gr/crm/pkg/pricing"
)

// BuildBOMWorkbook renders the brand-grouped bill of materials: an
// overview sheet listing every brand with aggregate counts, quantities and
// values, plus one detail sheet per brand with its own subtotal. Only
// PRODUCT lines participate; services have no place in a BOM.
func BuildBOMWorkbook(lines []pricing.Line, header WorkbookHeader) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newWorkbookStyles(f)
	if err != nil {
		return nil, err
	}

	groups, order := groupByBrand(filterByKind(lines, pricing.KindProduct))

	overview, err := f.NewSheet("Overview")
	if err != nil {
		return nil, err
	}

	f.SetCellValue("Overview", "A1", "Bill of Materials")
	f.SetCellStyle("Overview", "A1", "A1", st.title)
	f.SetRowHeight("Overview", 1, 30)
	f.SetCellValue("Overview", "A2", header.ReferenceNumber)
	f.SetCellValue("Overview", "A3", header.ProjectTitle)

	for colIdx, label := range []string{"Brand", "Items", "Total Qty", "Total Value"} {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 5)
		f.SetCellValue("Overview", cell, label)
		f.SetCellStyle("Overview", cell, cell, st.header)
	}

	usedNames := map[string]bool{"Overview": true}
	for i, brand := range order {
		group := groups[brand]
		row := i + 6

		items := len(group)
		totalQty := 0
		totalValue := pricing.Round2(pricing.ComputeTotals(group).GrandTotal)
		for _, l := range group {
			totalQty += l.Quantity
		}

		f.SetCellValue("Overview", fmt.Sprintf("A%d", row), brand)
		f.SetCellValue("Overview", fmt.Sprintf("B%d", row), items)
		f.SetCellValue("Overview", fmt.Sprintf("C%d", row), totalQty)
		f.SetCellValue("Overview", fmt.Sprintf("D%d", row), totalValue.InexactFloat64())
		f.SetCellStyle("Overview", fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), st.currency)

		sheet := uniqueSheetName(brand, usedNames)
		if _, err := writeDetailSheet(f, st, sheet, group); err != nil {
			return nil, err
		}
	}

	grandRow := len(order) + 6
	f.SetCellValue("Overview", fmt.Sprintf("A%d", grandRow), "Grand Total")
	if len(order) > 0 {
		f.SetCellFormula("Overview", fmt.Sprintf("D%d", grandRow), fmt.Sprintf("SUM(D6:D%d)", grandRow-1))
	} else {
		f.SetCellValue("Overview", fmt.Sprintf("D%d", grandRow), 0.0)
	}
	f.SetCellStyle("Overview", fmt.Sprintf("A%d", grandRow), fmt.Sprintf("D%d", grandRow), st.totals)
	f.SetCellStyle("Overview", fmt.Sprintf("D%d", grandRow), fmt.Sprintf("D%d", grandRow), st.totalsCurrency)

	f.SetColWidth("Overview", "A", "A", 28)
	f.SetColWidth("Overview", "B", "D", 14)

	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(overview)
	return f, nil
}

// groupByBrand buckets lines by brand, preserving first-appearance order
// so regeneration from the same snapshot yields the same workbook.
func groupByBrand(lines []pricing.Line) (map[string][]pricing.Line, []string) {
	groups := make(map[string][]pricing.Line)
	var order []string
	for _, l := range lines {
		brand := l.Brand
		if brand == "" {
			brand = "Unbranded"
		}
		if _, ok := groups[brand]; !ok {
			order = append(order, brand)
		}
		groups[brand] = append(groups[brand], l)
	}
	return groups, order
}

var sheetNameSanitizer = strings.NewReplacer(
	"[", "", "]", "", ":", "", "*", "", "?", "", "/", "", "\\", "",
)

// uniqueSheetName makes a brand safe as an Excel sheet name: illegal
// characters removed, capped at 31 characters, deduplicated with a
// numeric suffix.
func uniqueSheetName(brand string, used map[string]bool) string {
	name := strings.TrimSpace(sheetNameSanitizer.Replace(brand))
	if name == "" {
		name = "Brand"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	candidate := name
	for i := 2; used[candidate]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		if len(name)+len(suffix) > 31 {
			candidate = name[:31-len(suffix)] + suffix
		} else {
			candidate = name + suffix
		}
	}
	used[candidate] = true
	return candidate
}
