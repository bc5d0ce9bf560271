package handlers

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"atlastel.gr/crm/models"
	"atlastel.gr/crm/pkg/pricing"
)

// WorkbookHeader carries the document metadata printed on the summary sheet.
type WorkbookHeader struct {
	ReferenceNumber string
	CustomerName    string
	ProjectTitle    string
	DocumentNumber  string
}

const (
	currencyFormat = "#,##0.00"
	percentFormat  = `0.00"%"`
)

// detail sheet column layout (1-based)
const (
	colIndex = iota + 1
	colName
	colBrand
	colCategory
	colQty
	colUnitPrice
	colMargin
	colSubtotal
	colTotal
)

// BuildPricingWorkbook renders a RequirementsSnapshot into the RFP pricing
// workbook: a summary sheet plus one detail sheet per equipment kind.
// Monetary detail cells are formulas over the qty/price/margin cells of
// their row, so a human editing a quantity sees the row and the totals
// update. Rendering is a pure function of the snapshot and header; the
// generation timestamp comes from the snapshot, never from the clock.
func BuildPricingWorkbook(snap models.RequirementsSnapshot, header WorkbookHeader) (*excelize.File, error) {
	f := excelize.NewFile()
	st, err := newWorkbookStyles(f)
	if err != nil {
		return nil, err
	}

	products := filterByKind(snap.Equipment, pricing.KindProduct)
	services := filterByKind(snap.Equipment, pricing.KindService)

	type detailRef struct {
		sheet    string
		totalRow int
	}
	var productRef, serviceRef *detailRef

	if len(products) > 0 {
		totalRow, err := writeDetailSheet(f, st, "Products", products)
		if err != nil {
			return nil, err
		}
		productRef = &detailRef{sheet: "Products", totalRow: totalRow}
	}
	if len(services) > 0 {
		totalRow, err := writeDetailSheet(f, st, "Services", services)
		if err != nil {
			return nil, err
		}
		serviceRef = &detailRef{sheet: "Services", totalRow: totalRow}
	}

	summary, err := f.NewSheet("Summary")
	if err != nil {
		return nil, err
	}

	f.SetCellValue("Summary", "A1", "RFP Pricing Summary")
	f.SetCellStyle("Summary", "A1", "A1", st.title)
	f.SetRowHeight("Summary", 1, 30)

	headerRows := []struct {
		label string
		value string
	}{
		{"Reference", header.ReferenceNumber},
		{"Customer", header.CustomerName},
		{"Project", header.ProjectTitle},
		{"Document No", header.DocumentNumber},
		{"Generated", snap.GeneratedAt.Format("2006-01-02 15:04:05")},
	}
	for i, hr := range headerRows {
		f.SetCellValue("Summary", fmt.Sprintf("A%d", i+3), hr.label)
		f.SetCellValue("Summary", fmt.Sprintf("B%d", i+3), hr.value)
	}

	tableRow := len(headerRows) + 4
	for colIdx, label := range []string{"Category", "Subtotal", "Margin", "Total"} {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, tableRow)
		f.SetCellValue("Summary", cell, label)
		f.SetCellStyle("Summary", cell, cell, st.header)
	}

	writeAggregateRow := func(row int, label string, agg pricing.Aggregate, ref *detailRef) {
		f.SetCellValue("Summary", fmt.Sprintf("A%d", row), label)
		if ref != nil {
			// Reference the detail sheet's SUM cells so an edited detail
			// row flows through to the summary.
			subCell, _ := excelize.CoordinatesToCellName(colSubtotal, ref.totalRow)
			totCell, _ := excelize.CoordinatesToCellName(colTotal, ref.totalRow)
			f.SetCellFormula("Summary", fmt.Sprintf("B%d", row), fmt.Sprintf("%s!%s", ref.sheet, subCell))
			f.SetCellFormula("Summary", fmt.Sprintf("C%d", row), fmt.Sprintf("%s!%s-%s!%s", ref.sheet, totCell, ref.sheet, subCell))
			f.SetCellFormula("Summary", fmt.Sprintf("D%d", row), fmt.Sprintf("%s!%s", ref.sheet, totCell))
		} else {
			f.SetCellValue("Summary", fmt.Sprintf("B%d", row), pricing.Round2(agg.Subtotal).InexactFloat64())
			f.SetCellValue("Summary", fmt.Sprintf("C%d", row), pricing.Round2(agg.MarginAmount).InexactFloat64())
			f.SetCellValue("Summary", fmt.Sprintf("D%d", row), pricing.Round2(agg.Total).InexactFloat64())
		}
		f.SetCellStyle("Summary", fmt.Sprintf("B%d", row), fmt.Sprintf("D%d", row), st.currency)
	}

	writeAggregateRow(tableRow+1, "Products", snap.Totals.Products, productRef)
	writeAggregateRow(tableRow+2, "Services", snap.Totals.Services, serviceRef)

	grandRow := tableRow + 3
	f.SetCellValue("Summary", fmt.Sprintf("A%d", grandRow), "Grand Total")
	f.SetCellFormula("Summary", fmt.Sprintf("D%d", grandRow), fmt.Sprintf("D%d+D%d", tableRow+1, tableRow+2))
	f.SetCellStyle("Summary", fmt.Sprintf("A%d", grandRow), fmt.Sprintf("D%d", grandRow), st.totals)
	f.SetCellStyle("Summary", fmt.Sprintf("D%d", grandRow), fmt.Sprintf("D%d", grandRow), st.totalsCurrency)

	if snap.GeneralNotes != "" {
		notesRow := grandRow + 2
		f.SetCellValue("Summary", fmt.Sprintf("A%d", notesRow), "Notes")
		f.SetCellStyle("Summary", fmt.Sprintf("A%d", notesRow), fmt.Sprintf("A%d", notesRow), st.header)
		f.SetCellValue("Summary", fmt.Sprintf("A%d", notesRow+1), snap.GeneralNotes)
	}

	f.SetColWidth("Summary", "A", "A", 24)
	f.SetColWidth("Summary", "B", "D", 16)

	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(summary)
	return f, nil
}

// writeDetailSheet writes one row per line plus a SUM totals row and
// returns the totals row number.
func writeDetailSheet(f *excelize.File, st *workbookStyles, sheet string, lines []pricing.Line) (int, error) {
	if _, err := f.NewSheet(sheet); err != nil {
		return 0, err
	}

	headers := []string{"#", "Name", "Brand", "Category", "Qty", "Unit Price", "Margin %", "Subtotal", "Total"}
	for colIdx, label := range headers {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
		f.SetCellValue(sheet, cell, label)
		f.SetCellStyle(sheet, cell, cell, st.header)
	}

	for i, line := range lines {
		row := i + 2
		setCell := func(col int, value interface{}) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			f.SetCellValue(sheet, cell, value)
		}
		setCell(colIndex, i+1)
		setCell(colName, line.Name)
		setCell(colBrand, placeholder(line.Brand))
		setCell(colCategory, placeholder(line.Category))
		setCell(colQty, line.Quantity)
		setCell(colUnitPrice, pricing.Round2(line.UnitPrice).InexactFloat64())
		setCell(colMargin, line.MarginPercent.InexactFloat64())

		// Subtotal and total stay formulas so edits to qty/price/margin
		// recalculate the row.
		qtyCell, _ := excelize.CoordinatesToCellName(colQty, row)
		priceCell, _ := excelize.CoordinatesToCellName(colUnitPrice, row)
		marginCell, _ := excelize.CoordinatesToCellName(colMargin, row)
		subCell, _ := excelize.CoordinatesToCellName(colSubtotal, row)
		totCell, _ := excelize.CoordinatesToCellName(colTotal, row)
		f.SetCellFormula(sheet, subCell, fmt.Sprintf("%s*%s", qtyCell, priceCell))
		f.SetCellFormula(sheet, totCell, fmt.Sprintf("%s*(1+%s/100)", subCell, marginCell))

		f.SetCellStyle(sheet, priceCell, priceCell, st.currency)
		f.SetCellStyle(sheet, marginCell, marginCell, st.percent)
		f.SetCellStyle(sheet, subCell, totCell, st.currency)
	}

	totalRow := len(lines) + 2
	labelCell, _ := excelize.CoordinatesToCellName(colIndex, totalRow)
	f.SetCellValue(sheet, labelCell, "Total")
	firstSub, _ := excelize.CoordinatesToCellName(colSubtotal, 2)
	lastSub, _ := excelize.CoordinatesToCellName(colSubtotal, totalRow-1)
	firstTot, _ := excelize.CoordinatesToCellName(colTotal, 2)
	lastTot, _ := excelize.CoordinatesToCellName(colTotal, totalRow-1)
	sumSubCell, _ := excelize.CoordinatesToCellName(colSubtotal, totalRow)
	sumTotCell, _ := excelize.CoordinatesToCellName(colTotal, totalRow)
	f.SetCellFormula(sheet, sumSubCell, fmt.Sprintf("SUM(%s:%s)", firstSub, lastSub))
	f.SetCellFormula(sheet, sumTotCell, fmt.Sprintf("SUM(%s:%s)", firstTot, lastTot))
	startCell, _ := excelize.CoordinatesToCellName(colIndex, totalRow)
	f.SetCellStyle(sheet, startCell, sumTotCell, st.totals)
	f.SetCellStyle(sheet, sumSubCell, sumTotCell, st.totalsCurrency)

	f.SetColWidth(sheet, "A", "A", 5)
	f.SetColWidth(sheet, "B", "B", 36)
	f.SetColWidth(sheet, "C", "D", 18)
	f.SetColWidth(sheet, "E", "I", 12)
	return totalRow, nil
}

// workbookStyles caches the shared styles of one workbook.
type workbookStyles struct {
	title          int
	header         int
	currency       int
	percent        int
	totals         int
	totalsCurrency int
}

func newWorkbookStyles(f *excelize.File) (*workbookStyles, error) {
	var st workbookStyles
	var err error

	st.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}

	currencyFmt := currencyFormat
	st.currency, err = f.NewStyle(&excelize.Style{CustomNumFmt: &currencyFmt})
	if err != nil {
		return nil, err
	}

	percentFmt := percentFormat
	st.percent, err = f.NewStyle(&excelize.Style{CustomNumFmt: &percentFmt})
	if err != nil {
		return nil, err
	}

	st.totals, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}

	totalsCurrencyFmt := currencyFormat
	st.totalsCurrency, err = f.NewStyle(&excelize.Style{
		Font:         &excelize.Font{Bold: true},
		Fill:         excelize.Fill{Type: "pattern", Color: []string{"#E7E6E6"}, Pattern: 1},
		CustomNumFmt: &totalsCurrencyFmt,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func filterByKind(lines []pricing.Line, kind pricing.Kind) []pricing.Line {
	var out []pricing.Line
	for _, l := range lines {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// placeholder renders absent optional fields as a dash.
func placeholder(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
