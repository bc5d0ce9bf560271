// Package pricing computes equipment totals for RFP documents.
//
// All money math runs on decimal values so repeated margin application
// never accumulates binary floating-point drift. Values are kept at full
// precision internally and rounded to two decimals only at presentation
// boundaries (HTTP responses, workbook cells).
package pricing

import "github.com/shopspring/decimal"

// Kind separates priced equipment into the two billed groups.
type Kind string

const (
	KindProduct Kind = "PRODUCT"
	KindService Kind = "SERVICE"
)

// Line is one priced equipment item of an RFP.
type Line struct {
	Kind             Kind            `json:"kind"`
	Name             string          `json:"name"`
	Brand            string          `json:"brand,omitempty"`
	Category         string          `json:"category,omitempty"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	MarginPercent    decimal.Decimal `json:"margin_percent"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	LocationRef      string          `json:"location_ref,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	ManufacturerCode string          `json:"manufacturer_code,omitempty"`
	EanCode          string          `json:"ean_code,omitempty"`
}

// BasePrice is quantity times unit price, before margin.
func (l Line) BasePrice() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// MarginAmount is the markup applied on top of the base price.
// Shift(-2) divides by 100 exactly, without division rounding.
func (l Line) MarginAmount() decimal.Decimal {
	return l.BasePrice().Mul(l.MarginPercent).Shift(-2)
}

// ComputedTotal is quantity*unitPrice*(1+marginPercent/100). Line totals
// supplied by callers are never trusted; this is the financial truth.
func (l Line) ComputedTotal() decimal.Decimal {
	return l.BasePrice().Add(l.MarginAmount())
}

// Aggregate holds the subtotal/margin/total triple for one equipment kind.
type Aggregate struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	MarginAmount decimal.Decimal `json:"margin_amount"`
	Total        decimal.Decimal `json:"total"`
}

// Totals aggregates a set of lines, split by kind.
type Totals struct {
	Products   Aggregate       `json:"products"`
	Services   Aggregate       `json:"services"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// ComputeTotals partitions lines by kind and sums base prices and margin
// amounts per partition. Pure and deterministic; an empty or nil slice
// yields all-zero totals. Margins outside [0,100] pass through unchanged:
// a negative margin models a discount, >100 a premium.
func ComputeTotals(lines []Line) Totals {
	var t Totals
	for _, line := range lines {
		agg := &t.Products
		if line.Kind == KindService {
			agg = &t.Services
		}
		agg.Subtotal = agg.Subtotal.Add(line.BasePrice())
		agg.MarginAmount = agg.MarginAmount.Add(line.MarginAmount())
	}
	t.Products.Total = t.Products.Subtotal.Add(t.Products.MarginAmount)
	t.Services.Total = t.Services.Subtotal.Add(t.Services.MarginAmount)
	t.GrandTotal = t.Products.Total.Add(t.Services.Total)
	return t
}

// Round2 rounds a decimal to two places for presentation.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
