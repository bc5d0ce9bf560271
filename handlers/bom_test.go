package handlers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"atlastel.gr/crm/pkg/pricing"
)

func bomLines() []pricing.Line {
	return []pricing.Line{
		{
			Kind:          pricing.KindProduct,
			Name:          "Switch 24p",
			Brand:         "Cisco",
			Quantity:      2,
			UnitPrice:     decimal.RequireFromString("300"),
			MarginPercent: decimal.RequireFromString("10"),
		},
		{
			Kind:          pricing.KindProduct,
			Name:          "Patch panel",
			Quantity:      4,
			UnitPrice:     decimal.RequireFromString("25"),
			MarginPercent: decimal.Zero,
		},
		{
			Kind:          pricing.KindProduct,
			Name:          "Router",
			Brand:         "Cisco",
			Quantity:      1,
			UnitPrice:     decimal.RequireFromString("500"),
			MarginPercent: decimal.RequireFromString("10"),
		},
		{
			Kind:      pricing.KindService,
			Name:      "Rack install",
			Quantity:  1,
			UnitPrice: decimal.RequireFromString("200"),
		},
	}
}

func TestBuildBOMWorkbookGroupsByBrand(t *testing.T) {
	f, err := BuildBOMWorkbook(bomLines(), testHeader())
	require.NoError(t, err)
	defer f.Close()

	// One sheet per brand, services excluded.
	for _, sheet := range []string{"Overview", "Cisco", "Unbranded"} {
		idx, err := f.GetSheetIndex(sheet)
		require.NoError(t, err)
		assert.NotEqual(t, -1, idx, "missing sheet %s", sheet)
	}

	// Overview row for Cisco: 2 items, 3 units, 2*300*1.1 + 500*1.1 = 1210.
	brand, err := f.GetCellValue("Overview", "A6")
	require.NoError(t, err)
	assert.Equal(t, "Cisco", brand)
	items, err := f.GetCellValue("Overview", "B6")
	require.NoError(t, err)
	assert.Equal(t, "2", items)
	qty, err := f.GetCellValue("Overview", "C6")
	require.NoError(t, err)
	assert.Equal(t, "3", qty)
	value, err := f.GetCellValue("Overview", "D6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1210", value)

	// Brand sheet carries its own formula subtotal.
	formula, err := f.GetCellFormula("Cisco", "I4")
	require.NoError(t, err)
	assert.Equal(t, "SUM(I2:I3)", formula)
	assert.InDelta(t, 1210.0, calcFloat(t, f, "Cisco", "I4"), 1e-9)

	// Overview grand total sums the brand rows: 1210 + 100.
	assert.InDelta(t, 1310.0, calcFloat(t, f, "Overview", "D8"), 1e-9)
}

func TestBuildBOMWorkbookEmptyEquipment(t *testing.T) {
	f, err := BuildBOMWorkbook(nil, testHeader())
	require.NoError(t, err)
	defer f.Close()

	val, err := f.GetCellValue("Overview", "D6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "0", val)
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"Overview": true}

	assert.Equal(t, "Cisco", uniqueSheetName("Cisco", used))
	assert.Equal(t, "Cisco (2)", uniqueSheetName("Cisco", used))
	assert.Equal(t, "Cisco (3)", uniqueSheetName("Cisco", used))
	assert.Equal(t, "Brand", uniqueSheetName("***", used))

	long := uniqueSheetName("A manufacturer with a very long brand name", used)
	assert.LessOrEqual(t, len(long), 31)

	illegal := uniqueSheetName("AC/DC: Pro*", used)
	assert.Equal(t, "ACDC Pro", illegal)
}
