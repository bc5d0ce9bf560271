package handlers

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"atlastel.gr/crm/models"
	"atlastel.gr/crm/pkg/pricing"
)

func TestValidateEquipment(t *testing.T) {
	valid := EquipmentLineInput{
		Kind:      "PRODUCT",
		Name:      "Access point",
		Quantity:  1,
		UnitPrice: decimal.RequireFromString("100"),
	}

	tests := []struct {
		name    string
		mutate  func(*EquipmentLineInput)
		empty   bool
		message string
	}{
		{"empty list", nil, true, "No equipment provided"},
		{"valid line", func(l *EquipmentLineInput) {}, false, ""},
		{"service kind", func(l *EquipmentLineInput) { l.Kind = "SERVICE" }, false, ""},
		{"bad kind", func(l *EquipmentLineInput) { l.Kind = "LICENSE" }, false, "kind must be PRODUCT or SERVICE"},
		{"missing name", func(l *EquipmentLineInput) { l.Name = "" }, false, "name is required"},
		{"zero quantity", func(l *EquipmentLineInput) { l.Quantity = 0 }, false, "quantity must be positive"},
		{"negative quantity", func(l *EquipmentLineInput) { l.Quantity = -2 }, false, "quantity must be positive"},
		{"negative price", func(l *EquipmentLineInput) { l.UnitPrice = decimal.RequireFromString("-1") }, false, "unit price cannot be negative"},
		{"zero price is allowed", func(l *EquipmentLineInput) { l.UnitPrice = decimal.Zero }, false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var lines []EquipmentLineInput
			if !tt.empty {
				l := valid
				tt.mutate(&l)
				lines = []EquipmentLineInput{l}
			}
			msg := validateEquipment(lines)
			if tt.message == "" {
				assert.Empty(t, msg)
			} else {
				assert.Contains(t, msg, tt.message)
			}
		})
	}
}

func TestFormatRFPNo(t *testing.T) {
	tests := []struct {
		seq      int64
		expected string
	}{
		{1, "RFP0001"},
		{42, "RFP0042"},
		{9999, "RFP9999"},
		{10000, "RFP10000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, formatRFPNo(tt.seq))
	}
}

// Regeneration always forces IN_PROGRESS, even from terminal states. The
// workflow has always behaved this way; guards belong here if that ever
// changes.
func TestStatusAfterGeneration(t *testing.T) {
	for _, current := range []models.RFPStatus{
		"", models.RFPStatusDraft, models.RFPStatusInProgress, models.RFPStatusSubmitted,
		models.RFPStatusAwarded, models.RFPStatusLost, models.RFPStatusCancelled,
	} {
		assert.Equal(t, models.RFPStatusInProgress, statusAfterGeneration(current))
	}
}

func TestNextRFPStateUpdatesExistingRow(t *testing.T) {
	leadID, surveyID := uuid.New(), uuid.New()
	existing := &models.RFP{
		ID:     uuid.New(),
		RFPNo:  "RFP0007",
		LeadID: leadID,
		Status: models.RFPStatusSubmitted,
		Stage:  models.RFPStageProposalSent,
	}
	snapshot := models.RequirementsSnapshot{GeneralNotes: "second pass"}

	next, created := nextRFPState(existing, leadID, surveyID, snapshot)

	assert.False(t, created, "a lead with an RFP must not get a second row")
	assert.Equal(t, existing.ID, next.ID)
	assert.Equal(t, "RFP0007", next.RFPNo, "regeneration never reallocates the number")
	assert.Equal(t, models.RFPStatusInProgress, next.Status)
	assert.Equal(t, models.RFPStageDrafting, next.Stage)
	assert.Equal(t, &surveyID, next.SurveyID)
	assert.Equal(t, "second pass", next.Requirements.GeneralNotes)
}

func TestNextRFPStateCreatesFirstRow(t *testing.T) {
	leadID, surveyID := uuid.New(), uuid.New()
	snapshot := models.RequirementsSnapshot{GeneralNotes: "first pass"}

	next, created := nextRFPState(nil, leadID, surveyID, snapshot)

	assert.True(t, created)
	assert.Empty(t, next.RFPNo, "the number is allocated by the sequence counter")
	assert.Equal(t, leadID, next.LeadID)
	assert.Equal(t, &surveyID, next.SurveyID)
	assert.Equal(t, models.RFPStatusInProgress, next.Status)
	assert.Equal(t, models.RFPStageDrafting, next.Stage)
}

func TestTargetFromLead(t *testing.T) {
	lead := &models.Lead{
		ID:           uuid.New(),
		Name:         "Αθηναϊκή Τεχνική",
		ProjectTitle: "Warehouse CCTV",
		ContactName:  "Maria P.",
	}

	target := targetFromLead(lead)
	assert.Equal(t, models.EntityTypeLead, target.EntityType)
	assert.Equal(t, lead.ID, target.EntityID)
	assert.Equal(t, lead.Name, target.Reference)
	assert.Equal(t, "Maria P.", target.CustomerName, "contact name stands in when no customer is linked")

	lead.Customer = &models.Customer{Name: "Athens Technical SA"}
	target = targetFromLead(lead)
	assert.Equal(t, "Athens Technical SA", target.CustomerName)
}

func TestFileAndTotalsResponses(t *testing.T) {
	lines := []pricing.Line{
		{Kind: pricing.KindProduct, Quantity: 2, UnitPrice: decimal.RequireFromString("100"), MarginPercent: decimal.RequireFromString("10")},
		{Kind: pricing.KindProduct, Quantity: 1, UnitPrice: decimal.RequireFromString("10")},
		{Kind: pricing.KindService, Quantity: 1, UnitPrice: decimal.RequireFromString("50")},
	}
	record := &models.GeneratedFile{ID: uuid.New(), Name: "Acme - RFP Pricing - v2.xlsx", URL: "/uploads/x.xlsx"}

	file := fileResponse(record, 2, lines)
	assert.Equal(t, 2, file["products_count"])
	assert.Equal(t, 1, file["services_count"])
	assert.Equal(t, 2, file["version"])
	assert.Equal(t, record.Name, file["filename"])

	totals := totalsResponse(pricing.ComputeTotals(lines))
	assert.InDelta(t, 280.0, totals["grand_total"].(float64), 1e-9)
	assert.InDelta(t, 230.0, totals["products_total"].(float64), 1e-9)
	assert.InDelta(t, 50.0, totals["services_total"].(float64), 1e-9)
	assert.InDelta(t, 20.0, totals["total_margin"].(float64), 1e-9)
}

func TestRFPResponseNil(t *testing.T) {
	assert.Nil(t, rfpResponse(nil))
}
