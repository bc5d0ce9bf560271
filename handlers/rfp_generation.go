package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atlastel.gr/crm/config"
	"atlastel.gr/crm/middleware"
	"atlastel.gr/crm/models"
	"atlastel.gr/crm/pkg/pricing"
	"atlastel.gr/crm/utils"
)

const (
	familyRFPPricing = "RFP Pricing"
	familyBOM        = "BOM"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// RFPHandler drives the survey → RFP → workbook generation pipeline.
type RFPHandler struct {
	db        *gorm.DB
	files     *FileStore
	leadLocks *utils.KeyMutex
}

func NewRFPHandler(files *FileStore) *RFPHandler {
	return &RFPHandler{
		db:        config.DB,
		files:     files,
		leadLocks: utils.NewKeyMutex(),
	}
}

// EquipmentLineInput is one equipment line as submitted by the caller.
// MarginPercent is optional; when absent the markup rules supply the
// default. The caller's total is ignored and always recomputed.
type EquipmentLineInput struct {
	Kind             string           `json:"kind"`
	Name             string           `json:"name"`
	Brand            string           `json:"brand"`
	Category         string           `json:"category"`
	Quantity         int              `json:"quantity"`
	UnitPrice        decimal.Decimal  `json:"unit_price"`
	MarginPercent    *decimal.Decimal `json:"margin_percent"`
	LocationRef      string           `json:"location_ref"`
	Notes            string           `json:"notes"`
	ManufacturerCode string           `json:"manufacturer_code"`
	EanCode          string           `json:"ean_code"`
}

type generateRFPRequest struct {
	Equipment    []EquipmentLineInput `json:"equipment"`
	GeneralNotes string               `json:"general_notes"`
}

// generationTarget is the resolved owner of the generated artifacts.
type generationTarget struct {
	EntityID     uuid.UUID
	EntityType   models.EntityType
	Reference    string
	CustomerName string
	ProjectTitle string
	Lead         *models.Lead
}

// GenerateRFP turns a site survey's equipment list into a priced RFP:
// totals are computed, the lead's current RFP is created or updated with
// the requirements snapshot, the pricing workbook is rendered and stored
// as the next version of the "RFP Pricing" family.
func (h *RFPHandler) GenerateRFP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var survey models.SiteSurvey
	if err := h.db.First(&survey, "id = ?", vars["id"]).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Survey not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch survey", http.StatusInternalServerError)
		}
		return
	}

	var req generateRFPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateEquipment(req.Equipment); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	target, err := h.resolveTarget(&survey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lines, err := h.buildLines(req.Equipment)
	if err != nil {
		writeGenerationError(w, "Failed to price equipment", err)
		return
	}
	snapshot := models.RequirementsSnapshot{
		Equipment:    lines,
		GeneralNotes: req.GeneralNotes,
		Totals:       pricing.ComputeTotals(lines),
		GeneratedAt:  time.Now().UTC(),
		GeneratedBy:  middleware.GetUserID(r),
	}

	// Serialize per lead/customer so two simultaneous generations cannot
	// race the latest-RFP upsert.
	lockKey := target.EntityID.String()
	h.leadLocks.Lock(lockKey)
	defer h.leadLocks.Unlock(lockKey)

	var rfp *models.RFP
	if target.Lead != nil {
		rfp, err = h.upsertRFP(target.Lead.ID, survey.ID, snapshot)
		if err != nil {
			writeGenerationError(w, "Failed to save RFP", err)
			return
		}
	}

	header := WorkbookHeader{
		ReferenceNumber: target.Reference,
		CustomerName:    target.CustomerName,
		ProjectTitle:    target.ProjectTitle,
	}
	if rfp != nil {
		header.DocumentNumber = rfp.RFPNo
	}

	record, version, err := h.renderAndStore(r, snapshot, header, target, familyRFPPricing, "RFP pricing workbook")
	if err != nil {
		writeGenerationError(w, "Failed to generate workbook", err)
		return
	}

	log.Printf("✅ Generated %s v%d for %s %s", familyRFPPricing, version, target.EntityType, target.EntityID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rfp":    rfpResponse(rfp),
		"file":   fileResponse(record, version, snapshot.Equipment),
		"totals": totalsResponse(snapshot.Totals),
	})
}

// RegenerateExcel re-renders the pricing workbook from the RFP's stored
// requirements snapshot; no new input is accepted. The file version bumps,
// the snapshot does not change.
func (h *RFPHandler) RegenerateExcel(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var rfp models.RFP
	if err := h.db.Preload("Lead").Preload("Lead.Customer").First(&rfp, "id = ?", vars["id"]).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "RFP not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch RFP", http.StatusInternalServerError)
		}
		return
	}
	if rfp.Lead == nil {
		http.Error(w, "RFP is not linked to a lead", http.StatusBadRequest)
		return
	}

	snapshot := rfp.Requirements
	if len(snapshot.Equipment) == 0 {
		http.Error(w, "RFP has no equipment to render", http.StatusBadRequest)
		return
	}
	// Totals are derived state; recompute rather than trust the stored copy.
	snapshot.Totals = pricing.ComputeTotals(snapshot.Equipment)

	target := targetFromLead(rfp.Lead)
	header := WorkbookHeader{
		ReferenceNumber: target.Reference,
		CustomerName:    target.CustomerName,
		ProjectTitle:    target.ProjectTitle,
		DocumentNumber:  rfp.RFPNo,
	}

	record, version, err := h.renderAndStore(r, snapshot, header, target, familyRFPPricing, "RFP pricing workbook")
	if err != nil {
		writeGenerationError(w, "Failed to regenerate workbook", err)
		return
	}

	log.Printf("✅ Regenerated %s v%d for RFP %s", familyRFPPricing, version, rfp.RFPNo)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rfp":    rfpResponse(&rfp),
		"file":   fileResponse(record, version, snapshot.Equipment),
		"totals": totalsResponse(snapshot.Totals),
	})
}

// GenerateBOM renders the brand-grouped bill of materials for a survey's
// equipment. It shares the versioning and retention contract of the RFP
// pricing family under the separate "BOM" family name, and does not touch
// the RFP state record.
func (h *RFPHandler) GenerateBOM(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var survey models.SiteSurvey
	if err := h.db.First(&survey, "id = ?", vars["id"]).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Survey not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch survey", http.StatusInternalServerError)
		}
		return
	}

	var req generateRFPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := validateEquipment(req.Equipment); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	target, err := h.resolveTarget(&survey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lines, err := h.buildLines(req.Equipment)
	if err != nil {
		writeGenerationError(w, "Failed to price equipment", err)
		return
	}

	header := WorkbookHeader{
		ReferenceNumber: target.Reference,
		CustomerName:    target.CustomerName,
		ProjectTitle:    target.ProjectTitle,
	}
	wb, err := BuildBOMWorkbook(lines, header)
	if err != nil {
		writeGenerationError(w, "Failed to render BOM", err)
		return
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		writeGenerationError(w, "Failed to write BOM", err)
		return
	}

	record, version, err := h.files.SaveVersioned(r.Context(), SaveRequest{
		EntityID:    target.EntityID,
		EntityType:  target.EntityType,
		Reference:   target.Reference,
		Family:      familyBOM,
		Ext:         ".xlsx",
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
		Description: "Bill of materials workbook",
		GeneratedBy: middleware.GetUserUUID(r),
	})
	if err != nil {
		writeGenerationError(w, "Failed to store BOM", err)
		return
	}

	log.Printf("✅ Generated %s v%d for %s %s", familyBOM, version, target.EntityType, target.EntityID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"file":   fileResponse(record, version, lines),
		"totals": totalsResponse(pricing.ComputeTotals(lines)),
	})
}

// renderAndStore renders the pricing workbook and hands it to the file
// store under the given family.
func (h *RFPHandler) renderAndStore(r *http.Request, snapshot models.RequirementsSnapshot, header WorkbookHeader, target *generationTarget, family, description string) (*models.GeneratedFile, int, error) {
	wb, err := BuildPricingWorkbook(snapshot, header)
	if err != nil {
		return nil, 0, err
	}
	buf, err := wb.WriteToBuffer()
	if err != nil {
		return nil, 0, err
	}
	return h.files.SaveVersioned(r.Context(), SaveRequest{
		EntityID:    target.EntityID,
		EntityType:  target.EntityType,
		Reference:   target.Reference,
		Family:      family,
		Ext:         ".xlsx",
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
		Description: description,
		GeneratedBy: middleware.GetUserUUID(r),
	})
}

// upsertRFP updates the lead's most recent RFP in place, or creates one
// with a freshly allocated RFP number. Regeneration always moves the RFP
// back to IN_PROGRESS, matching the long-standing workflow behavior, even
// from SUBMITTED/AWARDED.
func (h *RFPHandler) upsertRFP(leadID, surveyID uuid.UUID, snapshot models.RequirementsSnapshot) (*models.RFP, error) {
	var rfp models.RFP
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var current models.RFP
		existing := &current
		if err := tx.Where("lead_id = ?", leadID).Order("created_at DESC").First(&current).Error; err != nil {
			if err != gorm.ErrRecordNotFound {
				return err
			}
			existing = nil
		}

		next, created := nextRFPState(existing, leadID, surveyID, snapshot)
		if !created {
			rfp = *next
			return tx.Save(&rfp).Error
		}

		seq, err := models.NextSequence(tx, "rfp_number")
		if err != nil {
			return err
		}
		next.RFPNo = formatRFPNo(seq)
		rfp = *next
		return tx.Create(&rfp).Error
	})
	if err != nil {
		return nil, err
	}
	return &rfp, nil
}

// nextRFPState applies one generation to the lead's current RFP. An
// existing row is updated in place, keeping its identity and number, so a
// lead never accumulates RFP rows across regenerations. With no existing
// row a new record is prepared; its number is allocated by the caller.
func nextRFPState(existing *models.RFP, leadID, surveyID uuid.UUID, snapshot models.RequirementsSnapshot) (*models.RFP, bool) {
	if existing != nil {
		existing.Requirements = snapshot
		existing.Status = statusAfterGeneration(existing.Status)
		existing.Stage = models.RFPStageDrafting
		existing.SurveyID = &surveyID
		return existing, false
	}
	return &models.RFP{
		LeadID:       leadID,
		SurveyID:     &surveyID,
		Status:       statusAfterGeneration(""),
		Stage:        models.RFPStageDrafting,
		Requirements: snapshot,
	}, true
}

// statusAfterGeneration is the single place the (re)generation transition
// lives: any prior status moves to IN_PROGRESS.
func statusAfterGeneration(current models.RFPStatus) models.RFPStatus {
	return models.RFPStatusInProgress
}

// formatRFPNo renders the zero-padded global RFP number.
func formatRFPNo(seq int64) string {
	return fmt.Sprintf("RFP%04d", seq)
}

// validateEquipment returns a human-readable message for the first invalid
// line, or "" when the list is acceptable.
func validateEquipment(lines []EquipmentLineInput) string {
	if len(lines) == 0 {
		return "No equipment provided"
	}
	for i, line := range lines {
		kind := pricing.Kind(line.Kind)
		if kind != pricing.KindProduct && kind != pricing.KindService {
			return fmt.Sprintf("Equipment line %d: kind must be PRODUCT or SERVICE", i+1)
		}
		if line.Name == "" {
			return fmt.Sprintf("Equipment line %d: name is required", i+1)
		}
		if line.Quantity <= 0 {
			return fmt.Sprintf("Equipment line %d: quantity must be positive", i+1)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Sprintf("Equipment line %d: unit price cannot be negative", i+1)
		}
	}
	return ""
}

// buildLines converts validated input lines into priced snapshot lines,
// filling missing margins from the markup rules and recomputing every
// line total.
func (h *RFPHandler) buildLines(inputs []EquipmentLineInput) ([]pricing.Line, error) {
	var rules []models.MarkupRule
	if err := h.db.Where("is_active = ?", true).Order("priority ASC").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to load markup rules: %w", err)
	}

	lines := make([]pricing.Line, 0, len(inputs))
	for _, in := range inputs {
		margin := decimal.Zero
		if in.MarginPercent != nil {
			margin = *in.MarginPercent
		} else if p := ResolveMarginPercent(rules, in.Brand, in.Category, in.ManufacturerCode, ChannelB2B); p != nil {
			margin = *p
		}

		line := pricing.Line{
			Kind:             pricing.Kind(in.Kind),
			Name:             in.Name,
			Brand:            in.Brand,
			Category:         in.Category,
			Quantity:         in.Quantity,
			UnitPrice:        in.UnitPrice,
			MarginPercent:    margin,
			LocationRef:      in.LocationRef,
			Notes:            in.Notes,
			ManufacturerCode: in.ManufacturerCode,
			EanCode:          in.EanCode,
		}
		line.TotalPrice = line.ComputedTotal()
		lines = append(lines, line)
	}
	return lines, nil
}

// resolveTarget determines the owning entity for generated artifacts:
// the survey's lead when present, its customer otherwise.
func (h *RFPHandler) resolveTarget(survey *models.SiteSurvey) (*generationTarget, error) {
	if survey.LeadID != nil {
		var lead models.Lead
		if err := h.db.Preload("Customer").First(&lead, "id = ?", *survey.LeadID).Error; err != nil {
			return nil, fmt.Errorf("failed to load lead: %w", err)
		}
		return targetFromLead(&lead), nil
	}
	if survey.CustomerID != nil {
		var customer models.Customer
		if err := h.db.First(&customer, "id = ?", *survey.CustomerID).Error; err != nil {
			return nil, fmt.Errorf("failed to load customer: %w", err)
		}
		return &generationTarget{
			EntityID:     customer.ID,
			EntityType:   models.EntityTypeCustomer,
			Reference:    customer.Name,
			CustomerName: customer.Name,
		}, nil
	}
	return nil, fmt.Errorf("survey is not linked to a lead or customer")
}

func targetFromLead(lead *models.Lead) *generationTarget {
	target := &generationTarget{
		EntityID:     lead.ID,
		EntityType:   models.EntityTypeLead,
		Reference:    lead.Name,
		ProjectTitle: lead.ProjectTitle,
		Lead:         lead,
	}
	if lead.Customer != nil {
		target.CustomerName = lead.Customer.Name
	} else {
		target.CustomerName = lead.ContactName
	}
	return target
}

func rfpResponse(rfp *models.RFP) interface{} {
	if rfp == nil {
		return nil
	}
	return map[string]interface{}{
		"id":     rfp.ID,
		"rfp_no": rfp.RFPNo,
		"status": rfp.Status,
		"stage":  rfp.Stage,
	}
}

func fileResponse(record *models.GeneratedFile, version int, lines []pricing.Line) map[string]interface{} {
	products, services := 0, 0
	for _, l := range lines {
		if l.Kind == pricing.KindService {
			services++
		} else {
			products++
		}
	}
	return map[string]interface{}{
		"filename":       record.Name,
		"file_id":        record.ID,
		"url":            record.URL,
		"version":        version,
		"products_count": products,
		"services_count": services,
	}
}

func totalsResponse(t pricing.Totals) map[string]interface{} {
	return map[string]interface{}{
		"grand_total":    pricing.Round2(t.GrandTotal).InexactFloat64(),
		"products_total": pricing.Round2(t.Products.Total).InexactFloat64(),
		"services_total": pricing.Round2(t.Services.Total).InexactFloat64(),
		"total_margin":   pricing.Round2(t.Products.MarginAmount.Add(t.Services.MarginAmount)).InexactFloat64(),
	}
}

// writeGenerationError reports a pipeline failure as JSON with details,
// since generation errors are the ones the UI surfaces verbatim.
func writeGenerationError(w http.ResponseWriter, msg string, err error) {
	log.Printf("❌ %s: %v", msg, err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   msg,
		"details": err.Error(),
	})
}
