package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"atlastel.gr/crm/config"
	"atlastel.gr/crm/models"
)

// ErpSyncStatus values recorded on products after a code update.
const (
	ErpSyncSuccess = "success"
	ErpSyncFailed  = "failed"
	ErpSyncSkipped = "skipped"
)

// ProductCodesHandler persists product identifier codes and pushes them to
// the ERP as a best-effort side channel.
type ProductCodesHandler struct {
	db  *gorm.DB
	erp *ERPClient
}

func NewProductCodesHandler(erp *ERPClient) *ProductCodesHandler {
	return &ProductCodesHandler{db: config.DB, erp: erp}
}

// ProductCodeUpdate is one item of a batch code update.
type ProductCodeUpdate struct {
	ProductID        uuid.UUID `json:"product_id"`
	EanCode          string    `json:"ean_code"`
	ManufacturerCode string    `json:"manufacturer_code"`
}

type batchCodesRequest struct {
	Updates []ProductCodeUpdate `json:"updates"`
}

type codeUpdateResult struct {
	ProductID uuid.UUID `json:"product_id"`
	Success   bool      `json:"success"`
	ErpSync   string    `json:"erp_sync,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// UpdateProductCodes saves EAN/manufacturer codes for a batch of products,
// then pushes each to the ERP. The response is always 200 with a per-item
// result array plus a summary: one bad item never fails the batch, and an
// ERP failure never reverts the already-committed codes.
func (h *ProductCodesHandler) UpdateProductCodes(w http.ResponseWriter, r *http.Request) {
	var req batchCodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Updates) == 0 {
		http.Error(w, "No updates provided", http.StatusBadRequest)
		return
	}

	results := make([]codeUpdateResult, 0, len(req.Updates))
	succeeded := 0
	for _, update := range req.Updates {
		result := h.applyUpdate(r.Context(), update)
		if result.Success {
			succeeded++
		}
		results = append(results, result)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"results": results,
		"summary": map[string]int{
			"total":     len(results),
			"succeeded": succeeded,
			"failed":    len(results) - succeeded,
		},
	})
}

func (h *ProductCodesHandler) applyUpdate(ctx context.Context, update ProductCodeUpdate) codeUpdateResult {
	result := codeUpdateResult{ProductID: update.ProductID}

	if update.EanCode == "" && update.ManufacturerCode == "" {
		result.Error = "no codes provided"
		return result
	}

	var product models.Product
	if err := h.db.First(&product, "id = ?", update.ProductID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			result.Error = "product not found"
		} else {
			result.Error = "failed to load product: " + err.Error()
		}
		return result
	}

	// Primary write first. The ERP push below must not be able to undo it.
	if update.EanCode != "" {
		product.EanCode = update.EanCode
	}
	if update.ManufacturerCode != "" {
		product.ManufacturerCode = update.ManufacturerCode
	}
	if err := h.db.Save(&product).Error; err != nil {
		result.Error = "failed to save codes: " + err.Error()
		return result
	}
	result.Success = true

	if !h.erp.Configured() || product.ErpRef == "" || !product.IsActive {
		result.ErpSync = ErpSyncSkipped
		return result
	}

	syncCtx, cancel := context.WithTimeout(ctx, defaultERPTimeout)
	defer cancel()
	if err := h.erp.SyncProductCodes(syncCtx, product.ErpRef, product.EanCode, product.ManufacturerCode); err != nil {
		log.Printf("⚠️ ERP sync failed for product %s: %v", product.ID, err)
		result.ErpSync = ErpSyncFailed
	} else {
		result.ErpSync = ErpSyncSuccess
	}

	now := time.Now()
	product.ErpSyncStatus = result.ErpSync
	product.ErpSyncedAt = &now
	if err := h.db.Save(&product).Error; err != nil {
		// Advisory metadata only; the codes are already committed.
		log.Printf("⚠️ Could not record ERP sync status for product %s: %v", product.ID, err)
	}
	return result
}
