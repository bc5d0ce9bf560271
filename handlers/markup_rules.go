package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"atlastel.gr/crm/config"
	"atlastel.gr/crm/models"
)

// PriceChannel selects which percentage of a markup rule applies.
type PriceChannel string

const (
	ChannelB2B    PriceChannel = "B2B"
	ChannelRetail PriceChannel = "RETAIL"
)

// MarkupRuleHandler is the CRUD surface for margin default rules.
type MarkupRuleHandler struct {
	db *gorm.DB
}

func NewMarkupRuleHandler() *MarkupRuleHandler {
	return &MarkupRuleHandler{db: config.DB}
}

type markupRuleRequest struct {
	Scope         models.MarkupScope `json:"scope"`
	Match         string             `json:"match"`
	B2BPercent    decimal.Decimal    `json:"b2b_percent"`
	RetailPercent decimal.Decimal    `json:"retail_percent"`
	Priority      int                `json:"priority"`
	IsActive      *bool              `json:"is_active"`
}

func (req *markupRuleRequest) validate() string {
	switch req.Scope {
	case models.MarkupScopeGlobal:
		if req.Match != "" {
			return "Global rules must not have a match value"
		}
	case models.MarkupScopeBrand, models.MarkupScopeManufacturer, models.MarkupScopeCategory:
		if req.Match == "" {
			return "Match is required for scoped rules"
		}
	default:
		return "Invalid scope"
	}
	return ""
}

// ListMarkupRules returns all rules, most specific scope first.
func (h *MarkupRuleHandler) ListMarkupRules(w http.ResponseWriter, r *http.Request) {
	var rules []models.MarkupRule
	if err := h.db.Order("priority ASC, created_at ASC").Find(&rules).Error; err != nil {
		http.Error(w, "Failed to fetch markup rules", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

// CreateMarkupRule creates a new markup rule
func (h *MarkupRuleHandler) CreateMarkupRule(w http.ResponseWriter, r *http.Request) {
	var req markupRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	rule := models.MarkupRule{
		Scope:         req.Scope,
		Match:         req.Match,
		B2BPercent:    req.B2BPercent,
		RetailPercent: req.RetailPercent,
		Priority:      req.Priority,
		IsActive:      true,
	}
	if req.Priority == 0 {
		rule.Priority = 100
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.db.Create(&rule).Error; err != nil {
		log.Printf("❌ Failed to create markup rule: %v", err)
		http.Error(w, "Failed to create markup rule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// GetMarkupRule returns a single markup rule
func (h *MarkupRuleHandler) GetMarkupRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var rule models.MarkupRule
	if err := h.db.First(&rule, "id = ?", vars["id"]).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Markup rule not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch markup rule", http.StatusInternalServerError)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// UpdateMarkupRule updates an existing markup rule
func (h *MarkupRuleHandler) UpdateMarkupRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var rule models.MarkupRule
	if err := h.db.First(&rule, "id = ?", vars["id"]).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			http.Error(w, "Markup rule not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to fetch markup rule", http.StatusInternalServerError)
		}
		return
	}

	var req markupRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if msg := req.validate(); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	rule.Scope = req.Scope
	rule.Match = req.Match
	rule.B2BPercent = req.B2BPercent
	rule.RetailPercent = req.RetailPercent
	if req.Priority != 0 {
		rule.Priority = req.Priority
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.db.Save(&rule).Error; err != nil {
		http.Error(w, "Failed to update markup rule", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rule)
}

// DeleteMarkupRule soft-deletes a markup rule
func (h *MarkupRuleHandler) DeleteMarkupRule(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res := h.db.Delete(&models.MarkupRule{}, "id = ?", vars["id"])
	if res.Error != nil {
		http.Error(w, "Failed to delete markup rule", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "Markup rule not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Markup rule deleted"})
}

// scope specificity for rule resolution, most specific first
var scopeRank = map[models.MarkupScope]int{
	models.MarkupScopeManufacturer: 0,
	models.MarkupScopeBrand:        1,
	models.MarkupScopeCategory:     2,
	models.MarkupScopeGlobal:       3,
}

// ResolveMarginPercent picks the default margin for an equipment line that
// did not specify one. Scope specificity wins first (manufacturer > brand
// > category > global), then lower Priority. Returns nil when no active
// rule matches.
func ResolveMarginPercent(rules []models.MarkupRule, brand, category, manufacturer string, channel PriceChannel) *decimal.Decimal {
	matched := make([]models.MarkupRule, 0, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		switch rule.Scope {
		case models.MarkupScopeGlobal:
			matched = append(matched, rule)
		case models.MarkupScopeBrand:
			if brand != "" && rule.Match == brand {
				matched = append(matched, rule)
			}
		case models.MarkupScopeManufacturer:
			if manufacturer != "" && rule.Match == manufacturer {
				matched = append(matched, rule)
			}
		case models.MarkupScopeCategory:
			if category != "" && rule.Match == category {
				matched = append(matched, rule)
			}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if scopeRank[matched[i].Scope] != scopeRank[matched[j].Scope] {
			return scopeRank[matched[i].Scope] < scopeRank[matched[j].Scope]
		}
		return matched[i].Priority < matched[j].Priority
	})

	percent := matched[0].B2BPercent
	if channel == ChannelRetail {
		percent = matched[0].RetailPercent
	}
	return &percent
}
