package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MarkupScope defines what a markup rule matches against
type MarkupScope string

const (
	MarkupScopeGlobal       MarkupScope = "GLOBAL"
	MarkupScopeBrand        MarkupScope = "BRAND"
	MarkupScopeManufacturer MarkupScope = "MANUFACTURER"
	MarkupScopeCategory     MarkupScope = "CATEGORY"
)

// MarkupRule is a priority-ordered override of the default B2B/retail
// margin percentages. Match holds the brand/manufacturer/category name the
// rule applies to and is empty for GLOBAL rules. Lower Priority wins
// within a scope; scope specificity (manufacturer > brand > category >
// global) wins across scopes.
type MarkupRule struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Scope         MarkupScope     `gorm:"type:varchar(20);not null" json:"scope"`
	Match         string          `gorm:"size:255" json:"match"`
	B2BPercent    decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"b2b_percent"`
	RetailPercent decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"retail_percent"`
	Priority      int             `gorm:"default:100" json:"priority"`
	IsActive      bool            `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (m *MarkupRule) BeforeCreate(tx *gorm.DB) (err error) {
	m.ID = uuid.New()
	return
}
