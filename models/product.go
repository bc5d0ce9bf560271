package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Manufacturer represents an equipment manufacturer.
type Manufacturer struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Website   string         `gorm:"size:255" json:"website"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (m *Manufacturer) BeforeCreate(tx *gorm.DB) (err error) {
	m.ID = uuid.New()
	return
}

// Product is a sellable catalog item. ErpRef links it to the external ERP;
// code pushes to the ERP happen only when ErpRef is set and the product is
// active.
type Product struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string          `gorm:"size:255;not null" json:"name"`
	Brand            string          `gorm:"size:100" json:"brand"`
	Category         string          `gorm:"size:100" json:"category"`
	ManufacturerID   *uuid.UUID      `gorm:"type:uuid" json:"manufacturer_id"`
	Manufacturer     *Manufacturer   `gorm:"foreignKey:ManufacturerID" json:"manufacturer,omitempty"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(12,2);default:0" json:"unit_price"`
	ErpRef           string          `gorm:"size:50;index" json:"erp_ref"`
	EanCode          string          `gorm:"size:20" json:"ean_code"`
	ManufacturerCode string          `gorm:"size:50" json:"manufacturer_code"`
	ErpSyncStatus    string          `gorm:"size:20" json:"erp_sync_status"`
	ErpSyncedAt      *time.Time      `json:"erp_synced_at,omitempty"`
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	DeletedAt        gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) (err error) {
	p.ID = uuid.New()
	return
}
