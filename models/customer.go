package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer represents a company or person buying from us.
type Customer struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Code      string         `gorm:"size:20;uniqueIndex" json:"code"`
	Name      string         `gorm:"size:255;not null" json:"name"`
	VatNumber string         `gorm:"size:20" json:"vat_number"`
	Email     string         `gorm:"size:255" json:"email"`
	Phone     string         `gorm:"size:30" json:"phone"`
	Address   string         `gorm:"size:500" json:"address"`
	City      string         `gorm:"size:100" json:"city"`
	Country   string         `gorm:"size:100" json:"country"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	c.ID = uuid.New()
	return
}
