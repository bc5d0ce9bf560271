package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType identifies the owner of a generated file. LEAD is preferred;
// CUSTOMER is the fallback when no lead exists.
type EntityType string

const (
	EntityTypeLead     EntityType = "LEAD"
	EntityTypeCustomer EntityType = "CUSTOMER"
)

// GeneratedFile is the metadata record for one rendered artifact (Excel or
// Word). The versioned file store is the only writer: it assigns the
// versioned name, uploads the blob and prunes overflow beyond the retention
// cap. Name is unique per entity (idx_generated_files_entity_name).
type GeneratedFile struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string     `gorm:"size:255;not null" json:"name"`
	EntityID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"entity_id"`
	EntityType    EntityType `gorm:"type:varchar(10);not null" json:"entity_type"`
	URL           string     `gorm:"size:500;not null" json:"url"`
	StoragePath   string     `gorm:"size:500" json:"storage_path"`
	Size          int64      `gorm:"not null" json:"size"`
	FileType      string     `gorm:"size:100" json:"file_type"`
	Description   string     `gorm:"size:255" json:"description"`
	GeneratedByID *uuid.UUID `gorm:"type:uuid" json:"generated_by_id"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
}

func (f *GeneratedFile) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return
}
