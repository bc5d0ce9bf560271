package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LeadStatus defines the sales status of a lead
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
)

// Lead represents a sales opportunity, optionally linked to an existing customer.
type Lead struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LeadNo       string         `gorm:"size:20;uniqueIndex" json:"lead_no"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	ProjectTitle string         `gorm:"size:255" json:"project_title"`
	Status       LeadStatus     `gorm:"type:varchar(20);default:'new'" json:"status"`
	Source       string         `gorm:"size:100" json:"source"`
	CustomerID   *uuid.UUID     `gorm:"type:uuid" json:"customer_id"`
	Customer     *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ContactName  string         `gorm:"size:255" json:"contact_name"`
	ContactEmail string         `gorm:"size:255" json:"contact_email"`
	ContactPhone string         `gorm:"size:30" json:"contact_phone"`
	Notes        string         `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) (err error) {
	l.ID = uuid.New()
	return
}
