package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SurveyStatus defines the lifecycle of a site survey
type SurveyStatus string

const (
	SurveyStatusScheduled SurveyStatus = "scheduled"
	SurveyStatusInField   SurveyStatus = "in_field"
	SurveyStatusCompleted SurveyStatus = "completed"
	SurveyStatusCancelled SurveyStatus = "cancelled"
)

// SiteSurvey is the on-site assessment an RFP is generated from. It is
// linked to a lead when one exists, otherwise directly to a customer.
type SiteSurvey struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	LeadID     *uuid.UUID     `gorm:"type:uuid;index" json:"lead_id"`
	Lead       *Lead          `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	CustomerID *uuid.UUID     `gorm:"type:uuid;index" json:"customer_id"`
	Customer   *Customer      `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status     SurveyStatus   `gorm:"type:varchar(20);default:'scheduled'" json:"status"`
	Address    string         `gorm:"size:500" json:"address"`
	SurveyedAt *time.Time     `json:"surveyed_at,omitempty"`
	Notes      string         `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (s *SiteSurvey) BeforeCreate(tx *gorm.DB) (err error) {
	s.ID = uuid.New()
	return
}
