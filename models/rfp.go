package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"atlastel.gr/crm/pkg/pricing"
)

// RFPStatus defines the coarse lifecycle of an RFP
type RFPStatus string

const (
	RFPStatusDraft      RFPStatus = "DRAFT"
	RFPStatusInProgress RFPStatus = "IN_PROGRESS"
	RFPStatusSubmitted  RFPStatus = "SUBMITTED"
	RFPStatusAwarded    RFPStatus = "AWARDED"
	RFPStatusLost       RFPStatus = "LOST"
	RFPStatusCancelled  RFPStatus = "CANCELLED"
)

// RFPStage is the finer-grained workflow marker within a status
type RFPStage string

const (
	RFPStageDrafting     RFPStage = "RFP_DRAFTING"
	RFPStagePricing      RFPStage = "PRICING"
	RFPStageProposalSent RFPStage = "PROPOSAL_SENT"
)

// RequirementsSnapshot is the persisted unit of truth for one RFP: the
// equipment list, notes, recomputed totals and generation provenance.
// Stored as a jsonb column; always a typed struct, never a loose map, so
// every read and write passes through the same validation.
type RequirementsSnapshot struct {
	Equipment    []pricing.Line `json:"equipment"`
	GeneralNotes string         `json:"general_notes,omitempty"`
	Totals       pricing.Totals `json:"totals"`
	GeneratedAt  time.Time      `json:"generated_at"`
	GeneratedBy  string         `json:"generated_by,omitempty"`
}

// Scan implements sql.Scanner interface
func (s *RequirementsSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = RequirementsSnapshot{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("requirements snapshot: expected []byte from database")
	}
	if err := json.Unmarshal(bytes, s); err != nil {
		return fmt.Errorf("requirements snapshot: %w", err)
	}
	return nil
}

// Value implements driver.Valuer interface
func (s RequirementsSnapshot) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// RFP is the priced-equipment working document tied to a lead. Only one
// RFP per lead is treated as current: the most recent by creation time.
type RFP struct {
	ID           uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	RFPNo        string               `gorm:"size:20;uniqueIndex" json:"rfp_no"`
	LeadID       uuid.UUID            `gorm:"type:uuid;not null;index" json:"lead_id"`
	Lead         *Lead                `gorm:"foreignKey:LeadID" json:"lead,omitempty"`
	SurveyID     *uuid.UUID           `gorm:"type:uuid" json:"survey_id"`
	Survey       *SiteSurvey          `gorm:"foreignKey:SurveyID" json:"survey,omitempty"`
	Status       RFPStatus            `gorm:"type:varchar(20);default:'DRAFT'" json:"status"`
	Stage        RFPStage             `gorm:"type:varchar(30);default:'RFP_DRAFTING'" json:"stage"`
	Requirements RequirementsSnapshot `gorm:"type:jsonb;default:'{}'" json:"requirements"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
	DeletedAt    gorm.DeletedAt       `gorm:"index" json:"deleted_at,omitempty"`
}

func (r *RFP) BeforeCreate(tx *gorm.DB) (err error) {
	r.ID = uuid.New()
	return
}
