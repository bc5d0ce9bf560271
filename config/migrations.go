package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"atlastel.gr/crm/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20260110_create_crm_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Customer{}, &models.Lead{}, &models.SiteSurvey{},
					&models.Product{}, &models.Manufacturer{})
			},
		},
		{
			ID: "20260118_create_rfp_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.RFP{}, &models.GeneratedFile{}, &models.SequenceCounter{})
			},
		},
		{
			ID: "20260204_create_markup_rules",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.MarkupRule{})
			},
		},
		{
			ID: "20260204_generated_files_unique_name",
			Migrate: func(tx *gorm.DB) error {
				// Version collisions under concurrent generation must fail
				// the insert instead of silently producing two files with
				// the same name for one entity.
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_generated_files_entity_name
					ON generated_files (entity_id, entity_type, name)`).Error
			},
		},
	})
	return m.Migrate()
}
