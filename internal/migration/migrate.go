package migration

import (
	"github.com/casedeck/casedeck-backend/internal/domain"
	"gorm.io/gorm"
)

// Run creates the engine's tables if they do not exist and seeds the
// default generation settings
func Run(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.CaseStudy{},
		&domain.CaseStudyVersion{},
		&domain.PropagationJob{},
		&domain.GenerationSetting{},
	); err != nil {
		return err
	}

	var count int64
	db.Model(&domain.GenerationSetting{}).Count(&count)
	if count == 0 {
		return seedSettings(db)
	}
	return nil
}

func seedSettings(db *gorm.DB) error {
	settings := []domain.GenerationSetting{
		{Key: "generation.model", Value: "default", Version: 1, UpdatedBy: "system"},
		{Key: "generation.tone", Value: "neutral", Version: 1, UpdatedBy: "system"},
		{Key: "generation.max_sections", Value: "6", Version: 1, UpdatedBy: "system"},
	}
	return db.Create(&settings).Error
}
