package repository

import (
	"errors"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"gorm.io/gorm"
)

// SettingRepository generation setting data access
type SettingRepository interface {
	Get(key string) (*domain.GenerationSetting, error)
	GetAll() ([]domain.GenerationSetting, error)
	Upsert(key, value, updatedBy string) (*domain.GenerationSetting, error)
}

type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) Get(key string) (*domain.GenerationSetting, error) {
	var setting domain.GenerationSetting
	err := r.db.Where("setting_key = ?", key).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrSettingNotFound
		}
		return nil, err
	}
	return &setting, nil
}

func (r *settingRepository) GetAll() ([]domain.GenerationSetting, error) {
	var settings []domain.GenerationSetting
	err := r.db.Order("setting_key").Find(&settings).Error
	return settings, err
}

// Upsert stores the value and bumps the version counter; the bumped version
// is what a subsequent propagation fingerprints
func (r *settingRepository) Upsert(key, value, updatedBy string) (*domain.GenerationSetting, error) {
	var setting domain.GenerationSetting
	err := r.db.Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("setting_key = ?", key).First(&setting).Error
		if findErr != nil {
			if !errors.Is(findErr, gorm.ErrRecordNotFound) {
				return findErr
			}
			setting = domain.GenerationSetting{
				Key:       key,
				Value:     value,
				Version:   1,
				UpdatedBy: updatedBy,
			}
			return tx.Create(&setting).Error
		}

		setting.Value = value
		setting.Version++
		setting.UpdatedBy = updatedBy
		return tx.Save(&setting).Error
	})
	if err != nil {
		return nil, err
	}
	return &setting, nil
}
