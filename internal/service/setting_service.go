package service

import (
	"context"
	"fmt"

	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/casedeck/casedeck-backend/pkg/cache"
)

// SettingService is the configuration-update path: it bumps the setting
// version and triggers the propagation that stamps the new fingerprint
// across the active corpus.
type SettingService struct {
	settings    repository.SettingRepository
	propagation *PropagationService
	cacheSvc    cache.Service
}

// NewSettingService creates a new SettingService
func NewSettingService(
	settingRepo repository.SettingRepository,
	propagation *PropagationService,
	cacheSvc cache.Service,
) *SettingService {
	return &SettingService{
		settings:    settingRepo,
		propagation: propagation,
		cacheSvc:    cacheSvc,
	}
}

// GetSetting returns one generation setting
func (s *SettingService) GetSetting(key string) (*domain.GenerationSetting, error) {
	return s.settings.Get(key)
}

// ListSettings returns all generation settings
func (s *SettingService) ListSettings() ([]domain.GenerationSetting, error) {
	return s.settings.GetAll()
}

// UpdateSetting stores the new value, bumps the version counter and kicks
// off a propagation stamping the new config fingerprint onto every active
// case study. Returns the setting and the propagation job id.
func (s *SettingService) UpdateSetting(key, value, actor string) (*domain.GenerationSetting, string, error) {
	setting, err := s.settings.Upsert(key, value, actor)
	if err != nil {
		return nil, "", err
	}

	if s.cacheSvc != nil && s.cacheSvc.IsAvailable() {
		_ = s.cacheSvc.InvalidateSetting(context.Background(), key)
	}

	jobID, err := s.propagation.Propagate(
		domain.Selector{AllActive: true},
		Mutation{
			Fields:     map[string]interface{}{"config_version_hash": setting.VersionHash()},
			ChangeType: domain.ChangeTypeFullRegenerate,
			Reason:     fmt.Sprintf("generation setting %s updated to v%d", key, setting.Version),
		},
		actor,
	)
	if err != nil {
		return nil, "", err
	}

	return setting, jobID, nil
}
