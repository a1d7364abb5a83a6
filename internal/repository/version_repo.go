package repository

import (
	"github.com/casedeck/casedeck-backend/internal/domain"
	"gorm.io/gorm"
)

// VersionRepository version ledger data access
type VersionRepository interface {
	WithTx(tx *gorm.DB) VersionRepository
	Create(version *domain.CaseStudyVersion) error
	MaxVersion(caseStudyID string) (int, error)
	CountByCaseStudy(caseStudyID string) (int64, error)
	DeleteBelowVersion(caseStudyID string, versionNumber int) error
	FindByCaseStudyID(caseStudyID string, limit int) ([]*domain.CaseStudyVersion, error)
	FindByCaseStudyIDAndVersion(caseStudyID string, versionNumber int) (*domain.CaseStudyVersion, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository creates a new VersionRepository
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

func (r *versionRepository) WithTx(tx *gorm.DB) VersionRepository {
	return &versionRepository{db: tx}
}

func (r *versionRepository) Create(version *domain.CaseStudyVersion) error {
	return r.db.Create(version).Error
}

// MaxVersion returns the highest version_number for a case study, 0 if none
func (r *versionRepository) MaxVersion(caseStudyID string) (int, error) {
	var max *int
	err := r.db.Model(&domain.CaseStudyVersion{}).
		Where("case_study_id = ?", caseStudyID).
		Select("MAX(version_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (r *versionRepository) CountByCaseStudy(caseStudyID string) (int64, error) {
	var count int64
	err := r.db.Model(&domain.CaseStudyVersion{}).
		Where("case_study_id = ?", caseStudyID).
		Count(&count).Error
	return count, err
}

// DeleteBelowVersion removes version records older than the given
// version_number (exclusive). Used by retention pruning only.
func (r *versionRepository) DeleteBelowVersion(caseStudyID string, versionNumber int) error {
	return r.db.
		Where("case_study_id = ? AND version_number < ?", caseStudyID, versionNumber).
		Delete(&domain.CaseStudyVersion{}).Error
}

func (r *versionRepository) FindByCaseStudyID(caseStudyID string, limit int) ([]*domain.CaseStudyVersion, error) {
	var versions []*domain.CaseStudyVersion
	query := r.db.Where("case_study_id = ?", caseStudyID).Order("version_number DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&versions).Error
	return versions, err
}

func (r *versionRepository) FindByCaseStudyIDAndVersion(caseStudyID string, versionNumber int) (*domain.CaseStudyVersion, error) {
	var version domain.CaseStudyVersion
	err := r.db.Where("case_study_id = ? AND version_number = ?", caseStudyID, versionNumber).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}
