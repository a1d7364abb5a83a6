package repository

import (
	"errors"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"gorm.io/gorm"
)

// CaseStudyRepository case study data access
type CaseStudyRepository interface {
	WithTx(tx *gorm.DB) CaseStudyRepository
	Create(cs *domain.CaseStudy) error
	FindByID(id string) (*domain.CaseStudy, error)
	UpdateFields(id string, fields map[string]interface{}) error
	FindIDsBySelector(sel domain.Selector) ([]string, error)
	List(page, limit int, includeDeleted bool) ([]domain.CaseStudy, int64, error)
}

type caseStudyRepository struct {
	db *gorm.DB
}

// NewCaseStudyRepository creates a new CaseStudyRepository
func NewCaseStudyRepository(db *gorm.DB) CaseStudyRepository {
	return &caseStudyRepository{db: db}
}

func (r *caseStudyRepository) WithTx(tx *gorm.DB) CaseStudyRepository {
	return &caseStudyRepository{db: tx}
}

func (r *caseStudyRepository) Create(cs *domain.CaseStudy) error {
	return r.db.Create(cs).Error
}

// FindByID returns the case study regardless of delete state; privileged
// callers need soft-deleted records too
func (r *caseStudyRepository) FindByID(id string) (*domain.CaseStudy, error) {
	var cs domain.CaseStudy
	err := r.db.Where("id = ?", id).First(&cs).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrCaseStudyNotFound
		}
		return nil, err
	}
	return &cs, nil
}

func (r *caseStudyRepository) UpdateFields(id string, fields map[string]interface{}) error {
	result := r.db.Model(&domain.CaseStudy{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return common.ErrCaseStudyNotFound
	}
	return nil
}

// FindIDsBySelector returns the ids matching a propagation selector.
// Explicit id lists are taken as given; filters exclude soft-deleted
// records.
func (r *caseStudyRepository) FindIDsBySelector(sel domain.Selector) ([]string, error) {
	if sel.IsZero() {
		return nil, common.ErrInvalidSelector
	}

	// Explicit ids are not resolved here: unknown ids surface as
	// per-record failures when the mutation is applied
	if len(sel.IDs) > 0 {
		ids := make([]string, len(sel.IDs))
		copy(ids, sel.IDs)
		return ids, nil
	}

	query := r.db.Model(&domain.CaseStudy{}).Where("deleted_at IS NULL")
	if sel.CreatedBefore != nil {
		query = query.Where("created_at < ?", *sel.CreatedBefore)
	}

	var ids []string
	if err := query.Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *caseStudyRepository) List(page, limit int, includeDeleted bool) ([]domain.CaseStudy, int64, error) {
	var items []domain.CaseStudy
	var total int64

	query := r.db.Model(&domain.CaseStudy{})
	if !includeDeleted {
		query = query.Where("deleted_at IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&items).Error
	return items, total, err
}
