package repository

import (
	"errors"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"gorm.io/gorm"
)

// JobRepository propagation job data access
type JobRepository interface {
	Create(job *domain.PropagationJob) error
	FindByID(id string) (*domain.PropagationJob, error)
	Save(job *domain.PropagationJob) error
	UpdateProgress(id string, processed, failed int, failures domain.JobFailureList) error
	List(limit int) ([]domain.PropagationJob, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new JobRepository
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *domain.PropagationJob) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) FindByID(id string) (*domain.PropagationJob, error) {
	var job domain.PropagationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) Save(job *domain.PropagationJob) error {
	return r.db.Save(job).Error
}

// UpdateProgress persists the counters without touching status or timestamps,
// so pollers see monotonically non-decreasing progress
func (r *jobRepository) UpdateProgress(id string, processed, failed int, failures domain.JobFailureList) error {
	return r.db.Model(&domain.PropagationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed": processed,
			"failed":    failed,
			"failures":  failures,
		}).Error
}

func (r *jobRepository) List(limit int) ([]domain.PropagationJob, error) {
	var jobs []domain.PropagationJob
	if limit <= 0 {
		limit = 20
	}
	err := r.db.Order("created_at DESC").Limit(limit).Find(&jobs).Error
	return jobs, err
}
