package service

import (
	"context"
	"time"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/casedeck/casedeck-backend/pkg/cache"
	"gorm.io/gorm"
)

// LifecycleService guards the soft-delete/restore state machine.
// A case study is either Active or Deleted; illegal transitions are
// rejected before any write.
type LifecycleService struct {
	db          *gorm.DB
	caseStudies repository.CaseStudyRepository
	ledger      *VersionService
	cacheSvc    cache.Service
}

// NewLifecycleService creates a new LifecycleService
func NewLifecycleService(
	db *gorm.DB,
	caseStudyRepo repository.CaseStudyRepository,
	ledger *VersionService,
	cacheSvc cache.Service,
) *LifecycleService {
	return &LifecycleService{
		db:          db,
		caseStudies: caseStudyRepo,
		ledger:      ledger,
		cacheSvc:    cacheSvc,
	}
}

// SoftDelete marks an active case study as deleted and unpublishes it.
// The version record and the field updates commit together or not at all.
func (s *LifecycleService) SoftDelete(caseStudyID, reason, actor string) (*domain.CaseStudyVersion, error) {
	cs, err := s.caseStudies.FindByID(caseStudyID)
	if err != nil {
		return nil, err
	}
	if cs.IsDeleted() {
		return nil, common.ErrAlreadyDeleted
	}

	now := time.Now()
	previous := domain.JSONMap{
		"is_published":   cs.IsPublished,
		"scheduled_date": cs.ScheduledDate,
	}
	updated := domain.JSONMap{
		"is_published": false,
		"deleted_at":   now,
		"deleted_by":   actor,
	}

	var version *domain.CaseStudyVersion
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// deleted_at always changes here, so the ledger never reports a no-op
		version, err = s.ledger.WithTx(tx).RecordChange(
			caseStudyID, domain.ChangeTypeSoftDelete, previous, updated, reason, actor)
		if err != nil {
			return err
		}

		return s.caseStudies.WithTx(tx).UpdateFields(caseStudyID, map[string]interface{}{
			"is_published":  false,
			"deleted_at":    now,
			"deleted_by":    actor,
			"delete_reason": reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(caseStudyID)
	return version, nil
}

// Restore clears the delete state of a soft-deleted case study
func (s *LifecycleService) Restore(caseStudyID, actor string) (*domain.CaseStudyVersion, error) {
	cs, err := s.caseStudies.FindByID(caseStudyID)
	if err != nil {
		return nil, err
	}
	if !cs.IsDeleted() {
		return nil, common.ErrNotDeleted
	}

	previous := domain.JSONMap{
		"deleted_at":    cs.DeletedAt,
		"deleted_by":    cs.DeletedBy,
		"delete_reason": cs.DeleteReason,
	}
	updated := domain.JSONMap{
		"deleted_at":    nil,
		"deleted_by":    nil,
		"delete_reason": nil,
	}

	var version *domain.CaseStudyVersion
	err = s.db.Transaction(func(tx *gorm.DB) error {
		version, err = s.ledger.WithTx(tx).RecordChange(
			caseStudyID, domain.ChangeTypeRestore, previous, updated, "", actor)
		if err != nil {
			return err
		}

		return s.caseStudies.WithTx(tx).UpdateFields(caseStudyID, map[string]interface{}{
			"deleted_at":    nil,
			"deleted_by":    nil,
			"delete_reason": nil,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(caseStudyID)
	return version, nil
}

func (s *LifecycleService) invalidate(caseStudyID string) {
	if s.cacheSvc == nil || !s.cacheSvc.IsAvailable() {
		return
	}
	_ = s.cacheSvc.InvalidateCaseStudy(context.Background(), caseStudyID)
}
