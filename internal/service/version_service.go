package service

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"gorm.io/gorm"
)

// DefaultRetentionWindow is the number of version records kept per case study
const DefaultRetentionWindow = 5

// VersionService is the version ledger: it owns version numbering, the
// current_version pointer and retention pruning. No other path writes
// current_version.
type VersionService struct {
	db              *gorm.DB
	caseStudies     repository.CaseStudyRepository
	versions        repository.VersionRepository
	retentionWindow int
}

// NewVersionService creates a new VersionService
func NewVersionService(
	db *gorm.DB,
	caseStudyRepo repository.CaseStudyRepository,
	versionRepo repository.VersionRepository,
	retentionWindow int,
) *VersionService {
	if retentionWindow <= 0 {
		retentionWindow = DefaultRetentionWindow
	}
	return &VersionService{
		db:              db,
		caseStudies:     caseStudyRepo,
		versions:        versionRepo,
		retentionWindow: retentionWindow,
	}
}

// WithTx returns a copy of the service bound to the given transaction,
// so callers can commit the ledger write together with their own writes
func (s *VersionService) WithTx(tx *gorm.DB) *VersionService {
	return &VersionService{
		db:              tx,
		caseStudies:     s.caseStudies.WithTx(tx),
		versions:        s.versions.WithTx(tx),
		retentionWindow: s.retentionWindow,
	}
}

// RetentionWindow returns the configured retention window
func (s *VersionService) RetentionWindow() int {
	return s.retentionWindow
}

// ComputeChangedFields returns the sorted list of field names whose values
// differ between previous and updated, considering keys present in either map
func ComputeChangedFields(previous, updated domain.JSONMap) []string {
	keys := make(map[string]struct{}, len(previous)+len(updated))
	for k := range previous {
		keys[k] = struct{}{}
	}
	for k := range updated {
		keys[k] = struct{}{}
	}

	var changed []string
	for k := range keys {
		prevVal, prevOK := previous[k]
		newVal, newOK := updated[k]
		if prevOK != newOK || !reflect.DeepEqual(prevVal, newVal) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

// RecordChange writes one version record for a mutation and advances the
// case study's current_version, atomically. Returns (nil, nil) when no
// field differs: no version record is written and the pointer is untouched.
func (s *VersionService) RecordChange(
	caseStudyID string,
	changeType string,
	previous, updated domain.JSONMap,
	reason, actor string,
) (*domain.CaseStudyVersion, error) {
	changedFields := ComputeChangedFields(previous, updated)
	if len(changedFields) == 0 {
		return nil, nil
	}

	// Restrict the value maps to the changed fields
	prevValues := make(domain.JSONMap, len(changedFields))
	newValues := make(domain.JSONMap, len(changedFields))
	for _, field := range changedFields {
		if v, ok := previous[field]; ok {
			prevValues[field] = v
		}
		if v, ok := updated[field]; ok {
			newValues[field] = v
		}
	}

	var version *domain.CaseStudyVersion
	err := s.db.Transaction(func(tx *gorm.DB) error {
		versions := s.versions.WithTx(tx)
		caseStudies := s.caseStudies.WithTx(tx)

		maxVersion, err := versions.MaxVersion(caseStudyID)
		if err != nil {
			return fmt.Errorf("failed to read max version: %w", err)
		}
		nextVersion := maxVersion + 1

		version = &domain.CaseStudyVersion{
			CaseStudyID:    caseStudyID,
			VersionNumber:  nextVersion,
			ChangeType:     changeType,
			ChangedFields:  changedFields,
			PreviousValues: prevValues,
			NewValues:      newValues,
			ChangeReason:   reason,
			CreatedBy:      actor,
		}
		if err := versions.Create(version); err != nil {
			return fmt.Errorf("failed to write version record: %w", err)
		}

		if err := caseStudies.UpdateFields(caseStudyID, map[string]interface{}{
			"current_version": nextVersion,
		}); err != nil {
			return fmt.Errorf("failed to advance current_version: %w", err)
		}

		// Retention pruning: version numbers are contiguous at the top, so
		// everything below next-window+1 is the excess tail
		if nextVersion > s.retentionWindow {
			if err := versions.DeleteBelowVersion(caseStudyID, nextVersion-s.retentionWindow+1); err != nil {
				return fmt.Errorf("failed to prune version records: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return version, nil
}

// GetVersionHistory returns version records newest-first. The result is
// bounded by the retention window regardless of the requested limit.
func (s *VersionService) GetVersionHistory(caseStudyID string, limit int) ([]*domain.CaseStudyVersion, error) {
	if limit <= 0 || limit > s.retentionWindow {
		limit = s.retentionWindow
	}
	// Existence check so a missing id is NotFound, not an empty history
	if _, err := s.caseStudies.FindByID(caseStudyID); err != nil {
		return nil, err
	}
	return s.versions.FindByCaseStudyID(caseStudyID, limit)
}

// GetVersion returns a single surviving version record
func (s *VersionService) GetVersion(caseStudyID string, versionNumber int) (*domain.CaseStudyVersion, error) {
	return s.versions.FindByCaseStudyIDAndVersion(caseStudyID, versionNumber)
}
