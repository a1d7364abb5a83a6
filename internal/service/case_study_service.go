package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/casedeck/casedeck-backend/pkg/cache"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// editableFields is the allow-list for update entry points. Identity and
// system-owned fields (id, current_version, config_version_hash, delete
// state, timestamps) are never writable by callers.
var editableFields = map[string]struct{}{
	"title":          {},
	"summary":        {},
	"sections":       {},
	"tags":           {},
	"source_url":     {},
	"source_name":    {},
	"chart_url":      {},
	"is_published":   {},
	"scheduled_date": {},
}

// updateChangeTypes are the change types a direct update may carry
var updateChangeTypes = map[string]struct{}{
	domain.ChangeTypeContent:        {},
	domain.ChangeTypeMetadata:       {},
	domain.ChangeTypeVisuals:        {},
	domain.ChangeTypeFullRegenerate: {},
}

// CaseStudyService is the single-record update entry point: it validates
// the requested field set and delegates versioning to the ledger
type CaseStudyService struct {
	db          *gorm.DB
	caseStudies repository.CaseStudyRepository
	ledger      *VersionService
	cacheSvc    cache.Service
}

// NewCaseStudyService creates a new CaseStudyService
func NewCaseStudyService(
	db *gorm.DB,
	caseStudyRepo repository.CaseStudyRepository,
	ledger *VersionService,
	cacheSvc cache.Service,
) *CaseStudyService {
	return &CaseStudyService{
		db:          db,
		caseStudies: caseStudyRepo,
		ledger:      ledger,
		cacheSvc:    cacheSvc,
	}
}

// CreateCaseStudy stores a newly generated case study. Creation is not a
// versioned mutation: the ledger starts at version 1 on the first update.
func (s *CaseStudyService) CreateCaseStudy(cs *domain.CaseStudy) error {
	if cs.ID == "" {
		cs.ID = uuid.New().String()
	}
	cs.CurrentVersion = 0
	return s.caseStudies.Create(cs)
}

// GetCaseStudy returns one case study. Soft-deleted records are only
// visible when includeDeleted is set (privileged callers); only the
// public view is cached.
func (s *CaseStudyService) GetCaseStudy(id string, includeDeleted bool) (*domain.CaseStudy, error) {
	cacheable := !includeDeleted && s.cacheSvc != nil && s.cacheSvc.IsAvailable()
	if cacheable {
		if data, err := s.cacheSvc.GetCaseStudy(context.Background(), id); err == nil {
			var cached domain.CaseStudy
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	cs, err := s.caseStudies.FindByID(id)
	if err != nil {
		return nil, err
	}
	if cs.IsDeleted() {
		if includeDeleted {
			return cs, nil
		}
		return nil, common.ErrCaseStudyNotFound
	}

	if cacheable {
		_ = s.cacheSvc.SetCaseStudy(context.Background(), id, cs)
	}
	return cs, nil
}

// ListCaseStudies returns a page of case studies
func (s *CaseStudyService) ListCaseStudies(page, limit int, includeDeleted bool) ([]domain.CaseStudy, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.caseStudies.List(page, limit, includeDeleted)
}

// UpdateCaseStudy applies an allow-listed field update through the ledger.
// A no-op update (no field differs) writes nothing and returns a nil
// version alongside the unchanged record.
func (s *CaseStudyService) UpdateCaseStudy(
	id string,
	fields map[string]interface{},
	changeType, reason, actor string,
) (*domain.CaseStudy, *domain.CaseStudyVersion, error) {
	if len(fields) == 0 {
		return nil, nil, fmt.Errorf("%w: no fields to update", common.ErrInvalidInput)
	}
	if _, ok := updateChangeTypes[changeType]; !ok {
		return nil, nil, fmt.Errorf("%w: unknown change type %q", common.ErrInvalidInput, changeType)
	}

	normalized := make(map[string]interface{}, len(fields))
	for name, value := range fields {
		if _, ok := editableFields[name]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", common.ErrProtectedField, name)
		}
		v, err := normalizeFieldValue(name, value)
		if err != nil {
			return nil, nil, err
		}
		normalized[name] = v
	}

	cs, err := s.caseStudies.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	if cs.IsDeleted() {
		return nil, nil, common.ErrAlreadyDeleted
	}

	previous := snapshotFields(cs, normalized)
	updated := domain.JSONMap(normalized)

	var version *domain.CaseStudyVersion
	err = s.db.Transaction(func(tx *gorm.DB) error {
		version, err = s.ledger.WithTx(tx).RecordChange(id, changeType, previous, updated, reason, actor)
		if err != nil {
			return err
		}
		if version == nil {
			// No field differs: nothing to write
			return nil
		}
		return s.caseStudies.WithTx(tx).UpdateFields(id, normalized)
	})
	if err != nil {
		return nil, nil, err
	}

	if version == nil {
		return cs, nil, nil
	}

	s.invalidate(id)
	cs, err = s.caseStudies.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	return cs, version, nil
}

// snapshotFields captures the pre-mutation values of the requested fields
func snapshotFields(cs *domain.CaseStudy, fields map[string]interface{}) domain.JSONMap {
	snapshot := make(domain.JSONMap, len(fields))
	for name := range fields {
		switch name {
		case "title":
			snapshot[name] = cs.Title
		case "summary":
			snapshot[name] = cs.Summary
		case "sections":
			snapshot[name] = cs.Sections
		case "tags":
			snapshot[name] = cs.Tags
		case "source_url":
			snapshot[name] = cs.SourceURL
		case "source_name":
			snapshot[name] = cs.SourceName
		case "chart_url":
			snapshot[name] = cs.ChartURL
		case "is_published":
			snapshot[name] = cs.IsPublished
		case "scheduled_date":
			snapshot[name] = cs.ScheduledDate
		}
	}
	return snapshot
}

// normalizeFieldValue coerces JSON request values into the types the diff
// and the store expect
func normalizeFieldValue(name string, value interface{}) (interface{}, error) {
	switch name {
	case "title", "summary", "source_url", "source_name", "chart_url":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a string", common.ErrInvalidInput, name)
		}
		return s, nil
	case "is_published":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: is_published must be a boolean", common.ErrInvalidInput)
		}
		return b, nil
	case "sections":
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: sections must be an object", common.ErrInvalidInput)
		}
		return domain.JSONMap(m), nil
	case "tags":
		switch v := value.(type) {
		case []string:
			return domain.StringList(v), nil
		case []interface{}:
			tags := make(domain.StringList, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, fmt.Errorf("%w: tags must be strings", common.ErrInvalidInput)
				}
				tags = append(tags, s)
			}
			return tags, nil
		default:
			return nil, fmt.Errorf("%w: tags must be a list", common.ErrInvalidInput)
		}
	case "scheduled_date":
		if value == nil {
			return (*time.Time)(nil), nil
		}
		switch v := value.(type) {
		case *time.Time:
			return v, nil
		case time.Time:
			return &v, nil
		case string:
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, fmt.Errorf("%w: scheduled_date must be RFC3339", common.ErrInvalidInput)
			}
			return &t, nil
		default:
			return nil, fmt.Errorf("%w: scheduled_date must be a timestamp", common.ErrInvalidInput)
		}
	default:
		return value, nil
	}
}

func (s *CaseStudyService) invalidate(id string) {
	if s.cacheSvc == nil || !s.cacheSvc.IsAvailable() {
		return
	}
	_ = s.cacheSvc.InvalidateCaseStudy(context.Background(), id)
}
