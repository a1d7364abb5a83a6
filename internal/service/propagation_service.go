package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/casedeck/casedeck-backend/internal/common"
	"github.com/casedeck/casedeck-backend/internal/domain"
	"github.com/casedeck/casedeck-backend/internal/repository"
	"github.com/casedeck/casedeck-backend/pkg/cache"
	"github.com/casedeck/casedeck-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// DefaultProgressBatchSize is how many records are processed between
// persisted progress updates
const DefaultProgressBatchSize = 10

var (
	propagationRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propagation_records_total",
			Help: "Case studies processed by propagation jobs",
		},
		[]string{"result"},
	)

	propagationJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "propagation_jobs_total",
			Help: "Propagation jobs by terminal status",
		},
		[]string{"status"},
	)

	versioningDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "propagation_versioning_degraded_total",
			Help: "Domain updates that succeeded after a failed audit write",
		},
	)
)

// Mutation is the change a propagation applies to every matched case study
type Mutation struct {
	Fields     map[string]interface{} `json:"fields"`
	ChangeType string                 `json:"change_type"`
	Reason     string                 `json:"reason,omitempty"`
}

// PropagationService fans one mutation out across a selector-matched set of
// case studies. Per-record failures are recorded and skipped, never fatal;
// the job's counters are owned by the single worker goroutine.
type PropagationService struct {
	db          *gorm.DB
	caseStudies repository.CaseStudyRepository
	jobs        repository.JobRepository
	ledger      *VersionService
	cacheSvc    cache.Service
	batchSize   int
	wg          sync.WaitGroup
}

// NewPropagationService creates a new PropagationService
func NewPropagationService(
	db *gorm.DB,
	caseStudyRepo repository.CaseStudyRepository,
	jobRepo repository.JobRepository,
	ledger *VersionService,
	cacheSvc cache.Service,
	batchSize int,
) *PropagationService {
	if batchSize <= 0 {
		batchSize = DefaultProgressBatchSize
	}
	return &PropagationService{
		db:          db,
		caseStudies: caseStudyRepo,
		jobs:        jobRepo,
		ledger:      ledger,
		cacheSvc:    cacheSvc,
		batchSize:   batchSize,
	}
}

// Wait blocks until all background propagation runs finish. Called on
// graceful shutdown.
func (s *PropagationService) Wait() {
	s.wg.Wait()
}

// Propagate validates the request, creates the job record and starts the
// per-record loop in the background. The job id is returned immediately;
// progress is observed via GetJob.
func (s *PropagationService) Propagate(selector domain.Selector, mutation Mutation, actor string) (string, error) {
	if selector.IsZero() {
		return "", common.ErrInvalidSelector
	}
	if err := validateMutation(&mutation); err != nil {
		return "", err
	}

	job := &domain.PropagationJob{
		ID:        uuid.New().String(),
		Subject:   mutation.Reason,
		Selector:  selector,
		Status:    domain.JobStatusPending,
		CreatedBy: actor,
	}

	ids, err := s.caseStudies.FindIDsBySelector(selector)
	if err != nil {
		// The selector query itself failed: the run is fully aborted but
		// still reportable as a failed job
		now := time.Now()
		job.Status = domain.JobStatusFailed
		job.CompletedAt = &now
		job.Failures = domain.JobFailureList{{Error: err.Error()}}
		if createErr := s.jobs.Create(job); createErr != nil {
			return "", createErr
		}
		propagationJobsTotal.WithLabelValues(domain.JobStatusFailed).Inc()
		s.mirror(job)
		return job.ID, nil
	}

	job.Total = len(ids)
	if err := s.jobs.Create(job); err != nil {
		return "", err
	}
	s.mirror(job)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(job.ID, ids, mutation, actor)
	}()

	return job.ID, nil
}

// GetJob returns the current state of a propagation job. The cache mirror
// is tried first; the store is the source of truth on a miss.
func (s *PropagationService) GetJob(jobID string) (*domain.PropagationJob, error) {
	if s.cacheSvc != nil && s.cacheSvc.IsAvailable() {
		var cached domain.PropagationJob
		if err := s.cacheSvc.GetJobProgress(context.Background(), jobID, &cached); err == nil {
			return &cached, nil
		}
	}
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	s.mirror(job)
	return job, nil
}

// ListJobs returns recent propagation jobs, newest first
func (s *PropagationService) ListJobs(limit int) ([]domain.PropagationJob, error) {
	return s.jobs.List(limit)
}

// Cancel requests termination of a pending or running job. Terminal jobs
// cannot be cancelled.
func (s *PropagationService) Cancel(jobID string) (*domain.PropagationJob, error) {
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return nil, err
	}
	if !job.CanTransitionTo(domain.JobStatusCancelled) {
		return nil, common.ErrJobAlreadyDone
	}

	now := time.Now()
	job.Status = domain.JobStatusCancelled
	job.CompletedAt = &now
	if err := s.jobs.Save(job); err != nil {
		return nil, err
	}
	propagationJobsTotal.WithLabelValues(domain.JobStatusCancelled).Inc()
	s.mirror(job)
	return job, nil
}

// run executes the per-record loop. Records are processed sequentially;
// one worker owns the counters and flushes them every batch and at the end.
func (s *PropagationService) run(jobID string, ids []string, mutation Mutation, actor string) {
	log := logger.WithJobID(jobID)

	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		log.Error().Err(err).Msg("propagation job vanished before start")
		return
	}
	if !job.CanTransitionTo(domain.JobStatusInProgress) {
		// Cancelled between creation and start
		return
	}

	now := time.Now()
	job.Status = domain.JobStatusInProgress
	job.StartedAt = &now
	if err := s.jobs.Save(job); err != nil {
		log.Error().Err(err).Msg("failed to start propagation job")
		return
	}
	s.mirror(job)

	processed, failed := 0, 0
	var failures domain.JobFailureList

	for i, id := range ids {
		if i > 0 && i%s.batchSize == 0 {
			if err := s.jobs.UpdateProgress(jobID, processed, failed, failures); err != nil {
				log.Warn().Err(err).Msg("failed to flush propagation progress")
			}
			s.mirrorProgress(jobID, processed, failed, failures)

			// Observe cancellation between batches
			current, err := s.jobs.FindByID(jobID)
			if err == nil && current.IsTerminal() {
				log.Info().Int("processed", processed).Int("failed", failed).
					Msg("propagation stopped by cancellation")
				return
			}
		}

		if err := s.applyOne(id, mutation, actor); err != nil {
			failed++
			failures = append(failures, domain.JobFailure{CaseStudyID: id, Error: err.Error()})
			propagationRecordsTotal.WithLabelValues("failed").Inc()
			log.Warn().Err(err).Str("case_study_id", id).Msg("propagation record failed")
		} else {
			processed++
			propagationRecordsTotal.WithLabelValues("processed").Inc()
		}
	}

	job, err = s.jobs.FindByID(jobID)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload propagation job")
		return
	}
	if job.IsTerminal() {
		// Cancelled during the final batch: keep the counters, not the status
		_ = s.jobs.UpdateProgress(jobID, processed, failed, failures)
		return
	}

	done := time.Now()
	job.Status = domain.JobStatusCompleted
	job.Processed = processed
	job.Failed = failed
	job.Failures = failures
	job.CompletedAt = &done
	if err := s.jobs.Save(job); err != nil {
		log.Error().Err(err).Msg("failed to finalize propagation job")
		return
	}
	propagationJobsTotal.WithLabelValues(domain.JobStatusCompleted).Inc()
	s.mirror(job)

	log.Info().Int("total", job.Total).Int("processed", processed).Int("failed", failed).
		Msg("propagation completed")
}

// applyOne applies the mutation to a single case study. The ledger is
// invoked first; when the audit write fails but the domain update can
// still proceed, the update goes through and the event is logged as a
// non-fatal warning (availability over audit completeness).
func (s *PropagationService) applyOne(id string, mutation Mutation, actor string) error {
	cs, err := s.caseStudies.FindByID(id)
	if err != nil {
		return err
	}

	previous := snapshotPropagationFields(cs, mutation.Fields)
	version, verr := s.ledger.RecordChange(
		id, mutation.ChangeType, previous, domain.JSONMap(mutation.Fields), mutation.Reason, actor)
	if verr != nil {
		versioningDegradedTotal.Inc()
		logger.GetLogger().Warn().Err(verr).Str("case_study_id", id).
			Msg("versioning degraded: audit write failed, applying domain update anyway")
	} else if version == nil {
		// No field differs for this record; nothing to apply
		return nil
	}

	if err := s.caseStudies.UpdateFields(id, mutation.Fields); err != nil {
		return err
	}

	if s.cacheSvc != nil && s.cacheSvc.IsAvailable() {
		_ = s.cacheSvc.InvalidateCaseStudy(context.Background(), id)
	}
	return nil
}

// snapshotPropagationFields captures pre-mutation values, including the
// coordinator-owned config fingerprint
func snapshotPropagationFields(cs *domain.CaseStudy, fields map[string]interface{}) domain.JSONMap {
	snapshot := snapshotFields(cs, fields)
	if _, ok := fields["config_version_hash"]; ok {
		snapshot["config_version_hash"] = cs.ConfigVersionHash
	}
	return snapshot
}

// validateMutation checks the field allow-list and normalizes values.
// Propagations may additionally write config_version_hash, which is owned
// by the coordinator and rejected on the direct update path.
func validateMutation(mutation *Mutation) error {
	if len(mutation.Fields) == 0 {
		return fmt.Errorf("%w: mutation has no fields", common.ErrInvalidInput)
	}
	if _, ok := updateChangeTypes[mutation.ChangeType]; !ok {
		return fmt.Errorf("%w: unknown change type %q", common.ErrInvalidInput, mutation.ChangeType)
	}

	normalized := make(map[string]interface{}, len(mutation.Fields))
	for name, value := range mutation.Fields {
		if name == "config_version_hash" {
			hash, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: config_version_hash must be a string", common.ErrInvalidInput)
			}
			normalized[name] = hash
			continue
		}
		if _, ok := editableFields[name]; !ok {
			return fmt.Errorf("%w: %s", common.ErrProtectedField, name)
		}
		v, err := normalizeFieldValue(name, value)
		if err != nil {
			return err
		}
		normalized[name] = v
	}
	mutation.Fields = normalized
	return nil
}

func (s *PropagationService) mirror(job *domain.PropagationJob) {
	if s.cacheSvc == nil || !s.cacheSvc.IsAvailable() {
		return
	}
	_ = s.cacheSvc.SetJobProgress(context.Background(), job.ID, job)
}

func (s *PropagationService) mirrorProgress(jobID string, processed, failed int, failures domain.JobFailureList) {
	if s.cacheSvc == nil || !s.cacheSvc.IsAvailable() {
		return
	}
	job, err := s.jobs.FindByID(jobID)
	if err != nil {
		return
	}
	job.Processed = processed
	job.Failed = failed
	job.Failures = failures
	_ = s.cacheSvc.SetJobProgress(context.Background(), jobID, job)
}
