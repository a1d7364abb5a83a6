package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Propagation job statuses
const (
	JobStatusPending    = "pending"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
	JobStatusCancelled  = "cancelled"
)

// JobFailure records one case study that could not be updated during a propagation
type JobFailure struct {
	CaseStudyID string `json:"case_study_id"`
	Error       string `json:"error"`
}

// JobFailureList is stored in a JSON column
type JobFailureList []JobFailure

// Value implements driver.Valuer
func (l JobFailureList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner
func (l *JobFailureList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return errors.New("unsupported JSON column type for failure list")
	}
}

// Selector identifies the target set of a propagation: an explicit id list
// or a filter over the corpus.
type Selector struct {
	IDs           []string   `json:"ids,omitempty"`
	AllActive     bool       `json:"all_active,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// Value implements driver.Valuer
func (s Selector) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner
func (s *Selector) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = Selector{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return errors.New("unsupported JSON column type for selector")
	}
}

// IsZero reports whether the selector matches nothing by construction
func (s Selector) IsZero() bool {
	return len(s.IDs) == 0 && !s.AllActive && s.CreatedBefore == nil
}

// PropagationJob tracks progress and outcome of one bulk propagation run.
// Counters satisfy processed + failed <= total at all times; the status
// only ever moves forward.
type PropagationJob struct {
	ID      string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Subject string `gorm:"column:subject;type:varchar(255)" json:"subject"`

	Selector Selector `gorm:"column:selector;type:json" json:"selector"`

	Status    string         `gorm:"column:status;type:varchar(20);index" json:"status"`
	Total     int            `gorm:"column:total" json:"total"`
	Processed int            `gorm:"column:processed" json:"processed"`
	Failed    int            `gorm:"column:failed" json:"failed"`
	Failures  JobFailureList `gorm:"column:failures;type:json" json:"failures,omitempty"`

	// Write-once timestamps: StartedAt on entry into in_progress,
	// CompletedAt on entry into any terminal state
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedBy string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PropagationJob) TableName() string { return "propagation_jobs" }

// IsTerminal reports whether the job reached a final state
func (j *PropagationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// jobStatusRank orders statuses for the monotonic transition check
var jobStatusRank = map[string]int{
	JobStatusPending:    0,
	JobStatusInProgress: 1,
	JobStatusCompleted:  2,
	JobStatusFailed:     2,
	JobStatusCancelled:  2,
}

// CanTransitionTo reports whether moving to the given status is legal:
// forward only, never out of a terminal state.
func (j *PropagationJob) CanTransitionTo(status string) bool {
	cur, ok := jobStatusRank[j.Status]
	if !ok {
		return false
	}
	next, ok := jobStatusRank[status]
	if !ok {
		return false
	}
	if j.IsTerminal() {
		return false
	}
	return next > cur
}
