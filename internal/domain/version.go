package domain

import "time"

// Change types recorded in the version ledger
const (
	ChangeTypeContent        = "content"
	ChangeTypeMetadata       = "metadata"
	ChangeTypeVisuals        = "visuals"
	ChangeTypeFullRegenerate = "full_regenerate"
	ChangeTypeSoftDelete     = "soft_delete"
	ChangeTypeRestore        = "restore"
)

// CaseStudyVersion is an immutable snapshot of one field-level change.
// Rows are created exactly once at mutation time and removed only by
// retention pruning.
type CaseStudyVersion struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CaseStudyID string `gorm:"column:case_study_id;type:varchar(36);uniqueIndex:idx_case_version" json:"case_study_id"`

	// VersionNumber is strictly increasing per case study, starting at 1
	VersionNumber int    `gorm:"column:version_number;uniqueIndex:idx_case_version" json:"version_number"`
	ChangeType    string `gorm:"column:change_type;type:varchar(20)" json:"change_type"`

	// ChangedFields is never empty; a no-op update writes no version row
	ChangedFields  StringList `gorm:"column:changed_fields;type:json" json:"changed_fields"`
	PreviousValues JSONMap    `gorm:"column:previous_values;type:json" json:"previous_values"`
	NewValues      JSONMap    `gorm:"column:new_values;type:json" json:"new_values"`

	ChangeReason string    `gorm:"column:change_reason;type:varchar(255)" json:"change_reason,omitempty"`
	CreatedBy    string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (CaseStudyVersion) TableName() string { return "case_study_versions" }
