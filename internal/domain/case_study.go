package domain

import "time"

// CaseStudy is a generated case study under version control.
// Mutations go through the version ledger only; records are soft-deleted,
// never hard-deleted by normal operation.
type CaseStudy struct {
	ID      string `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Title   string `gorm:"column:title;type:varchar(255)" json:"title"`
	Summary string `gorm:"column:summary;type:text" json:"summary"`

	// Body sections and tags produced by the generation pipeline
	Sections JSONMap    `gorm:"column:sections;type:json" json:"sections"`
	Tags     StringList `gorm:"column:tags;type:json" json:"tags"`

	SourceURL  string `gorm:"column:source_url;type:varchar(500)" json:"source_url"`
	SourceName string `gorm:"column:source_name;type:varchar(100)" json:"source_name"`
	ChartURL   string `gorm:"column:chart_url;type:varchar(500)" json:"chart_url,omitempty"`

	IsPublished   bool       `gorm:"column:is_published;default:false" json:"is_published"`
	ScheduledDate *time.Time `gorm:"column:scheduled_date" json:"scheduled_date,omitempty"`

	// CurrentVersion always equals the highest version_number in the ledger
	CurrentVersion int `gorm:"column:current_version;default:0" json:"current_version"`

	// ConfigVersionHash is the last generation-config fingerprint applied,
	// used to detect staleness after a propagation
	ConfigVersionHash string `gorm:"column:config_version_hash;type:varchar(64)" json:"config_version_hash"`

	// Soft delete fields: all three set together, or all null
	DeletedAt    *time.Time `gorm:"column:deleted_at;index" json:"deleted_at,omitempty"`
	DeletedBy    *string    `gorm:"column:deleted_by;type:varchar(64)" json:"deleted_by,omitempty"`
	DeleteReason *string    `gorm:"column:delete_reason;type:varchar(255)" json:"delete_reason,omitempty"`

	CreatedBy string    `gorm:"column:created_by;type:varchar(64)" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (CaseStudy) TableName() string { return "case_studies" }

// IsDeleted reports whether the case study is soft-deleted
func (c *CaseStudy) IsDeleted() bool {
	return c.DeletedAt != nil
}
