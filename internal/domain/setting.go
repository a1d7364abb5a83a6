package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerationSetting is a key/value configuration entry for the generation
// pipeline. Its version counter is bumped on every update; a propagation
// stamps the resulting fingerprint onto affected case studies.
type GenerationSetting struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Key       string    `gorm:"column:setting_key;type:varchar(100);uniqueIndex" json:"key"`
	Value     string    `gorm:"column:setting_value;type:text" json:"value"`
	Version   int       `gorm:"column:version;default:1" json:"version"`
	UpdatedBy string    `gorm:"column:updated_by;type:varchar(64)" json:"updated_by"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (GenerationSetting) TableName() string { return "generation_settings" }

// VersionHash returns the configuration fingerprint stamped onto case
// studies when this setting version is propagated
func (s *GenerationSetting) VersionHash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", s.Key, s.Version, s.Value)))
	return hex.EncodeToString(sum[:16])
}
