package domain

import "time"

// IngestionRun is the audit row written after each index build. The indices
// themselves are never persisted.
type IngestionRun struct {
	ID         uint64      `gorm:"primaryKey;autoIncrement"`
	Countries  CountryList `gorm:"type:text;not null;default:''"`
	Policy     string      `gorm:"size:16;not null"`
	Expected   int         `gorm:"not null"`
	Fetched    int         `gorm:"not null"`
	IPv4Blocks int         `gorm:"not null;default:0"`
	IPv6Blocks int         `gorm:"not null;default:0"`
	ASNs       int         `gorm:"not null;default:0"`
	Records    int64       `gorm:"not null;default:0"`
	Skipped    int64       `gorm:"not null;default:0"`
	Succeeded  bool        `gorm:"not null;index"`
	Error      string      `gorm:"type:text"`
	StartedAt  time.Time   `gorm:"not null"`
	FinishedAt time.Time   `gorm:"not null"`
	CreatedAt  time.Time   `gorm:"autoCreateTime"`

	Sources []SourceFetch `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// SourceFetch records the outcome of fetching one delegation source.
type SourceFetch struct {
	ID             uint64 `gorm:"primaryKey;autoIncrement"`
	IngestionRunID uint64 `gorm:"not null;index"`
	URL            string `gorm:"size:512;not null"`
	Succeeded      bool   `gorm:"not null"`
	Bytes          int64  `gorm:"not null;default:0"`
	Error          string `gorm:"type:text"`
}
