package internal

import (
	"time"
)

// Record is a minted id. Snowflake ids stay below 2^63, so ID fits bigint.
type Record struct {
	ID        int64     `gorm:"primaryKey;type:bigint;autoIncrement:false" json:"id"`
	Shiny     string    `gorm:"type:varchar(11);uniqueIndex;not null" json:"shiny"`
	Label     string    `gorm:"type:text;not null" json:"label"`
	CreatedAt time.Time `json:"created_at"`
}

type LookupStats struct {
	Shiny        string    `gorm:"primaryKey;type:varchar(11)" json:"shiny"`
	LookupCount  int64     `gorm:"not null;default:0" json:"lookups"`
	LastLookupAt time.Time `json:"last_lookup_at"`
}

func (Record) TableName() string { return "shiny_records" }

func (LookupStats) TableName() string { return "shiny_lookup_stats" }

// LookupTally aggregates the lookups of one shiny within a batch.
type LookupTally struct {
	Count int64
	Last  time.Time
}

// LookupEvent is published every time a record is resolved.
type LookupEvent struct {
	Shiny     string    `json:"shiny"`
	Timestamp time.Time `json:"timestamp"`
	UserAgent string    `json:"user_agent"`
}
