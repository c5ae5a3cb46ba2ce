// Package ledger persists an append-only, observability-only record of
// each run. These tables are never consulted to decide what to
// (re)process: a rerun always restages and reparses every artifact
// from scratch.
package ledger

import "time"

// RunRecord is one coordinator invocation.
type RunRecord struct {
	ID        uint `gorm:"primaryKey"`
	StartedAt time.Time `gorm:"index"`
	EndedAt   time.Time
	Jobs      int
	InputDir  string `gorm:"size:1024"`
	OutputDir string `gorm:"size:1024"`
	Err       string `gorm:"type:text"`
}

// HostResult is one host's outcome within a run.
type HostResult struct {
	ID           uint `gorm:"primaryKey"`
	RunID        uint `gorm:"index"`
	Hostname     string `gorm:"index;size:255"`
	UniqueEvents int
	OutputPath   string `gorm:"size:1024"`
	Err          string `gorm:"type:text"`
	RecordedAt   time.Time `gorm:"index"`
}

// PluginResult is one plugin instance's row count within a host's run.
type PluginResult struct {
	ID           uint   `gorm:"primaryKey"`
	HostResultID uint   `gorm:"index"`
	PluginName   string `gorm:"index;size:128"`
	RowsWritten  int
}
