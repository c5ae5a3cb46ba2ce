package ledger

import (
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Store wraps a gorm.DB around the run/host/plugin history schema
// above.
type Store struct {
	db    *gorm.DB
	runID uint
}

// Open opens (creating if absent) the sqlite database at path and
// migrates its schema.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunRecord{}, &HostResult{}, &PluginResult{}); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// BeginRun records the start of a coordinator invocation and returns
// its ID for subsequent RecordHost calls.
func (s *Store) BeginRun(jobs int, inputDir, outputDir string) (uint, error) {
	run := RunRecord{StartedAt: time.Now().UTC(), Jobs: jobs, InputDir: inputDir, OutputDir: outputDir}
	if err := s.db.Create(&run).Error; err != nil {
		return 0, err
	}
	s.runID = run.ID
	return run.ID, nil
}

// EndRun marks a run as finished, recording a failure message when
// runErr is non-nil.
func (s *Store) EndRun(runID uint, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	return s.db.Model(&RunRecord{}).Where("id = ?", runID).
		Updates(map[string]any{"ended_at": time.Now().UTC(), "err": errMsg}).Error
}

// RecordHost persists one host's outcome and its per-plugin row
// counts. This is purely observational: a failure here never affects
// the coordinator's own in-memory summary.
func (s *Store) RecordHost(hostname string, pluginRows map[string]int, uniqueEvents int, hostErr error) error {
	errMsg := ""
	if hostErr != nil {
		errMsg = hostErr.Error()
	}
	host := HostResult{
		RunID:        s.runID,
		Hostname:     hostname,
		UniqueEvents: uniqueEvents,
		Err:          errMsg,
		RecordedAt:   time.Now().UTC(),
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&host).Error; err != nil {
			return err
		}
		for name, rows := range pluginRows {
			pr := PluginResult{HostResultID: host.ID, PluginName: name, RowsWritten: rows}
			if err := tx.Create(&pr).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecentRuns returns the last limit runs, most recent first, for the
// CLI's show-history subcommand.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	var runs []RunRecord
	err := s.db.Order("started_at desc").Limit(limit).Find(&runs).Error
	return runs, err
}

// HostsForRun returns every host result recorded for a given run ID.
func (s *Store) HostsForRun(runID uint) ([]HostResult, error) {
	var hosts []HostResult
	err := s.db.Where("run_id = ?", runID).Order("hostname asc").Find(&hosts).Error
	return hosts, err
}
