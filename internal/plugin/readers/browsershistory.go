package readers

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

// browsersTimestampMap names, for a subset of common browser history
// tables, the column that carries the row's event timestamp. The
// origin loads this from a JSON file shipped next to the plugin; it
// is inlined here since no equivalent asset ships with this module
// (same precedent as RegistryToTimeline's importantKeys).
var browsersTimestampMap = map[string]string{
	"moz_historyvisits": "visit_date",     // Firefox places.sqlite
	"moz_downloads":     "endTime",        // legacy Firefox downloads.sqlite
	"urls":              "last_visit_time", // Chromium History
	"visits":            "visit_time",     // Chromium History
	"downloads":         "start_time",     // Chromium History
	"moz_bookmarks":     "lastModified",   // Firefox places.sqlite
}

// BrowsersHistoryToTimeline reads every table of any SQLite-backed
// browser history file, without assuming a fixed schema: Chromium's
// History, Firefox's places.sqlite/downloads.sqlite, and anything
// else built on SQLite all flow through the same code path.
// FirefoxHistoryToTimeline remains a separate, narrower reader for
// the one join the origin special-cases.
type BrowsersHistoryToTimeline struct{}

func NewBrowsersHistoryToTimeline() *BrowsersHistoryToTimeline { return &BrowsersHistoryToTimeline{} }

func (r *BrowsersHistoryToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	base := filepath.Base(path)
	if strings.Contains(base, "-shm_") || strings.Contains(base, "-wal_") {
		return nil // a WAL side file, not a database on its own
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("browsershistory: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	replayWAL(sqlDB)

	tables, err := listTables(sqlDB)
	if err != nil {
		return fmt.Errorf("browsershistory: %s is not a valid database: %w", path, err)
	}

	for _, table := range tables {
		rows, err := readTableRows(sqlDB, table)
		if err != nil {
			continue // one unreadable table does not abort the rest of the artifact
		}
		for _, row := range rows {
			emit(browsersEvent(table, row, base))
		}
	}
	return nil
}

// replayWAL checkpoints any pending -wal frames into the main database
// file before reading it. Failure is non-fatal: the database is still
// readable, just possibly missing its most recent transactions; this
// also covers the common case where no -wal/-shm file exists at all.
func replayWAL(db *sql.DB) {
	_, _ = db.Exec("PRAGMA wal_checkpoint(FULL);")
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// browsersRow holds one row's column names and values, in query
// (insertion) order, since the description text is order-sensitive.
type browsersRow struct {
	cols []string
	vals []any
}

func readTableRows(db *sql.DB, table string) ([]browsersRow, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT * FROM %q", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []browsersRow
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out = append(out, browsersRow{cols: cols, vals: vals})
	}
	return out, rows.Err()
}

func browsersEvent(table string, row browsersRow, source string) timeline.Event {
	ts := time.Unix(0, 0).UTC()
	var desc strings.Builder
	fmt.Fprintf(&desc, "TableName: %s - ", table)

	tsCol, hasTsCol := browsersTimestampMap[table]
	for i, c := range row.cols {
		v := row.vals[i]
		fmt.Fprintf(&desc, "%s: %v - ", c, v)
		if hasTsCol && c == tsCol && v != nil {
			if n, ok := toInt64(v); ok {
				ts = browsersTimestampFromValue(n)
			}
		}
	}

	return timeline.Event{
		Timestamp:   ts,
		Source:      source,
		Description: strings.TrimSuffix(desc.String(), " - "),
	}
}

// browsersTimestampFromValue mirrors the origin's dual-epoch handling
// in BrowsersHistoryToTimeline._get_event: values under one billion
// are Unix-epoch microseconds (Firefox-style tables), larger values
// are WebKit-epoch microseconds (Chromium-style tables).
func browsersTimestampFromValue(v int64) time.Time {
	if v < 1_000_000_000 {
		return time.UnixMicro(v).UTC()
	}
	return time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(v) * time.Microsecond)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}
