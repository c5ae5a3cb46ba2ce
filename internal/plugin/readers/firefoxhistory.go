package readers

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

// FirefoxHistoryToTimeline reads the moz_places/moz_historyvisits join
// out of a places.sqlite history database via gorm's raw-query path
// (the schema is fixed, so no model mapping is worth the indirection).
type FirefoxHistoryToTimeline struct{}

func NewFirefoxHistoryToTimeline() *FirefoxHistoryToTimeline { return &FirefoxHistoryToTimeline{} }

type firefoxVisitRow struct {
	URL         string
	Title       string
	VisitCount  int64
	VisitDate   int64
	RefererName string
	Typed       int64
}

func (r *FirefoxHistoryToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	if strings.Contains(path, "places.sqlite-wal") || strings.Contains(path, "places.sqlite-shm") {
		return nil
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return fmt.Errorf("firefoxhistory: open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var tables []string
	if err := db.Raw(`SELECT tbl_name FROM sqlite_master WHERE type = 'table'`).Scan(&tables).Error; err != nil {
		return fmt.Errorf("firefoxhistory: %s is not a valid database: %w", path, err)
	}
	required := []string{"moz_places", "moz_historyvisits"}
	if !containsAll(tables, required) {
		return nil // schema doesn't match what this reader expects; skip quietly
	}

	var rows []firefoxVisitRow
	query := `
		SELECT moz_places.url AS url, moz_places.title AS title,
		       moz_places.visit_count AS visit_count,
		       moz_historyvisits.visit_date AS visit_date,
		       (SELECT moz_places.url FROM moz_places WHERE moz_historyvisits.from_visit = moz_places.id) AS referer_name,
		       moz_places.typed AS typed
		FROM moz_places, moz_historyvisits
		WHERE moz_places.id = moz_historyvisits.place_id`
	if err := db.Raw(query).Scan(&rows).Error; err != nil {
		return fmt.Errorf("firefoxhistory: query %s: %w", path, err)
	}

	for _, row := range rows {
		visitTime := time.UnixMicro(row.VisitDate).UTC()
		emit(timeline.Event{
			Timestamp: visitTime,
			Description: fmt.Sprintf(
				"Url: %s - Title: %s - Count: %d - Typed: %d - Referer: %s",
				row.URL, row.Title, row.VisitCount, row.Typed, row.RefererName),
		})
	}
	return nil
}

func containsAll(haystack []string, needles []string) bool {
	set := make(map[string]bool, len(haystack))
	for _, h := range haystack {
		set[h] = true
	}
	for _, n := range needles {
		if !set[n] {
			return false
		}
	}
	return true
}
