package readers

import (
	"testing"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

func TestContainsAll(t *testing.T) {
	haystack := []string{"moz_places", "moz_historyvisits", "moz_bookmarks"}
	if !containsAll(haystack, []string{"moz_places", "moz_historyvisits"}) {
		t.Fatalf("expected both required tables to be found")
	}
	if containsAll(haystack, []string{"moz_places", "moz_annos"}) {
		t.Fatalf("expected missing table to fail containsAll")
	}
}

func TestParseArtifactSkipsWalAndShmSidecars(t *testing.T) {
	r := NewFirefoxHistoryToTimeline()
	noop := func(timeline.Event) {}
	if err := r.ParseArtifact("/tmp/places.sqlite-wal", noop); err != nil {
		t.Fatalf("ParseArtifact on -wal sidecar: %v", err)
	}
	if err := r.ParseArtifact("/tmp/places.sqlite-shm", noop); err != nil {
		t.Fatalf("ParseArtifact on -shm sidecar: %v", err)
	}
}
