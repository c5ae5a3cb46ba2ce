package timeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmitterDropsEmptyDescription(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEmitter(dir, "host1", "TestPlugin", nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	if err := e.Emit(Event{Timestamp: Zero().t, Sourcetype: "test", Description: "", Source: "a"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := e.WrittenRowsCount(); got != 0 {
		t.Fatalf("WrittenRowsCount() = %d, want 0 (empty description must be suppressed)", got)
	}
}

func TestEmitterWritesSortedRows(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEmitter(dir, "host1", "TestPlugin", nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	events := []Event{
		{TimestampStr: "2020-01-02 00:00:00.000", Sourcetype: "test", Description: "second", Source: "a"},
		{TimestampStr: "2020-01-01 00:00:00.000", Sourcetype: "test", Description: "first", Source: "a"},
	}
	for _, ev := range events {
		if err := e.Emit(ev); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := e.WrittenRowsCount(); got != 2 {
		t.Fatalf("WrittenRowsCount() = %d, want 2", got)
	}

	runFiles := e.RunFiles()
	if len(runFiles) != 1 {
		t.Fatalf("expected exactly one run file, got %d", len(runFiles))
	}
	content, err := os.ReadFile(runFiles[0])
	if err != nil {
		t.Fatalf("reading run file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "2020-01-01") || !strings.HasPrefix(lines[1], "2020-01-02") {
		t.Fatalf("run file not sorted: %v", lines)
	}
}

func TestEmitterRollbackDeletesRunFiles(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEmitter(dir, "host1", "TestPlugin", nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	if err := e.Emit(Event{TimestampStr: "2020-01-01 00:00:00.000", Sourcetype: "test", Description: "x", Source: "a"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	runFilesBefore := e.RunFiles()

	if err := e.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	for _, p := range runFilesBefore {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed by Rollback", p)
		}
	}
	if e.WrittenRowsCount() != 0 {
		t.Fatalf("WrittenRowsCount() after Rollback = %d, want 0", e.WrittenRowsCount())
	}

	if err := e.Emit(Event{TimestampStr: "2020-01-01 00:00:00.000", Sourcetype: "test", Description: "y", Source: "a"}); err != nil {
		t.Fatalf("Emit after Rollback: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if e.WrittenRowsCount() != 1 {
		t.Fatalf("expected emitter to keep working after Rollback")
	}
}

func TestEmitterRotatesOnOverflow(t *testing.T) {
	dir := filepath.Clean(t.TempDir())
	e, err := NewEmitter(dir, "host1", "TestPlugin", nil)
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	// ChunkCapacity rows fit in one file; one more forces a rotation.
	for i := 0; i <= ChunkCapacity; i++ {
		if err := e.Emit(Event{TimestampStr: "2020-01-01 00:00:00.000", Sourcetype: "t", Description: "d", Source: "s"}); err != nil {
			t.Fatalf("Emit #%d: %v", i, err)
		}
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(e.RunFiles()) < 2 {
		t.Fatalf("expected at least 2 run files after overflowing capacity, got %d", len(e.RunFiles()))
	}
}
