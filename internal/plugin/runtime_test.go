package plugin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

type fakeReaderWithHeader struct{ header []byte }

func (f *fakeReaderWithHeader) FileHeader() []byte                              { return f.header }
func (f *fakeReaderWithHeader) ParseArtifact(string, func(timeline.Event)) error { return nil }

func TestApplyHeaderFilterRemovesNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good")
	bad := filepath.Join(dir, "bad")
	if err := os.WriteFile(good, []byte("MAGICrest"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatal(err)
	}

	rt := &Runtime{}
	rt.applyHeaderFilter(&fakeReaderWithHeader{header: []byte("MAGIC")}, dir)

	if _, err := os.Stat(good); err != nil {
		t.Fatalf("expected matching file to survive: %v", err)
	}
	if _, err := os.Stat(bad); !os.IsNotExist(err) {
		t.Fatalf("expected non-matching file to be removed, stat err = %v", err)
	}
}

type fakeDirtyReader struct{ calls int }

func (f *fakeDirtyReader) ParseArtifact(path string, emit func(timeline.Event)) error {
	f.calls++
	if f.calls == 1 {
		return ErrDirtyCSV
	}
	emit(timeline.Event{Description: "cleaned ok"})
	return nil
}

func TestParseOneArtifactRetriesOnDirtyCSV(t *testing.T) {
	scratch := t.TempDir()
	artifact := filepath.Join(scratch, "artifact.csv")
	if err := os.WriteFile(artifact, []byte("a,b\x00,c\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	emitter, err := timeline.NewEmitter(scratch, "HOST01", "FakePlugin", func(string) {})
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	reader := &fakeDirtyReader{}
	rt := &Runtime{}
	rt.parseOneArtifact(reader, emitter, artifact, map[string]string{}, "FakeSourcetype")

	if reader.calls != 2 {
		t.Fatalf("expected a retry after ErrDirtyCSV, got %d calls", reader.calls)
	}
	if err := emitter.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if emitter.WrittenRowsCount() != 1 {
		t.Fatalf("WrittenRowsCount = %d, want 1 (first failed attempt wrote nothing)", emitter.WrittenRowsCount())
	}

	var content []byte
	for _, p := range emitter.RunFiles() {
		b, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read run file: %v", err)
		}
		content = append(content, b...)
	}
	row := string(content)
	if !strings.Contains(row, "cleaned ok") || !strings.Contains(row, "FakeSourcetype") || !strings.Contains(row, "artifact.csv") {
		t.Fatalf("run file content = %q", row)
	}
}

func TestParseOneArtifactSkipsOnUnrecoverableError(t *testing.T) {
	scratch := t.TempDir()
	artifact := filepath.Join(scratch, "missing.csv")

	emitter, err := timeline.NewEmitter(scratch, "HOST01", "FakePlugin", func(string) {})
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}
	defer emitter.Close()

	reader := &fakeMissingFileReader{}
	rt := &Runtime{}
	rt.parseOneArtifact(reader, emitter, artifact, map[string]string{}, "FakeSourcetype")

	if emitter.WrittenRowsCount() != 0 {
		t.Fatalf("expected no rows written for a skipped artifact, got %d", emitter.WrittenRowsCount())
	}
}

type fakeMissingFileReader struct{}

func (fakeMissingFileReader) ParseArtifact(path string, emit func(timeline.Event)) error {
	_, err := os.ReadFile(path)
	return err
}
