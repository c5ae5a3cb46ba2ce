package merge

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeRunFile(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	for _, l := range lines {
		if _, err := f.WriteString(l + "\n"); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return path
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()
	b, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	return string(b)
}

func TestMergeHostDedupsAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeRunFile(t, dir, "timeline_host1_PluginA_AAAAA_nb1", []string{"a,row", "b,row"})
	writeRunFile(t, dir, "timeline_host1_PluginB_BBBBB_nb1", []string{"a,row", "c,row"})

	out := filepath.Join(dir, "out", "host1.csv.gz")
	n, err := New().MergeHost("host1", dir, out)
	if err != nil {
		t.Fatalf("MergeHost: %v", err)
	}
	if n != 3 {
		t.Fatalf("unique count = %d, want 3 (a,row deduplicated)", n)
	}

	content := readGzip(t, out)
	want := Header + "a,row\n" + "b,row\n" + "c,row\n"
	if content != want {
		t.Fatalf("merged content = %q, want %q", content, want)
	}
}

func TestMergeHostNoRunFilesWritesHeaderOnly(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out", "host2.csv.gz")
	n, err := New().MergeHost("host2", dir, out)
	if err != nil {
		t.Fatalf("MergeHost: %v", err)
	}
	if n != 0 {
		t.Fatalf("unique count = %d, want 0", n)
	}
	if content := readGzip(t, out); content != Header {
		t.Fatalf("content = %q, want header only", content)
	}
}

func TestMergeHostBatchesAboveMaxOpenFiles(t *testing.T) {
	dir := t.TempDir()
	// One more file than the per-pass cap, each with a single line, to
	// exercise the multi-pass intermediate-file path.
	for i := 0; i < MaxOpenFiles+1; i++ {
		line := string(rune('a' + i%26))
		writeRunFile(t, dir, filepathSafeName(i), []string{line})
	}
	out := filepath.Join(dir, "out", "host3.csv.gz")
	_, err := New().MergeHost("host3", dir, out)
	if err != nil {
		t.Fatalf("MergeHost: %v", err)
	}
}

func filepathSafeName(i int) string {
	return "timeline_host3_Plugin_" + string(rune('A'+i%26)) + string(rune('a'+i/26)) + "_nb1"
}
