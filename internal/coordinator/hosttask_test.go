package coordinator

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestScanDirectoryGroupsByHostname(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "DFIR-ORC_Browsers_HOST01_20230101.7z"))
	touch(t, filepath.Join(dir, "DFIR-ORC_General_HOST01_20230101.7z"))
	touch(t, filepath.Join(dir, "DFIR-ORC_Browsers_HOST02_20230101.7z"))

	tasks, err := ScanDirectory(dir, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(tasks))
	}
	if tasks[0].Hostname != "HOST01" || len(tasks[0].Archives) != 2 {
		t.Fatalf("HOST01 task malformed: %+v", tasks[0])
	}
	if tasks[1].Hostname != "HOST02" || len(tasks[1].Archives) != 1 {
		t.Fatalf("HOST02 task malformed: %+v", tasks[1])
	}
}

func TestScanDirectoryFatalOnDuplicateHostnameAcrossDirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "siteA", "DFIR-ORC_Browsers_HOST01_20230101.7z"))
	touch(t, filepath.Join(dir, "siteB", "DFIR-ORC_Browsers_HOST01_20230101.7z"))

	_, err := ScanDirectory(dir, filepath.Join(dir, "out"))
	if err == nil {
		t.Fatalf("expected a DuplicateHostnameError")
	}
	dup, ok := err.(*DuplicateHostnameError)
	if !ok {
		t.Fatalf("expected *DuplicateHostnameError, got %T: %v", err, err)
	}
	if len(dup.Hostnames) != 1 || dup.Hostnames[0] != "HOST01" {
		t.Fatalf("unexpected duplicate set: %+v", dup.Hostnames)
	}
}

func TestScanDirectoryIgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "readme.txt"))
	touch(t, filepath.Join(dir, "notes.7z"))

	tasks, err := ScanDirectory(dir, filepath.Join(dir, "out"))
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no host tasks, got %d", len(tasks))
	}
}
