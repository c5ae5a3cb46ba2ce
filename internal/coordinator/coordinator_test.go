package coordinator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensiq/orc2timeline/internal/config"
)

func TestSortedKeysOrdersAlphabetically(t *testing.T) {
	got := sortedKeys(map[string]int{"Zeta": 1, "Alpha": 2, "Mid": 3})
	want := []string{"Alpha", "Mid", "Zeta"}
	if len(got) != len(want) {
		t.Fatalf("sortedKeys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedKeys = %v, want %v", got, want)
		}
	}
}

func TestPrintSummaryFormatsHostsAndTotal(t *testing.T) {
	summaries := []HostSummary{
		{Hostname: "HOST01", PluginRows: map[string]int{"NTFSInfoToTimeline": 3}, UniqueEvents: 3, OutputPath: "/out/HOST01.csv.gz"},
		{Hostname: "HOST02", Err: os.ErrNotExist},
	}

	f, err := os.CreateTemp(t.TempDir(), "summary")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	PrintSummary(f, summaries)

	content, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(content)
	if !strings.Contains(out, "host HOST01:") || !strings.Contains(out, "NTFSInfoToTimeline: 3 rows") {
		t.Fatalf("missing HOST01 detail: %q", out)
	}
	if !strings.Contains(out, "host HOST02:") || !strings.Contains(out, "failed:") {
		t.Fatalf("missing HOST02 failure line: %q", out)
	}
	if !strings.Contains(out, "total unique events across 2 host(s): 3") {
		t.Fatalf("missing grand total: %q", out)
	}
}

func TestProcessHostRefusesExistingOutputWithoutOverwrite(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "HOST01.csv.gz")
	if err := os.WriteFile(out, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(Config{PluginConfig: &config.Config{}, TmpDir: dir})
	summary := c.processHost(HostTask{Hostname: "HOST01", OutputPath: out})
	if summary.Err == nil {
		t.Fatalf("expected an error when output exists and Overwrite is false")
	}
	if !summary.Skipped {
		t.Fatalf("expected Skipped to distinguish this from a genuine processing failure")
	}
	if !errors.Is(summary.Err, ErrOutputExists) {
		t.Fatalf("expected Err to wrap ErrOutputExists, got %v", summary.Err)
	}
	content, err := os.ReadFile(out)
	if err != nil || string(content) != "stale" {
		t.Fatalf("existing output should be untouched, got %q, err %v", content, err)
	}
}

func TestProcessHostWritesHeaderOnlyOutputWithNoPlugins(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "HOST01.csv.gz")

	c := New(Config{PluginConfig: &config.Config{}, TmpDir: dir, Overwrite: true})
	summary := c.processHost(HostTask{Hostname: "HOST01", OutputPath: out})
	if summary.Err != nil {
		t.Fatalf("processHost: %v", summary.Err)
	}
	if summary.UniqueEvents != 0 {
		t.Fatalf("UniqueEvents = %d, want 0", summary.UniqueEvents)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("expected output file to be written: %v", err)
	}
}
