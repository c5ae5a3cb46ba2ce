// Package coordinator fans plugin executions and per-host merges out
// over a worker pool, generalized from a sequential file-ingest loop
// to bounded process-level parallelism.
package coordinator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// HostFilenameRegex extracts a hostname from an ORC archive's
// basename. ScanDirectory skips files that don't match, with a log
// line.
var HostFilenameRegex = regexp.MustCompile(`^(?:DFIR-)?ORC_[^_]*_(.*)_[^_]*\.7z$`)

// HostTask names one host's output and the set of archive files
// belonging to it, collected either from explicit CLI arguments or a
// directory scan.
type HostTask struct {
	Hostname   string
	OutputPath string
	Archives   []string
}

// DuplicateHostnameError is fatal (exit code 2): a directory scan
// found the same hostname coming from more than one archive group.
type DuplicateHostnameError struct {
	Hostnames []string
}

func (e *DuplicateHostnameError) Error() string {
	return fmt.Sprintf("duplicate hostnames detected during directory scan: %v", e.Hostnames)
}

// ScanDirectory walks inputDir recursively, grouping matching ORC
// archives by hostname and deriving output paths under outputDir that
// mirror each archive's relative parent directory. A hostname found
// under more than one distinct parent directory is a fatal duplicate
// (the same host is not expected to be split across unrelated archive
// groups within one directory-mode run).
func ScanDirectory(inputDir, outputDir string) ([]HostTask, error) {
	type group struct {
		hostname string
		archives []string
		relDirs  map[string]bool
		relDir   string
	}
	byHost := make(map[string]*group)
	var order []string

	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		m := HostFilenameRegex.FindStringSubmatch(filepath.Base(path))
		if m == nil {
			slog.Info("skip: filename does not match the host filename regex", "path", path)
			return nil
		}
		hostname := m[1]
		relDir, _ := filepath.Rel(inputDir, filepath.Dir(path))

		g, ok := byHost[hostname]
		if !ok {
			g = &group{hostname: hostname, relDir: relDir, relDirs: map[string]bool{}}
			byHost[hostname] = g
			order = append(order, hostname)
		}
		g.relDirs[relDir] = true
		g.archives = append(g.archives, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	var duplicates []string
	for _, h := range order {
		if len(byHost[h].relDirs) > 1 {
			duplicates = append(duplicates, h)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		return nil, &DuplicateHostnameError{Hostnames: duplicates}
	}

	sort.Strings(order)
	tasks := make([]HostTask, 0, len(order))
	for _, h := range order {
		g := byHost[h]
		tasks = append(tasks, HostTask{
			Hostname:   h,
			OutputPath: filepath.Join(outputDir, g.relDir, h+".csv.gz"),
			Archives:   g.archives,
		})
	}
	return tasks, nil
}
