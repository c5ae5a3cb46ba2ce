package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/forensiq/orc2timeline/internal/config"
	"github.com/forensiq/orc2timeline/internal/ledger"
	"github.com/forensiq/orc2timeline/internal/logging"
	"github.com/forensiq/orc2timeline/internal/merge"
	"github.com/forensiq/orc2timeline/internal/plugin"
)

// Config collects the knobs cmd/orctimeline's flags resolve into
// before building a Coordinator: the plugin list, job count, and
// output policy for one end-to-end run.
type Config struct {
	PluginConfig *config.Config
	Jobs         int
	Overwrite    bool
	TmpDir       string
	Logger       *slog.Logger
	// Ledger is optional; when nil, run history is not recorded.
	Ledger *ledger.Store
}

// ErrOutputExists is wrapped into HostSummary.Err when a host is
// skipped because its output file already exists and --overwrite was
// not given. The origin CLI logs a WARNING and moves on rather than
// treating this as a processing failure; HostSummary.Skipped lets
// callers tell the two apart without string-matching Err.
var ErrOutputExists = errors.New("output already exists")

// HostSummary is one host's outcome, used both for the final
// human-readable summary and as the ledger's persisted shape.
type HostSummary struct {
	Hostname     string
	PluginRows   map[string]int
	UniqueEvents int
	OutputPath   string
	Err          error
	// Skipped is true when Err is the benign existing-output case
	// rather than a genuine processing failure.
	Skipped bool
}

// Coordinator drives one end-to-end run: staging and parsing every
// configured plugin instance for each host, then merging each host's
// run files into its final timeline.
type Coordinator struct {
	cfg  Config
	pool *Pool
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{cfg: cfg}
	if cfg.Jobs > 1 {
		c.pool = &Pool{Jobs: cfg.Jobs, Logger: cfg.Logger}
	}
	return c
}

func (c *Coordinator) logger() *slog.Logger {
	if c.cfg.Logger != nil {
		return c.cfg.Logger
	}
	return slog.Default()
}

// ProcessDirectory scans inputDir for host archive groups, fatally
// refusing a duplicate hostname, then processes and merges every host
// found. The returned summaries are in hostname order regardless of
// job count.
func (c *Coordinator) ProcessDirectory(inputDir, outputDir string) ([]HostSummary, error) {
	tasks, err := ScanDirectory(inputDir, outputDir)
	if err != nil {
		return nil, err
	}
	return c.processHosts(tasks), nil
}

// ProcessHosts runs explicitly-named host tasks (the non-directory CLI
// mode, where each host's archive list comes from repeatable flags
// rather than a directory scan).
func (c *Coordinator) ProcessHosts(tasks []HostTask) []HostSummary {
	return c.processHosts(tasks)
}

func (c *Coordinator) processHosts(tasks []HostTask) []HostSummary {
	summaries := make([]HostSummary, len(tasks))

	if c.pool == nil {
		for i, t := range tasks {
			summaries[i] = c.processHost(t)
		}
		return summaries
	}

	var wg sync.WaitGroup
	sem := semaphore.NewWeighted(int64(c.cfg.Jobs))
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t HostTask) {
			defer wg.Done()
			_ = sem.Acquire(context.Background(), 1)
			defer sem.Release(1)
			summaries[i] = c.processHost(t)
		}(i, t)
	}
	wg.Wait()
	return summaries
}

func (c *Coordinator) processHost(task HostTask) HostSummary {
	summary := HostSummary{Hostname: task.Hostname, PluginRows: map[string]int{}, OutputPath: task.OutputPath}

	if !c.cfg.Overwrite {
		if _, err := os.Stat(task.OutputPath); err == nil {
			summary.Err = fmt.Errorf("output %s already exists (use --overwrite to replace it): %w", task.OutputPath, ErrOutputExists)
			summary.Skipped = true
			c.logger().Warn("skip-host: output already exists", "host", task.Hostname, "output", task.OutputPath)
			return summary
		}
	}

	scratchRoot, err := os.MkdirTemp(c.cfg.TmpDir, fmt.Sprintf("orctimeline_%s_", task.Hostname))
	if err != nil {
		summary.Err = err
		return summary
	}
	defer os.RemoveAll(scratchRoot)

	lockPath := filepath.Join(scratchRoot, ".orctimeline.lock")

	for _, p := range c.cfg.PluginConfig.Plugins {
		rows := c.runPluginInstance(p, task, scratchRoot, lockPath)
		summary.PluginRows[p.PluginName] += rows
	}

	merger := merge.New()
	n, err := merger.MergeHost(task.Hostname, scratchRoot, task.OutputPath)
	summary.UniqueEvents = n
	if err != nil {
		summary.Err = err
	}

	if c.cfg.Ledger != nil {
		_ = c.cfg.Ledger.RecordHost(task.Hostname, summary.PluginRows, summary.UniqueEvents, summary.Err)
	}

	return summary
}

func (c *Coordinator) runPluginInstance(p config.PluginConfig, task HostTask, scratchRoot, lockPath string) int {
	if c.pool == nil {
		rt := &plugin.Runtime{Logger: c.logger()}
		written, err := rt.Run(p, task.Archives, task.Hostname, scratchRoot)
		if err != nil {
			logging.Critical(c.logger(), "skip-plugin: instance failed",
				"plugin", p.PluginName, "host", task.Hostname, "error", err.Error())
		}
		return written
	}

	descriptor := TaskDescriptor{
		Plugin:      p,
		Archives:    task.Archives,
		Hostname:    task.Hostname,
		ScratchRoot: scratchRoot,
		LockPath:    lockPath,
	}
	return c.pool.RunTask(context.Background(), descriptor)
}

// PrintSummary writes the per-host, per-plugin row counts and the
// grand total to w, matching the shape of the origin CLI's end-of-run
// report.
func PrintSummary(w *os.File, summaries []HostSummary) {
	grandTotal := 0
	for _, s := range summaries {
		fmt.Fprintf(w, "host %s:\n", s.Hostname)
		if s.Skipped {
			fmt.Fprintf(w, "  skipped: %v\n", s.Err)
			continue
		}
		if s.Err != nil {
			fmt.Fprintf(w, "  failed: %v\n", s.Err)
			continue
		}
		for _, p := range sortedKeys(s.PluginRows) {
			fmt.Fprintf(w, "  %s: %d rows\n", p, s.PluginRows[p])
		}
		fmt.Fprintf(w, "  unique events written: %d\n", s.UniqueEvents)
		fmt.Fprintf(w, "  output: %s\n", s.OutputPath)
		grandTotal += s.UniqueEvents
	}
	fmt.Fprintf(w, "total unique events across %d host(s): %d\n", len(summaries), grandTotal)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
