package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/gofrs/flock"
	"golang.org/x/sync/semaphore"

	"github.com/forensiq/orc2timeline/internal/logging"
	"github.com/forensiq/orc2timeline/internal/plugin"
)

// InternalRunTaskFlag is the hidden flag name cmd/orctimeline's main
// checks for before parsing any ordinary subcommand; its presence
// means this process invocation is a Pool-spawned worker, not a
// user-facing CLI call.
const InternalRunTaskFlag = "internal-run-task"

// Pool runs plugin instances with process-level isolation: N-way
// concurrency bounded by a weighted semaphore, each plugin instance
// re-exec'd as its own subprocess. Host merges do not go through the
// Pool; they run in-process. Coordinator only builds a Pool for
// jobs>1; with jobs<=1 it calls plugin.Runtime directly.
type Pool struct {
	Jobs   int
	Logger *slog.Logger
	sem    *semaphore.Weighted
	once   sync.Once
}

func (p *Pool) init() {
	p.once.Do(func() {
		n := p.Jobs
		if n < 1 {
			n = 1
		}
		p.sem = semaphore.NewWeighted(int64(n))
	})
}

// RunTask executes one plugin instance in a re-exec'd subprocess,
// bounded by the pool's semaphore. A worker failure is logged and
// treated as zero rows written for this instance; it never aborts
// siblings.
func (p *Pool) RunTask(ctx context.Context, task TaskDescriptor) int {
	p.init()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return 0
	}
	defer p.sem.Release(1)

	taskFile, err := writeTaskFile(task)
	if err != nil {
		logging.Critical(p.logger(), "skip-archive: unable to write task descriptor", "error", err.Error())
		return 0
	}
	defer os.Remove(taskFile)

	cmd := exec.CommandContext(ctx, os.Args[0], "--"+InternalRunTaskFlag, taskFile)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		logging.Critical(p.logger(), "plugin worker failed",
			"plugin", task.Plugin.PluginName, "host", task.Hostname,
			"error", err.Error(), "stderr", stderr.String())
		return 0
	}

	var result TaskResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		logging.Critical(p.logger(), "plugin worker produced unparseable output",
			"plugin", task.Plugin.PluginName, "host", task.Hostname, "error", err.Error())
		return 0
	}
	return result.WrittenRowsCount
}

func (p *Pool) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func writeTaskFile(task TaskDescriptor) (string, error) {
	f, err := os.CreateTemp("", "orctimeline-task-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	if err := enc.Encode(task); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// RunInternalTask is invoked from cmd/orctimeline's main when
// --internal-run-task is present: it decodes the task file, runs the
// plugin instance in-process, and prints the wire-format result to
// stdout. Returns the process exit code the caller should use.
func RunInternalTask(taskFilePath string) int {
	raw, err := os.ReadFile(taskFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orctimeline: cannot read task file: %v\n", err)
		return 1
	}
	var task TaskDescriptor
	if err := json.Unmarshal(raw, &task); err != nil {
		fmt.Fprintf(os.Stderr, "orctimeline: malformed task file: %v\n", err)
		return 1
	}

	rt := &plugin.Runtime{Logger: slog.Default(), Lock: openTaskLock(task.LockPath)}
	written, err := rt.Run(task.Plugin, task.Archives, task.Hostname, task.ScratchRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orctimeline: plugin %s failed: %v\n", task.Plugin.PluginName, err)
		return 1
	}

	result := TaskResult{WrittenRowsCount: written}
	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "orctimeline: cannot encode result: %v\n", err)
		return 1
	}
	return 0
}

// openTaskLock builds the coarse advisory lock a worker subprocess
// holds around each artifact parse, mirroring the parent's flock.Flock
// wiring (internal/plugin.Runtime.Lock) for jobs>1. An empty lockPath
// means the caller asked for no locking.
func openTaskLock(lockPath string) *flock.Flock {
	if lockPath == "" {
		return nil
	}
	return flock.New(lockPath)
}
