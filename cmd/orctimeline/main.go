// Command orctimeline ingests DFIR-ORC forensic archives and produces
// a deduplicated, gzip-compressed CSV timeline per host.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/forensiq/orc2timeline/internal/config"
	"github.com/forensiq/orc2timeline/internal/coordinator"
	"github.com/forensiq/orc2timeline/internal/ledger"
	"github.com/forensiq/orc2timeline/internal/logging"
	"github.com/forensiq/orc2timeline/internal/plugin"
)

type multiFlag []string

func (m *multiFlag) String() string { return strings.Join(*m, ",") }
func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	// The internal worker branch is checked before flag.Parse so it
	// never collides with the user-facing subcommand flags below.
	for i, a := range os.Args {
		if a == "--"+coordinator.InternalRunTaskFlag && i+1 < len(os.Args) {
			os.Exit(coordinator.RunInternalTask(os.Args[i+1]))
		}
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	subcommand := os.Args[1]
	args := os.Args[2:]

	switch subcommand {
	case "process":
		runProcess(args)
	case "process-dir":
		runProcessDir(args)
	case "show-config":
		runShowConfig(args)
	case "show-config-path":
		runShowConfigPath(args)
	case "show-history":
		runShowHistory(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orctimeline <process|process-dir|show-config|show-config-path|show-history> [flags]")
}

type commonFlags struct {
	configPath string
	jobs       int
	overwrite  bool
	tmpDir     string
	logLevel   string
	logFile    string
	ledgerPath string
}

func bindCommon(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{}
	fs.StringVar(&c.configPath, "config", "", "Plugin configuration YAML file path.")
	fs.IntVar(&c.jobs, "jobs", -1, "Number of concurrent worker subprocesses. -1 means not given (falls back to 1).")
	fs.BoolVar(&c.overwrite, "overwrite", false, "Overwrite an existing output file instead of skipping the host.")
	fs.StringVar(&c.tmpDir, "tmp-dir", "", "Scratch directory root. Defaults to $TMPDIR, then the OS default.")
	fs.StringVar(&c.logLevel, "log-level", "INFO", "Console log level: DEBUG, INFO, WARNING, ERROR, CRITICAL.")
	fs.StringVar(&c.logFile, "log-file", "", "Optional file to additionally receive DEBUG-level logs.")
	fs.StringVar(&c.ledgerPath, "ledger", "", "Optional sqlite path recording run history. Empty disables the ledger.")
	return c
}

func (c *commonFlags) resolveJobs() int {
	if c.jobs < 0 {
		return 1
	}
	if c.jobs == 0 {
		log.Printf("WARNING: --jobs=0 has no meaning, falling back to 1")
		return 1
	}
	return c.jobs
}

func (c *commonFlags) resolveTmpDir() string {
	if c.tmpDir != "" {
		return c.tmpDir
	}
	if env := os.Getenv("TMPDIR"); env != "" {
		return env
	}
	return os.TempDir()
}

func (c *commonFlags) buildCoordinator() (*coordinator.Coordinator, *ledger.Store, error) {
	if c.configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := config.ValidatePluginNames(cfg, plugin.KnownNames()); err != nil {
		return nil, nil, err
	}

	logger, _, err := logging.New(logging.ParseLevel(c.logLevel), c.logFile)
	if err != nil {
		return nil, nil, err
	}

	var store *ledger.Store
	if c.ledgerPath != "" {
		store, err = ledger.Open(c.ledgerPath)
		if err != nil {
			return nil, nil, err
		}
	}

	coord := coordinator.New(coordinator.Config{
		PluginConfig: cfg,
		Jobs:         c.resolveJobs(),
		Overwrite:    c.overwrite,
		TmpDir:       c.resolveTmpDir(),
		Logger:       logger,
		Ledger:       store,
	})
	return coord, store, nil
}

func runProcess(args []string) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	common := bindCommon(fs)
	var archives multiFlag
	var hostname, outputPath string
	fs.Var(&archives, "archive", "Archive file path. Can be repeated.")
	fs.StringVar(&hostname, "hostname", "", "Hostname label for the output timeline.")
	fs.StringVar(&outputPath, "output", "", "Output timeline path (.csv.gz).")
	fs.Parse(args)

	if hostname == "" || outputPath == "" || len(archives) == 0 {
		fmt.Fprintln(os.Stderr, "process requires --hostname, --output, and at least one --archive")
		os.Exit(2)
	}

	if err := checkArchiveHostnames(hostname, archives); err != nil {
		fmt.Fprintf(os.Stderr, "orctimeline: %v\n", err)
		os.Exit(2)
	}

	coord, store, err := common.buildCoordinator()
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	if store != nil {
		defer store.Close()
		if _, err := store.BeginRun(common.resolveJobs(), "", outputPath); err != nil {
			log.Printf("WARNING: ledger begin-run failed: %v", err)
		}
	}

	summaries := coord.ProcessHosts([]coordinator.HostTask{{
		Hostname:   hostname,
		OutputPath: outputPath,
		Archives:   []string(archives),
	}})
	coordinator.PrintSummary(os.Stdout, summaries)

	if summaries[0].Err != nil && !summaries[0].Skipped {
		os.Exit(1)
	}
}

// checkArchiveHostnames mirrors the origin's cmd_process cross-check:
// every archive basename matching HostFilenameRegex must agree on one
// hostname, and that hostname must agree with the one given on the
// command line. A mismatch or a file list with no matching filenames
// at all is a fatal usage error, not a silent mixed-host output.
func checkArchiveHostnames(hostname string, archives []string) error {
	found := map[string]bool{}
	for _, a := range archives {
		m := coordinator.HostFilenameRegex.FindStringSubmatch(filepath.Base(a))
		if m == nil {
			continue
		}
		found[m[1]] = true
	}

	names := make([]string, 0, len(found))
	for n := range found {
		names = append(names, n)
	}
	sort.Strings(names)

	if len(names) != 1 {
		return fmt.Errorf("bad archive list, all archives must belong to the same host (filename regex %s); parsed hostnames: %v", coordinator.HostFilenameRegex.String(), names)
	}
	if names[0] != hostname {
		return fmt.Errorf("--hostname %q does not match the hostname %q parsed from the archive filenames", hostname, names[0])
	}
	return nil
}

func runProcessDir(args []string) {
	fs := flag.NewFlagSet("process-dir", flag.ExitOnError)
	common := bindCommon(fs)
	var inputDir, outputDir string
	fs.StringVar(&inputDir, "input-dir", "", "Directory to scan recursively for ORC archives.")
	fs.StringVar(&outputDir, "output-dir", "", "Directory to write per-host timelines into.")
	fs.Parse(args)

	if inputDir == "" || outputDir == "" {
		fmt.Fprintln(os.Stderr, "process-dir requires --input-dir and --output-dir")
		os.Exit(2)
	}

	coord, store, err := common.buildCoordinator()
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	if store != nil {
		defer store.Close()
		if _, err := store.BeginRun(common.resolveJobs(), inputDir, outputDir); err != nil {
			log.Printf("WARNING: ledger begin-run failed: %v", err)
		}
	}

	summaries, err := coord.ProcessDirectory(inputDir, outputDir)
	if err != nil {
		if dup, ok := err.(*coordinator.DuplicateHostnameError); ok {
			fmt.Fprintf(os.Stderr, "orctimeline: %v\n", dup)
			os.Exit(2)
		}
		log.Fatalf("orctimeline: %v", err)
	}

	coordinator.PrintSummary(os.Stdout, summaries)

	for _, s := range summaries {
		if s.Err != nil && !s.Skipped {
			os.Exit(1)
		}
	}
}

func runShowConfig(args []string) {
	fs := flag.NewFlagSet("show-config", flag.ExitOnError)
	var configPath string
	fs.StringVar(&configPath, "config", "", "Plugin configuration YAML file path.")
	fs.Parse(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	fmt.Print(cfg.Raw)
}

func runShowConfigPath(args []string) {
	fs := flag.NewFlagSet("show-config-path", flag.ExitOnError)
	var configPath string
	fs.StringVar(&configPath, "config", "", "Plugin configuration YAML file path.")
	fs.Parse(args)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	fmt.Println(cfg.Path)
}

func runShowHistory(args []string) {
	fs := flag.NewFlagSet("show-history", flag.ExitOnError)
	var ledgerPath string
	var limit int
	fs.StringVar(&ledgerPath, "ledger", "", "Sqlite path recording run history.")
	fs.IntVar(&limit, "limit", 10, "Number of recent runs to show.")
	fs.Parse(args)

	if ledgerPath == "" {
		fmt.Fprintln(os.Stderr, "show-history requires --ledger")
		os.Exit(2)
	}
	store, err := ledger.Open(ledgerPath)
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	defer store.Close()

	runs, err := store.RecentRuns(limit)
	if err != nil {
		log.Fatalf("orctimeline: %v", err)
	}
	for _, r := range runs {
		fmt.Printf("run %d: started=%s jobs=%d input=%q output=%q err=%q\n",
			r.ID, r.StartedAt.Format("2006-01-02T15:04:05Z"), r.Jobs, r.InputDir, r.OutputDir, r.Err)
		hosts, err := store.HostsForRun(r.ID)
		if err != nil {
			continue
		}
		for _, h := range hosts {
			fmt.Printf("  host %s: unique=%d output=%q err=%q\n", h.Hostname, h.UniqueEvents, h.OutputPath, h.Err)
		}
	}
}
