package plugin

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/forensiq/orc2timeline/internal/archive"
	"github.com/forensiq/orc2timeline/internal/config"
	"github.com/forensiq/orc2timeline/internal/logging"
	"github.com/forensiq/orc2timeline/internal/plugin/readers"
	"github.com/forensiq/orc2timeline/internal/timeline"
)

// Runtime drives one plugin instance's lifecycle: staging archive
// members into a scratch tree, then dispatching each staged artifact
// to the registered Reader and funneling its events to an Emitter.
type Runtime struct {
	Logger *slog.Logger
	// Lock, when non-nil, is held for the duration of each artifact
	// parse. jobs<=1 coordinators pass nil.
	Lock *flock.Flock
}

// Run executes one (host, PluginConfig) unit to completion and
// returns the number of rows written across all of its run files.
func (rt *Runtime) Run(cfg config.PluginConfig, archivePaths []string, hostname, scratchRoot string) (int, error) {
	reader, ok := NewReader(cfg.PluginName)
	if !ok {
		return 0, fmt.Errorf("plugin: no such registered reader %q", cfg.PluginName)
	}
	matcher, err := regexp.Compile(cfg.MatchPattern)
	if err != nil {
		return 0, fmt.Errorf("plugin: invalid match_pattern for %s: %w", cfg.PluginName, err)
	}

	emitter, err := timeline.NewEmitter(scratchRoot, hostname, cfg.PluginName, func(msg string) {
		logging.Critical(rt.logger(), msg, "plugin", cfg.PluginName, "host", hostname)
	})
	if err != nil {
		return 0, err
	}

	originalPath := make(map[string]string)

	for _, archivePath := range archivePaths {
		if !strings.Contains(filepath.Base(archivePath), cfg.Archive) {
			continue
		}
		if err := rt.stageArchive(cfg, archivePath, matcher, scratchRoot, originalPath); err != nil {
			logging.Critical(rt.logger(), "skip-archive: unable to stage archive",
				"plugin", cfg.PluginName, "archive", archivePath, "error", err.Error())
			continue
		}
	}

	allExtraction := filepath.Join(scratchRoot, cfg.Archive, "all_extraction")
	rt.applyHeaderFilter(reader, allExtraction)
	rt.parseStagedArtifacts(reader, emitter, allExtraction, originalPath, cfg.Sourcetype)

	if err := emitter.Close(); err != nil {
		return emitter.WrittenRowsCount(), err
	}
	return emitter.WrittenRowsCount(), nil
}

func (rt *Runtime) logger() *slog.Logger {
	if rt.Logger != nil {
		return rt.Logger
	}
	return slog.Default()
}

func (rt *Runtime) stageArchive(cfg config.PluginConfig, archivePath string, matcher *regexp.Regexp, scratchRoot string, originalPath map[string]string) error {
	allExtraction := filepath.Join(scratchRoot, cfg.Archive, "all_extraction")
	if err := os.MkdirAll(allExtraction, 0o755); err != nil {
		return err
	}
	pred := archive.Predicate(func(name string) bool { return matcher.MatchString(name) })

	if cfg.SubArchive == "" {
		if err := archive.Extract(archivePath, allExtraction, pred); err != nil {
			return err
		}
		mergeGetThis(originalPath, parseGetThisBestEffort(archivePath, allExtraction))
		return nil
	}

	subScratch := filepath.Join(scratchRoot, cfg.Archive, fmt.Sprintf("%s_%d", cfg.SubArchive, time.Now().UnixNano()))
	defer os.RemoveAll(subScratch)

	if err := archive.ExtractNested(archivePath, subScratch, cfg.SubArchive); err != nil {
		return err
	}
	innerArchivePath := filepath.Join(subScratch, cfg.SubArchive)

	mergeGetThis(originalPath, parseGetThisBestEffort(innerArchivePath, subScratch))

	return archive.Extract(innerArchivePath, allExtraction, pred)
}

func parseGetThisBestEffort(archivePath, scratchDir string) map[string]string {
	if err := archive.ExtractGetThis(archivePath, scratchDir); err != nil {
		return nil
	}
	return archive.ParseGetThis(filepath.Join(scratchDir, "GetThis.csv"))
}

func mergeGetThis(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func (rt *Runtime) applyHeaderFilter(reader Reader, allExtraction string) {
	hf, ok := reader.(HeaderFilter)
	if !ok {
		return
	}
	header := hf.FileHeader()
	_ = filepath.WalkDir(allExtraction, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return nil
		}
		buf := make([]byte, len(header))
		_, _ = f.Read(buf)
		f.Close()
		if string(buf) != string(header) {
			os.Remove(path)
		}
		return nil
	})
}

func (rt *Runtime) parseStagedArtifacts(reader Reader, emitter *timeline.Emitter, allExtraction string, originalPath map[string]string, sourcetype string) {
	_ = filepath.WalkDir(allExtraction, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		rt.parseOneArtifact(reader, emitter, path, originalPath, sourcetype)
		return nil
	})
}

func (rt *Runtime) parseOneArtifact(reader Reader, emitter *timeline.Emitter, path string, originalPath map[string]string, sourcetype string) {
	base := filepath.Base(path)
	wrappedEmit := func(ev timeline.Event) {
		if ev.Source == "" {
			if orig, ok := originalPath[base]; ok {
				ev.Source = orig
			} else {
				ev.Source = base
			}
		}
		if ev.Sourcetype == "" {
			ev.Sourcetype = sourcetype
		}
		if err := emitter.Emit(ev); err != nil {
			logging.Critical(rt.logger(), "rollback-plugin: chunk write failed", "artifact", path, "error", err.Error())
			_ = emitter.Rollback()
		}
	}

	if rt.Lock != nil {
		_ = rt.Lock.Lock()
	}
	err := reader.ParseArtifact(path, wrappedEmit)
	if rt.Lock != nil {
		_ = rt.Lock.Unlock()
	}
	if err == nil {
		return
	}

	if errors.Is(err, ErrDirtyCSV) {
		logging.Critical(rt.logger(), "csv error caught, retrying with cleaned buffer", "artifact", path, "error", err.Error())
		cleanedPath, cleanErr := writeCleanedCopy(path)
		if cleanErr != nil {
			rt.logger().Warn("skip-artifact: cleaned-retry copy failed", "artifact", path, "error", cleanErr.Error())
			return
		}
		defer os.Remove(cleanedPath)

		_ = emitter.Rollback()
		if rt.Lock != nil {
			_ = rt.Lock.Lock()
		}
		err2 := reader.ParseArtifact(cleanedPath, wrappedEmit)
		if rt.Lock != nil {
			_ = rt.Lock.Unlock()
		}
		if err2 != nil {
			rt.logger().Warn("skip-artifact: cleaned retry also failed", "artifact", path, "error", err2.Error())
		}
		return
	}

	rt.logger().Warn("skip-artifact", "artifact", path, "error", err.Error())
}

func writeCleanedCopy(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	cleaned := readers.CleanPrintable(raw)
	cleanedPath := path + ".cleaned"
	if err := os.WriteFile(cleanedPath, cleaned, 0o644); err != nil {
		return "", err
	}
	return cleanedPath, nil
}
