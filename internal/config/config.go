// Package config loads and validates the YAML plugin configuration
// file that drives which archives each plugin consumes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ValidationError names the offending plugin and field, mirroring the
// origin's Orc2TimelineConfigError messages closely enough that the
// seed test suite's diagnostic-matching scenarios still make sense.
type ValidationError struct {
	Plugin string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("plugin %s: %s", e.Plugin, e.Reason)
}

// PluginConfig is one fully-resolved, independently parallelizable
// pipeline unit: a plugin name, a single archive-name substring to
// locate, an optional single sub-archive member name, a match
// pattern, and a sourcetype label. One YAML config entry listing
// multiple archives and/or multiple sub_archives fans out into one
// PluginConfig per (archive, sub_archive) pair.
type PluginConfig struct {
	PluginName  string
	Archive     string
	SubArchive  string // empty means "parse the archive directly"
	MatchPattern string
	Sourcetype  string
}

// Config is the fully parsed and fanned-out plugin list.
type Config struct {
	Plugins []PluginConfig
	// Path is the file Config was loaded from, kept for show-config.
	Path string
	// Raw is the unparsed file content, kept for show-config.
	Raw string
}

// rawDocument mirrors the YAML shape:
//
//	Plugins:
//	  - <plugin_name>:
//	      archives: [...]
//	      sub_archives: [...]   # optional
//	      match_pattern: ...
//	      sourcetype: ...
type rawDocument struct {
	Plugins []rawPluginEntry `yaml:"Plugins"`
}

type rawPluginEntry struct {
	name string
	body rawPluginBody
}

type rawPluginBody struct {
	Archives     []string `yaml:"archives"`
	SubArchives  []string `yaml:"sub_archives"`
	MatchPattern string   `yaml:"match_pattern"`
	Sourcetype   string   `yaml:"sourcetype"`
}

// UnmarshalYAML decodes one element of the Plugins sequence: a mapping
// with exactly one key, the plugin name. It walks yaml.Node content
// directly instead of relying on struct tags, because the key itself
// (not a fixed field name) carries the plugin name.
func (e *rawPluginEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("plugin entry must be a single-key mapping")
	}
	e.name = value.Content[0].Value
	return value.Content[1].Decode(&e.body)
}

// Load reads, parses, and structurally validates the configuration
// file at path. It does not check that each plugin name corresponds
// to a registered reader; callers with access to the reader registry
// should additionally call ValidatePluginNames.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file %q (file does not exist): %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot read configuration file %q (is not a file)", path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration file %q: %w", path, err)
	}

	var doc rawDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing configuration file %q: %w", path, err)
	}

	cfg := &Config{Path: path, Raw: string(raw)}
	for _, entry := range doc.Plugins {
		fanned, err := fanOut(entry)
		if err != nil {
			return nil, err
		}
		cfg.Plugins = append(cfg.Plugins, fanned...)
	}

	if len(cfg.Plugins) == 0 {
		return nil, fmt.Errorf("plugin list is empty, nothing to do")
	}
	return cfg, nil
}

func fanOut(entry rawPluginEntry) ([]PluginConfig, error) {
	name := entry.name
	if name == "" {
		return nil, &ValidationError{Plugin: "(unnamed)", Reason: "empty plugin name in configuration is not allowed"}
	}
	body := entry.body
	if len(body.Archives) == 0 {
		return nil, &ValidationError{Plugin: name, Reason: "archives should not be empty"}
	}
	if body.Sourcetype == "" {
		return nil, &ValidationError{Plugin: name, Reason: "empty sourcetype is not allowed"}
	}
	if body.MatchPattern == "" {
		return nil, &ValidationError{Plugin: name, Reason: `empty match_pattern is not allowed; ".*" can be used to match all files`}
	}

	var out []PluginConfig
	for _, archive := range body.Archives {
		if len(body.SubArchives) == 0 {
			out = append(out, PluginConfig{
				PluginName:   name,
				Archive:      archive,
				MatchPattern: body.MatchPattern,
				Sourcetype:   body.Sourcetype,
			})
			continue
		}
		for _, sub := range body.SubArchives {
			out = append(out, PluginConfig{
				PluginName:   name,
				Archive:      archive,
				SubArchive:   sub,
				MatchPattern: body.MatchPattern,
				Sourcetype:   body.Sourcetype,
			})
		}
	}
	return out, nil
}

// ValidatePluginNames checks that every PluginConfig's PluginName is
// present in known (the reader registry's key set), returning a
// ValidationError naming the first unknown plugin it finds.
func ValidatePluginNames(cfg *Config, known map[string]bool) error {
	for _, p := range cfg.Plugins {
		if !known[p.PluginName] {
			return &ValidationError{Plugin: p.PluginName, Reason: "no such registered plugin module"}
		}
	}
	return nil
}
