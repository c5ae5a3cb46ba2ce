package plugin

import "github.com/forensiq/orc2timeline/internal/plugin/readers"

// registry maps a configuration plugin name to a fresh Reader
// instance. Adding a reader is a compile-time registration here,
// replacing the origin's dynamic-import-by-name scheme.
var registry = map[string]func() Reader{
	"RegistryToTimeline":        func() Reader { return readers.NewRegistryToTimeline() },
	"AmCacheToTimeline":         func() Reader { return readers.NewAmCacheToTimeline() },
	"UserAssistToTimeline":      func() Reader { return readers.NewUserAssistToTimeline() },
	"EventLogsToTimeline":       func() Reader { return readers.NewEventLogsToTimeline() },
	"NTFSInfoToTimeline":        func() Reader { return readers.NewNTFSInfoToTimeline() },
	"USNInfoToTimeline":         func() Reader { return readers.NewUSNInfoToTimeline() },
	"I30InfoToTimeline":         func() Reader { return readers.NewI30InfoToTimeline() },
	"FirefoxHistoryToTimeline":  func() Reader { return readers.NewFirefoxHistoryToTimeline() },
	"RecycleBinToTimeline":      func() Reader { return readers.NewRecycleBinToTimeline() },
	"BrowsersHistoryToTimeline": func() Reader { return readers.NewBrowsersHistoryToTimeline() },
}

// NewReader constructs the registered reader for name, or reports ok
// false if name is not a registered plugin.
func NewReader(name string) (Reader, bool) {
	ctor, ok := registry[name]
	if !ok {
		return nil, false
	}
	return ctor(), true
}

// KnownNames returns the set of registered plugin names, for
// config.ValidatePluginNames.
func KnownNames() map[string]bool {
	out := make(map[string]bool, len(registry))
	for name := range registry {
		out[name] = true
	}
	return out
}
