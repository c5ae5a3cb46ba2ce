// Package plugin implements the per-plugin lifecycle: staging artifact
// files out of nested 7z archives, dispatching each staged file to its
// registered Reader, and funneling the resulting events into a
// timeline.Emitter.
package plugin

import (
	"github.com/forensiq/orc2timeline/internal/plugin/readers"
	"github.com/forensiq/orc2timeline/internal/timeline"
)

// Reader parses one artifact file into a stream of timeline.Event
// values, delivered through emit. A Reader must not retain path or
// the emit function beyond the call.
type Reader interface {
	ParseArtifact(path string, emit func(timeline.Event)) error
}

// HeaderFilter is implemented by readers whose artifact family is
// identified by a fixed byte prefix (e.g. the "regf" magic shared by
// every registry hive variant). The runtime deletes any staged file
// that does not start with FileHeader() before the parsing phase begins.
type HeaderFilter interface {
	FileHeader() []byte
}

// ErrDirtyCSV is wrapped by CSV-based readers around any error from
// parsing the CSV, NUL bytes or other non-printable contamination
// being the case it exists for. The runtime responds by stripping
// non-printable bytes, rolling back the plugin instance's run files,
// and retrying the artifact once with the cleaned buffer.
var ErrDirtyCSV = readers.ErrDirtyCSV
