// Package readers holds the registered Artifact Readers: one file per
// artifact family, each exposing a constructor the plugin registry
// wires up by name.
package readers

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrDirtyCSV is wrapped by a CSV reader around any error from parsing
// the CSV (NUL bytes or other non-printable contamination being the
// case it exists for). The plugin runtime responds to it with the
// cleaned-retry path.
var ErrDirtyCSV = errors.New("readers: csv artifact requires cleaned retry")

func dirtyCSVError(err error) error {
	return fmt.Errorf("%w: %v", ErrDirtyCSV, err)
}

// CleanPrintable keeps only printable runes plus newline and tab,
// mirroring the origin's `"".join(c for c in data if c in
// string.printable)` cleanup applied on the NUL-byte retry path.
func CleanPrintable(data []byte) []byte {
	var b strings.Builder
	b.Grow(len(data))
	for _, r := range string(data) {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	return []byte(b.String())
}
