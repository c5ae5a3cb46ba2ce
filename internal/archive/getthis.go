package archive

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
)

// ParseGetThis reads a GetThis.csv manifest (no header, comma
// delimited) and returns a map from staged basename (column index 5,
// backslashes normalized, filepath.Base applied) to the original
// on-disk path recorded by the acquisition tool (column index 4).
// A missing file yields an empty map; reading stops at the first
// malformed record, keeping the rows read before it. No error is
// returned: the manifest is best-effort labelling, not required for
// correctness.
func ParseGetThis(path string) map[string]string {
	out := make(map[string]string)
	f, err := os.Open(path)
	if err != nil {
		return out
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		record, err := r.Read()
		if err != nil {
			break
		}
		if len(record) < 6 {
			continue
		}
		staged := filepath.Base(strings.ReplaceAll(record[5], `\`, "/"))
		if staged == "" {
			continue
		}
		out[staged] = record[4]
	}
	return out
}
