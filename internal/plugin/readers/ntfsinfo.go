package readers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

// NTFSInfoToTimeline parses NTFSInfo CSV exports: one row per MFT
// entry, carrying four $STANDARD_INFORMATION and four $FILE_NAME
// timestamps. Rows sharing a timestamp across fields are folded into
// a single event describing which fields matched, the same grouping
// the origin performs to avoid one event per timestamp field.
type NTFSInfoToTimeline struct{}

func NewNTFSInfoToTimeline() *NTFSInfoToTimeline { return &NTFSInfoToTimeline{} }

var ntfsTimestampFields = []string{
	"CreationDate",
	"LastModificationDate",
	"LastAccessDate",
	"LastAttrChangeDate",
	"FileNameCreationDate",
	"FileNameLastModificationDate",
	"FileNameLastAccessDate",
	"FileNameLastAttrModificationDate",
}

var ntfsSIMeaning = []struct{ field, letter string }{
	{"LastModificationDate", "M"},
	{"LastAccessDate", "A"},
	{"LastAttrChangeDate", "C"},
	{"CreationDate", "B"},
}

var ntfsFNMeaning = []struct{ field, letter string }{
	{"FileNameLastModificationDate", "M"},
	{"FileNameLastAccessDate", "A"},
	{"FileNameLastAttrModificationDate", "C"},
	{"FileNameCreationDate", "B"},
}

func (r *NTFSInfoToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ntfsParse(f, filepath.Base(path), emit); err != nil {
		return dirtyCSVError(err)
	}
	return nil
}

func ntfsParse(r io.Reader, sourceName string, emit func(timeline.Event)) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		ntfsGenerateEvents(row, sourceName, emit)
	}
}

func ntfsGenerateEvents(row map[string]string, sourceName string, emit func(timeline.Event)) {
	if row["FilenameFlags"] == "2" {
		return
	}
	fields := append([]string(nil), ntfsTimestampFields...)
	for len(fields) > 0 {
		refField := fields[len(fields)-1]
		fields = fields[:len(fields)-1]
		refTimestamp := row[refField]
		group := map[string]bool{refField: true}
		var remaining []string
		for _, f := range fields {
			if row[f] == refTimestamp {
				group[f] = true
			} else {
				remaining = append(remaining, f)
			}
		}
		fields = remaining

		meaning := "$SI: "
		for _, t := range ntfsSIMeaning {
			if group[t.field] {
				meaning += t.letter
			} else {
				meaning += "."
			}
		}
		meaning += " - $FN: "
		for _, t := range ntfsFNMeaning {
			if group[t.field] {
				meaning += t.letter
			} else {
				meaning += "."
			}
		}

		separator := ntfsSeparator(row["ParentName"])
		name := row["ParentName"] + separator + row["File"]
		size := row["SizeInBytes"]
		if size == "" {
			size = "unknown"
		}

		emit(timeline.Event{
			TimestampStr: refTimestamp,
			Source:       sourceName,
			Description:  fmt.Sprintf("%s - Name: %s - Size in bytes: %s", meaning, name, size),
		})
	}
}

func ntfsSeparator(parent string) string {
	switch {
	case len(parent) == 0:
		return `\`
	case len(parent) == 1:
		if parent != `\` {
			return `\`
		}
		return ""
	case parent[len(parent)-1] != '\\':
		return `\`
	default:
		return ""
	}
}
