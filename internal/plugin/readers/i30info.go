package readers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

// I30InfoToTimeline parses INDX/I30 slack-space CSV exports. Only
// rows flagged CarvedEntry=Y carry usable $FILE_NAME timestamps.
type I30InfoToTimeline struct{}

func NewI30InfoToTimeline() *I30InfoToTimeline { return &I30InfoToTimeline{} }

var i30Meaning = []struct{ field, letter string }{
	{"FileNameLastModificationDate", "M"},
	{"FileNameLastAccessDate", "A"},
	{"FileNameLastAttrModificationDate", "C"},
	{"FileNameCreationDate", "B"},
}

var i30TimestampFields = []string{
	"FileNameCreationDate",
	"FileNameLastModificationDate",
	"FileNameLastAccessDate",
	"FileNameLastAttrModificationDate",
}

func (r *I30InfoToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := i30Parse(f, filepath.Base(path), emit); err != nil {
		return dirtyCSVError(err)
	}
	return nil
}

func i30Parse(r io.Reader, sourceName string, emit func(timeline.Event)) error {
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
		if row["CarvedEntry"] != "Y" {
			continue
		}
		i30GenerateEvents(row, sourceName, emit)
	}
}

func i30GenerateEvents(row map[string]string, sourceName string, emit func(timeline.Event)) {
	fields := append([]string(nil), i30TimestampFields...)
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

		meaning := ""
		for _, t := range i30Meaning {
			if group[t.field] {
				meaning += t.letter
			} else {
				meaning += "."
			}
		}

		frn := uint64(0)
		if v, err := strconv.ParseUint(row["FRN"], 16, 64); err == nil {
			frn = v & 0xFFFFFFFFFFFF
		}

		emit(timeline.Event{
			TimestampStr: refTimestamp,
			Source:       sourceName,
			Description: fmt.Sprintf(
				"Entry in slackspace - $FN: %s - Name: %s - MFT segment num: %d - Parent FRN: %s ",
				meaning, row["Name"], frn, row["ParentFRN"]),
		})
	}
}
