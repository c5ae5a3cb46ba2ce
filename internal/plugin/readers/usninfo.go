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

// USNInfoToTimeline parses USN journal CSV exports. TimeStamp arrives
// already millisecond-formatted, so it is preserved verbatim via
// timeline.PreFormatted instead of being reparsed.
type USNInfoToTimeline struct{}

func NewUSNInfoToTimeline() *USNInfoToTimeline { return &USNInfoToTimeline{} }

func (r *USNInfoToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := usnParse(f, filepath.Base(path), emit); err != nil {
		return dirtyCSVError(err)
	}
	return nil
}

func usnParse(r io.Reader, sourceName string, emit func(timeline.Event)) error {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[h] = i
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(record) {
				return record[i]
			}
			return ""
		}
		if get("USN") == "USN" {
			continue // repeated header row embedded in the export
		}

		frn := uint32(0)
		if v, err := strconv.ParseUint(get("FRN"), 16, 64); err == nil {
			frn = uint32(v & 0xFFFFFFFF)
		}

		emit(timeline.Event{
			TimestampStr: get("TimeStamp"),
			Source:       sourceName,
			Description: fmt.Sprintf("%s - %s - MFT segment num : %d",
				get("FullPath"), get("Reason"), frn),
		})
	}
}
