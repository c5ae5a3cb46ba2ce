package readers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

// EventLogsToTimeline parses Windows Event Log exports rendered to
// CSV by the acquisition tooling. The pack carries no Go EVTX binary
// parser, so this reader works off the CSV rendering rather than the
// origin's pyevtx-based binary decode (documented in DESIGN.md).
type EventLogsToTimeline struct{}

func NewEventLogsToTimeline() *EventLogsToTimeline { return &EventLogsToTimeline{} }

// evtxTimeLayouts are tried in order against the TimeCreated column;
// exported EVTX-to-CSV tools vary in locale formatting.
var evtxTimeLayouts = []string{
	"2006-01-02T15:04:05.000000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"01/02/2006 15:04:05",
}

func (r *EventLogsToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := eventLogsParse(f, filepath.Base(path), emit); err != nil {
		return dirtyCSVError(err)
	}
	return nil
}

func eventLogsParse(r io.Reader, sourceName string, emit func(timeline.Event)) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(record []string, col string) string {
		if i, ok := idx[col]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		provider := get(record, "Provider")
		if provider == "" {
			provider = "Unknown"
		}
		eventID := get(record, "EventID")
		userID := get(record, "UserId")
		message := get(record, "Message")
		message = strings.ReplaceAll(message, "\r\n", "\\r\\n")
		message = strings.ReplaceAll(message, "\n", "\\n")
		message = strings.ReplaceAll(message, "\r", "\\r")

		description := fmt.Sprintf("%s:%s %s", provider, eventID, userID)
		if message != "" {
			description += fmt.Sprintf(" (%s)", message)
		}

		ev := timeline.Event{Source: sourceName, Description: description}
		raw := get(record, "TimeCreated")
		for _, layout := range evtxTimeLayouts {
			if parsed, ok := timeline.FromString(layout, raw); ok {
				ev.TimestampStr = parsed.String()
				break
			}
		}

		emit(ev)
	}
}
