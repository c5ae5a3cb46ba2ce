package timeline

import "time"

// Event is the record every artifact reader emits. Per the invariant,
// exactly one of Timestamp/TimestampStr should be set by the reader;
// if both are set, TimestampStr wins on render. Source falls back to
// the staged path when the reader never resolved an original
// acquisition path through the GetThis manifest.
type Event struct {
	Timestamp    time.Time // zero value means "not set"
	TimestampStr string
	Sourcetype   string
	Description  string
	Source       string
}

// Render resolves the event's canonical Timestamp, applying the
// missing-timestamp-maps-to-epoch invariant. onCritical, if non-nil,
// is invoked to log the missing-timestamp condition.
func (e Event) Render(onCritical func(string)) Timestamp {
	if e.TimestampStr != "" {
		return PreFormatted(e.TimestampStr)
	}
	if !e.Timestamp.IsZero() {
		return FromTime(e.Timestamp)
	}
	if onCritical != nil {
		onCritical("event has neither timestamp nor timestamp_str; using epoch")
	}
	return Zero()
}
