// Package timeline holds the Event model, the sorted in-memory chunk,
// and the run-file writer shared by every artifact reader.
package timeline

import "time"

// layout is the canonical on-disk timestamp rendering: millisecond
// precision, zero padded, always UTC.
const layout = "2006-01-02 15:04:05.000"

// filetimeEpochDelta is the number of 100ns ticks between the Windows
// FILETIME epoch (1601-01-01) and the Unix epoch (1970-01-01).
const filetimeEpochDelta = 116444736000000000

// webkitEpochDelta is the number of microseconds between the WebKit
// epoch (1601-01-01) and the Unix epoch, used by Chromium-style
// history stores (Firefox's places.sqlite uses Unix-epoch
// microseconds instead; see FromUnixMicro).
const webkitEpochDelta = 11644473600000000

// Timestamp is the single internal representation of "when" for an
// event: a UTC instant truncated to millisecond precision, or a
// pre-rendered string a reader wants preserved verbatim.
type Timestamp struct {
	t       time.Time
	str     string
	hasStr  bool
	hasTime bool
}

// Zero is the distinguished epoch timestamp used when a reader cannot
// determine a timestamp at all.
func Zero() Timestamp {
	return Timestamp{t: time.Unix(0, 0).UTC(), hasTime: true}
}

// FromTime wraps an already-computed UTC time.Time.
func FromTime(t time.Time) Timestamp {
	return Timestamp{t: t.UTC(), hasTime: true}
}

// FromFILETIME converts a Windows FILETIME (100ns ticks since
// 1601-01-01) into a Timestamp.
func FromFILETIME(ft int64) Timestamp {
	unixNano := (ft - filetimeEpochDelta) * 100
	return Timestamp{t: time.Unix(0, unixNano).UTC(), hasTime: true}
}

// FromUnixMicro converts Unix-epoch microseconds into a Timestamp.
func FromUnixMicro(us int64) Timestamp {
	return Timestamp{t: time.UnixMicro(us).UTC(), hasTime: true}
}

// FromWebKitMicro converts WebKit-epoch (1601-01-01) microseconds,
// as stored by Chromium-style history databases, into a Timestamp.
func FromWebKitMicro(us int64) Timestamp {
	unixMicro := us - webkitEpochDelta
	return Timestamp{t: time.UnixMicro(unixMicro).UTC(), hasTime: true}
}

// FromString parses s with layout (interpreted as UTC) into a
// Timestamp. The second return value is false if parsing failed.
func FromString(goLayout, s string) (Timestamp, bool) {
	t, err := time.Parse(goLayout, s)
	if err != nil {
		return Timestamp{}, false
	}
	return Timestamp{t: t.UTC(), hasTime: true}, true
}

// PreFormatted wraps a string a reader already rendered at millisecond
// precision, preserving it verbatim instead of reparsing through
// time.Time (which would risk losing precision the reader already had).
func PreFormatted(s string) Timestamp {
	return Timestamp{str: s, hasStr: true}
}

// IsZero reports whether no timestamp was ever set.
func (ts Timestamp) IsZero() bool {
	return !ts.hasStr && !ts.hasTime
}

// String renders the canonical on-disk form. timestamp_str wins over
// timestamp when both are present, per the Event invariant.
func (ts Timestamp) String() string {
	if ts.hasStr {
		return ts.str
	}
	if ts.hasTime {
		return ts.t.UTC().Format(layout)
	}
	return Zero().String()
}
