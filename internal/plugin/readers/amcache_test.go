package readers

import (
	"strings"
	"testing"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

func TestAmcacheEmitsKeyAndCompilationEvents(t *testing.T) {
	b := &hiveBuilder{}
	nameOff := b.addStringValue("Name", 1, "notepad.exe")
	pathOff := b.addStringValue("LowerCaseLongPath", 1, `c:\windows\notepad.exe`)
	sha1 := make([]byte, 4+20)
	for i := range sha1[4:] {
		sha1[4+i] = byte(i + 1)
	}
	fileIDOff := b.addBinaryValue("FileId", sha1)
	sizeOff := b.addDWordValue("Size", 12345)
	linkDateOff := b.addStringValue("LinkDate", 1, "01/02/2020 10:00:00")
	valListOff := b.addValueList([]int32{nameOff, pathOff, fileIDOff, sizeOff, linkDateOff})
	rootOff := b.addKey("0000", testFiletimeEpoch, 0, 0, valListOff, 5)
	path := b.writeFixture(t, rootOff)

	var events []timeline.Event
	r := NewAmCacheToTimeline()
	if err := r.ParseArtifact(path, func(ev timeline.Event) { events = append(events, ev) }); err != nil {
		t.Fatalf("ParseArtifact: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected a key-touched event and a compilation-timestamp event, got %d: %+v", len(events), events)
	}
	if !strings.HasPrefix(events[0].Description, "Key last modified timestamp") {
		t.Fatalf("events[0] = %q", events[0].Description)
	}
	if !strings.Contains(events[0].Description, "Name: notepad.exe") ||
		!strings.Contains(events[0].Description, "ExecPath: c:\\windows\\notepad.exe") ||
		!strings.Contains(events[0].Description, "FileSize: 12345") ||
		!strings.Contains(events[0].Description, "SHA1: 0102030405") {
		t.Fatalf("events[0] missing expected fields: %q", events[0].Description)
	}
	if !strings.HasPrefix(events[1].Description, "Compilation timestamp") {
		t.Fatalf("events[1] = %q", events[1].Description)
	}
	if events[1].Timestamp.Year() != 2020 {
		t.Fatalf("compilation timestamp year = %d, want 2020", events[1].Timestamp.Year())
	}
}

func TestAmcacheSkipsKeysWithoutEntrySchema(t *testing.T) {
	b := &hiveBuilder{}
	rootOff := b.addKey("Root", testFiletimeEpoch, 0, 0, 0, 0)
	path := b.writeFixture(t, rootOff)

	var events []timeline.Event
	r := NewAmCacheToTimeline()
	if err := r.ParseArtifact(path, func(ev timeline.Event) { events = append(events, ev) }); err != nil {
		t.Fatalf("ParseArtifact: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for a non-entry key, got %d", len(events))
	}
}
