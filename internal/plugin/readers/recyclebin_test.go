package readers

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

func buildInfo2V2(t *testing.T, path string, fileSize int64, deletionFiletime int64) string {
	t.Helper()
	u16 := utf16.Encode([]rune(path))
	buf := make([]byte, 28+len(u16)*2)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(2))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(fileSize))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(deletionFiletime))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(len(u16)))
	for i, c := range u16 {
		binary.LittleEndian.PutUint16(buf[28+i*2:30+i*2], c)
	}

	fp := filepath.Join(t.TempDir(), "$Ia.bin")
	if err := os.WriteFile(fp, buf, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return fp
}

func TestRecycleBinParsesV2Record(t *testing.T) {
	const recycleBinEpochFiletimeTest = 116444736000000000
	path := buildInfo2V2(t, `C:\Users\bob\Desktop\secret.docx`, 4096, recycleBinEpochFiletimeTest)

	var got timeline.Event
	r := NewRecycleBinToTimeline()
	if err := r.ParseArtifact(path, func(ev timeline.Event) { got = ev }); err != nil {
		t.Fatalf("ParseArtifact: %v", err)
	}
	if !got.Timestamp.Equal(time.Unix(0, 0).UTC()) {
		t.Fatalf("Timestamp = %v, want unix epoch", got.Timestamp)
	}
	if got.Source != "" {
		t.Fatalf("Source = %q, want empty (resolved via GetThis original-path map)", got.Source)
	}
	if !strings.Contains(got.Description, "secret.docx") || !strings.Contains(got.Description, "4096") {
		t.Fatalf("Description = %q", got.Description)
	}
}
