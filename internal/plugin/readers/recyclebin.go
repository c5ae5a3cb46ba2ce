package readers

import (
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unicode/utf16"

	"github.com/forensiq/orc2timeline/internal/timeline"
)

const (
	recycleBinEpochFiletime = 116444736000000000
	recycleBinHundredsNanos = 10000000
)

// RecycleBinToTimeline parses a single $I/$R RecycleBin INFO2 record:
// a fixed 24-byte header (header, file size, deletion FILETIME as
// three little-endian int64s) followed by either a fixed 250-byte
// UTF-16LE path (header==1, Vista/7) or a length-prefixed UTF-16LE
// path (header==2, Windows 10+).
type RecycleBinToTimeline struct{}

func NewRecycleBinToTimeline() *RecycleBinToTimeline { return &RecycleBinToTimeline{} }

func (r *RecycleBinToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) < 24 {
		return fmt.Errorf("recyclebin: %s too short for INFO2 header", path)
	}

	header := int64(binary.LittleEndian.Uint64(raw[0:8]))
	fileSize := int64(binary.LittleEndian.Uint64(raw[8:16]))
	deletionTS := int64(binary.LittleEndian.Uint64(raw[16:24]))

	deletionTime := time.Unix(0, (deletionTS-recycleBinEpochFiletime)*100).UTC()

	var filePath string
	switch header {
	case 1:
		if len(raw) < 24+250 {
			return fmt.Errorf("recyclebin: %s too short for v1 path field", path)
		}
		filePath = decodeUTF16LETrimmed(raw[24 : 24+250])
	case 2:
		if len(raw) < 28 {
			return fmt.Errorf("recyclebin: %s too short for v2 length field", path)
		}
		fpLen := int32(binary.LittleEndian.Uint32(raw[24:28]))
		end := 28 + int(fpLen)*2
		if fpLen < 0 || end > len(raw) {
			return fmt.Errorf("recyclebin: %s v2 path length out of range", path)
		}
		filePath = decodeUTF16LETrimmed(raw[28:end])
	default:
		return fmt.Errorf("recyclebin: %s unexpected header value %d", path, header)
	}

	// Source is left empty so the runtime resolves it via the GetThis
	// original-path map, matching the origin's self.originalPath lookup.
	emit(timeline.Event{
		Timestamp:   deletionTime,
		Description: fmt.Sprintf("Deletion of file %s - Filesize : %d", filePath, fileSize),
	})
	return nil
}

func decodeUTF16LETrimmed(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	s := string(utf16.Decode(u16))
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}
