package readers

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/forensiq/orc2timeline/internal/hive"
)

// hiveBuilder assembles a minimal in-memory regf image one cell at a
// time, for exercising readers that consume *hive.Key without needing
// a real captured hive file. Field offsets mirror hive/hive.go's
// keyAt/valueAt exactly; any drift there must be mirrored here too.
type hiveBuilder struct {
	payload []byte
}

const regfHbinBase = 0x1000

func (b *hiveBuilder) addCell(content []byte) int32 {
	rel := int32(len(b.payload))
	size := make([]byte, 4)
	binary.LittleEndian.PutUint32(size, uint32(len(content)+4))
	b.payload = append(b.payload, size...)
	b.payload = append(b.payload, content...)
	return rel
}

func (b *hiveBuilder) addDWordValue(name string, val uint32) int32 {
	vk := make([]byte, 20+len(name))
	copy(vk[0:2], "vk")
	binary.LittleEndian.PutUint16(vk[2:4], uint16(len(name)))
	binary.LittleEndian.PutUint32(vk[4:8], uint32(1)<<31|4)
	binary.LittleEndian.PutUint32(vk[8:12], val)
	binary.LittleEndian.PutUint32(vk[12:16], hive.TypeDWord)
	binary.LittleEndian.PutUint16(vk[16:18], 0x0001)
	copy(vk[20:], name)
	return b.addCell(vk)
}

func (b *hiveBuilder) addStringValue(name string, typ uint32, data string) int32 {
	u16 := utf16.Encode([]rune(data + "\x00"))
	raw := make([]byte, len(u16)*2)
	for i, c := range u16 {
		binary.LittleEndian.PutUint16(raw[i*2:i*2+2], c)
	}
	dataOff := b.addCell(raw)

	vk := make([]byte, 20+len(name))
	copy(vk[0:2], "vk")
	binary.LittleEndian.PutUint16(vk[2:4], uint16(len(name)))
	binary.LittleEndian.PutUint32(vk[4:8], uint32(len(raw)))
	binary.LittleEndian.PutUint32(vk[8:12], uint32(dataOff))
	binary.LittleEndian.PutUint32(vk[12:16], typ)
	binary.LittleEndian.PutUint16(vk[16:18], 0x0001)
	copy(vk[20:], name)
	return b.addCell(vk)
}

func (b *hiveBuilder) addBinaryValue(name string, data []byte) int32 {
	dataOff := b.addCell(data)

	vk := make([]byte, 20+len(name))
	copy(vk[0:2], "vk")
	binary.LittleEndian.PutUint16(vk[2:4], uint16(len(name)))
	binary.LittleEndian.PutUint32(vk[4:8], uint32(len(data)))
	binary.LittleEndian.PutUint32(vk[8:12], uint32(dataOff))
	binary.LittleEndian.PutUint32(vk[12:16], hive.TypeBinary)
	binary.LittleEndian.PutUint16(vk[16:18], 0x0001)
	copy(vk[20:], name)
	return b.addCell(vk)
}

func (b *hiveBuilder) addValueList(vkOffsets []int32) int32 {
	buf := make([]byte, len(vkOffsets)*4)
	for i, o := range vkOffsets {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(o))
	}
	return b.addCell(buf)
}

// addSubkeyList writes a minimal "li" index cell listing childOffsets.
func (b *hiveBuilder) addSubkeyList(childOffsets []int32) int32 {
	buf := make([]byte, 4+len(childOffsets)*4)
	copy(buf[0:2], "li")
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(childOffsets)))
	for i, o := range childOffsets {
		binary.LittleEndian.PutUint32(buf[4+i*4:8+i*4], uint32(o))
	}
	return b.addCell(buf)
}

func (b *hiveBuilder) addKey(name string, lastWritten int64, subkeyListOff int32, numSubkeys int, valueListOff int32, numValues int) int32 {
	nk := make([]byte, 76+len(name))
	copy(nk[0:2], "nk")
	binary.LittleEndian.PutUint16(nk[2:4], 0x0020)
	binary.LittleEndian.PutUint64(nk[4:12], uint64(lastWritten))
	binary.LittleEndian.PutUint32(nk[20:24], uint32(numSubkeys))
	binary.LittleEndian.PutUint32(nk[28:32], uint32(subkeyListOff))
	binary.LittleEndian.PutUint32(nk[36:40], uint32(numValues))
	binary.LittleEndian.PutUint32(nk[40:44], uint32(valueListOff))
	binary.LittleEndian.PutUint16(nk[72:74], uint16(len(name)))
	copy(nk[76:], name)
	return b.addCell(nk)
}

func (b *hiveBuilder) writeFixture(t *testing.T, rootOffset int32) string {
	t.Helper()
	buf := make([]byte, regfHbinBase+len(b.payload))
	copy(buf[0:4], "regf")
	binary.LittleEndian.PutUint32(buf[0x24:0x28], uint32(rootOffset))
	copy(buf[regfHbinBase:], b.payload)

	path := filepath.Join(t.TempDir(), "fixture.hve")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write hive fixture: %v", err)
	}
	return path
}
