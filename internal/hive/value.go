package hive

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"
)

// Value data types, as stored in a vk cell's type field. Only the
// types the target readers actually consult are named; anything else
// is still readable via Bytes.
const (
	TypeSZ       = 1
	TypeExpandSZ = 2
	TypeBinary   = 3
	TypeDWord    = 4
	TypeMultiSZ  = 7
	TypeQWord    = 11
)

// Value is one vk cell: a named, typed datum attached to a key.
type Value struct {
	Name string
	Type uint32
	data []byte
}

// String renders REG_SZ/REG_EXPAND_SZ data as a Go string, stripping
// any trailing NUL left over from the UTF-16LE encoding. For other
// types it falls back to decoding the raw bytes the same way, which
// is harmless for the callers in this package (they only call String
// on values they already know are textual).
func (v *Value) String() string {
	s := decodeUTF16LE(v.data)
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	return s
}

// Uint32 reads a REG_DWORD value.
func (v *Value) Uint32() (uint32, error) {
	if len(v.data) < 4 {
		return 0, fmt.Errorf("hive: value %q too short for DWORD", v.Name)
	}
	return binary.LittleEndian.Uint32(v.data[:4]), nil
}

// Uint64 reads a REG_QWORD value.
func (v *Value) Uint64() (uint64, error) {
	if len(v.data) < 8 {
		return 0, fmt.Errorf("hive: value %q too short for QWORD", v.Name)
	}
	return binary.LittleEndian.Uint64(v.data[:8]), nil
}

// Bytes returns the value's raw data.
func (v *Value) Bytes() []byte {
	return v.data
}

func (h *Hive) valueAt(offset int) (*Value, error) {
	payload, err := h.cell(offset)
	if err != nil {
		return nil, err
	}
	if len(payload) < 20 || string(payload[0:2]) != "vk" {
		return nil, fmt.Errorf("%w: expected vk at %#x", ErrBadCell, offset)
	}

	nameLen := int(binary.LittleEndian.Uint16(payload[2:4]))
	dataLen := int32(binary.LittleEndian.Uint32(payload[4:8]))
	dataOffset := int32(binary.LittleEndian.Uint32(payload[8:12]))
	valueType := binary.LittleEndian.Uint32(payload[12:16])
	flags := binary.LittleEndian.Uint16(payload[16:18])

	if 20+nameLen > len(payload) {
		return nil, fmt.Errorf("%w: vk name overruns cell", ErrBadCell)
	}
	nameBytes := payload[20 : 20+nameLen]
	var name string
	if flags&0x0001 != 0 {
		name = string(nameBytes)
	} else {
		name = decodeUTF16LE(nameBytes)
	}

	data, err := h.valueData(dataLen, dataOffset)
	if err != nil {
		return nil, err
	}

	return &Value{Name: name, Type: valueType, data: data}, nil
}

// valueData resolves a vk cell's data. When the high bit of the
// length field is set, the data is stored inline in the length/offset
// fields themselves (resident data, up to 4 bytes); otherwise offset
// names another cell holding the real bytes.
func (h *Hive) valueData(length, offset int32) ([]byte, error) {
	const residentBit = uint32(1) << 31
	if uint32(length)&residentBit != 0 {
		n := int(uint32(length) &^ residentBit)
		if n > 4 {
			n = 4
		}
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(offset))
		return buf[:n], nil
	}

	payload, err := h.cell(int(offset))
	if err != nil {
		return nil, err
	}
	n := int(length)
	if n < 0 {
		n = 0
	}
	if n > len(payload) {
		n = len(payload)
	}
	return payload[:n], nil
}

// decodeUTF16LE decodes a little-endian UTF-16 byte slice (as used for
// non-ASCII key and value names, and for REG_SZ/REG_EXPAND_SZ data)
// into a Go string.
func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, len(b)/2)
	for i := range u16 {
		u16[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16.Decode(u16))
}
