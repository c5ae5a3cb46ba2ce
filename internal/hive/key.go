package hive

import (
	"encoding/binary"
	"time"
)

// Key is one key node (nk cell) in the hive tree.
type Key struct {
	hive *Hive

	offset      int
	Name        string
	LastWritten time.Time

	numSubkeys       int
	subkeyListOffset int32

	numValues       int
	valueListOffset int32
}

// Subkeys returns this key's direct children, in on-disk order.
func (k *Key) Subkeys() ([]*Key, error) {
	if k.numSubkeys == 0 || k.subkeyListOffset < 0 {
		return nil, nil
	}
	offsets, err := k.hive.subkeyOffsets(int(k.subkeyListOffset))
	if err != nil {
		return nil, err
	}
	out := make([]*Key, 0, len(offsets))
	for _, off := range offsets {
		child, err := k.hive.keyAt(off)
		if err != nil {
			continue // a single corrupt subkey does not abort the walk
		}
		out = append(out, child)
	}
	return out, nil
}

// Subkey looks up a direct child by name (case-insensitive, as the
// registry itself is).
func (k *Key) Subkey(name string) (*Key, bool, error) {
	children, err := k.Subkeys()
	if err != nil {
		return nil, false, err
	}
	for _, c := range children {
		if equalFold(c.Name, name) {
			return c, true, nil
		}
	}
	return nil, false, nil
}

// Walk calls fn for k and every descendant, depth first. Walk stops
// and returns fn's error if fn returns a non-nil error.
func (k *Key) Walk(fn func(*Key) error) error {
	if err := fn(k); err != nil {
		return err
	}
	children, err := k.Subkeys()
	if err != nil {
		return nil // a corrupt subkey index is not fatal to the walk
	}
	for _, c := range children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Values returns this key's direct values.
func (k *Key) Values() ([]*Value, error) {
	if k.numValues == 0 || k.valueListOffset < 0 {
		return nil, nil
	}
	payload, err := k.hive.cell(int(k.valueListOffset))
	if err != nil {
		return nil, err
	}
	out := make([]*Value, 0, k.numValues)
	for i := 0; i < k.numValues; i++ {
		pos := i * 4
		if pos+4 > len(payload) {
			break
		}
		voff := int32(binary.LittleEndian.Uint32(payload[pos : pos+4]))
		v, err := k.hive.valueAt(int(voff))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Value looks up a value by name (case-insensitive).
func (k *Key) Value(name string) (*Value, bool, error) {
	values, err := k.Values()
	if err != nil {
		return nil, false, err
	}
	for _, v := range values {
		if equalFold(v.Name, name) {
			return v, true, nil
		}
	}
	return nil, false, nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// subkeyOffsets resolves an lf/lh/li/ri subkey-index cell (recursing
// through ri index-of-indexes cells) into a flat list of nk offsets.
func (h *Hive) subkeyOffsets(listOffset int) ([]int, error) {
	payload, err := h.cell(listOffset)
	if err != nil {
		return nil, err
	}
	if len(payload) < 4 {
		return nil, ErrBadCell
	}
	sig := string(payload[0:2])
	count := int(binary.LittleEndian.Uint16(payload[2:4]))

	switch sig {
	case "ri":
		var out []int
		for i := 0; i < count; i++ {
			pos := 4 + i*4
			if pos+4 > len(payload) {
				break
			}
			sub := int32(binary.LittleEndian.Uint32(payload[pos : pos+4]))
			offs, err := h.subkeyOffsets(int(sub))
			if err != nil {
				continue
			}
			out = append(out, offs...)
		}
		return out, nil
	case "li":
		out := make([]int, 0, count)
		for i := 0; i < count; i++ {
			pos := 4 + i*4
			if pos+4 > len(payload) {
				break
			}
			out = append(out, int(int32(binary.LittleEndian.Uint32(payload[pos:pos+4]))))
		}
		return out, nil
	case "lf", "lh":
		out := make([]int, 0, count)
		for i := 0; i < count; i++ {
			pos := 4 + i*8 // offset(4) + hash(4) per entry
			if pos+4 > len(payload) {
				break
			}
			out = append(out, int(int32(binary.LittleEndian.Uint32(payload[pos:pos+4]))))
		}
		return out, nil
	default:
		return nil, ErrBadCell
	}
}
