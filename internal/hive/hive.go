// Package hive implements just enough of the Windows NT registry hive
// (regf) binary format to walk the key tree and read last-written
// timestamps and value data. It exists because the retrieval pack
// contains no Go library for registry hives; RegistryToTimeline,
// AmCacheToTimeline, and UserAssistToTimeline all depend on it.
//
// Only the subset of the format needed by those three readers is
// implemented: nk (key), vk (value), and lf/lh/li/ri (subkey index)
// cells. Security descriptors, class names, and the "big data" (db)
// continuation cells for oversized values are not read.
package hive

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	hbinBase    = 0x1000 // hive bins data always starts 4096 bytes into the file
	filetimeDelta = 116444736000000000
)

var (
	ErrNotRegf    = errors.New("hive: not a regf file")
	ErrBadCell    = errors.New("hive: malformed cell")
	ErrNoSuchCell = errors.New("hive: cell offset out of range")
)

// Hive is a parsed registry hive file, held entirely in memory: real
// hives routinely fit in the tens-of-megabytes range, well inside the
// memory budget of a single artifact parse.
type Hive struct {
	data     []byte
	rootCell int
}

// Open reads path and validates the regf header.
func Open(path string) (*Hive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenBytes(data)
}

// OpenBytes parses an already-read hive image.
func OpenBytes(data []byte) (*Hive, error) {
	if len(data) < hbinBase || string(data[0:4]) != "regf" {
		return nil, ErrNotRegf
	}
	rootOffset := int(binary.LittleEndian.Uint32(data[0x24:0x28]))
	return &Hive{data: data, rootCell: rootOffset}, nil
}

// cell returns the payload of the cell at relative offset off (i.e.
// hbinBase+off is the absolute file offset of the cell's size field).
func (h *Hive) cell(off int) ([]byte, error) {
	abs := hbinBase + off
	if off < 0 || abs+4 > len(h.data) {
		return nil, ErrNoSuchCell
	}
	size := int32(binary.LittleEndian.Uint32(h.data[abs : abs+4]))
	if size < 0 {
		size = -size
	}
	if size < 4 || abs+int(size) > len(h.data) {
		return nil, ErrBadCell
	}
	return h.data[abs+4 : abs+int(size)], nil
}

// RootKey returns the hive's root key node.
func (h *Hive) RootKey() (*Key, error) {
	return h.keyAt(h.rootCell)
}

// FromFILETIME converts a Windows FILETIME into a UTC time.Time.
func FromFILETIME(ft int64) time.Time {
	return time.Unix(0, (ft-filetimeDelta)*100).UTC()
}

func (h *Hive) keyAt(offset int) (*Key, error) {
	payload, err := h.cell(offset)
	if err != nil {
		return nil, err
	}
	if len(payload) < 76 || string(payload[0:2]) != "nk" {
		return nil, fmt.Errorf("%w: expected nk at %#x", ErrBadCell, offset)
	}
	flags := binary.LittleEndian.Uint16(payload[2:4])
	lastWritten := int64(binary.LittleEndian.Uint64(payload[4:12]))
	numSubkeys := int(binary.LittleEndian.Uint32(payload[20:24]))
	subkeyListOffset := int32(binary.LittleEndian.Uint32(payload[28:32]))
	numValues := int(binary.LittleEndian.Uint32(payload[36:40]))
	valueListOffset := int32(binary.LittleEndian.Uint32(payload[40:44]))
	nameLen := int(binary.LittleEndian.Uint16(payload[72:74]))

	if 76+nameLen > len(payload) {
		return nil, fmt.Errorf("%w: nk name overruns cell", ErrBadCell)
	}
	nameBytes := payload[76 : 76+nameLen]
	var name string
	if flags&0x0020 != 0 {
		name = string(nameBytes)
	} else {
		name = decodeUTF16LE(nameBytes)
	}

	return &Key{
		hive:              h,
		offset:            offset,
		Name:              name,
		LastWritten:       FromFILETIME(lastWritten),
		numSubkeys:        numSubkeys,
		subkeyListOffset:  subkeyListOffset,
		numValues:         numValues,
		valueListOffset:   valueListOffset,
	}, nil
}
