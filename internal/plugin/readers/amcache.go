package readers

import (
	"fmt"
	"strings"
	"time"

	"github.com/forensiq/orc2timeline/internal/hive"
	"github.com/forensiq/orc2timeline/internal/timeline"
)

// AmCacheToTimeline walks Amcache.hve's InventoryApplicationFile
// subtree, emitting one "key touched" event per entry plus a second
// "compilation timestamp" event when a LinkDate value is present.
type AmCacheToTimeline struct{}

func NewAmCacheToTimeline() *AmCacheToTimeline { return &AmCacheToTimeline{} }

func (r *AmCacheToTimeline) FileHeader() []byte { return hiveMagic }

const amcacheLinkDateLayout = "01/02/2006 15:04:05"

func (r *AmCacheToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	h, err := hive.Open(path)
	if err != nil {
		return err
	}
	root, err := h.RootKey()
	if err != nil {
		return err
	}
	return root.Walk(func(k *hive.Key) error {
		if isAmcacheEntryKey(k) {
			amcacheEntry(k, emit)
		}
		return nil
	})
}

// isAmcacheEntryKey reports whether k looks like one
// InventoryApplicationFile leaf rather than a container key: it
// carries at least one of the value names the leaf schema always has.
func isAmcacheEntryKey(k *hive.Key) bool {
	for _, name := range []string{"Name", "LowerCaseLongPath", "FileId"} {
		if _, ok, _ := k.Value(name); ok {
			return true
		}
	}
	return false
}

// amcacheEntry emits the events for k, a key isAmcacheEntryKey has
// already identified as one InventoryApplicationFile leaf.
func amcacheEntry(k *hive.Key, emit func(timeline.Event)) {
	desc := []string{fmt.Sprintf("KeyPath: %s", k.Name)}

	if v, ok, _ := k.Value("Name"); ok {
		desc = append(desc, fmt.Sprintf("Name: %s", v.String()))
	}
	if v, ok, _ := k.Value("LowerCaseLongPath"); ok {
		desc = append(desc, fmt.Sprintf("ExecPath: %s", v.String()))
	}
	if v, ok, _ := k.Value("FileId"); ok {
		b := v.Bytes()
		if len(b) > 4 {
			desc = append(desc, fmt.Sprintf("SHA1: %x", b[4:]))
		}
	}
	if v, ok, _ := k.Value("Size"); ok {
		if n, err := v.Uint64(); err == nil {
			desc = append(desc, fmt.Sprintf("FileSize: %d", n))
		} else if n32, err := v.Uint32(); err == nil {
			desc = append(desc, fmt.Sprintf("FileSize: %d", n32))
		}
	}

	emit(timeline.Event{
		Timestamp:   k.LastWritten,
		Description: "Key last modified timestamp - " + strings.Join(desc, " - "),
	})

	if v, ok, _ := k.Value("LinkDate"); ok {
		if t, err := time.Parse(amcacheLinkDateLayout, v.String()); err == nil {
			emit(timeline.Event{
				Timestamp:   t.UTC(),
				Description: "Compilation timestamp - " + strings.Join(desc, " - "),
			})
		}
	}
}
