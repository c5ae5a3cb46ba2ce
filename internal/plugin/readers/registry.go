package readers

import (
	"fmt"

	"github.com/forensiq/orc2timeline/internal/hive"
	"github.com/forensiq/orc2timeline/internal/timeline"
)

// hiveMagic is the fixed "regf" prefix shared by every registry hive
// variant (NTUSER.DAT, SOFTWARE, SYSTEM, SAM, Amcache.hve).
var hiveMagic = []byte{0x72, 0x65, 0x67, 0x66}

// importantKeys lists key paths whose values are dumped in full, in
// addition to the one-line "key was touched" event every key gets.
// The origin loads this list from a side file shipped next to the
// plugin; it is inlined here since no equivalent asset ships with
// this module.
var importantKeys = map[string]bool{
	`HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Services`:                         true,
	`HKEY_LOCAL_MACHINE\SOFTWARE\Microsoft\Windows\CurrentVersion\Run`:              true,
	`HKEY_CURRENT_USER\Software\Microsoft\Windows\CurrentVersion\Run`:               true,
	`HKEY_LOCAL_MACHINE\SYSTEM\CurrentControlSet\Control\Session Manager\AppCompatCache`: true,
}

var hiveValueTypeNames = map[uint32]string{
	hive.TypeSZ:       "RegSZ",
	hive.TypeExpandSZ: "RegExpandSZ",
	hive.TypeBinary:   "RegBin",
	hive.TypeDWord:    "RegDWord",
	hive.TypeMultiSZ:  "RegMultiSZ",
	hive.TypeQWord:    "RegQWord",
}

// RegistryToTimeline walks every key of a registry hive, emitting one
// event per key (its path and last-written time) and, for keys on the
// importantKeys list, one additional event per value.
type RegistryToTimeline struct{}

func NewRegistryToTimeline() *RegistryToTimeline { return &RegistryToTimeline{} }

func (r *RegistryToTimeline) FileHeader() []byte { return hiveMagic }

func (r *RegistryToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	h, err := hive.Open(path)
	if err != nil {
		return err
	}
	root, err := h.RootKey()
	if err != nil {
		return err
	}
	return walkRegistryKey(root, "", emit)
}

// walkRegistryKey mirrors RegistryToTimeline._parse_key: emit the key
// itself, optionally its values, then recurse into every subkey. keyPath
// accumulates the backslash-joined path since the hive package does not
// track absolute key paths (the origin resolves a root prefix via
// dfwinreg's file-type detection, which this module does not attempt).
func walkRegistryKey(k *hive.Key, keyPath string, emit func(timeline.Event)) error {
	fullPath := k.Name
	if keyPath != "" {
		fullPath = keyPath + `\` + k.Name
	}

	emit(timeline.Event{
		Timestamp:   k.LastWritten,
		Description: fullPath,
	})

	if importantKeys[fullPath] {
		values, _ := k.Values()
		for _, v := range values {
			emit(timeline.Event{
				Timestamp: k.LastWritten,
				Description: fmt.Sprintf(
					"KeyPath: %s - ValueName: %s - ValueType: %s - ValueData: %v",
					fullPath, v.Name, hiveValueTypeNames[v.Type], v.Bytes()),
			})
		}
	}

	children, err := k.Subkeys()
	if err != nil {
		return nil // a corrupt subkey index does not abort the parent's siblings
	}
	for _, c := range children {
		_ = walkRegistryKey(c, fullPath, emit)
	}
	return nil
}
