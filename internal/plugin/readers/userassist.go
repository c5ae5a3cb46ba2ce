package readers

import (
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/forensiq/orc2timeline/internal/hive"
	"github.com/forensiq/orc2timeline/internal/timeline"
)

// guidToPath resolves the well-known folder GUIDs UserAssist
// execution paths are frequently rooted at.
var guidToPath = map[string]string{
	`{1AC14E77-02E7-4E5D-B744-2EB1AE5198B7}`: `C:\Windows\System32`,
	`{6D809377-6AF0-444B-8957-A3773F02200E}`: `C:\Program Files`,
	`{7C5A40EF-A0FB-4BFC-874A-C0F2E0B9FA8E}`: `C:\Program Files (x86)`,
	`{F38BF404-1D43-42F2-9305-67DE0B28FC23}`: `C:\Windows`,
	`{0139D44E-6AFE-49F2-8690-3DAFCAE6FFB8}`: `C:\ProgramData\Microsoft\Windows\Start Menu\Programs`,
	`{9E3995AB-1F9C-4F13-B827-48B24B6C7174}`: `%AppData%\Roaming\Microsoft\Internet Explorer\Quick Launch\User Pinned`,
	`{A77F5D77-2E2B-44C3-A6A2-ABA601054A51}`: `%AppData%\Roaming\Microsoft\Windows\Start Menu\Programs`,
	`{D65231B0-B2F1-4857-A4CE-A8E7C6EA7D27}`: `C:\Windows\SysWOW64`,
}

// UserAssistToTimeline decodes NTUSER.DAT's UserAssist "Count"
// subkeys: each value name is ROT13-encoded execution path, each
// value's binary payload a run-count / last-run-FILETIME struct in
// one of two historical layouts.
type UserAssistToTimeline struct{}

func NewUserAssistToTimeline() *UserAssistToTimeline { return &UserAssistToTimeline{} }

func (r *UserAssistToTimeline) FileHeader() []byte { return hiveMagic }

func (r *UserAssistToTimeline) ParseArtifact(path string, emit func(timeline.Event)) error {
	h, err := hive.Open(path)
	if err != nil {
		return err
	}
	root, err := h.RootKey()
	if err != nil {
		return err
	}
	return root.Walk(func(k *hive.Key) error {
		if strings.EqualFold(k.Name, "Count") {
			userAssistCountKey(k, emit)
		}
		return nil
	})
}

func userAssistCountKey(k *hive.Key, emit func(timeline.Event)) {
	values, err := k.Values()
	if err != nil {
		return
	}
	regTime := k.LastWritten.Format("2006-01-02 15:04:05.000")

	for _, v := range values {
		execPath := rot13(v.Name)
		if strings.HasPrefix(execPath, "UEME_CTL") {
			continue
		}
		if idx := strings.Index(execPath, `\`); idx > 0 {
			prefix := execPath[:idx]
			if resolved, ok := guidToPath[prefix]; ok {
				execPath = resolved + execPath[idx:]
			}
		}

		data := v.Bytes()
		switch len(data) {
		case 72:
			runCount := binary.LittleEndian.Uint32(data[4:8])
			focusTime := binary.LittleEndian.Uint32(data[12:16])
			lastRunFT := int64(binary.LittleEndian.Uint64(data[60:68]))
			lastRun := time.Unix(0, (lastRunFT-filetimeEpochDelta)*100).UTC()
			emit(timeline.Event{
				Timestamp: lastRun,
				Description: fmt.Sprintf(
					"ExecPath: %s - RunCount: %d - FocusTime: %d - RegistryTimestamp: %s",
					execPath, runCount, focusTime, regTime),
			})
		case 16:
			runCount := int32(binary.LittleEndian.Uint32(data[4:8])) - 5
			lastRunFT := int64(binary.LittleEndian.Uint64(data[8:16]))
			lastRun := time.Unix(0, (lastRunFT-filetimeEpochDelta)*100).UTC()
			emit(timeline.Event{
				Timestamp: lastRun,
				Description: fmt.Sprintf(
					"ExecPath: %s - RunCount: %d - RegistryTimestamp: %s",
					execPath, runCount, regTime),
			})
		}
	}
}

const filetimeEpochDelta = 116444736000000000

func rot13(s string) string {
	rot := func(r rune, a rune) rune {
		return (r-a+13)%26 + a
	}
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z':
			out[i] = rot(r, 'a')
		case r >= 'A' && r <= 'Z':
			out[i] = rot(r, 'A')
		}
	}
	return string(out)
}
