package coordinator

import "github.com/forensiq/orc2timeline/internal/config"

// TaskDescriptor is the JSON payload a subprocess worker reads via
// --internal-run-task. cmd/orctimeline's internal runner and Pool
// share this type so the wire format can't drift between them.
type TaskDescriptor struct {
	Plugin      config.PluginConfig
	Archives    []string
	Hostname    string
	ScratchRoot string
	LockPath    string // empty means "no coarse advisory lock"
}

// TaskResult is what a subprocess worker prints to stdout on success.
type TaskResult struct {
	WrittenRowsCount int `json:"written_rows_count"`
}
