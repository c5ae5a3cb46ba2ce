package timeline

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// ChunkCapacity is the default number of rows buffered in memory
	// before a chunk spills to a new run file.
	ChunkCapacity = 10000

	nonceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	nonceLen      = 5
)

// Emitter converts Events into sorted, locally-ordered run files for
// one plugin instance. It owns exactly one open run file and one
// in-memory SortedChunk at a time.
type Emitter struct {
	hostname   string
	prefix     string // scratchRoot/timeline_<host>_<plugin>
	nonce      string
	fileNumber int

	chunk       *SortedChunk
	current     *os.File
	currentPath string

	runFiles []string
	written  int

	onCritical func(string)
}

// NewEmitter creates an emitter for one plugin instance. tmpDir is the
// shared temporary directory all run files for the batch are written
// under; pluginClass is the reader's registry name.
func NewEmitter(tmpDir, hostname, pluginClass string, onCritical func(string)) (*Emitter, error) {
	nonce, err := randomNonce()
	if err != nil {
		return nil, err
	}
	e := &Emitter{
		hostname:   hostname,
		prefix:     filepath.Join(tmpDir, fmt.Sprintf("timeline_%s_%s", hostname, pluginClass)),
		nonce:      nonce,
		chunk:      NewSortedChunk(ChunkCapacity),
		onCritical: onCritical,
	}
	if err := e.openNext(); err != nil {
		return nil, err
	}
	return e, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, nonceLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, nonceLen)
	for i, b := range buf {
		out[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(out), nil
}

func (e *Emitter) openNext() error {
	e.fileNumber++
	path := fmt.Sprintf("%s_%s_nb%d", e.prefix, e.nonce, e.fileNumber)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	e.current = f
	e.currentPath = path
	e.runFiles = append(e.runFiles, path)
	return nil
}

// Emit formats and buffers event, unless its description is empty (in
// which case the event is silently dropped per the empty-description
// invariant). Returns an error only on an I/O failure during an
// overflow flush.
func (e *Emitter) Emit(ev Event) error {
	if ev.Description == "" {
		return nil
	}
	ts := ev.Render(e.onCritical)
	row, err := formatRow(ts.String(), e.hostname, ev.Sourcetype, ev.Description, ev.Source)
	if err != nil {
		return err
	}
	e.chunk.Insert(row)
	if e.chunk.IsFull() {
		return e.flushAndRotate()
	}
	return nil
}

func formatRow(timestamp, hostname, sourcetype, description, source string) (string, error) {
	sanitize := func(s string) string {
		s = strings.ReplaceAll(s, "\n", "\\n")
		s = strings.ReplaceAll(s, "\r", "\\r")
		return s
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	record := []string{
		sanitize(timestamp),
		sanitize(hostname),
		sanitize(sourcetype),
		sanitize(description),
		sanitize(source),
	}
	if err := w.Write(record); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (e *Emitter) flush() error {
	for _, row := range e.chunk.Rows() {
		if _, err := e.current.WriteString(row); err != nil {
			return err
		}
	}
	e.written += e.chunk.Len()
	return e.current.Close()
}

func (e *Emitter) flushAndRotate() error {
	if err := e.flush(); err != nil {
		return err
	}
	e.chunk.Reset()
	return e.openNext()
}

// Close flushes any remaining buffered rows to the current run file.
func (e *Emitter) Close() error {
	return e.flush()
}

// RunFiles returns the paths of every run file produced so far,
// including the currently open one.
func (e *Emitter) RunFiles() []string {
	out := make([]string, len(e.runFiles))
	copy(out, e.runFiles)
	return out
}

// WrittenRowsCount returns the total number of rows flushed to disk so
// far (the currently buffered, unflushed chunk is not counted until
// its next flush, matching the origin's written_rows_count bookkeeping).
func (e *Emitter) WrittenRowsCount() int {
	return e.written
}

// Rollback discards everything this emitter has produced so far:
// close the current file handle, delete every run file, and
// reinitialize the chunk and run-file list so processing can continue
// with the next artifact.
func (e *Emitter) Rollback() error {
	// Best effort: close the current file handle before deleting it.
	_ = e.current.Close()
	for _, p := range e.runFiles {
		_ = os.Remove(p)
	}
	e.runFiles = nil
	e.written = 0
	e.chunk = NewSortedChunk(ChunkCapacity)
	return e.openNext()
}
