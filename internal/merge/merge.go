// Package merge implements the per-host k-way merge of sorted run
// files into the final deduplicated, gzip-compressed timeline.
package merge

import (
	"bufio"
	"compress/gzip"
	"container/heap"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// MaxOpenFiles is the hard cap on simultaneously open run files per
// merge pass, keeping the merger inside typical OS file-descriptor
// limits. The merger never opens more than this many run files at
// once, batching and folding in an intermediate file when there are
// more.
const MaxOpenFiles = 300

// Header is the fixed column header written before the first data
// line of every output timeline.
const Header = "Timestamp,Hostname,SourceType,Description,SourceFile\n"

// Merger k-way merges every run file produced for one host into a
// single sorted, deduplicated, gzip-compressed CSV.
type Merger struct{}

func New() *Merger { return &Merger{} }

// MergeHost merges every file matching "timeline_<hostname>_*" under
// tmpDir into outputPath, returning the number of unique event lines
// written. Consumed run files are deleted as they are folded in.
func (m *Merger) MergeHost(hostname, tmpDir, outputPath string) (int, error) {
	pattern := filepath.Join(tmpDir, fmt.Sprintf("timeline_%s_*", hostname))
	runFiles, err := filepath.Glob(pattern)
	if err != nil {
		return 0, err
	}
	sort.Strings(runFiles) // deterministic batching order

	if len(runFiles) == 0 {
		return 0, writeEmptyOutput(outputPath)
	}

	queue := runFiles
	var intermediate string
	uniqueCount := 0

	for len(queue) > 0 {
		batch := queue
		if len(batch) > MaxOpenFiles {
			batch = queue[:MaxOpenFiles]
		}
		queue = queue[len(batch):]

		isLastPass := len(queue) == 0
		inputs := batch
		if intermediate != "" {
			inputs = append(append([]string(nil), batch...), intermediate)
		}

		nextIntermediate, n, err := mergePass(inputs, isLastPass)
		if err != nil {
			return uniqueCount, err
		}
		for _, f := range batch {
			os.Remove(f)
		}
		if intermediate != "" {
			os.Remove(intermediate)
		}
		intermediate = nextIntermediate
		if isLastPass {
			uniqueCount = n
		}
	}

	if err := writeFinalOutput(intermediate, outputPath); err != nil {
		return uniqueCount, err
	}
	os.Remove(intermediate)
	return uniqueCount, nil
}

func writeEmptyOutput(outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	defer gz.Close()
	_, err = gz.Write([]byte(Header))
	return err
}

// heapItem is one input stream's current line, used by the min-heap
// merge below. idx is the stream's position in the input slice and
// breaks ties between identical lines, matching the origin's
// file-index tiebreak.
type heapItem struct {
	line   string
	idx    int
	reader *bufio.Reader
}

type mergeHeap []*heapItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].line != h[j].line {
		return h[i].line < h[j].line
	}
	return h[i].idx < h[j].idx
}
func (h mergeHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)        { *h = append(*h, x.(*heapItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergePass k-way merges the given input files into one new
// intermediate file, deduplicating adjacent identical lines only when
// last is true (the final pass), per the design's dedup-on-last-pass
// invariant.
func mergePass(inputs []string, last bool) (string, int, error) {
	out, err := os.CreateTemp("", "orctimeline-merge-*")
	if err != nil {
		return "", 0, err
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	defer w.Flush()

	files := make([]*os.File, 0, len(inputs))
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	h := &mergeHeap{}
	heap.Init(h)

	for i, path := range inputs {
		f, err := os.Open(path)
		if err != nil {
			return "", 0, fmt.Errorf("merge: open %s: %w", path, err)
		}
		files = append(files, f)
		r := bufio.NewReader(f)
		line, err := r.ReadString('\n')
		if line != "" {
			heap.Push(h, &heapItem{line: line, idx: i, reader: r})
		} else if err != nil && err != io.EOF {
			return "", 0, err
		}
	}

	count := 0
	var previous string
	hasPrevious := false

	for h.Len() > 0 {
		item := heap.Pop(h).(*heapItem)
		line := item.line

		write := true
		if last {
			if hasPrevious && previous == line {
				write = false
			}
		}
		if write {
			if _, err := w.WriteString(line); err != nil {
				return "", 0, err
			}
			if last {
				count++
			}
		}
		if last {
			previous = line
			hasPrevious = true
		}

		next, err := item.reader.ReadString('\n')
		if next != "" {
			item.line = next
			heap.Push(h, item)
		} else if err != nil && err != io.EOF {
			return "", 0, err
		}
	}

	if err := w.Flush(); err != nil {
		return "", 0, err
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}
	return out.Name(), count, nil
}

func writeFinalOutput(intermediate, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	in, err := os.Open(intermediate)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer out.Close()

	gz := gzip.NewWriter(out)
	defer gz.Close()

	if _, err := gz.Write([]byte(Header)); err != nil {
		return err
	}
	_, err = io.Copy(gz, in)
	return err
}
