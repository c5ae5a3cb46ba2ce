package timeline

import "sort"

// SortedChunk holds formatted CSV rows in memory, maintaining sorted
// order as rows are inserted. Binary insertion into a slice is the
// same complexity trade-off as the origin's bisect.insort: O(n) insert
// but no separate sort pass is needed on flush.
type SortedChunk struct {
	rows    []string
	maxSize int
}

// NewSortedChunk returns a chunk that is considered full once it holds
// more than maxSize rows.
func NewSortedChunk(maxSize int) *SortedChunk {
	return &SortedChunk{maxSize: maxSize}
}

// Insert adds row to the chunk, keeping rows in ascending byte order.
func (c *SortedChunk) Insert(row string) {
	i := sort.SearchStrings(c.rows, row)
	c.rows = append(c.rows, "")
	copy(c.rows[i+1:], c.rows[i:])
	c.rows[i] = row
}

// Rows returns the chunk's rows in sorted order. The caller must not
// retain the slice across a Reset call.
func (c *SortedChunk) Rows() []string {
	return c.rows
}

// Len returns the number of buffered rows.
func (c *SortedChunk) Len() int {
	return len(c.rows)
}

// IsFull reports whether the chunk has grown past its cap.
func (c *SortedChunk) IsFull() bool {
	return len(c.rows) > c.maxSize
}

// Reset empties the chunk for reuse.
func (c *SortedChunk) Reset() {
	c.rows = nil
}
