package readers

import (
	"errors"
	"testing"
)

func TestCleanPrintableStripsControlBytes(t *testing.T) {
	in := []byte("line1\x00\x01,value\nline2\ttabbed")
	out := string(CleanPrintable(in))
	want := "line1,value\nline2\ttabbed"
	if out != want {
		t.Fatalf("CleanPrintable = %q, want %q", out, want)
	}
}

func TestDirtyCSVErrorWraps(t *testing.T) {
	inner := errors.New("boom")
	err := dirtyCSVError(inner)
	if !errors.Is(err, ErrDirtyCSV) {
		t.Fatalf("dirtyCSVError result does not match ErrDirtyCSV via errors.Is")
	}
}
