// Package archive opens 7z containers (including nested sub-archives)
// and extracts selected members to a scratch directory under
// controlled path-length and safety constraints.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
)

// MaxFileNameLength is the basename length at or past which a member
// is considered "long" and routed through the safe-extraction fallback.
const MaxFileNameLength = 255

// Predicate selects archive members by their full in-archive path.
type Predicate func(memberName string) bool

// Extract opens archivePath and writes every member selected by pred
// into destination, preserving directory structure. If a member write
// fails because its basename is too long for the destination
// filesystem, Extract falls back to ExtractSafe for the whole archive.
func Extract(archivePath, destination string, pred Predicate) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !pred(f.Name) {
			continue
		}
		if err := extractOne(f, destination); err != nil {
			if isNameTooLong(err) {
				return ExtractSafe(archivePath, destination, pred)
			}
			return fmt.Errorf("extract %s from %s: %w", f.Name, archivePath, err)
		}
	}
	return nil
}

func extractOne(f *sevenzip.File, destination string) error {
	if f.FileInfo().IsDir() {
		return nil
	}
	target := filepath.Join(destination, filepath.FromSlash(f.Name))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}

func isNameTooLong(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file name too long") ||
		strings.Contains(msg, "invalid argument") ||
		errors.Is(err, os.ErrInvalid)
}

// ExtractSafe extracts members matching pred from archivePath the way
// Extract does for short names, but for any member whose basename is
// at least MaxFileNameLength bytes, it reads the member into memory
// and writes it under a truncated name: the final MaxFileNameLength-1
// bytes of the original basename, so the write never exceeds the
// filesystem's limit.
func ExtractSafe(archivePath, destination string, pred Predicate) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if !pred(f.Name) {
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(f.Name)
		if len(base) < MaxFileNameLength {
			if err := extractOne(f, destination); err != nil {
				return fmt.Errorf("extract %s from %s: %w", f.Name, archivePath, err)
			}
			continue
		}

		truncated := base[len(base)-(MaxFileNameLength-1):]
		dir := filepath.Join(destination, filepath.FromSlash(filepath.Dir(f.Name)))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open member %s in %s: %w", f.Name, archivePath, err)
		}
		out, err := os.Create(filepath.Join(dir, truncated))
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		out.Close()
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}

// ExtractNested extracts a single named member (typically a 7z file
// nested inside an outer archive) to destination, keeping its
// original basename.
func ExtractNested(outerArchive, destination, innerArchiveName string) error {
	return Extract(outerArchive, destination, func(name string) bool {
		return name == innerArchiveName
	})
}

// ExtractGetThis extracts GetThis.csv from archivePath, if present,
// into destination. It returns nil when the manifest is absent.
func ExtractGetThis(archivePath, destination string) error {
	return Extract(archivePath, destination, func(name string) bool {
		return filepath.Base(name) == "GetThis.csv"
	})
}
