// Package source normalizes random-access page reads over directories,
// single files and archive containers. Formats with cheap random access
// (zip) are read on demand; sequential-only formats (7z, rar) are
// extracted in full into memory on first read and served from there.
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yshino/orihon/internal/utils"
)

var (
	// ErrUnsupportedFormat means the path is not a directory, image file
	// or supported container.
	ErrUnsupportedFormat = errors.New("unsupported container format")
	// ErrContainerRead wraps archive corruption and I/O failures.
	ErrContainerRead = errors.New("container read failed")
	// ErrEntryOutOfRange means the entry index is not in [0, Len).
	ErrEntryOutOfRange = errors.New("entry index out of range")
)

// Entry is one page inside a container: a normalized forward-slash name
// and its position in the naturally ordered listing.
type Entry struct {
	Name  string
	Index int
}

// Source supplies raw page bytes by index.
type Source interface {
	// Entries returns the naturally ordered, extension-filtered listing.
	Entries() []Entry
	// Len is the number of entries.
	Len() int
	// Read returns the raw bytes of entry i.
	Read(i int) ([]byte, error)
	// Close releases readers and any slurped data.
	Close() error
}

// Open dispatches on the container kind. Directories and plain image
// files need no extraction step; zip-like containers are indexed; 7z and
// rar go through the slurp path.
func Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	if fi.IsDir() {
		return newDirSource(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip", ".cbz":
		return newZipSource(path)
	case ".7z":
		return newSlurpSource(path, listSevenZip, extractSevenZip)
	case ".rar", ".cbr":
		return newSlurpSource(path, listRar, extractRar)
	}

	if utils.IsImageFile(path) {
		return newFileSource(path), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
}

func normalizedName(name string) string {
	return utils.NormalizePath(name)
}

// entriesFromNames filters names to supported rasters, normalizes
// separators and assigns natural-order indices.
func entriesFromNames(names []string) []Entry {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		if utils.IsImageFile(name) {
			kept = append(kept, utils.NormalizePath(name))
		}
	}
	utils.SortNatural(kept)

	entries := make([]Entry, len(kept))
	for i, name := range kept {
		entries[i] = Entry{Name: name, Index: i}
	}
	return entries
}
