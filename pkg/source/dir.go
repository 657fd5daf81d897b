package source

import (
	"fmt"
	"os"
	"path/filepath"
)

// dirSource serves images straight from the filesystem: a directory's
// matching files (top level only), or a single image file.
type dirSource struct {
	root    string
	entries []Entry
}

func newDirSource(root string) (*dirSource, error) {
	listing, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	names := make([]string, 0, len(listing))
	for _, de := range listing {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	return &dirSource{root: root, entries: entriesFromNames(names)}, nil
}

func newFileSource(path string) *dirSource {
	return &dirSource{
		root:    filepath.Dir(path),
		entries: []Entry{{Name: filepath.Base(path), Index: 0}},
	}
}

func (s *dirSource) Entries() []Entry { return s.entries }
func (s *dirSource) Len() int         { return len(s.entries) }

func (s *dirSource) Read(i int) ([]byte, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, fmt.Errorf("%w: %d", ErrEntryOutOfRange, i)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(s.entries[i].Name)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	return data, nil
}

func (s *dirSource) Close() error { return nil }
