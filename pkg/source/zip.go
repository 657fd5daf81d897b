package source

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"github.com/yshino/orihon/internal/utils"
)

// zipSource reads zip/cbz containers. The central directory makes both
// listing and single-entry reads cheap, so nothing is slurped.
type zipSource struct {
	rc      *zip.ReadCloser
	entries []Entry
	files   map[string]*zip.File
}

func newZipSource(path string) (*zipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}

	files := make(map[string]*zip.File, len(rc.File))
	names := make([]string, 0, len(rc.File))
	for _, f := range rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := utils.NormalizePath(f.Name)
		files[name] = f
		names = append(names, name)
	}

	return &zipSource{rc: rc, entries: entriesFromNames(names), files: files}, nil
}

func (s *zipSource) Entries() []Entry { return s.entries }
func (s *zipSource) Len() int         { return len(s.entries) }

func (s *zipSource) Read(i int) ([]byte, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, fmt.Errorf("%w: %d", ErrEntryOutOfRange, i)
	}
	f, ok := s.files[s.entries[i].Name]
	if !ok {
		return nil, fmt.Errorf("%w: missing entry %s", ErrContainerRead, s.entries[i].Name)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	return data, nil
}

func (s *zipSource) Close() error { return s.rc.Close() }
