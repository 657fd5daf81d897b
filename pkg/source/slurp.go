package source

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bodgit/sevenzip"
	"github.com/nwaples/rardecode/v2"
	"github.com/rs/zerolog"

	"github.com/yshino/orihon/internal/logger"
)

type (
	listFunc    func(path string) ([]string, error)
	extractFunc func(path string, want map[string]struct{}) (map[string][]byte, error)
)

// slurpSource handles containers without efficient random access. Listing
// is a cheap header walk; the first Read triggers a single full
// sequential extraction of every matching entry into memory, amortizing
// the fixed cost across all later page reads.
type slurpSource struct {
	path    string
	entries []Entry
	extract extractFunc
	log     zerolog.Logger

	mu      sync.Mutex
	slurped bool
	data    map[string][]byte
}

func newSlurpSource(path string, list listFunc, extract extractFunc) (*slurpSource, error) {
	names, err := list(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContainerRead, err)
	}
	return &slurpSource{
		path:    path,
		entries: entriesFromNames(names),
		extract: extract,
		log:     logger.New("source").With().Str("container", path).Logger(),
	}, nil
}

func (s *slurpSource) Entries() []Entry { return s.entries }
func (s *slurpSource) Len() int         { return len(s.entries) }

func (s *slurpSource) Read(i int) ([]byte, error) {
	if i < 0 || i >= len(s.entries) {
		return nil, fmt.Errorf("%w: %d", ErrEntryOutOfRange, i)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.slurped {
		want := make(map[string]struct{}, len(s.entries))
		for _, e := range s.entries {
			want[e.Name] = struct{}{}
		}
		s.log.Debug().Int("entries", len(want)).Msg("slurping sequential container")

		data, err := s.extract(s.path, want)
		// Keep whatever extracted before a failure; those entries stay
		// readable, only the missing ones keep failing.
		s.data = data
		s.slurped = true
		if err != nil {
			s.log.Error().Err(err).Msg("container extraction failed")
		} else {
			s.log.Debug().Int("extracted", len(data)).Msg("slurp complete")
		}
	}

	name := s.entries[i].Name
	if data, ok := s.data[name]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%w: entry %s not extracted", ErrContainerRead, name)
}

func (s *slurpSource) Close() error {
	s.mu.Lock()
	s.data = nil
	s.slurped = false
	s.mu.Unlock()
	return nil
}

// listSevenZip walks the 7z header index without touching entry data.
func listSevenZip(path string) ([]string, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// extractSevenZip reads every wanted entry in stream order, which lets
// the reader decompress each solid block once.
func extractSevenZip(path string, want map[string]struct{}) (map[string][]byte, error) {
	r, err := sevenzip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make(map[string][]byte, len(want))
	for _, f := range r.File {
		if _, ok := want[normalizedName(f.Name)]; !ok {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return out, err
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return out, err
		}
		out[normalizedName(f.Name)] = data
	}
	return out, nil
}

// listRar walks the rar file headers sequentially without extracting.
func listRar(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f)
	if err != nil {
		return nil, err
	}

	var names []string
	for {
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return names, err
		}
		if !hdr.IsDir {
			names = append(names, hdr.Name)
		}
	}
	return names, nil
}

// extractRar decompresses the archive once, front to back.
func extractRar(path string, want map[string]struct{}) (map[string][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rr, err := rardecode.NewReader(f)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(want))
	for {
		hdr, err := rr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return out, err
		}
		if hdr.IsDir {
			continue
		}
		name := normalizedName(hdr.Name)
		if _, ok := want[name]; !ok {
			continue
		}
		data, err := io.ReadAll(rr)
		if err != nil {
			return out, err
		}
		out[name] = data
	}
	return out, nil
}
