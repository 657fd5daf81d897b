package source

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeList(names ...string) listFunc {
	return func(string) ([]string, error) {
		return names, nil
	}
}

func TestSlurpExtractsOnceOnFirstRead(t *testing.T) {
	t.Parallel()

	var extractions atomic.Int32
	s, err := newSlurpSource("book.7z",
		fakeList("p2.jpg", "p1.jpg", "p10.jpg"),
		func(_ string, want map[string]struct{}) (map[string][]byte, error) {
			extractions.Add(1)
			out := make(map[string][]byte, len(want))
			for name := range want {
				out[name] = []byte("data:" + name)
			}
			return out, nil
		})
	require.NoError(t, err)
	defer s.Close()

	// Listing alone must not extract.
	assert.Equal(t, []string{"p1.jpg", "p2.jpg", "p10.jpg"}, entryNames(s))
	assert.Equal(t, int32(0), extractions.Load())

	data, err := s.Read(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("data:p10.jpg"), data)
	assert.Equal(t, int32(1), extractions.Load())

	// Every later read is a memory hit.
	for i := 0; i < s.Len(); i++ {
		_, err := s.Read(i)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), extractions.Load())
}

func TestSlurpPartialExtractionKeepsGoodEntries(t *testing.T) {
	t.Parallel()

	s, err := newSlurpSource("book.rar",
		fakeList("p1.jpg", "p2.jpg"),
		func(string, map[string]struct{}) (map[string][]byte, error) {
			// Corruption midway: only the first entry came out.
			return map[string][]byte{"p1.jpg": []byte("ok")}, errors.New("bad block")
		})
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)

	_, err = s.Read(1)
	assert.ErrorIs(t, err, ErrContainerRead)

	// The good entry stays readable after the failure.
	data, err = s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
}

func TestSlurpListFailure(t *testing.T) {
	t.Parallel()

	_, err := newSlurpSource("missing.7z",
		func(string) ([]string, error) { return nil, errors.New("no such file") },
		nil)
	assert.ErrorIs(t, err, ErrContainerRead)
}

func TestSlurpCloseDropsData(t *testing.T) {
	t.Parallel()

	var extractions atomic.Int32
	s, err := newSlurpSource("book.7z",
		fakeList("p1.jpg"),
		func(_ string, want map[string]struct{}) (map[string][]byte, error) {
			extractions.Add(1)
			return map[string][]byte{"p1.jpg": []byte("x")}, nil
		})
	require.NoError(t, err)

	_, err = s.Read(0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A read after Close slurps again.
	_, err = s.Read(0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), extractions.Load())
}
