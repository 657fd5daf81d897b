// Package framecache is a byte-budget LRU for decoded pages, shared
// between the load worker and the render path.
package framecache

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/rs/zerolog"

	"github.com/yshino/orihon/internal/logger"
	"github.com/yshino/orihon/pkg/decode"
)

// itemFloor caps the entry count independently of the byte budget. It is
// a safety valve only; the byte budget is the working control.
const itemFloor = 4096

// Key composes the cache key other components rely on.
func Key(sourceIdentity string, pageIndex int) string {
	return fmt.Sprintf("%s::%d", sourceIdentity, pageIndex)
}

// keyPageIndex recovers the page index from a composed key.
func keyPageIndex(key string) (int, bool) {
	i := strings.LastIndex(key, "::")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(key[i+2:])
	if err != nil {
		return 0, false
	}
	return n, true
}

type entry struct {
	img  *decode.DecodedImage
	size int64
}

// Cache maps page keys to decoded images under a byte budget. Images are
// shared pointers: eviction only drops the cache's reference, a render
// path still holding the image keeps it alive.
//
// One mutex guards the index and the byte bookkeeping. It is never held
// across a decode.
type Cache struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[string, *entry]
	maxBytes  int64
	curBytes  int64
	protected map[int]struct{}
	log       zerolog.Logger

	hits, misses uint64
}

// New creates a cache bounded by maxBytes.
func New(maxBytes int64) *Cache {
	c := &Cache{
		maxBytes: maxBytes,
		log:      logger.New("framecache"),
	}
	lru, err := simplelru.NewLRU[string, *entry](itemFloor, func(key string, e *entry) {
		c.curBytes -= e.size
	})
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(err)
	}
	c.lru = lru
	return c
}

// Get returns the image for key, marking it most recently used.
func (c *Cache) Get(key string) (*decode.DecodedImage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.img, true
}

// Insert stores img under key and trims back under the byte budget.
// Replacing an existing key first retires its old size.
func (c *Cache) Insert(key string, img *decode.DecodedImage) {
	size := img.ByteSize()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.lru.Peek(key); ok {
		c.curBytes -= old.size
	}
	c.lru.Add(key, &entry{img: img, size: size})
	c.curBytes += size
	c.trimLocked()
}

// trimLocked evicts least-recently-used entries until the byte total is
// within budget. Two guards stop it early: a single remaining entry is
// never evicted (one oversized image must stay renderable), and entries
// for currently displayed/adjacent pages are skipped.
func (c *Cache) trimLocked() {
	for c.curBytes > c.maxBytes && c.lru.Len() > 1 {
		victim, ok := c.oldestEvictableLocked()
		if !ok {
			break
		}
		c.log.Trace().Str("key", victim).Int64("bytes", c.curBytes).Msg("evicting")
		c.lru.Remove(victim)
	}
}

func (c *Cache) oldestEvictableLocked() (string, bool) {
	for _, key := range c.lru.Keys() { // oldest first
		if idx, ok := keyPageIndex(key); ok {
			if _, prot := c.protected[idx]; prot {
				continue
			}
		}
		return key, true
	}
	return "", false
}

// SetMaxBytes changes the byte budget and trims immediately.
func (c *Cache) SetMaxBytes(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxBytes = n
	c.trimLocked()
}

// SetCurrentContext records which page indices are displayed or adjacent
// so eviction leaves them alone.
func (c *Cache) SetCurrentContext(current int, protected []int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.protected = make(map[int]struct{}, len(protected)+1)
	c.protected[current] = struct{}{}
	for _, idx := range protected {
		c.protected[idx] = struct{}{}
	}
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.curBytes = 0
}

// Len returns the entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Bytes returns the tracked byte total.
func (c *Cache) Bytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curBytes
}

// Stats returns cumulative hit/miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
