// Package load orchestrates page acquisition: it owns the active source
// binding, drives decodes through a small worker pool, and feeds results
// into the frame cache, notifying the consumer as pages become ready.
package load

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/yshino/orihon/internal/config"
	"github.com/yshino/orihon/internal/logger"
	"github.com/yshino/orihon/pkg/decode"
	"github.com/yshino/orihon/pkg/framecache"
	"github.com/yshino/orihon/pkg/source"
)

// queueSize bounds the request channel; a full queue blocks the caller
// until the dispatcher drains it.
const queueSize = 512

// PriorityDisplay marks a currently visible page; PriorityPrefetch marks
// read-ahead. Display requests preempt the queue: the dispatcher always
// picks the newest pending display request before any prefetch.
const (
	PriorityDisplay  = 0
	PriorityPrefetch = 1
)

// Completion is one finished load attempt. Err is nil when the page is
// now in the cache; a decode or read failure is reported but never fatal.
type Completion struct {
	Index int
	Key   string
	Err   error
}

type msgKind int

const (
	msgLoad msgKind = iota
	msgSetSource
	msgClear
	msgClearPrefetch
)

type message struct {
	kind     msgKind
	index    int
	priority int
	src      source.Source
	identity string
}

type job struct {
	src      source.Source
	identity string
	index    int
	priority int
}

// Pipeline is the single owner of the active source/identity binding.
// Callers enqueue work with Request and friends; one dispatcher loop
// applies control messages and hands loads to decode workers.
type Pipeline struct {
	cache *framecache.Cache
	cfg   *config.Config
	log   zerolog.Logger

	requests    chan message
	jobs        chan job
	completions chan Completion
	ready       chan struct{}

	inflight *xsync.Map[int, struct{}]
	group    singleflight.Group

	// pending counts dispatched jobs; the dispatcher waits on it before
	// closing a replaced source.
	pending sync.WaitGroup

	startOnce sync.Once
	done      chan struct{}
}

// New creates a pipeline over cache, configured by cfg. Call Start to
// run it.
func New(cache *framecache.Cache, cfg *config.Config) *Pipeline {
	return &Pipeline{
		cache:       cache,
		cfg:         cfg,
		log:         logger.New("loader"),
		requests:    make(chan message, queueSize),
		jobs:        make(chan job),
		completions: make(chan Completion, queueSize),
		ready:       make(chan struct{}, 1),
		inflight:    xsync.NewMap[int, struct{}](),
		done:        make(chan struct{}),
	}
}

// Start launches the dispatcher and decode workers. It returns
// immediately; cancel ctx to shut the pipeline down.
func (p *Pipeline) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		workers := p.cfg.DecodeWorkers
		if workers < 1 {
			workers = 1
		}
		var wg sync.WaitGroup
		wg.Add(workers)
		for i := 0; i < workers; i++ {
			go func() {
				defer wg.Done()
				for j := range p.jobs {
					p.process(j)
					p.pending.Done()
				}
			}()
		}
		go func() {
			p.dispatch(ctx)
			wg.Wait()
			close(p.done)
		}()
		p.log.Debug().Int("workers", workers).Msg("pipeline started")
	})
}

// Done is closed once the dispatcher and all workers have exited after
// context cancellation.
func (p *Pipeline) Done() <-chan struct{} { return p.done }

// SetSource swaps the active source and cache-key identity. The previous
// source is closed once its in-flight decodes finish; queued requests
// against it are dropped. Entries cached under the old identity become
// unreachable but are not purged. An empty identity gets a generated one;
// the identity in use is returned.
func (p *Pipeline) SetSource(src source.Source, identity string) string {
	if identity == "" {
		identity = uuid.NewString()
	}
	p.requests <- message{kind: msgSetSource, src: src, identity: identity}
	return identity
}

// Clear drops all queued requests and empties the frame cache.
func (p *Pipeline) Clear() {
	p.requests <- message{kind: msgClear}
}

// ClearPrefetch drops queued read-ahead, keeping display requests.
func (p *Pipeline) ClearPrefetch() {
	p.requests <- message{kind: msgClearPrefetch}
}

// Request enqueues a load for page index at the given priority. A full
// queue blocks until the dispatcher catches up.
func (p *Pipeline) Request(index, priority int) {
	p.requests <- message{kind: msgLoad, index: index, priority: priority}
}

// Poll returns the next completion without blocking.
func (p *Pipeline) Poll() (Completion, bool) {
	select {
	case c := <-p.completions:
		return c, true
	default:
		return Completion{}, false
	}
}

// Ready returns the wake channel: it receives after completions arrive,
// so an event loop can sleep instead of polling tightly.
func (p *Pipeline) Ready() <-chan struct{} { return p.ready }

// InFlight reports whether a decode for page index is currently running.
func (p *Pipeline) InFlight(index int) bool {
	_, ok := p.inflight.Load(index)
	return ok
}

// dispatch is the message loop: absorb everything pending, apply control
// messages, then pick one load and hand it to a worker. Display requests
// win over prefetch; among display requests the newest wins, so rapid
// navigation serves the page the reader is actually on.
func (p *Pipeline) dispatch(ctx context.Context) {
	var (
		cur      source.Source
		identity string
		queue    []message
	)

	shutdown := func() {
		p.pending.Wait()
		close(p.jobs)
		if cur != nil {
			cur.Close()
		}
	}

	apply := func(m message) {
		switch m.kind {
		case msgSetSource:
			p.pending.Wait()
			if cur != nil {
				cur.Close()
			}
			cur = m.src
			identity = m.identity
			queue = queue[:0]
			p.log.Info().Str("identity", identity).Int("entries", cur.Len()).Msg("source set")
		case msgClear:
			queue = queue[:0]
			p.cache.Clear()
		case msgClearPrefetch:
			kept := queue[:0]
			for _, q := range queue {
				if q.priority == PriorityDisplay {
					kept = append(kept, q)
				}
			}
			queue = kept
		case msgLoad:
			if cur == nil {
				p.log.Debug().Int("index", m.index).Msg("load request with no source, dropped")
				return
			}
			queue = append(queue, m)
		}
	}

	for {
		// Absorb everything already queued before choosing work.
	drain:
		for {
			select {
			case m := <-p.requests:
				apply(m)
			default:
				break drain
			}
		}

		if len(queue) == 0 {
			select {
			case <-ctx.Done():
				shutdown()
				return
			case m := <-p.requests:
				apply(m)
				continue
			}
		}

		pick := 0
		for i := len(queue) - 1; i >= 0; i-- {
			if queue[i].priority == PriorityDisplay {
				pick = i
				break
			}
		}
		m := queue[pick]
		queue = append(queue[:pick], queue[pick+1:]...)

		p.pending.Add(1)
		select {
		case p.jobs <- job{src: cur, identity: identity, index: m.index, priority: m.priority}:
		case <-ctx.Done():
			p.pending.Done()
			shutdown()
			return
		}
	}
}

// process services one load: cache hit short-circuits, otherwise read,
// decode and insert, deduplicating concurrent decodes of the same key.
func (p *Pipeline) process(j job) {
	key := framecache.Key(j.identity, j.index)
	if _, ok := p.cache.Get(key); ok {
		p.complete(Completion{Index: j.index, Key: key})
		return
	}

	p.inflight.Store(j.index, struct{}{})
	defer p.inflight.Delete(j.index)

	_, err, _ := p.group.Do(key, func() (interface{}, error) {
		data, err := j.src.Read(j.index)
		if err != nil {
			return nil, err
		}
		img, err := decode.DecodeFromMemory(data, p.cfg.UseCPUColorConversion)
		if err != nil {
			return nil, err
		}
		p.cache.Insert(key, img)
		return img, nil
	})
	if err != nil {
		p.log.Warn().Err(err).Int("index", j.index).Int("priority", j.priority).Msg("page load failed")
	} else {
		p.log.Trace().Int("index", j.index).Int("priority", j.priority).Msg("page loaded")
	}
	p.complete(Completion{Index: j.index, Key: key, Err: err})
}

// complete hands a completion to the consumer and pokes the wake channel.
// A consumer that has fallen queueSize behind loses the oldest
// notification; the page itself is still in the cache.
func (p *Pipeline) complete(c Completion) {
	for {
		select {
		case p.completions <- c:
			select {
			case p.ready <- struct{}{}:
			default:
			}
			return
		default:
			select {
			case <-p.completions:
			default:
			}
		}
	}
}
