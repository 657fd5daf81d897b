package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yshino/orihon/internal/config"
	"github.com/yshino/orihon/internal/logger"
	"github.com/yshino/orihon/pkg/decode"
	"github.com/yshino/orihon/pkg/framecache"
	"github.com/yshino/orihon/pkg/load"
	"github.com/yshino/orihon/pkg/pages"
	"github.com/yshino/orihon/pkg/source"
)

// orihon walks every page of a container through the full pipeline and
// reports what came out. It exists to exercise the loading core end to
// end; rendering belongs to the embedding application.
func main() {
	var (
		cacheMB   int64
		cpuColor  bool
		workers   int
		prefetch  int
		spread    bool
		bindLeft  bool
		logLevel  string
		logFile   string
		pollLimit time.Duration
	)
	flag.Int64Var(&cacheMB, "cache-mb", 4096, "frame cache budget in MB")
	flag.BoolVar(&cpuColor, "cpu-color", false, "convert planar color on the CPU instead of deferring it")
	flag.IntVar(&workers, "workers", 1, "decode worker count")
	flag.IntVar(&prefetch, "prefetch", 10, "read-ahead distance in pages")
	flag.BoolVar(&spread, "spread", false, "plan pages as two-page spreads")
	flag.BoolVar(&bindLeft, "bind-left", false, "left binding (left-to-right reading)")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.StringVar(&logFile, "log-file", "", "optional rotating log file")
	flag.DurationVar(&pollLimit, "timeout", 30*time.Second, "per-page wait limit")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <container>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	logger.Setup(logLevel, logFile)
	log := logger.Default()

	binding := config.BindingRight
	if bindLeft {
		binding = config.BindingLeft
	}
	cfg := &config.Config{
		LogLevel:              logLevel,
		LogFile:               logFile,
		MaxCacheSizeMB:        cacheMB,
		UseCPUColorConversion: cpuColor,
		DecodeWorkers:         workers,
		PrefetchPages:         prefetch,
		SpreadView:            spread,
		Binding:               binding,
		FirstPageSingle:       spread,
	}
	if err := config.Set(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		os.Exit(2)
	}
	cfg = config.Get()

	src, err := source.Open(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("cannot open container")
		os.Exit(1)
	}
	fmt.Printf("%s: %d pages\n", path, src.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := framecache.New(cfg.MaxCacheBytes())
	pipeline := load.New(cache, cfg)
	pipeline.Start(ctx)
	identity := pipeline.SetSource(src, path)

	nav := pages.NavigationState{
		TotalPages:      src.Len(),
		SpreadView:      cfg.SpreadView,
		Binding:         cfg.Binding,
		FirstPageSingle: cfg.FirstPageSingle,
	}

	exitCode := 0
	for {
		display := pages.PagesToDisplay(nav)
		cache.SetCurrentContext(nav.Current, display)
		for _, req := range pages.Plan(nav, cfg.PrefetchPages) {
			pipeline.Request(req.Index, req.Priority)
		}
		for _, idx := range display {
			if !waitFor(pipeline, cache, identity, idx, pollLimit) {
				log.Error().Int("index", idx).Msg("page did not load")
				exitCode = 1
				continue
			}
			report(src, cache, identity, idx)
		}

		next := pages.Navigate(nav, +1)
		if next == nav.Current {
			break
		}
		nav.Current = next
	}

	hits, misses := cache.Stats()
	fmt.Printf("cache: %d entries, %d bytes, %d hits, %d misses\n",
		cache.Len(), cache.Bytes(), hits, misses)
	os.Exit(exitCode)
}

// waitFor blocks until the page is cached, a completion reports a
// failure for it, or the limit passes.
func waitFor(p *load.Pipeline, cache *framecache.Cache, identity string, idx int, limit time.Duration) bool {
	key := framecache.Key(identity, idx)
	deadline := time.After(limit)
	for {
		if _, ok := cache.Get(key); ok {
			return true
		}
		for {
			c, ok := p.Poll()
			if !ok {
				break
			}
			if c.Key == key && c.Err != nil {
				return false
			}
		}
		select {
		case <-p.Ready():
		case <-deadline:
			return false
		}
	}
}

func report(src source.Source, cache *framecache.Cache, identity string, idx int) {
	img, ok := cache.Get(framecache.Key(identity, idx))
	if !ok {
		return
	}
	repr := "rgba8"
	if p, planar := img.Pixels.(*decode.PlanarYCbCr); planar {
		repr = fmt.Sprintf("planar %d-bit %d:%d", p.Precision, p.DX, p.DY)
	}
	name := ""
	if idx < len(src.Entries()) {
		name = src.Entries()[idx].Name
	}
	fmt.Printf("  [%4d] %-40s %dx%d %s (%d bytes)\n",
		idx, name, img.Width, img.Height, repr, img.ByteSize())
}
