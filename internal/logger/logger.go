package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu   sync.RWMutex
	root zerolog.Logger = zerolog.New(console()).With().Timestamp().Logger()
)

func console() io.Writer {
	return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
}

// Default returns the root logger.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// New returns a component-tagged sub-logger.
func New(component string) zerolog.Logger {
	return Default().With().Str("component", component).Logger()
}

// Setup configures the global log level and an optional rotating log file.
// With a file path set, output goes to both the console and the file.
func Setup(level string, logFile string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	var w io.Writer = console()
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = zerolog.MultiLevelWriter(w, rotating)
	}

	mu.Lock()
	root = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	mu.Unlock()
}
