// Package logger sets up the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const FileName = "chipcheck.log"

// Config selects where logs go.
type Config struct {
	// Root is the state directory; logs land in Root/logs. Empty disables the
	// file sink.
	Root string
	// Debug lowers the level to debug, which logs every line read and every
	// sample.
	Debug bool
	// Console tees human-readable output to Console (usually os.Stderr).
	Console io.Writer
}

var (
	mu         sync.Mutex
	configured bool
)

// Setup installs the global logger and returns a func that closes the log
// file.
func Setup(cfg Config) (func() error, error) {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	var writers []io.Writer
	cleanup := func() error { return nil }

	if cfg.Root != "" {
		dir := filepath.Join(cfg.Root, "logs")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
		cleanup = f.Close
	}
	if cfg.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{Out: cfg.Console, TimeFormat: "15:04:05"})
	}

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}

	var l zerolog.Logger
	switch len(writers) {
	case 0:
		l = zerolog.Nop()
	case 1:
		l = zerolog.New(writers[0])
	default:
		l = zerolog.New(zerolog.MultiLevelWriter(writers...))
	}
	log.Logger = l.Level(level).With().Timestamp().Logger()
	configured = true

	return cleanup, nil
}

// L returns the process logger, or a no-op logger before Setup.
func L() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !configured {
		return zerolog.Nop()
	}
	return log.Logger
}

// Component returns base tagged with a component field.
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
