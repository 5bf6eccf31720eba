package protocol

import (
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultMaxAttempts = 30
	DefaultMaxBlankRun = 5
	DefaultBackoff     = 300 * time.Millisecond
	DefaultPingDelay   = time.Second
	chunkSize          = 10000
)

// Transport is the byte pipe the engine runs over. *serial.Port satisfies it.
type Transport interface {
	ReadChunk(buf []byte) (int, error)
	Write(data []byte) error
	Flush() error
}

// NodeID addresses a unit on the radio network.
type NodeID uint32

// Options tunes the engine. Zero fields take the defaults above.
type Options struct {
	MaxAttempts int
	MaxBlankRun int
	// Backoff is slept after an empty or failed chunk read.
	Backoff time.Duration
	// PingDelay is slept before every ping; the firmware drops commands sent
	// back to back.
	PingDelay time.Duration
	Sleep     func(time.Duration)
	Logger    *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.MaxBlankRun <= 0 {
		o.MaxBlankRun = DefaultMaxBlankRun
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.PingDelay <= 0 {
		o.PingDelay = DefaultPingDelay
	}
	if o.Sleep == nil {
		o.Sleep = time.Sleep
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}
