package protocol

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	MarkerBanner = "i'm a master"
	MarkerAck    = "<<0"
	MarkerRSSI   = "rssi is"
)

var numberRe = regexp.MustCompile(`[+-]?\d+`)

// ParseRSSI sums every signed integer on a telemetry line. Each numeral is
// one sample, so a line with two numbers counts twice.
func ParseRSSI(line string) (sum, samples int) {
	for _, m := range numberRe.FindAllString(line, -1) {
		v, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		sum += v
		samples++
	}
	return sum, samples
}

// Sampler runs ping/measure cycles against one target.
type Sampler struct {
	t      Transport
	reader *LineReader
	pinger *Pinger
	log    zerolog.Logger
}

// NewSampler builds a sampler sharing reader's line buffer.
func NewSampler(t Transport, reader *LineReader, opts Options) *Sampler {
	opts = opts.withDefaults()
	return &Sampler{
		t:      t,
		reader: reader,
		pinger: NewPinger(t, opts),
		log:    *opts.Logger,
	}
}

// AverageRSSI pings target times times and returns the truncated mean of
// every RSSI value read back. It reports false when no cycle produced one.
func (s *Sampler) AverageRSSI(times int, target NodeID) (int, bool) {
	if err := s.t.Flush(); err != nil {
		s.log.Warn().Err(err).Msg("flush before sampling failed")
	}

	var sum, samples int
	for cycle := 0; cycle < times; cycle++ {
		if err := s.pinger.Ping(target); err != nil {
			s.log.Warn().Err(err).Int("cycle", cycle).Msg("ping not sent")
			continue
		}
		if _, ok := s.reader.ReadUntil(MarkerAck); !ok {
			s.log.Debug().Int("cycle", cycle).Msg("no ack")
		}

		line, ok := s.reader.ReadUntil(MarkerRSSI)
		if !ok {
			s.log.Info().
				Int("cycle", cycle).
				Str("buffered", strings.TrimSpace(s.reader.Buffered())).
				Msg("nothing responded")
			continue
		}
		lineSum, n := ParseRSSI(line)
		s.log.Debug().Int("cycle", cycle).Int("sum", lineSum).Int("values", n).Msg("ping rssi")
		sum += lineSum
		samples += n
	}

	if samples == 0 {
		return 0, false
	}
	return sum / samples, true
}

// Engine bundles the reader and sampler over one transport.
type Engine struct {
	*LineReader
	*Sampler
	t Transport
}

// New builds an engine over t.
func New(t Transport, opts Options) *Engine {
	reader := NewLineReader(t, opts)
	return &Engine{
		LineReader: reader,
		Sampler:    NewSampler(t, reader, opts),
		t:          t,
	}
}

// Flush drops stale input, logging instead of failing.
func (e *Engine) Flush() {
	if err := e.t.Flush(); err != nil {
		e.LineReader.log.Warn().Err(err).Msg("flush failed")
	}
}
