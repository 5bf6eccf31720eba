package protocol

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// LineReader splits the byte stream from a Transport into '\n'-terminated
// lines. Bytes after the last terminator are kept until more data arrives.
type LineReader struct {
	t       Transport
	opts    Options
	log     zerolog.Logger
	pending string
	partial []byte
	chunk   []byte
}

// NewLineReader wraps t.
func NewLineReader(t Transport, opts Options) *LineReader {
	opts = opts.withDefaults()
	return &LineReader{
		t:     t,
		opts:  opts,
		log:   *opts.Logger,
		chunk: make([]byte, chunkSize),
	}
}

// Buffered returns the received text not yet delivered as a line.
func (r *LineReader) Buffered() string {
	return r.pending
}

// NextLine returns the next complete line, terminator included. When no
// complete line is buffered it reads exactly one chunk from the transport
// and reports false; an empty read also sleeps the backoff.
func (r *LineReader) NextLine() (string, bool) {
	if i := strings.IndexByte(r.pending, '\n'); i >= 0 {
		line := r.pending[:i+1]
		r.pending = r.pending[i+1:]
		return line, true
	}

	n, err := r.t.ReadChunk(r.chunk)
	if err != nil {
		r.log.Warn().Err(err).Msg("chunk read failed")
		r.opts.Sleep(r.opts.Backoff)
		return "", false
	}
	if n == 0 {
		r.opts.Sleep(r.opts.Backoff)
		return "", false
	}

	data := append(r.partial, r.chunk[:n]...)
	r.partial = nil
	if i := lastRuneStart(data); i >= 0 && !utf8.FullRune(data[i:]) {
		// Hold a character split across reads until the rest arrives.
		r.partial = append([]byte(nil), data[i:]...)
		data = data[:i]
	}

	text := string(data)
	if valid := strings.ToValidUTF8(text, ""); len(valid) != len(text) {
		r.log.Debug().Int("dropped", len(text)-len(valid)).Msg("dropped undecodable bytes")
		text = valid
	}
	r.pending += text
	return "", false
}

// ReadUntil polls for a line containing marker. It gives up after
// MaxAttempts polls, or earlier once MaxBlankRun blank polls happen in a row.
// A poll that yields no line counts as blank.
func (r *LineReader) ReadUntil(marker string) (string, bool) {
	blanks := 0
	for attempt := 0; attempt < r.opts.MaxAttempts; attempt++ {
		line, ok := r.NextLine()
		if !ok || isBlank(line) {
			blanks++
			if blanks >= r.opts.MaxBlankRun {
				r.log.Debug().Str("marker", marker).Int("attempts", attempt+1).Msg("silent, giving up")
				return "", false
			}
			continue
		}
		blanks = 0

		r.log.Debug().Str("line", strings.TrimRight(line, "\r\n")).Msg("rx")
		if strings.Contains(line, marker) {
			return line, true
		}
	}
	r.log.Debug().Str("marker", marker).Int("attempts", r.opts.MaxAttempts).Msg("no match")
	return "", false
}

func lastRuneStart(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			return i
		}
	}
	return -1
}

func isBlank(line string) bool {
	return strings.Trim(line, "\r\n") == ""
}
