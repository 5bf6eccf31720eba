// Package prototest provides a scripted stand-in for a unit on the other end
// of a serial link.
package prototest

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by reads and writes after Close.
var ErrClosed = errors.New("device closed")

// Device is an in-memory Transport. Output queued with Emit is delivered one
// chunk per read; Respond installs a reaction to every frame written.
type Device struct {
	mu       sync.Mutex
	chunks   [][]byte
	boot     [][]byte
	writes   []string
	onWrite  func(d *Device, frame string)
	readErr  error
	closeErr error
	reads    int
	flushes  int
	closed   bool
}

// NewDevice returns a silent device.
func NewDevice() *Device {
	return &Device{}
}

// Emit queues each string as one chunk of output.
func (d *Device) Emit(chunks ...string) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range chunks {
		d.chunks = append(d.chunks, []byte(c))
	}
	return d
}

// EmitAfterFlush queues output that appears once the host flushes, the way a
// board that resets on port open prints its banner after the host has
// already discarded stale input.
func (d *Device) EmitAfterFlush(chunks ...string) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range chunks {
		d.boot = append(d.boot, []byte(c))
	}
	return d
}

// Respond sets a handler run for every write. The handler may call Emit.
func (d *Device) Respond(fn func(d *Device, frame string)) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onWrite = fn
	return d
}

// FailReads makes every subsequent read return err.
func (d *Device) FailReads(err error) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErr = err
	return d
}

// FailClose makes Close return err after marking the device closed.
func (d *Device) FailClose(err error) *Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeErr = err
	return d
}

// ReadChunk implements protocol.Transport.
func (d *Device) ReadChunk(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reads++
	if d.closed {
		return 0, ErrClosed
	}
	if d.readErr != nil {
		return 0, d.readErr
	}
	if len(d.chunks) == 0 {
		return 0, nil
	}
	n := copy(buf, d.chunks[0])
	if n < len(d.chunks[0]) {
		d.chunks[0] = d.chunks[0][n:]
	} else {
		d.chunks = d.chunks[1:]
	}
	return n, nil
}

// Write implements protocol.Transport.
func (d *Device) Write(data []byte) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	frame := string(data)
	d.writes = append(d.writes, frame)
	fn := d.onWrite
	d.mu.Unlock()

	if fn != nil {
		fn(d, frame)
	}
	return nil
}

// Flush implements protocol.Transport by dropping queued output.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	d.chunks, d.boot = d.boot, nil
	return nil
}

// Close marks the device closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return io.ErrClosedPipe
	}
	d.closed = true
	return d.closeErr
}

// Writes returns every frame written so far.
func (d *Device) Writes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.writes...)
}

// Reads returns how many chunk reads were attempted.
func (d *Device) Reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reads
}

// Flushes returns how many times Flush was called.
func (d *Device) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}

// Closed reports whether Close was called.
func (d *Device) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Pending returns the output not yet read, joined.
func (d *Device) Pending() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	for _, c := range d.chunks {
		b.Write(c)
	}
	return b.String()
}

// Master returns a device that prints the master banner after the first
// flush and answers every ping with an ack and one telemetry line, cycling
// through values.
func Master(values ...string) *Device {
	d := NewDevice().EmitAfterFlush("i'm a master\n")
	return d.Respond(RSSIResponder(values...))
}

// RSSIResponder answers pings with "<<0" then "rssi is <v>", cycling through
// values. With no values it answers nothing.
func RSSIResponder(values ...string) func(*Device, string) {
	i := 0
	return func(d *Device, frame string) {
		if !strings.HasPrefix(frame, ">>p:") || len(values) == 0 {
			return
		}
		v := values[i%len(values)]
		i++
		d.Emit("<<0\n", "rssi is "+v+"\n")
	}
}

// Sleeper records requested sleeps instead of sleeping.
type Sleeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

// Sleep records d.
func (s *Sleeper) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
}

// Calls returns the recorded durations.
func (s *Sleeper) Calls() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

// Count returns how many recorded sleeps equal d.
func (s *Sleeper) Count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == d {
			n++
		}
	}
	return n
}
