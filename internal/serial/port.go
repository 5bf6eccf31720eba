package serial

import (
	"errors"
	"fmt"
	"strings"

	"go.bug.st/serial"
)

// DefaultBaudRate is the only rate the unit firmware speaks.
const DefaultBaudRate = 57600

var (
	// ErrPort indicates the device node is missing, busy or not a serial port.
	ErrPort = errors.New("port error")
	// ErrConfig indicates the port rejected the requested line settings.
	ErrConfig = errors.New("config error")
	// ErrIO indicates a read or write failed, usually because the unit was unplugged.
	ErrIO = errors.New("io error")
)

// Port is an exclusive handle to one serial device node.
type Port struct {
	port serial.Port
	path string
	mode serial.Mode
}

// Open opens the device node at path with 8N1 framing at DefaultBaudRate.
// Reads never block: a read with nothing buffered returns zero bytes.
func Open(path string) (*Port, error) {
	mode := serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	sp, err := serial.Open(path, &mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %w", path, ErrPort, err)
	}
	if err := sp.SetReadTimeout(0); err != nil {
		sp.Close()
		return nil, fmt.Errorf("open %s: %w: %w", path, ErrConfig, err)
	}

	return &Port{port: sp, path: path, mode: mode}, nil
}

// Path returns the device node this port was opened on.
func (p *Port) Path() string {
	return p.path
}

// BaudRate returns the currently configured baud rate.
func (p *Port) BaudRate() int {
	return p.mode.BaudRate
}

// Configure applies a baud rate to the open port.
func (p *Port) Configure(baud int) error {
	mode := p.mode
	mode.BaudRate = baud
	if err := p.port.SetMode(&mode); err != nil {
		return fmt.Errorf("configure %s @ %d: %w: %w", p.path, baud, ErrConfig, err)
	}
	p.mode = mode
	return nil
}

// Flush discards any input the OS has buffered for the port.
func (p *Port) Flush() error {
	if err := p.port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush %s: %w: %w", p.path, ErrIO, err)
	}
	return nil
}

// ReadChunk reads whatever is available into buf, returning 0 when nothing is ready.
func (p *Port) ReadChunk(buf []byte) (int, error) {
	n, err := p.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read %s: %w: %w", p.path, ErrIO, err)
	}
	return n, nil
}

// Write sends all of data to the port.
func (p *Port) Write(data []byte) error {
	for len(data) > 0 {
		n, err := p.port.Write(data)
		if err != nil {
			return fmt.Errorf("write %s: %w: %w", p.path, ErrIO, err)
		}
		if n == 0 {
			return fmt.Errorf("write %s: %w: short write", p.path, ErrIO)
		}
		data = data[n:]
	}
	return nil
}

// Close releases the device node.
func (p *Port) Close() error {
	return p.port.Close()
}

// IsDisconnect reports whether err means the unit went away rather than
// being misconfigured.
func IsDisconnect(err error) bool {
	if err == nil {
		return false
	}

	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such device") ||
		strings.Contains(msg, "input/output error") ||
		strings.Contains(msg, "device not configured") ||
		strings.Contains(msg, "broken pipe")
}
