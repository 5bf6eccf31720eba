package serial

import (
	"io"
	"sync"
	"time"
)

// idlePoll is how long the read loop waits after an empty read.
const idlePoll = 50 * time.Millisecond

// Monitor streams raw text from a port in the background for display.
// It is never used while a device session owns the same port.
type Monitor struct {
	port     *Port
	portName string
	baudRate int
	mu       sync.Mutex
	running  bool
	dataCh   chan string
	errCh    chan error
	done     chan struct{}
}

// NewMonitor creates a new serial monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		dataCh: make(chan string, 64),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect opens a serial port with the given baud rate.
func (m *Monitor) Connect(portName string, baudRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		m.disconnectLocked()
	}

	port, err := Open(portName)
	if err != nil {
		return err
	}
	if baudRate != port.BaudRate() {
		if err := port.Configure(baudRate); err != nil {
			port.Close()
			return err
		}
	}

	m.port = port
	m.portName = portName
	m.baudRate = baudRate
	m.running = true
	m.done = make(chan struct{})

	go m.readLoop(port, m.done)
	return nil
}

// Disconnect closes the serial port.
func (m *Monitor) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectLocked()
}

// Release disconnects if the monitor holds port, so a unit session can open
// it. It reports whether a disconnect happened.
func (m *Monitor) Release(port string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.portName != port {
		return false
	}
	m.disconnectLocked()
	return true
}

func (m *Monitor) disconnectLocked() {
	if !m.running {
		return
	}
	m.running = false
	close(m.done)
	if m.port != nil {
		m.port.Close()
		m.port = nil
	}
}

// Write sends data to the serial port.
func (m *Monitor) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return io.ErrClosedPipe
	}
	return m.port.Write(data)
}

// DataChan returns the channel that receives serial data.
func (m *Monitor) DataChan() <-chan string {
	return m.dataCh
}

// ErrChan receives the error that stopped the read loop, if any.
func (m *Monitor) ErrChan() <-chan error {
	return m.errCh
}

// Connected returns whether the monitor is connected.
func (m *Monitor) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) readLoop(port *Port, done <-chan struct{}) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := port.ReadChunk(buf)
		if err != nil {
			select {
			case <-done:
			case m.errCh <- err:
			default:
			}
			return
		}
		if n == 0 {
			time.Sleep(idlePoll)
			continue
		}
		select {
		case m.dataCh <- string(buf[:n]):
		default:
			// Drop data if channel is full
		}
	}
}
