package serial

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestSortPortsUSBFirst(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS1"},
		{Name: "/dev/ttyUSB1", IsUSB: true},
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true},
	}
	sortPorts(ports)

	want := []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyS0", "/dev/ttyS1"}
	for i, name := range want {
		if ports[i].Name != name {
			t.Errorf("ports[%d] = %s, want %s", i, ports[i].Name, name)
		}
	}
}

func TestIsDisconnect(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("read /dev/ttyUSB0: input/output error"), true},
		{fmt.Errorf("write: %w: %w", ErrIO, errors.New("no such device")), true},
		{errors.New("write /dev/ttyUSB0: broken pipe"), true},
		{errors.New("invalid baud rate"), false},
	}
	for _, c := range cases {
		if got := IsDisconnect(c.err); got != c.want {
			t.Errorf("IsDisconnect(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestMonitorIdle(t *testing.T) {
	m := NewMonitor()
	if m.Connected() {
		t.Fatal("new monitor must not be connected")
	}
	if m.Release("/dev/ttyUSB0") {
		t.Fatal("Release on an idle monitor must report false")
	}
	if err := m.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
		t.Fatalf("expected ErrClosedPipe, got %v", err)
	}
	m.Disconnect()
}

func TestOpenMissingPort(t *testing.T) {
	_, err := Open("/dev/chipcheck-does-not-exist")
	if !errors.Is(err, ErrPort) {
		t.Fatalf("expected ErrPort, got %v", err)
	}
}
