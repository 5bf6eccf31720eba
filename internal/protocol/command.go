package protocol

import (
	"strconv"
	"time"
)

// BuildPing encodes the ping command for id. The trailing field is fixed by
// the firmware and must be sent as-is.
func BuildPing(id NodeID) []byte {
	return []byte(">>p:" + strconv.FormatUint(uint64(id), 16) + ":4\n")
}

// Pinger sends paced ping commands.
type Pinger struct {
	t     Transport
	delay time.Duration
	sleep func(time.Duration)
}

// NewPinger wraps t.
func NewPinger(t Transport, opts Options) *Pinger {
	opts = opts.withDefaults()
	return &Pinger{t: t, delay: opts.PingDelay, sleep: opts.Sleep}
}

// Ping waits the pacing delay and sends a ping for id.
func (p *Pinger) Ping(id NodeID) error {
	p.sleep(p.delay)
	return p.t.Write(BuildPing(id))
}
