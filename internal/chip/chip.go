// Package chip runs a test session against one unit over its serial port.
package chip

import (
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/protocol"
	"github.com/buckleypaul/chipcheck/internal/serial"
)

// ErrSessionDone is returned by RunTest on a session that already ran.
var ErrSessionDone = errors.New("session already tested")

// State is the session lifecycle position.
type State int

const (
	StateOpening State = iota
	StateAwaitingBanner
	StateReady
	StateTesting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateAwaitingBanner:
		return "awaiting-banner"
	case StateReady:
		return "ready"
	case StateTesting:
		return "testing"
	case StateDone:
		return "done"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Conn is an open, configured device link.
type Conn interface {
	protocol.Transport
	Close() error
}

// Opener opens path at baud. Companion sessions use the same opener.
type Opener func(path string, baud int) (Conn, error)

// OpenSerial is the default Opener.
func OpenSerial(path string, baud int) (Conn, error) {
	p, err := serial.Open(path)
	if err != nil {
		return nil, err
	}
	if p.BaudRate() != baud {
		if err := p.Configure(baud); err != nil {
			p.Close()
			return nil, err
		}
	}
	return p, nil
}

const DefaultSamples = 4

type settings struct {
	baud    int
	samples int
	opener  Opener
	proto   protocol.Options
	log     zerolog.Logger
}

// Option configures New.
type Option func(*settings)

func WithBaudRate(baud int) Option {
	return func(s *settings) {
		if baud > 0 {
			s.baud = baud
		}
	}
}

// WithSamples sets how many ping cycles one RSSI measurement averages.
func WithSamples(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.samples = n
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *settings) { s.log = l }
}

func WithOpener(o Opener) Option {
	return func(s *settings) {
		if o != nil {
			s.opener = o
		}
	}
}

// WithProtocolOptions tunes the reader and sampler. Its Logger is replaced
// by the session logger.
func WithProtocolOptions(o protocol.Options) Option {
	return func(s *settings) { s.proto = o }
}

// Chip is one test session. It owns its connection until Close.
type Chip struct {
	path   string
	id     *protocol.NodeID
	role   Role
	kind   Kind
	caps   capabilities
	opts   []Option
	cfg    settings
	conn   Conn
	engine *protocol.Engine
	log    zerolog.Logger

	state      State
	bannerSeen bool
}

// New opens path and brings the unit to Ready. Only failing to open or
// configure the port is an error; a master that never prints its banner is
// logged and used anyway.
func New(path string, id *protocol.NodeID, role Role, kind Kind, opts ...Option) (*Chip, error) {
	cfg := settings{
		baud:    serial.DefaultBaudRate,
		samples: DefaultSamples,
		opener:  OpenSerial,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	c := &Chip{
		path:  path,
		id:    id,
		role:  role,
		kind:  kind,
		caps:  role.capabilities(),
		opts:  opts,
		cfg:   cfg,
		state: StateOpening,
	}
	c.log = cfg.log.With().Str("port", path).Stringer("role", role).Logger()

	conn, err := cfg.opener(path, cfg.baud)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	popts := cfg.proto
	popts.Logger = &c.log
	c.engine = protocol.New(conn, popts)

	c.startup()
	return c, nil
}

func (c *Chip) startup() {
	c.engine.Flush()
	if c.caps.needsHandshake {
		c.state = StateAwaitingBanner
		if _, ok := c.engine.ReadUntil(protocol.MarkerBanner); ok {
			c.bannerSeen = true
			c.log.Info().Msg("master banner received")
		} else {
			c.log.Warn().Msg("no master banner; continuing")
		}
	}
	c.state = StateReady
}

func (c *Chip) Path() string         { return c.path }
func (c *Chip) Role() Role           { return c.role }
func (c *Chip) Kind() Kind           { return c.kind }
func (c *Chip) ID() *protocol.NodeID { return c.id }
func (c *Chip) State() State         { return c.state }
func (c *Chip) BannerSeen() bool     { return c.bannerSeen }

// RunTest records flashed and, for a flashed unit, measures RSSI. A session
// tests once; later calls return ErrSessionDone.
func (c *Chip) RunTest(target *protocol.NodeID, flashed bool, companionPort string) (Outcome, error) {
	if c.state == StateDone {
		return nil, ErrSessionDone
	}
	c.state = StateTesting
	defer func() { c.state = StateDone }()

	out := Outcome{KeyFlashed: strconv.FormatBool(flashed)}
	if !flashed {
		c.log.Info().Msg("unit not flashed; skipping rssi")
		return out, nil
	}

	rssi, ok := c.measure(target, companionPort)
	out[KeyRSSI] = formatRSSI(rssi, ok)
	c.log.Info().Str("rssi", out[KeyRSSI]).Msg("test finished")
	return out, nil
}

func (c *Chip) measure(target *protocol.NodeID, companionPort string) (int, bool) {
	switch c.caps.topology {
	case topologyCompanion:
		return c.measureViaCompanion(companionPort)
	default:
		if target == nil {
			c.log.Error().Msg("no ping target for master test")
			return 0, false
		}
		return c.engine.AverageRSSI(c.cfg.samples, *target)
	}
}

func (c *Chip) measureViaCompanion(companionPort string) (int, bool) {
	if c.id == nil {
		c.log.Error().Msg("relay has no id to be pinged by")
		return 0, false
	}
	if companionPort == "" {
		c.log.Error().Msg("relay test needs a companion master port")
		return 0, false
	}

	// The kind of the companion never reaches the wire.
	companion, err := New(companionPort, nil, Master, Green, c.opts...)
	if err != nil {
		c.log.Error().Err(err).Str("companion", companionPort).Msg("open companion master")
		return 0, false
	}
	defer companion.Close()

	return companion.engine.AverageRSSI(c.cfg.samples, *c.id)
}

// Close releases the port. The session stays Done.
func (c *Chip) Close() error {
	c.state = StateDone
	if c.conn == nil {
		return nil
	}
	conn := c.conn
	c.conn = nil
	return conn.Close()
}
