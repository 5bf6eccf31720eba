package station

import (
	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/flash"
	"github.com/buckleypaul/chipcheck/internal/logger"
	"github.com/buckleypaul/chipcheck/internal/publish"
	"github.com/buckleypaul/chipcheck/internal/store"
)

// NewRunner wires a Runner from configuration. onLine, if set, receives
// programmer output. The returned func closes the publisher. An unreachable
// broker only disables publishing.
func NewRunner(cfg config.Config, st *store.Store, onLine func(string), log zerolog.Logger) (*Runner, func()) {
	id := ID(cfg.Station)
	pub := publish.New(cfg.MQTT, id, logger.Component(log, "publish"))

	r := &Runner{
		Store:     st,
		Flasher:   NewFlasher(cfg, onLine, log),
		Publisher: pub,
		Station:   id,
		ChipOptions: []chip.Option{
			chip.WithBaudRate(cfg.SerialBaudRate),
			chip.WithSamples(cfg.Samples),
		},
		Log: log.With().Str("station", id).Logger(),
	}
	return r, pub.Close
}

// NewFlasher builds the programmer front end from configuration. onLine, if
// set, receives programmer output as it streams.
func NewFlasher(cfg config.Config, onLine func(string), log zerolog.Logger) *flash.Flasher {
	return &flash.Flasher{
		Settings: flash.Settings{
			Programmer: cfg.Programmer,
			Port:       cfg.ProgrammerPort,
			HexDir:     cfg.HexDir,
		},
		Runner:  flash.ExecRunner{ToolDir: cfg.ToolDir, OnLine: onLine},
		Retries: cfg.FlashRetries,
		Log:     logger.Component(log, "flash"),
	}
}
