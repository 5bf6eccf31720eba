// Package flash writes firmware and per-unit EEPROM images with avrdude.
package flash

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/protocol"
)

var (
	// ErrMissingID is returned when a relay is flashed without an ID; its
	// EEPROM image is chosen by ID.
	ErrMissingID = errors.New("relay flash needs an id")
	// ErrFailed is returned when every attempt exited non-zero.
	ErrFailed = errors.New("flash failed")
)

const (
	DefaultProgrammer = "avrdude"
	DefaultPort       = "usb0"
	DefaultHexDir     = "hex"
	masterBaud        = "57600"
)

// Settings locates the programmer and firmware images.
type Settings struct {
	Programmer string
	Port       string
	HexDir     string
}

func (s Settings) withDefaults() Settings {
	if s.Programmer == "" {
		s.Programmer = DefaultProgrammer
	}
	if s.Port == "" {
		s.Port = DefaultPort
	}
	if s.HexDir == "" {
		s.HexDir = DefaultHexDir
	}
	return s
}

// Part returns the avrdude part name for kind.
func Part(kind chip.Kind) string {
	if kind == chip.Green {
		return "x16e5"
	}
	return "m328p"
}

// ProgrammerType returns the avrdude programmer id for kind.
func ProgrammerType(kind chip.Kind) string {
	if kind == chip.Green {
		return "atmelice_pdi"
	}
	return "arduino"
}

func kindDir(kind chip.Kind) string {
	switch kind {
	case chip.BlueShiny:
		return filepath.Join("blue", "shiny")
	case chip.BlueNonShiny:
		return filepath.Join("blue", "nonshiny")
	default:
		return "green"
	}
}

func firmwareName(role chip.Role) string {
	switch role {
	case chip.Relay1:
		return "relay_mk1"
	case chip.Relay1_5:
		return "relay_mk1_5"
	default:
		return "master"
	}
}

// HexPath is the firmware image for kind and role.
func (s Settings) HexPath(kind chip.Kind, role chip.Role) string {
	s = s.withDefaults()
	return filepath.Join(s.HexDir, kindDir(kind), firmwareName(role)+"."+Part(kind)+".hex")
}

// EEPROMPath is the EEPROM image carrying id.
func (s Settings) EEPROMPath(id protocol.NodeID) string {
	s = s.withDefaults()
	return filepath.Join(s.HexDir, "eeproms", "eeprom_"+strconv.FormatUint(uint64(id), 10)+".hex")
}

// Plan returns the programmer arguments for one unit.
func (s Settings) Plan(kind chip.Kind, role chip.Role, id *protocol.NodeID) ([]string, error) {
	s = s.withDefaults()
	part := Part(kind)
	prog := ProgrammerType(kind)
	hex := s.HexPath(kind, role)

	if !role.IsRelay() {
		return []string{
			"-p", part,
			"-P", s.Port,
			"-c", prog,
			"-b", masterBaud,
			"-U", "flash:w:" + hex,
		}, nil
	}
	if id == nil {
		return nil, ErrMissingID
	}
	return []string{
		"-p", part,
		"-c", prog,
		"-U", "flash:w:" + hex,
		"-U", "eeprom:w:" + s.EEPROMPath(*id),
		"-P", s.Port,
	}, nil
}

// Result summarises a flash across its attempts.
type Result struct {
	Args     []string
	Output   string
	ExitCode int
	Attempts int
	Duration time.Duration
}

func (r Result) Success() bool {
	return r.Attempts > 0 && r.ExitCode == 0
}

// Flasher runs the programmer, retrying failed attempts.
type Flasher struct {
	Settings
	Runner  Runner
	Retries int
	Log     zerolog.Logger
}

// Flash programs one unit. Output and timing of the last attempt are kept;
// Duration covers all attempts.
func (f *Flasher) Flash(ctx context.Context, kind chip.Kind, role chip.Role, id *protocol.NodeID) (Result, error) {
	s := f.Settings.withDefaults()
	args, err := s.Plan(kind, role, id)
	if err != nil {
		return Result{}, err
	}

	runner := f.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	attempts := f.Retries
	if attempts < 1 {
		attempts = 1
	}

	log := f.Log.With().Stringer("kind", kind).Stringer("role", role).Logger()
	res := Result{Args: args}
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log.Info().Int("attempt", i+1).Strs("args", args).Msg("flashing")

		run, err := runner.Run(ctx, s.Programmer, args...)
		res.Attempts++
		res.Output = run.Output
		res.ExitCode = run.ExitCode
		res.Duration += run.Duration
		if err != nil {
			log.Error().Err(err).Msg("programmer did not run")
			return res, fmt.Errorf("run %s: %w", s.Programmer, err)
		}
		if run.ExitCode == 0 {
			log.Info().Dur("duration", res.Duration).Msg("flash ok")
			return res, nil
		}
		log.Warn().Int("exit_code", run.ExitCode).Msg("flash attempt failed")
	}
	return res, fmt.Errorf("%w: %s exited %d after %d attempt(s)", ErrFailed, s.Programmer, res.ExitCode, res.Attempts)
}
