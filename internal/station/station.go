// Package station runs units through flash, test, record and publish.
package station

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/flash"
	"github.com/buckleypaul/chipcheck/internal/protocol"
	"github.com/buckleypaul/chipcheck/internal/publish"
	"github.com/buckleypaul/chipcheck/internal/store"
)

// Unit is one chip to process.
type Unit struct {
	Port       string
	Role       chip.Role
	Kind       chip.Kind
	ID         *protocol.NodeID
	Target     *protocol.NodeID
	Companion  string
	ChipNumber string
	OnlyTest   bool
}

// Result is what happened to one unit.
type Result struct {
	RunID   string
	Unit    Unit
	ChipID  int64
	FlashID int64
	Flash   flash.Result
	Flashed bool
	Outcome chip.Outcome
}

// Flasher programs a unit.
type Flasher interface {
	Flash(ctx context.Context, kind chip.Kind, role chip.Role, id *protocol.NodeID) (flash.Result, error)
}

// Runner processes units one at a time.
type Runner struct {
	Store     *store.Store
	Flasher   Flasher
	Publisher publish.Publisher
	Station   string
	// ChipOptions are passed to every session, companions included.
	ChipOptions []chip.Option
	Log         zerolog.Logger
}

// Run flashes (unless OnlyTest), tests, records and publishes one unit.
// Flash failures are recorded and the unit is still tested as unflashed;
// only failing to open the unit's port is returned as an error.
func (r *Runner) Run(ctx context.Context, u Unit) (Result, error) {
	res := Result{RunID: uuid.NewString(), Unit: u}
	base := r.Log.With().Str("run_id", res.RunID).Logger()
	log := base.With().
		Str("port", u.Port).
		Stringer("role", u.Role).
		Stringer("kind", u.Kind).
		Str("chip", u.ChipNumber).
		Logger()

	chipID, err := r.Store.RegisterChip(u.Kind.String(), u.ChipNumber)
	if err != nil {
		return res, fmt.Errorf("register chip: %w", err)
	}
	res.ChipID = chipID

	rec := store.FlashRecord{
		ChipID:    chipID,
		Software:  u.Role.String(),
		FlashedID: formatID(u.ID),
		Station:   r.Station,
		Port:      u.Port,
	}
	if u.OnlyTest {
		res.Flashed = true
		rec.Success = true
		log.Info().Msg("skipping flash")
	} else if r.Flasher == nil {
		return res, errors.New("no flasher configured")
	} else {
		fres, err := r.Flasher.Flash(ctx, u.Kind, u.Role, u.ID)
		res.Flash = fres
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		if err != nil {
			log.Error().Err(err).Msg("flash failed")
		}
		res.Flashed = err == nil && fres.Success()
		rec.Success = res.Flashed
		rec.Duration = fres.Duration.Round(time.Millisecond).String()
	}
	rec.Timestamp = time.Now()
	if res.FlashID, err = r.Store.RegisterFlash(rec); err != nil {
		return res, fmt.Errorf("register flash: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}

	session, err := chip.New(u.Port, u.ID, u.Role, u.Kind, r.chipOptions(base)...)
	if err != nil {
		log.Error().Err(err).Msg("open unit")
		return res, fmt.Errorf("open %s: %w", u.Port, err)
	}
	log.Debug().
		Str("path", session.Path()).
		Stringer("role", session.Role()).
		Stringer("kind", session.Kind()).
		Str("id", formatID(session.ID())).
		Bool("banner", session.BannerSeen()).
		Msg("session open")
	out, err := session.RunTest(u.Target, res.Flashed, u.Companion)
	if cerr := session.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("close unit")
	}
	if err != nil {
		return res, err
	}
	res.Outcome = out

	if err := r.Store.RegisterOutcome(res.FlashID, out); err != nil {
		return res, fmt.Errorf("register outcome: %w", err)
	}
	r.publish(log, res)
	log.Info().Interface("outcome", map[string]string(out)).Msg("unit done")
	return res, nil
}

// RunAll runs units in order, continuing past failures. The returned error
// joins every unit's error.
func (r *Runner) RunAll(ctx context.Context, units []Unit, done func(Result, error)) ([]Result, error) {
	var (
		results []Result
		errs    []error
	)
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := r.Run(ctx, u)
		results = append(results, res)
		if err != nil {
			errs = append(errs, fmt.Errorf("unit %d (%s): %w", i+1, u.Port, err))
		}
		if done != nil {
			done(res, err)
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) chipOptions(log zerolog.Logger) []chip.Option {
	return append([]chip.Option{chip.WithLogger(log)}, r.ChipOptions...)
}

func (r *Runner) publish(log zerolog.Logger, res Result) {
	if r.Publisher == nil {
		return
	}
	err := r.Publisher.Publish(publish.Message{
		RunID:      res.RunID,
		Station:    r.Station,
		Port:       res.Unit.Port,
		Role:       res.Unit.Role.String(),
		Kind:       res.Unit.Kind.String(),
		ChipNumber: res.Unit.ChipNumber,
		FlashedID:  formatID(res.Unit.ID),
		Outcome:    res.Outcome,
	})
	if err != nil {
		log.Warn().Err(err).Msg("publish outcome")
	}
}

func formatID(id *protocol.NodeID) string {
	if id == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*id), 10)
}

// ID identifies this host: the configured name, else an app-scoped machine
// id, else the hostname.
func ID(configured string) string {
	if configured != "" {
		return configured
	}
	if id, err := machineid.ProtectedID("chipcheck"); err == nil && len(id) >= 12 {
		return id[:12]
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// UnitFromPlan converts a validated plan entry. An empty companion falls
// back to cfg.CompanionPort.
func UnitFromPlan(p config.PlanUnit, cfg config.Config) (Unit, error) {
	role, err := chip.ParseRole(p.Role)
	if err != nil {
		return Unit{}, err
	}
	kind, err := chip.ParseKind(p.Kind)
	if err != nil {
		return Unit{}, err
	}
	u := Unit{
		Port:       p.Port,
		Role:       role,
		Kind:       kind,
		Companion:  p.Companion,
		ChipNumber: p.ChipNumber,
		OnlyTest:   p.OnlyTest,
	}
	if u.Companion == "" {
		u.Companion = cfg.CompanionPort
	}
	if p.ID != nil {
		id := protocol.NodeID(*p.ID)
		u.ID = &id
	}
	if p.Target != nil {
		t := protocol.NodeID(*p.Target)
		u.Target = &t
	}
	return u, nil
}
