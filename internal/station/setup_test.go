package station

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/config"
	"github.com/buckleypaul/chipcheck/internal/flash"
	"github.com/buckleypaul/chipcheck/internal/protocol/prototest"
	"github.com/buckleypaul/chipcheck/internal/publish"
	"github.com/buckleypaul/chipcheck/internal/store"
)

func TestNewRunnerFromDefaults(t *testing.T) {
	cfg := config.Defaults()
	cfg.Station = "bench-2"
	cfg.HexDir = "/opt/hex"

	r, closePub := NewRunner(cfg, store.New(t.TempDir()), nil, zerolog.Nop())
	defer closePub()

	assert.Equal(t, "bench-2", r.Station)
	assert.IsType(t, publish.Nop{}, r.Publisher)
	assert.Len(t, r.ChipOptions, 2)

	f, ok := r.Flasher.(*flash.Flasher)
	require.True(t, ok)
	assert.Equal(t, "avrdude", f.Settings.Programmer)
	assert.Equal(t, "usb0", f.Settings.Port)
	assert.Equal(t, "/opt/hex", f.Settings.HexDir)
	assert.Equal(t, 1, f.Retries)
}

func TestNewRunnerUnreachableBrokerStillRuns(t *testing.T) {
	old := publish.ConnectTimeout
	publish.ConnectTimeout = 200 * time.Millisecond
	t.Cleanup(func() { publish.ConnectTimeout = old })

	cfg := config.Defaults()
	cfg.Station = "bench-2"
	cfg.MQTT.Broker = "tcp://127.0.0.1:1"

	r, closePub := NewRunner(cfg, store.New(t.TempDir()), nil, zerolog.Nop())
	defer closePub()
	require.NotNil(t, r)
	assert.IsType(t, publish.Nop{}, r.Publisher)

	rg := newRig(t)
	rg.runner.Publisher = r.Publisher
	rg.devices["/dev/ttyUSB0"] = prototest.Master("-42")
	res, err := rg.runner.Run(context.Background(), Unit{Port: "/dev/ttyUSB0", Role: chip.Master, Target: node(1)})
	require.NoError(t, err)
	assert.Equal(t, "-42", res.Outcome["rssi"])
}

func TestNewFlasherStreamsLines(t *testing.T) {
	var lines []string
	f := NewFlasher(config.Defaults(), func(l string) { lines = append(lines, l) }, zerolog.Nop())

	runner, ok := f.Runner.(flash.ExecRunner)
	require.True(t, ok)
	runner.OnLine("avrdude done")
	assert.Equal(t, []string{"avrdude done"}, lines)
}
