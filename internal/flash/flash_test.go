package flash

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/chipcheck/internal/chip"
	"github.com/buckleypaul/chipcheck/internal/protocol"
)

type call struct {
	name string
	args []string
}

type fakeRunner struct {
	calls []call
	exits []int
	err   error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return CommandResult{ExitCode: -1}, f.err
	}
	code := 0
	if i := len(f.calls) - 1; i < len(f.exits) {
		code = f.exits[i]
	}
	return CommandResult{Output: "avrdude done", ExitCode: code, Duration: time.Second}, nil
}

func id(v protocol.NodeID) *protocol.NodeID { return &v }

func TestPlanMaster(t *testing.T) {
	args, err := Settings{}.Plan(chip.Green, chip.Master, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-p", "x16e5",
		"-P", "usb0",
		"-c", "atmelice_pdi",
		"-b", "57600",
		"-U", "flash:w:" + filepath.Join("hex", "green", "master.x16e5.hex"),
	}, args)
}

func TestPlanRelayWritesEEPROM(t *testing.T) {
	s := Settings{Port: "usb1", HexDir: "/opt/fw"}
	args, err := s.Plan(chip.BlueNonShiny, chip.Relay1_5, id(42))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-p", "m328p",
		"-c", "arduino",
		"-U", "flash:w:" + filepath.Join("/opt/fw", "blue", "nonshiny", "relay_mk1_5.m328p.hex"),
		"-U", "eeprom:w:" + filepath.Join("/opt/fw", "eeproms", "eeprom_42.hex"),
		"-P", "usb1",
	}, args)
}

func TestPlanRelayWithoutID(t *testing.T) {
	_, err := Settings{}.Plan(chip.BlueShiny, chip.Relay1, nil)
	assert.ErrorIs(t, err, ErrMissingID)
}

func TestHexPathPerKind(t *testing.T) {
	s := Settings{}
	assert.Equal(t, filepath.Join("hex", "blue", "shiny", "relay_mk1.m328p.hex"), s.HexPath(chip.BlueShiny, chip.Relay1))
	assert.Equal(t, filepath.Join("hex", "green", "relay_mk1_5.x16e5.hex"), s.HexPath(chip.Green, chip.Relay1_5))
}

func TestFlashSucceeds(t *testing.T) {
	r := &fakeRunner{}
	f := &Flasher{Runner: r}

	res, err := f.Flash(context.Background(), chip.Green, chip.Master, nil)
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 1, res.Attempts)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "avrdude", r.calls[0].name)
}

func TestFlashRetriesUntilSuccess(t *testing.T) {
	r := &fakeRunner{exits: []int{1, 1, 0}}
	f := &Flasher{Runner: r, Retries: 3}

	res, err := f.Flash(context.Background(), chip.BlueShiny, chip.Relay1, id(5))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, 3*time.Second, res.Duration)
	assert.True(t, res.Success())
}

func TestFlashGivesUp(t *testing.T) {
	r := &fakeRunner{exits: []int{2, 2}}
	f := &Flasher{Runner: r, Retries: 2}

	res, err := f.Flash(context.Background(), chip.Green, chip.Master, nil)
	require.ErrorIs(t, err, ErrFailed)
	assert.False(t, res.Success())
	assert.Equal(t, 2, res.ExitCode)
	assert.Len(t, r.calls, 2)
}

func TestFlashRunnerError(t *testing.T) {
	boom := errors.New("executable not found")
	f := &Flasher{Runner: &fakeRunner{err: boom}, Retries: 3}

	_, err := f.Flash(context.Background(), chip.Green, chip.Master, nil)
	require.ErrorIs(t, err, boom)
}

func TestFlashCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeRunner{}
	f := &Flasher{Runner: r}

	_, err := f.Flash(ctx, chip.Green, chip.Master, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.calls)
}

func TestFlashUsesConfiguredProgrammer(t *testing.T) {
	r := &fakeRunner{}
	f := &Flasher{Settings: Settings{Programmer: "/usr/local/bin/avrdude"}, Runner: r}

	_, err := f.Flash(context.Background(), chip.Green, chip.Master, nil)
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/avrdude", r.calls[0].name)
}

func TestExecRunnerCapturesOutputAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	var lines []string
	r := ExecRunner{OnLine: func(l string) { lines = append(lines, l) }}

	res, err := r.Run(context.Background(), "sh", "-c", "echo one; echo two >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "one")
	assert.Contains(t, res.Output, "two")
	assert.Len(t, lines, 2)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), "chipcheck-no-such-programmer")
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

func TestBuildEnvWithPathPrepends(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")
	env := buildEnvWithPath("/opt/avr/bin")

	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = e
		}
	}
	assert.Equal(t, "PATH=/opt/avr/bin"+string(filepath.ListSeparator)+"/usr/bin", path)
}
