package protocol

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/buckleypaul/chipcheck/internal/protocol/prototest"
)

func newTestReader(dev *prototest.Device, sl *prototest.Sleeper) *LineReader {
	return NewLineReader(dev, Options{Sleep: sl.Sleep})
}

func TestNextLineRetainsRemainder(t *testing.T) {
	dev := prototest.NewDevice().Emit("A\nBC")
	sl := &prototest.Sleeper{}
	r := newTestReader(dev, sl)

	line, ok := r.NextLine()
	require.False(t, ok, "first poll only reads a chunk")
	require.Empty(t, line)

	line, ok = r.NextLine()
	require.True(t, ok)
	require.Equal(t, "A\n", line)
	require.Equal(t, "BC", r.Buffered())

	dev.Emit("D\n")
	_, ok = r.NextLine()
	require.False(t, ok)

	line, ok = r.NextLine()
	require.True(t, ok)
	require.Equal(t, "BCD\n", line)
	require.Empty(t, r.Buffered())
}

func TestNextLineConservesStream(t *testing.T) {
	chunks := []string{"he", "llo\nwor", "ld\n\nrssi", " is -4", "2\ntail"}
	dev := prototest.NewDevice().Emit(chunks...)
	r := newTestReader(dev, &prototest.Sleeper{})

	var got strings.Builder
	for i := 0; i < 20; i++ {
		if line, ok := r.NextLine(); ok {
			got.WriteString(line)
		}
	}
	got.WriteString(r.Buffered())
	require.Equal(t, strings.Join(chunks, ""), got.String())
}

func TestNextLineBacksOffOnEmptyRead(t *testing.T) {
	sl := &prototest.Sleeper{}
	r := newTestReader(prototest.NewDevice(), sl)

	_, ok := r.NextLine()
	require.False(t, ok)
	require.Equal(t, []time.Duration{DefaultBackoff}, sl.Calls())
}

func TestNextLineNoBackoffWhenDataArrives(t *testing.T) {
	sl := &prototest.Sleeper{}
	r := newTestReader(prototest.NewDevice().Emit("partial"), sl)

	_, ok := r.NextLine()
	require.False(t, ok)
	require.Empty(t, sl.Calls())
	require.Equal(t, "partial", r.Buffered())
}

func TestNextLineDropsInvalidBytes(t *testing.T) {
	r := newTestReader(prototest.NewDevice().Emit("ok\xff\xfe\n"), &prototest.Sleeper{})

	r.NextLine()
	line, ok := r.NextLine()
	require.True(t, ok)
	require.Equal(t, "ok\n", line)
}

func TestNextLineKeepsRuneSplitAcrossReads(t *testing.T) {
	dev := prototest.NewDevice().Emit("rssi is \xc2", "\xb0 -42\n")
	r := newTestReader(dev, &prototest.Sleeper{})

	_, ok := r.NextLine()
	require.False(t, ok)
	require.Equal(t, "rssi is ", r.Buffered())

	_, ok = r.NextLine()
	require.False(t, ok)
	line, ok := r.NextLine()
	require.True(t, ok)
	require.Equal(t, "rssi is \u00b0 -42\n", line)
}

func TestNextLineDropsUnfinishedRune(t *testing.T) {
	dev := prototest.NewDevice().Emit("a\xe2\x82", "b\n")
	r := newTestReader(dev, &prototest.Sleeper{})

	r.NextLine()
	r.NextLine()
	line, ok := r.NextLine()
	require.True(t, ok)
	require.Equal(t, "ab\n", line)
}

func TestNextLineReadErrorIsNotFatal(t *testing.T) {
	sl := &prototest.Sleeper{}
	dev := prototest.NewDevice().FailReads(errors.New("unplugged"))
	r := newTestReader(dev, sl)

	_, ok := r.NextLine()
	require.False(t, ok)
	require.Equal(t, 1, sl.Count(DefaultBackoff))
}

func TestReadUntilMatchesSubstring(t *testing.T) {
	dev := prototest.NewDevice().Emit("noise\n<<0 from 12\nrssi is -40\n")
	r := newTestReader(dev, &prototest.Sleeper{})

	line, ok := r.ReadUntil("<<0")
	require.True(t, ok)
	require.Equal(t, "<<0 from 12\n", line)
	require.Equal(t, "rssi is -40\n", r.Buffered())
}

func TestReadUntilGivesUpOnSilence(t *testing.T) {
	dev := prototest.NewDevice()
	sl := &prototest.Sleeper{}
	r := newTestReader(dev, sl)

	_, ok := r.ReadUntil("anything")
	require.False(t, ok)
	require.Equal(t, DefaultMaxBlankRun, dev.Reads())
	require.Equal(t, DefaultMaxBlankRun, sl.Count(DefaultBackoff))
}

func TestReadUntilBlankLinesCountTowardsRun(t *testing.T) {
	// one chunk read, then five blank lines in a row
	dev := prototest.NewDevice().Emit("\n\r\n\r\n\nmatch\n")
	r := newTestReader(dev, &prototest.Sleeper{})

	_, ok := r.ReadUntil("match")
	require.False(t, ok)
	require.Equal(t, "match\n", r.Buffered())
}

func TestReadUntilNonBlankResetsRun(t *testing.T) {
	dev := prototest.NewDevice().Emit("\n\n\nx\n\n\n\n\nmatch\n")
	r := newTestReader(dev, &prototest.Sleeper{})

	line, ok := r.ReadUntil("match")
	require.True(t, ok)
	require.Equal(t, "match\n", line)
}

func TestReadUntilBoundedByAttempts(t *testing.T) {
	dev := prototest.NewDevice().Emit(strings.Repeat("chatter\n", 40))
	r := newTestReader(dev, &prototest.Sleeper{})

	_, ok := r.ReadUntil("rssi is")
	require.False(t, ok)
	require.Equal(t, 1, dev.Reads())
	// one poll read the chunk, 29 consumed lines
	require.Equal(t, 11, strings.Count(r.Buffered(), "\n"))
}

func TestReadUntilCustomLimits(t *testing.T) {
	dev := prototest.NewDevice()
	r := NewLineReader(dev, Options{MaxAttempts: 3, MaxBlankRun: 10, Sleep: (&prototest.Sleeper{}).Sleep})

	_, ok := r.ReadUntil("x")
	require.False(t, ok)
	require.Equal(t, 3, dev.Reads())
}
