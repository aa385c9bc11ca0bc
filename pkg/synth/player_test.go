package synth

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"variogo/pkg/backoff"
	"variogo/pkg/tone"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met")
}

func TestPlayerStartStop(t *testing.T) {
	out := &DiscardOutput{SampleRate: 8000, Pace: true}
	p := NewPlayer(New(8000, 64, nil), out, nil)

	require.NoError(t, p.Start())
	require.NoError(t, p.Start(), "second Start is a no-op")
	assert.Equal(t, 1, out.Starts())
	assert.True(t, p.Running())

	waitFor(t, func() bool { return out.Samples() > 0 })

	require.NoError(t, p.Stop())
	assert.False(t, p.Running())
	assert.False(t, p.Active())
	assert.False(t, out.Started())
	assert.NoError(t, p.Err())
	require.NoError(t, p.Stop(), "second Stop is a no-op")
}

func TestPlayerLoopFailureAndRestart(t *testing.T) {
	out := &DiscardOutput{FailAfter: 2}
	b := backoff.New(time.Hour, time.Hour)
	p := NewPlayer(New(8000, 64, nil), out, b)

	exited := make(chan error, 1)
	p.OnExit = func(err error) { exited <- err }

	require.NoError(t, p.Start())
	select {
	case err := <-exited:
		assert.ErrorIs(t, err, ErrWriteTimeout)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not terminate")
	}

	assert.True(t, p.Faulted())
	assert.ErrorIs(t, p.Err(), ErrWriteTimeout)

	// Backoff holds the restart.
	assert.ErrorIs(t, p.Restart(), ErrBackoff)

	b.RecordSuccess(backoffKey)
	out.FailAfter = 0
	require.NoError(t, p.Restart())
	assert.True(t, p.Running())
	require.NoError(t, p.Close())
}

type failingOutput struct{ DiscardOutput }

func (f *failingOutput) Start() error { return errors.New("device busy") }

func TestPlayerStartFailureBacksOff(t *testing.T) {
	b := backoff.New(time.Hour, time.Hour)
	p := NewPlayer(New(8000, 64, nil), &failingOutput{}, b)

	assert.Error(t, p.Start())
	assert.False(t, p.Active())
	assert.ErrorIs(t, p.Start(), ErrBackoff)
}

type recordingTransport struct {
	starts, stops int
	startErr      error
}

func (r *recordingTransport) Start() error { r.starts++; return r.startErr }
func (r *recordingTransport) Stop() error  { r.stops++; return nil }

func TestControllerEdges(t *testing.T) {
	prof, _, err := tone.ParseString(tone.DefaultProfileText)
	require.NoError(t, err)

	s := New(8000, 64, nil)
	tr := &recordingTransport{}
	c := NewController(prof, s, tr)

	assert.False(t, c.Update(0.0))
	assert.False(t, s.Params().Audible(), "silent gate publishes nothing")

	assert.True(t, c.Update(1.16))
	assert.Equal(t, tone.Params{FrequencyHz: 550, CycleMillis: 552, DutyPercent: 52}, s.Params())
	assert.True(t, c.Update(2.67))
	assert.Equal(t, 763.0, s.Params().FrequencyHz)
	assert.Equal(t, 1, tr.starts, "start is edge-triggered")

	assert.True(t, c.Update(math.NaN()), "NaN keeps state")

	assert.False(t, c.Update(0.1))
	assert.Equal(t, 1, tr.stops)
	assert.False(t, s.Params().Audible())

	c.Update(5)
	c.Silence()
	assert.False(t, c.Playing())
	assert.Equal(t, 2, tr.stops)
}

func TestControllerStartFailure(t *testing.T) {
	prof, _, err := tone.ParseString(tone.DefaultProfileText)
	require.NoError(t, err)

	tr := &recordingTransport{startErr: ErrBackoff}
	c := NewController(prof, New(8000, 64, nil), tr)

	assert.False(t, c.Update(3))
	assert.False(t, c.Playing())
	tr.startErr = nil
	assert.True(t, c.Update(3), "next sample retries the start edge")
	assert.Equal(t, 2, tr.starts)
}

func TestWAVOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "tone.wav")
	w := NewWAVOutput(path, 8000)
	s := New(8000, 800, nil)
	s.SetParams(tone.Params{FrequencyHz: 1000, CycleMillis: 100, DutyPercent: 50})

	require.ErrorIs(t, w.Write(make([]int16, 4)), ErrOutputStopped)
	require.NoError(t, w.Start())
	buf := make([]int16, 800)
	for range 10 {
		s.Fill(buf)
		require.NoError(t, w.Write(buf))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 8000, w.Samples())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	stream, format, err := wav.Decode(f)
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, 1, format.NumChannels)
	assert.Equal(t, 2, format.Precision)
	assert.Equal(t, 8000, int(format.SampleRate))
	assert.Equal(t, 8000, stream.Len())
}
