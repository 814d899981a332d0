package worker

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestProgress returns a tracker whose wall clock reads start+elapsed.
func newTestProgress(total int, fps float64, enabled bool, elapsed time.Duration) (*Progress, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewProgress(total, fps, enabled)
	p.output = &buf
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.start = start
	p.now = func() time.Time { return start.Add(elapsed) }
	return p, &buf
}

func frameResult(i int, err error) Result {
	return Result{Task: Task{Index: i, Timestamp: time.Duration(i) * 40 * time.Millisecond}, Err: err}
}

func TestProgress_PlayableFollowsContiguousPrefix(t *testing.T) {
	p, _ := newTestProgress(5, 25, false, time.Second)

	p.Record(frameResult(1, nil))
	assert.Zero(t, p.Stats().Playable, "frame 0 missing")

	p.Record(frameResult(0, nil))
	assert.Equal(t, 80*time.Millisecond, p.Stats().Playable)

	p.Record(frameResult(3, nil))
	assert.Equal(t, 80*time.Millisecond, p.Stats().Playable, "gap at frame 2")

	p.Record(frameResult(2, errors.New("boom")))
	s := p.Stats()
	assert.Equal(t, 80*time.Millisecond, s.Playable, "failed frame blocks the prefix")
	assert.Equal(t, 4, s.Completed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 200*time.Millisecond, s.Duration)
}

func TestProgress_RateAgainstTarget(t *testing.T) {
	p, _ := newTestProgress(10, 25, false, 2*time.Second)
	for i := 0; i < 4; i++ {
		p.Record(frameResult(i, nil))
	}
	p.Record(frameResult(4, errors.New("boom")))

	s := p.Stats()
	assert.InDelta(t, 2.0, s.FPS, 1e-9, "failed frames do not count as rendered")
	assert.Equal(t, 25.0, s.TargetFPS)
	assert.InDelta(t, 0.08, s.Realtime(), 1e-9)
	assert.Equal(t, 2*time.Second, s.Wall)
}

func TestStats_RealtimeWithoutTarget(t *testing.T) {
	assert.Zero(t, Stats{FPS: 10}.Realtime())
}

func TestProgress_Print(t *testing.T) {
	p, buf := newTestProgress(4, 25, true, time.Second)

	p.Record(frameResult(0, nil))
	p.Record(frameResult(1, errors.New("boom")))

	line := buf.String()[strings.LastIndex(buf.String(), "\r"):]
	assert.Contains(t, line, "2/4 frames")
	assert.Contains(t, line, "(1 failed)")
	assert.Contains(t, line, "0.04s/0.16s playable")
	assert.Contains(t, line, "1.0 fps (0.04x realtime)")
	assert.Contains(t, line, "ETA 2s")
	assert.Equal(t, 15, strings.Count(line, "█"))
}

func TestProgress_Done(t *testing.T) {
	p, buf := newTestProgress(2, 10, true, 3*time.Second)
	p.Record(frameResult(0, nil))
	p.Record(frameResult(1, nil))
	buf.Reset()

	p.Done()

	out := buf.String()
	assert.Contains(t, out, "done in 3s")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestProgress_Summary(t *testing.T) {
	p, _ := newTestProgress(3, 25, false, 1500*time.Millisecond)
	p.Record(frameResult(0, nil))
	p.Record(frameResult(1, nil))
	p.Record(frameResult(2, errors.New("boom")))

	assert.Equal(t,
		"Rendered 2/3 frames (1 failed), 0.08s of 0.12s playable, in 1.5s at 1.3 fps (target 25 fps)",
		p.Summary())
}

func TestProgress_Disabled(t *testing.T) {
	p, buf := newTestProgress(10, 25, false, time.Second)
	p.Record(frameResult(0, nil))
	assert.Zero(t, buf.Len())
}

func TestProgress_ZeroTotal(t *testing.T) {
	p, buf := newTestProgress(0, 0, true, 0)
	require.NotPanics(t, p.Done)
	assert.Contains(t, buf.String(), "0/0 frames")
}

func TestProgress_CallbackFromPool(t *testing.T) {
	p, _ := newTestProgress(4, 25, false, time.Second)
	pool := New(Config{Workers: 2, Generator: &mockGenerator{}, OnProgress: p.Callback()})

	pool.Run(context.Background(), frameTasks(4))

	s := p.Stats()
	assert.Equal(t, 4, s.Completed)
	assert.Equal(t, 160*time.Millisecond, s.Playable)
}
