package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestProfiler_TickLogsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now), WithUpdateInterval(time.Second))

	clock.advance(400 * time.Millisecond)
	assert.False(t, p.Tick())
	clock.advance(600 * time.Millisecond)
	assert.True(t, p.Tick())
	assert.False(t, p.Tick())
}

func TestProfiler_StageAverages(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithClock(clock.now))

	p.Record(StageCull, 2*time.Millisecond)
	p.Record(StageCull, 4*time.Millisecond)

	stop := p.Time(StageSubmit)
	clock.advance(5 * time.Millisecond)
	stop()

	assert.Empty(t, p.StageAverages(), "averages publish when the interval rolls")

	clock.advance(time.Second)
	assert.True(t, p.Tick())

	avgs := p.StageAverages()
	assert.Equal(t, 3*time.Millisecond, avgs[StageCull])
	assert.Equal(t, 5*time.Millisecond, avgs[StageSubmit])
	assert.NotContains(t, avgs, StageDownload)

	clock.advance(time.Second)
	assert.True(t, p.Tick())
	assert.Empty(t, p.StageAverages())
}

func TestProfiler_RecordIgnoresUnknownStage(t *testing.T) {
	p := NewProfiler()
	p.Record(Stage(99), time.Second)
	p.Record(Stage(-1), time.Second)
	assert.Equal(t, "unknown", Stage(99).String())
	assert.Equal(t, "download", StageDownload.String())
}
