package occlusion_query

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerySet struct {
	capacity uint32
	samples  map[uint32]uint64
	reads    []Segment
	failNext error
	failAt   int
	released bool
}

func newFakeQuerySet(capacity uint32) *fakeQuerySet {
	return &fakeQuerySet{capacity: capacity, samples: make(map[uint32]uint64)}
}

func (s *fakeQuerySet) Capacity() uint32 { return s.capacity }

func (s *fakeQuerySet) ReadResults(first, count uint32, dst []uint64) error {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if s.failAt > 0 && len(s.reads)+1 == s.failAt {
		s.failAt = 0
		return errors.New("read failed")
	}
	s.reads = append(s.reads, Segment{First: first, Count: count})
	for i := range count {
		dst[i] = s.samples[first+i]
	}
	return nil
}

func (s *fakeQuerySet) Release() { s.released = true }

type fakeRecorder struct {
	resets int
	begins []uint32
	ends   []uint32
}

func (r *fakeRecorder) ResetQueries(_ common.QuerySet, _, _ uint32) { r.resets++ }
func (r *fakeRecorder) BeginQuery(_ common.QuerySet, slot uint32)   { r.begins = append(r.begins, slot) }
func (r *fakeRecorder) EndQuery(_ common.QuerySet, slot uint32)     { r.ends = append(r.ends, slot) }

func newPipeline(t *testing.T, maxEntities, maxViews int, options ...QueryPipelineBuilderOption) (QueryPipeline, *fakeQuerySet) {
	t.Helper()
	set := newFakeQuerySet(uint32(maxEntities * maxViews))
	q, err := NewQueryPipeline(set, maxEntities, maxViews, options...)
	require.NoError(t, err)
	return q, set
}

// recordFrame runs a depth pre-pass that queries the given entities of view 0.
func recordFrame(t *testing.T, q QueryPipeline, rec *fakeRecorder, view int, entities ...int) {
	t.Helper()
	require.NoError(t, q.Reset(rec))
	for _, e := range entities {
		require.NoError(t, q.Begin(rec, view, e))
		require.NoError(t, q.End(rec, view, e))
	}
	q.FinishRecording()
}

func TestDownloadCoalescesRuns(t *testing.T) {
	q, set := newPipeline(t, 10, 1)
	rec := &fakeRecorder{}

	recordFrame(t, q, rec, 0, 2, 3, 4, 9)
	assert.Equal(t, []uint32{2, 3, 4, 9}, rec.begins)
	assert.Equal(t, rec.begins, rec.ends)

	n, err := q.Download()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []Segment{{First: 2, Count: 3}, {First: 9, Count: 1}}, set.reads)
	assert.Equal(t, set.reads, q.LastSegments())
	assert.Equal(t, StateIdle, q.State())
}

func TestDownloadCoversExactlyThePendingSlots(t *testing.T) {
	const maxEntities = 16
	q, set := newPipeline(t, maxEntities, 2)
	rec := &fakeRecorder{}

	require.NoError(t, q.Reset(rec))
	queried := map[uint32]bool{}
	for _, vs := range [][2]int{{0, 0}, {0, 1}, {0, 5}, {0, 15}, {1, 0}, {1, 1}, {1, 2}, {1, 15}} {
		require.NoError(t, q.Begin(rec, vs[0], vs[1]))
		require.NoError(t, q.End(rec, vs[0], vs[1]))
		slot, err := q.Slot(vs[0], vs[1])
		require.NoError(t, err)
		queried[slot] = true
	}
	q.FinishRecording()

	_, err := q.Download()
	require.NoError(t, err)

	covered := map[uint32]int{}
	for _, seg := range set.reads {
		for i := seg.First; i < seg.First+seg.Count; i++ {
			covered[i]++
		}
	}
	for slot := range queried {
		assert.Equal(t, 1, covered[slot], "slot %d", slot)
	}
	assert.Len(t, covered, len(queried))
	// slots 15 and 16 are adjacent across the view boundary.
	assert.Equal(t, []Segment{{0, 2}, {5, 1}, {15, 4}, {31, 1}}, set.reads)
}

func TestIsVisibleIsOneFrameStale(t *testing.T) {
	q, set := newPipeline(t, 4, 1)
	rec := &fakeRecorder{}

	assert.True(t, q.IsVisible(0, 1), "unknown slots are visible")

	set.samples[1] = 0
	set.samples[2] = 12
	recordFrame(t, q, rec, 0, 1, 2)
	assert.True(t, q.IsVisible(0, 1), "results of the frame being recorded are not visible yet")

	_, err := q.Download()
	require.NoError(t, err)
	assert.False(t, q.IsVisible(0, 1))
	assert.True(t, q.IsVisible(0, 2))
	assert.True(t, q.IsVisible(0, 3), "never queried")

	// Next frame: slot 1 becomes visible on the GPU, but the answer only changes after download.
	set.samples[1] = 40
	recordFrame(t, q, rec, 0, 1)
	assert.False(t, q.IsVisible(0, 1))

	_, err = q.Download()
	require.NoError(t, err)
	assert.True(t, q.IsVisible(0, 1))
	assert.True(t, q.IsVisible(0, 2), "not queried last frame, so unknown")
}

func TestDownloadNoOps(t *testing.T) {
	q, set := newPipeline(t, 4, 1)
	rec := &fakeRecorder{}

	n, err := q.Download()
	require.NoError(t, err)
	assert.Zero(t, n, "nothing recorded")

	recordFrame(t, q, rec, 0)
	n, err = q.Download()
	require.NoError(t, err)
	assert.Zero(t, n, "nothing pending")

	require.NoError(t, q.Reset(rec))
	require.NoError(t, q.Begin(rec, 0, 0))
	n, err = q.Download()
	require.NoError(t, err)
	assert.Zero(t, n, "still recording")
	assert.Empty(t, set.reads)
}

func TestAbortRecordingDropsPending(t *testing.T) {
	q, set := newPipeline(t, 4, 1)
	rec := &fakeRecorder{}

	set.samples[1] = 0
	recordFrame(t, q, rec, 0, 1)
	_, err := q.Download()
	require.NoError(t, err)
	require.False(t, q.IsVisible(0, 1))

	require.NoError(t, q.Reset(rec))
	require.NoError(t, q.Begin(rec, 0, 2))
	require.NoError(t, q.End(rec, 0, 2))
	q.AbortRecording()
	assert.Equal(t, StateIdle, q.State())

	set.reads = nil
	n, err := q.Download()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, set.reads)
	assert.False(t, q.IsVisible(0, 1), "previous results survive an abort")
}

func TestPausedFreezesResults(t *testing.T) {
	q, set := newPipeline(t, 4, 1)
	rec := &fakeRecorder{}

	set.samples[0] = 0
	recordFrame(t, q, rec, 0, 0)
	_, err := q.Download()
	require.NoError(t, err)
	require.False(t, q.IsVisible(0, 0))

	q.SetPaused(true)
	set.samples[0] = 9
	before := *rec
	recordFrame(t, q, rec, 0, 0)
	n, err := q.Download()
	require.NoError(t, err)

	assert.Zero(t, n)
	assert.Equal(t, before, *rec, "paused pipelines record nothing")
	assert.False(t, q.IsVisible(0, 0))
	assert.True(t, q.Paused())
}

func TestDownloadFailureKeepsPending(t *testing.T) {
	q, set := newPipeline(t, 4, 1)
	rec := &fakeRecorder{}

	set.samples[3] = 0
	recordFrame(t, q, rec, 0, 3)
	set.failNext = errors.New("device lost")

	_, err := q.Download()
	require.Error(t, err)
	assert.True(t, q.IsVisible(0, 3))

	n, err := q.Download()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, q.IsVisible(0, 3))
}

func TestDownloadFailureMidwayKeepsPreviousResults(t *testing.T) {
	q, set := newPipeline(t, 8, 1)
	rec := &fakeRecorder{}

	set.samples[1] = 10
	set.samples[5] = 0
	recordFrame(t, q, rec, 0, 1, 5)
	_, err := q.Download()
	require.NoError(t, err)
	require.True(t, q.IsVisible(0, 1))
	require.False(t, q.IsVisible(0, 5))
	previous := q.LastSegments()

	// the GPU now reports the opposite, but the second segment fails to read
	set.samples[1] = 0
	set.samples[5] = 10
	recordFrame(t, q, rec, 0, 1, 5)
	set.failAt = len(set.reads) + 2

	_, err = q.Download()
	require.Error(t, err)
	assert.True(t, q.IsVisible(0, 1), "the segment read before the failure is not applied")
	assert.False(t, q.IsVisible(0, 5))
	assert.Equal(t, previous, q.LastSegments())

	_, err = q.Download()
	require.NoError(t, err)
	assert.False(t, q.IsVisible(0, 1))
	assert.True(t, q.IsVisible(0, 5))
}

func TestStateErrors(t *testing.T) {
	q, set := newPipeline(t, 4, 2)
	rec := &fakeRecorder{}

	assert.ErrorIs(t, q.Begin(rec, 0, 0), ErrInvalidState)
	assert.ErrorIs(t, q.End(rec, 0, 0), ErrInvalidState)

	require.NoError(t, q.Reset(rec))
	assert.Equal(t, StateRecording, q.State())
	assert.ErrorIs(t, q.Begin(rec, 2, 0), ErrSlotOutOfRange)
	assert.ErrorIs(t, q.Begin(rec, 0, 4), ErrSlotOutOfRange)
	assert.True(t, q.IsVisible(5, 5))

	q.Release()
	assert.True(t, set.released)
	assert.ErrorIs(t, q.Reset(rec), ErrInvalidState)
}

func TestNewQueryPipelineCapacity(t *testing.T) {
	_, err := NewQueryPipeline(newFakeQuerySet(7), 4, 2)
	assert.ErrorIs(t, err, ErrCapacity)

	_, err = NewQueryPipeline(newFakeQuerySet(8), 0, 2)
	assert.ErrorIs(t, err, ErrCapacity)

	q, err := NewQueryPipeline(newFakeQuerySet(8), 4, 2, WithLabel("main"), WithSegmentLogging(true))
	require.NoError(t, err)
	assert.Equal(t, 8, q.Capacity())

	slot, err := q.Slot(1, 3)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), slot)
}
