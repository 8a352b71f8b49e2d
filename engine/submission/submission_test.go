package submission

import (
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/command_graph"
	"github.com/Carmen-Shannon/oxy-frame/engine/sync_pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSignal uint64

func (s testSignal) SignalID() uint64 { return uint64(s) }

type testFence uint64

func (f testFence) FenceID() uint64 { return uint64(f) }

type testFactory struct{ next uint64 }

func (f *testFactory) CreateSignal() (common.Signal, error) { f.next++; return testSignal(f.next), nil }
func (f *testFactory) CreateFence() (common.Fence, error)   { f.next++; return testFence(f.next), nil }
func (f *testFactory) ResetFence(common.Fence) error        { return nil }
func (f *testFactory) DestroySignal(common.Signal)          {}
func (f *testFactory) DestroyFence(common.Fence)            {}

type testSubmitter struct {
	items     []common.Submission
	waited    [][]common.Fence
	timedOut  bool
	failAfter int
}

func (s *testSubmitter) Submit(item common.Submission) error {
	if s.failAfter > 0 && len(s.items) >= s.failAfter {
		return errors.New("device lost")
	}
	s.items = append(s.items, item)
	return nil
}

func (s *testSubmitter) WaitFences(fences []common.Fence, _ time.Duration) (bool, error) {
	s.waited = append(s.waited, append([]common.Fence(nil), fences...))
	return !s.timedOut, nil
}

type testBatch struct {
	label string
	queue common.QueueSelector
}

func (b *testBatch) Label() string               { return b.label }
func (b *testBatch) Queue() common.QueueSelector { return b.queue }

func newDriver(t *testing.T, sub *testSubmitter) (SubmissionDriver, sync_pool.SyncPool) {
	t.Helper()
	pool, err := sync_pool.NewSyncPool(&testFactory{}, 2)
	require.NoError(t, err)
	return NewSubmissionDriver(sub, pool, WithFenceTimeout(10*time.Millisecond)), pool
}

func graphics(label string) command_graph.Work {
	return command_graph.Work{Batch: &testBatch{label: label}}
}

func compute(label string) command_graph.Work {
	return command_graph.Work{Batch: &testBatch{label: label, queue: common.QueueCompute}}
}

func buildGraph(t *testing.T, slot common.FrameSlot, pool sync_pool.SyncPool) command_graph.CommandGraph {
	t.Helper()
	g := command_graph.NewCommandGraph(slot)
	require.NoError(t, g.AddStage("compute", compute("particles")))
	require.NoError(t, g.AddStage("cameras:0", graphics("main"), graphics("mirror")))
	require.NoError(t, g.AddStage("blit", graphics("blit")))
	require.NoError(t, g.Finalize(pool))
	return g
}

func TestSubmitMergesLevelsInOrder(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)
	g := buildGraph(t, d.Slot(), pool)

	items, err := d.Submit(g)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, sub.items, items)

	for i, item := range items {
		assert.Equal(t, i, item.Level)
	}
	assert.Equal(t, common.QueueCompute, items[0].Queue)
	assert.Len(t, items[1].Batches, 2)
	assert.Len(t, items[1].Waits, 2, "one signal from compute per camera")
	assert.Len(t, items[1].Signals, 2, "one signal per camera toward blit")
	assert.Len(t, items[2].Waits, 2)

	assert.Nil(t, items[0].Fence)
	assert.Nil(t, items[1].Fence)
	assert.NotNil(t, items[2].Fence)
}

func TestSubmitRetiresAndAdvances(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)

	for frame := range 5 {
		slot := d.Slot()
		assert.Equal(t, common.FrameSlot(frame%2), slot)
		require.NoError(t, d.AwaitSlot())
		_, err := d.Submit(buildGraph(t, slot, pool))
		require.NoError(t, err)

		stats := pool.Stats(slot)
		assert.Zero(t, stats.InUseSignals)
		assert.Zero(t, stats.InUseFences)
		assert.Equal(t, 4, stats.AvailableSignals, "steady state after the first frame")
	}
}

func TestAwaitSlotWaitsOnPreviousUse(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)

	require.NoError(t, d.AwaitSlot())
	assert.Empty(t, sub.waited, "first use of a slot has nothing to wait on")

	first, err := d.Submit(buildGraph(t, 0, pool))
	require.NoError(t, err)
	_, err = d.Submit(buildGraph(t, 1, pool))
	require.NoError(t, err)

	require.NoError(t, d.AwaitSlot())
	require.Len(t, sub.waited, 1)
	assert.Equal(t, []common.Fence{first[2].Fence}, sub.waited[0])

	require.NoError(t, d.AwaitSlot())
	assert.Len(t, sub.waited, 1, "fences are waited once")
}

func TestAwaitSlotTimeout(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)
	_, err := d.Submit(buildGraph(t, 0, pool))
	require.NoError(t, err)

	sub.timedOut = true
	assert.ErrorIs(t, d.Drain(), ErrFenceTimeout)

	sub.timedOut = false
	require.NoError(t, d.Drain())
}

func TestMultiQueueTerminalLevelGetsAFencePerSubmission(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)

	g := command_graph.NewCommandGraph(0)
	require.NoError(t, g.AddStage("cameras:0", compute("culling"), graphics("main")))
	require.NoError(t, g.Finalize(pool))

	items, err := d.Submit(g)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, common.QueueGraphics, items[0].Queue, "queue order")
	assert.Equal(t, common.QueueCompute, items[1].Queue)
	require.NotNil(t, items[0].Fence)
	require.NotNil(t, items[1].Fence)
	assert.NotEqual(t, items[0].Fence.FenceID(), items[1].Fence.FenceID())
}

func TestSubmitErrors(t *testing.T) {
	sub := &testSubmitter{failAfter: 1}
	d, pool := newDriver(t, sub)

	_, err := d.Submit(buildGraph(t, 1, pool))
	assert.Error(t, err, "graph built for another slot")

	_, err = d.Submit(buildGraph(t, 0, pool))
	require.Error(t, err)
	assert.Equal(t, common.FrameSlot(0), d.Slot(), "a failed submit does not advance")
}

func TestMergeWaitsDeduplicates(t *testing.T) {
	a := common.SignalWait{Signal: testSignal(1), Stage: common.StageComputeShader}
	b := common.SignalWait{Signal: testSignal(1), Stage: common.StageColorAttachmentOutput}
	c := common.SignalWait{Signal: testSignal(2), Stage: common.StageAllCommands}

	merged := mergeWaits(nil, []common.SignalWait{a, c})
	merged = mergeWaits(merged, []common.SignalWait{b})
	require.Len(t, merged, 2)
	assert.Equal(t, common.StageComputeShader|common.StageColorAttachmentOutput, merged[0].Stage)

	signals := mergeSignals([]common.Signal{testSignal(1)}, []common.Signal{testSignal(1), testSignal(3)})
	assert.Equal(t, []common.Signal{testSignal(1), testSignal(3)}, signals)
}

type testSurface struct{ acquired common.Signal }

func (s *testSurface) ImageAcquiredSignal(common.FrameSlot) (common.Signal, bool) {
	return s.acquired, true
}

func (s *testSurface) AddRenderCompleteSignal(common.Signal) {}

func TestSiblingSurfaceConsumersShareOneImageWait(t *testing.T) {
	sub := &testSubmitter{}
	d, pool := newDriver(t, sub)
	window := &testSurface{acquired: testSignal(1000)}

	g := command_graph.NewCommandGraph(d.Slot())
	require.NoError(t, g.AddStage("cameras:0",
		command_graph.Work{Batch: &testBatch{label: "left"}, Surfaces: []command_graph.PresentationSurface{window}},
		command_graph.Work{Batch: &testBatch{label: "right"}, Surfaces: []command_graph.PresentationSurface{window}},
	))
	require.NoError(t, g.Finalize(pool))

	items, err := d.Submit(g)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, []common.SignalWait{{Signal: window.acquired, Stage: common.StageColorAttachmentOutput}}, items[0].Waits)
}
