package sync_pool

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSignal struct{ id uint64 }

func (s *testSignal) SignalID() uint64 { return s.id }

type testFence struct {
	id       uint64
	signaled bool
}

func (f *testFence) FenceID() uint64 { return f.id }

type testFactory struct {
	nextID    uint64
	signals   int
	fences    int
	resets    int
	destroyed int
	failAfter int // fail creation once this many primitives exist; 0 disables
}

func (f *testFactory) create() error {
	if f.failAfter > 0 && f.signals+f.fences >= f.failAfter {
		return errors.New("out of device memory")
	}
	f.nextID++
	return nil
}

func (f *testFactory) CreateSignal() (common.Signal, error) {
	if err := f.create(); err != nil {
		return nil, err
	}
	f.signals++
	return &testSignal{id: f.nextID}, nil
}

func (f *testFactory) CreateFence() (common.Fence, error) {
	if err := f.create(); err != nil {
		return nil, err
	}
	f.fences++
	return &testFence{id: f.nextID, signaled: true}, nil
}

func (f *testFactory) ResetFence(fence common.Fence) error {
	f.resets++
	fence.(*testFence).signaled = false
	return nil
}

func (f *testFactory) DestroySignal(common.Signal) { f.destroyed++ }
func (f *testFactory) DestroyFence(common.Fence)   { f.destroyed++ }

func TestSyncPool_AcquireCreatesOnlyWhenEmpty(t *testing.T) {
	factory := &testFactory{}
	pool, err := NewSyncPool(factory, 2)
	require.NoError(t, err)

	a, err := pool.AcquireSignal(0)
	require.NoError(t, err)
	b, err := pool.AcquireSignal(0)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, factory.signals)

	pool.Retire(0)
	c, err := pool.AcquireSignal(0)
	require.NoError(t, err)
	assert.Equal(t, 2, factory.signals, "retired signals are reused")
	assert.Contains(t, []common.Signal{a, b}, c)
}

func TestSyncPool_FenceIsResetOnAcquire(t *testing.T) {
	factory := &testFactory{}
	pool, err := NewSyncPool(factory, 2)
	require.NoError(t, err)

	f, err := pool.AcquireFence(1)
	require.NoError(t, err)
	assert.False(t, f.(*testFence).signaled)

	f.(*testFence).signaled = true
	pool.Retire(1)

	again, err := pool.AcquireFence(1)
	require.NoError(t, err)
	assert.Same(t, f, again)
	assert.False(t, again.(*testFence).signaled)
	assert.Equal(t, 2, factory.resets)
}

func TestSyncPool_Conservation(t *testing.T) {
	factory := &testFactory{}
	pool, err := NewSyncPool(factory, 2)
	require.NoError(t, err)

	prev := 0
	for frame, demand := range []int{3, 5, 2, 5, 1, 7} {
		slot := common.FrameSlot(frame % 2)
		before := pool.Stats(slot)
		for range demand {
			_, err := pool.AcquireSignal(slot)
			require.NoError(t, err)
		}
		during := pool.Stats(slot)
		assert.Equal(t, demand, during.InUseSignals)
		assert.GreaterOrEqual(t, during.Signals(), before.Signals())

		pool.Retire(slot)
		after := pool.Stats(slot)
		assert.Equal(t, during.Signals(), after.Signals(), "retire neither loses nor duplicates")
		assert.Zero(t, after.InUseSignals)

		total := pool.Stats(0).Signals() + pool.Stats(1).Signals()
		assert.GreaterOrEqual(t, total, prev)
		prev = total
	}
	assert.Equal(t, factory.signals, prev)
}

func TestSyncPool_RetireIsPerSlot(t *testing.T) {
	pool, err := NewSyncPool(&testFactory{}, 2)
	require.NoError(t, err)

	_, err = pool.AcquireSignal(0)
	require.NoError(t, err)
	_, err = pool.AcquireSignal(1)
	require.NoError(t, err)

	pool.Retire(0)
	assert.Equal(t, Stats{AvailableSignals: 1}, pool.Stats(0))
	assert.Equal(t, Stats{InUseSignals: 1}, pool.Stats(1))
}

func TestSyncPool_InvalidSlot(t *testing.T) {
	pool, err := NewSyncPool(&testFactory{}, 2)
	require.NoError(t, err)

	_, err = pool.AcquireSignal(2)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	_, err = pool.AcquireFence(-1)
	assert.ErrorIs(t, err, ErrInvalidSlot)
	assert.Equal(t, Stats{}, pool.Stats(5))
}

func TestSyncPool_CreationFailureIsReported(t *testing.T) {
	pool, err := NewSyncPool(&testFactory{failAfter: 1}, 1)
	require.NoError(t, err)

	_, err = pool.AcquireSignal(0)
	require.NoError(t, err)
	_, err = pool.AcquireSignal(0)
	assert.ErrorIs(t, err, ErrPrimitiveCreation)
	assert.Equal(t, 1, pool.Stats(0).InUseSignals)
}

func TestSyncPool_PrewarmAndDestroy(t *testing.T) {
	factory := &testFactory{}
	pool, err := NewSyncPool(factory, 3, WithPrewarm(2, 1))
	require.NoError(t, err)

	for slot := range 3 {
		st := pool.Stats(common.FrameSlot(slot))
		assert.Equal(t, 2, st.AvailableSignals)
		assert.Equal(t, 1, st.AvailableFences)
	}

	_, err = pool.AcquireSignal(0)
	require.NoError(t, err)
	assert.Equal(t, 6, factory.signals, "prewarmed signals satisfy demand")

	pool.Destroy()
	assert.Equal(t, 9, factory.destroyed)
	assert.Equal(t, Stats{}, pool.Stats(0))
}
