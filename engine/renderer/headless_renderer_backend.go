package renderer

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

type headlessConfig struct {
	sampler func(set string, slot uint32) uint64
	images  int
}

type headlessSignal struct{ id uint64 }

func (s *headlessSignal) SignalID() uint64 { return s.id }

type headlessFence struct {
	id       uint64
	signaled atomic.Bool
}

func (f *headlessFence) FenceID() uint64 { return f.id }

// HeadlessBatch is the command batch of the headless backend. It records an op log in place of GPU commands.
type HeadlessBatch struct {
	id        uint64
	label     string
	queue     common.QueueSelector
	slot      common.FrameSlot
	ops       []string
	submitted bool
}

var _ CommandBatch = &HeadlessBatch{}

func (b *HeadlessBatch) Label() string               { return b.label }
func (b *HeadlessBatch) Queue() common.QueueSelector { return b.queue }
func (b *HeadlessBatch) Record(op string)            { b.ops = append(b.ops, op) }
func (b *HeadlessBatch) Ops() []string               { return b.ops }

func (b *HeadlessBatch) ResetQueries(set common.QuerySet, first, count uint32) {
	b.Record(fmt.Sprintf("reset %s [%d,%d)", querySetLabel(set), first, first+count))
}

func (b *HeadlessBatch) BeginQuery(set common.QuerySet, slot uint32) {
	b.Record(fmt.Sprintf("begin %s %d", querySetLabel(set), slot))
}

func (b *HeadlessBatch) EndQuery(set common.QuerySet, slot uint32) {
	b.Record(fmt.Sprintf("end %s %d", querySetLabel(set), slot))
}

type headlessQuerySet struct {
	mu       *sync.Mutex
	label    string
	capacity uint32
	sampler  func(set string, slot uint32) uint64
	reads    int
	released bool
}

var _ common.QuerySet = &headlessQuerySet{}

func (q *headlessQuerySet) Capacity() uint32 { return q.capacity }

func (q *headlessQuerySet) ReadResults(first, count uint32, dst []uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return ErrReleased
	}
	if uint64(first)+uint64(count) > uint64(q.capacity) || len(dst) < int(count) {
		return fmt.Errorf("read [%d,%d) of %d queries: out of range", first, first+count, q.capacity)
	}
	for i := range count {
		dst[i] = q.sampler(q.label, first+i)
	}
	q.reads++
	return nil
}

func (q *headlessQuerySet) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.released = true
}

func querySetLabel(set common.QuerySet) string {
	if q, ok := set.(*headlessQuerySet); ok {
		return q.label
	}
	return "?"
}

// HeadlessStats is a snapshot of the headless backend's bookkeeping.
type HeadlessStats struct {
	Submissions   int
	Batches       int
	Acquires      int
	Presents      int
	LiveSignals   int
	LiveFences    int
	LiveQuerySets int
	// Violations counts waits on signals that were not pending and signals raised while already pending.
	Violations int
	// SubmittedLabels lists submission labels in submission order.
	SubmittedLabels []string
}

type headlessRendererBackendImpl struct {
	cfg headlessConfig

	slot      common.FrameSlot
	signals   map[uint64]struct{}
	fences    map[uint64]*headlessFence
	querySets []*headlessQuerySet
	pending   map[uint64]struct{}

	nextImage uint32
	stats     HeadlessStats
}

var _ RendererBackend = &headlessRendererBackendImpl{}

func newHeadlessRendererBackend(cfg headlessConfig) *headlessRendererBackendImpl {
	if cfg.sampler == nil {
		cfg.sampler = func(string, uint32) uint64 { return 1 }
	}
	if cfg.images <= 0 {
		cfg.images = 3
	}
	return &headlessRendererBackendImpl{
		cfg:     cfg,
		signals: make(map[uint64]struct{}),
		fences:  make(map[uint64]*headlessFence),
		pending: make(map[uint64]struct{}),
	}
}

func (b *headlessRendererBackendImpl) CreateSignal() (common.Signal, error) {
	s := &headlessSignal{id: nextHandleID()}
	b.signals[s.id] = struct{}{}
	return s, nil
}

func (b *headlessRendererBackendImpl) CreateFence() (common.Fence, error) {
	f := &headlessFence{id: nextHandleID()}
	f.signaled.Store(true)
	b.fences[f.id] = f
	return f, nil
}

func (b *headlessRendererBackendImpl) ResetFence(f common.Fence) error {
	hf, ok := f.(*headlessFence)
	if !ok {
		return ErrForeignHandle
	}
	hf.signaled.Store(false)
	return nil
}

func (b *headlessRendererBackendImpl) DestroySignal(s common.Signal) {
	delete(b.signals, s.SignalID())
	delete(b.pending, s.SignalID())
}

func (b *headlessRendererBackendImpl) DestroyFence(f common.Fence) {
	delete(b.fences, f.FenceID())
}

func (b *headlessRendererBackendImpl) BeginFrame(slot common.FrameSlot) error {
	b.slot = slot
	return nil
}

func (b *headlessRendererBackendImpl) NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error) {
	b.stats.Batches++
	return &HeadlessBatch{id: nextHandleID(), label: label, queue: queue, slot: b.slot}, nil
}

func (b *headlessRendererBackendImpl) Submit(item common.Submission) error {
	for _, batch := range item.Batches {
		hb, ok := batch.(*HeadlessBatch)
		if !ok {
			return ErrForeignHandle
		}
		if hb.submitted {
			return fmt.Errorf("batch %s submitted twice", hb.label)
		}
		hb.submitted = true
	}
	for _, w := range item.Waits {
		b.consume(w.Signal)
	}
	for _, s := range item.Signals {
		b.raise(s)
	}
	if item.Fence != nil {
		hf, ok := item.Fence.(*headlessFence)
		if !ok {
			return ErrForeignHandle
		}
		hf.signaled.Store(true)
	}
	b.stats.Submissions++
	b.stats.SubmittedLabels = append(b.stats.SubmittedLabels, item.Label)
	return nil
}

func (b *headlessRendererBackendImpl) WaitFences(fences []common.Fence, timeout time.Duration) (bool, error) {
	for _, f := range fences {
		hf, ok := f.(*headlessFence)
		if !ok {
			return false, ErrForeignHandle
		}
		if !hf.signaled.Load() {
			return false, nil
		}
	}
	return true, nil
}

func (b *headlessRendererBackendImpl) CreateQuerySet(label string, count uint32) (common.QuerySet, error) {
	if count == 0 {
		return nil, errors.New("query set needs at least one query")
	}
	q := &headlessQuerySet{mu: &sync.Mutex{}, label: label, capacity: count, sampler: b.cfg.sampler}
	b.querySets = append(b.querySets, q)
	return q, nil
}

func (b *headlessRendererBackendImpl) ConfigureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("configure surface %dx%d: invalid size", width, height)
	}
	return nil
}

func (b *headlessRendererBackendImpl) SetPresentMode(mode PresentMode) {}

func (b *headlessRendererBackendImpl) AcquireImage(signal common.Signal) (uint32, bool, error) {
	b.raise(signal)
	idx := b.nextImage
	b.nextImage = (b.nextImage + 1) % uint32(b.cfg.images)
	b.stats.Acquires++
	return idx, false, nil
}

func (b *headlessRendererBackendImpl) Present(imageIndex uint32, waits []common.Signal) (bool, error) {
	for _, s := range waits {
		b.consume(s)
	}
	b.stats.Presents++
	return false, nil
}

func (b *headlessRendererBackendImpl) WaitIdle() {}

func (b *headlessRendererBackendImpl) Release() {
	for _, q := range b.querySets {
		q.Release()
	}
}

func (b *headlessRendererBackendImpl) raise(s common.Signal) {
	if s == nil {
		return
	}
	if _, ok := b.pending[s.SignalID()]; ok {
		b.stats.Violations++
	}
	b.pending[s.SignalID()] = struct{}{}
}

func (b *headlessRendererBackendImpl) consume(s common.Signal) {
	if _, ok := b.pending[s.SignalID()]; !ok {
		b.stats.Violations++
		return
	}
	delete(b.pending, s.SignalID())
}

func (b *headlessRendererBackendImpl) snapshot() HeadlessStats {
	out := b.stats
	out.SubmittedLabels = append([]string(nil), b.stats.SubmittedLabels...)
	out.LiveSignals = len(b.signals)
	out.LiveFences = len(b.fences)
	for _, q := range b.querySets {
		q.mu.Lock()
		if !q.released {
			out.LiveQuerySets++
		}
		q.mu.Unlock()
	}
	return out
}

// Stats returns the bookkeeping of a headless renderer.
//
// Parameters:
//   - r: the renderer to inspect
//
// Returns:
//   - HeadlessStats: the snapshot
//   - bool: false if r is not a headless renderer
func Stats(r Renderer) (HeadlessStats, bool) {
	impl, ok := r.(*renderer)
	if !ok {
		return HeadlessStats{}, false
	}
	impl.mu.Lock()
	defer impl.mu.Unlock()
	hb, ok := impl.backend.(*headlessRendererBackendImpl)
	if !ok {
		return HeadlessStats{}, false
	}
	return hb.snapshot(), true
}
