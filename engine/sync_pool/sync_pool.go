package sync_pool

import (
	"errors"
	"fmt"
	"log"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

var (
	// ErrPrimitiveCreation is returned when the backend fails to create a new signal or fence.
	// It indicates the execution backend is out of memory and is not recoverable.
	ErrPrimitiveCreation = errors.New("failed to create synchronization primitive")

	// ErrInvalidSlot is returned when a frame slot is outside [0, maxFramesInFlight).
	ErrInvalidSlot = errors.New("frame slot out of range")
)

// PrimitiveFactory is the backend surface the pool draws new primitives from.
type PrimitiveFactory interface {
	// CreateSignal creates a new, unsignaled GPU signal.
	//
	// Returns:
	//   - common.Signal: the new signal
	//   - error: an error if the backend could not allocate the primitive
	CreateSignal() (common.Signal, error)

	// CreateFence creates a new fence.
	//
	// Returns:
	//   - common.Fence: the new fence
	//   - error: an error if the backend could not allocate the primitive
	CreateFence() (common.Fence, error)

	// ResetFence returns a fence to the unsignaled state.
	//
	// Parameters:
	//   - f: the fence to reset
	//
	// Returns:
	//   - error: an error if the backend rejected the reset
	ResetFence(f common.Fence) error

	// DestroySignal releases a signal. Only called at teardown.
	//
	// Parameters:
	//   - s: the signal to destroy
	DestroySignal(s common.Signal)

	// DestroyFence releases a fence. Only called at teardown.
	//
	// Parameters:
	//   - f: the fence to destroy
	DestroyFence(f common.Fence)
}

// Stats is a snapshot of one frame slot's stacks.
type Stats struct {
	AvailableSignals int
	InUseSignals     int
	AvailableFences  int
	InUseFences      int
}

// Signals returns the total number of signals owned by the slot.
func (s Stats) Signals() int { return s.AvailableSignals + s.InUseSignals }

// Fences returns the total number of fences owned by the slot.
func (s Stats) Fences() int { return s.AvailableFences + s.InUseFences }

// SyncPool hands out reusable signals and fences keyed by frame slot.
// Pools grow on demand to a steady-state high-water mark and never shrink until Destroy.
// A SyncPool is driven by the single frame thread and is not safe for concurrent use.
type SyncPool interface {
	// AcquireSignal returns a signal for the given slot, creating one only when the slot has none available.
	// The returned signal is tracked as in use until Retire is called for the slot.
	//
	// Parameters:
	//   - slot: the active frame slot
	//
	// Returns:
	//   - common.Signal: a signal owned by the slot
	//   - error: ErrInvalidSlot, or ErrPrimitiveCreation wrapping the backend error
	AcquireSignal(slot common.FrameSlot) (common.Signal, error)

	// AcquireFence returns a fence for the given slot, reset to the unsignaled state.
	// The returned fence is tracked as in use until Retire is called for the slot.
	//
	// Parameters:
	//   - slot: the active frame slot
	//
	// Returns:
	//   - common.Fence: a reset fence owned by the slot
	//   - error: ErrInvalidSlot, or ErrPrimitiveCreation wrapping the backend error
	AcquireFence(slot common.FrameSlot) (common.Fence, error)

	// Retire moves every in-use primitive of the slot back to its available stack.
	// Called once per frame after the slot's submissions are issued.
	//
	// Parameters:
	//   - slot: the slot whose submissions were just issued
	Retire(slot common.FrameSlot)

	// Stats returns a snapshot of the slot's available and in-use counts.
	//
	// Parameters:
	//   - slot: the slot to inspect
	//
	// Returns:
	//   - Stats: the slot's counts, zero for an invalid slot
	Stats(slot common.FrameSlot) Stats

	// MaxFramesInFlight returns the number of slots the pool is partitioned into.
	//
	// Returns:
	//   - int: the slot count
	MaxFramesInFlight() int

	// Destroy releases every primitive owned by the pool through the factory.
	// The pool is empty afterwards and may be reused.
	Destroy()
}

// slotStacks keeps one available and one in-use stack per frame slot.
type slotStacks[T any] struct {
	available [][]T
	inUse     [][]T
}

func newSlotStacks[T any](slots int) slotStacks[T] {
	return slotStacks[T]{
		available: make([][]T, slots),
		inUse:     make([][]T, slots),
	}
}

// acquire pops an available primitive or creates one, then pushes it onto the in-use stack.
// created reports whether a new primitive was allocated.
func (s *slotStacks[T]) acquire(slot int, create func() (T, error)) (item T, created bool, err error) {
	avail := s.available[slot]
	if n := len(avail); n > 0 {
		item = avail[n-1]
		s.available[slot] = avail[:n-1]
	} else {
		item, err = create()
		if err != nil {
			return item, false, err
		}
		created = true
	}
	s.inUse[slot] = append(s.inUse[slot], item)
	return item, created, nil
}

func (s *slotStacks[T]) retire(slot int) {
	s.available[slot] = append(s.available[slot], s.inUse[slot]...)
	clear(s.inUse[slot])
	s.inUse[slot] = s.inUse[slot][:0]
}

func (s *slotStacks[T]) drain(destroy func(T)) {
	for slot := range s.available {
		for _, item := range s.available[slot] {
			destroy(item)
		}
		for _, item := range s.inUse[slot] {
			destroy(item)
		}
		s.available[slot] = nil
		s.inUse[slot] = nil
	}
}

type syncPool struct {
	factory           PrimitiveFactory
	maxFramesInFlight int

	signals slotStacks[common.Signal]
	fences  slotStacks[common.Fence]

	prewarmSignals int
	prewarmFences  int
	logGrowth      bool
}

var _ SyncPool = &syncPool{}

// NewSyncPool creates a SyncPool partitioned into maxFramesInFlight slots.
// Values of maxFramesInFlight below 1 are treated as 1.
//
// Parameters:
//   - factory: the backend that creates, resets and destroys primitives
//   - maxFramesInFlight: the number of frame slots
//   - options: functional options to configure the pool
//
// Returns:
//   - SyncPool: the new pool
//   - error: ErrPrimitiveCreation if prewarming failed
func NewSyncPool(factory PrimitiveFactory, maxFramesInFlight int, options ...SyncPoolBuilderOption) (SyncPool, error) {
	maxFramesInFlight = max(maxFramesInFlight, 1)
	p := &syncPool{
		factory:           factory,
		maxFramesInFlight: maxFramesInFlight,
		signals:           newSlotStacks[common.Signal](maxFramesInFlight),
		fences:            newSlotStacks[common.Fence](maxFramesInFlight),
	}
	for _, opt := range options {
		opt(p)
	}
	if err := p.prewarm(); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *syncPool) AcquireSignal(slot common.FrameSlot) (common.Signal, error) {
	if !p.validSlot(slot) {
		return nil, fmt.Errorf("acquire signal for slot %d: %w", slot, ErrInvalidSlot)
	}
	s, created, err := p.signals.acquire(int(slot), p.factory.CreateSignal)
	if err != nil {
		return nil, fmt.Errorf("%w: signal: %w", ErrPrimitiveCreation, err)
	}
	if created && p.logGrowth {
		log.Printf("[SyncPool] slot %d grew to %d signals", slot, p.Stats(slot).Signals())
	}
	return s, nil
}

func (p *syncPool) AcquireFence(slot common.FrameSlot) (common.Fence, error) {
	if !p.validSlot(slot) {
		return nil, fmt.Errorf("acquire fence for slot %d: %w", slot, ErrInvalidSlot)
	}
	f, created, err := p.fences.acquire(int(slot), p.factory.CreateFence)
	if err != nil {
		return nil, fmt.Errorf("%w: fence: %w", ErrPrimitiveCreation, err)
	}
	if created && p.logGrowth {
		log.Printf("[SyncPool] slot %d grew to %d fences", slot, p.Stats(slot).Fences())
	}
	if err := p.factory.ResetFence(f); err != nil {
		return nil, fmt.Errorf("reset fence %d: %w", f.FenceID(), err)
	}
	return f, nil
}

func (p *syncPool) Retire(slot common.FrameSlot) {
	if !p.validSlot(slot) {
		return
	}
	p.signals.retire(int(slot))
	p.fences.retire(int(slot))
}

func (p *syncPool) Stats(slot common.FrameSlot) Stats {
	if !p.validSlot(slot) {
		return Stats{}
	}
	i := int(slot)
	return Stats{
		AvailableSignals: len(p.signals.available[i]),
		InUseSignals:     len(p.signals.inUse[i]),
		AvailableFences:  len(p.fences.available[i]),
		InUseFences:      len(p.fences.inUse[i]),
	}
}

func (p *syncPool) MaxFramesInFlight() int {
	return p.maxFramesInFlight
}

func (p *syncPool) Destroy() {
	p.signals.drain(p.factory.DestroySignal)
	p.fences.drain(p.factory.DestroyFence)
}

func (p *syncPool) validSlot(slot common.FrameSlot) bool {
	return slot >= 0 && int(slot) < p.maxFramesInFlight
}

// prewarm fills every slot's available stacks up to the configured counts.
func (p *syncPool) prewarm() error {
	for slot := range p.maxFramesInFlight {
		for range p.prewarmSignals {
			s, err := p.factory.CreateSignal()
			if err != nil {
				return fmt.Errorf("%w: prewarm signal: %w", ErrPrimitiveCreation, err)
			}
			p.signals.available[slot] = append(p.signals.available[slot], s)
		}
		for range p.prewarmFences {
			f, err := p.factory.CreateFence()
			if err != nil {
				return fmt.Errorf("%w: prewarm fence: %w", ErrPrimitiveCreation, err)
			}
			p.fences.available[slot] = append(p.fences.available[slot], f)
		}
	}
	return nil
}
