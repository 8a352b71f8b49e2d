package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

var (
	// ErrUnsupportedBackend is returned (or panicked with) when a backend type cannot be constructed.
	ErrUnsupportedBackend = errors.New("unsupported renderer backend")

	// ErrDeviceLost is returned when the GPU device stops accepting work.
	ErrDeviceLost = errors.New("gpu device lost")

	// ErrReleased is returned by calls made after Release.
	ErrReleased = errors.New("renderer released")

	// ErrForeignHandle is returned when a signal, fence, batch or query set was created by a different backend.
	ErrForeignHandle = errors.New("handle belongs to a different backend")
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	released    bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	pendingMSAA          *MSAASampleCount
	vulkan               vulkanConfig
	headless             headlessConfig
}

// Renderer is the execution layer of the frame scheduler.
//
// It hands out GPU synchronization primitives, command batches and occlusion query sets, submits
// merged submissions to the device queues and drives surface image acquisition and presentation.
// The Renderer satisfies sync_pool.PrimitiveFactory and submission.Submitter so the scheduler can
// be wired directly on top of it. One backend implementation is selected at construction.
type Renderer interface {
	// BackendType returns the backend selected at construction.
	//
	// Returns:
	//   - RendererBackendType: the active backend type
	BackendType() RendererBackendType

	// CreateSignal creates a new GPU-side signal.
	//
	// Returns:
	//   - common.Signal: the new signal
	//   - error: an error if the backend could not create it
	CreateSignal() (common.Signal, error)

	// CreateFence creates a new CPU-observable fence.
	//
	// Returns:
	//   - common.Fence: the new fence
	//   - error: an error if the backend could not create it
	CreateFence() (common.Fence, error)

	// ResetFence returns a fence to the unsignaled state.
	//
	// Parameters:
	//   - f: the fence to reset
	//
	// Returns:
	//   - error: an error if the fence is foreign or the reset failed
	ResetFence(f common.Fence) error

	// DestroySignal releases a signal created by CreateSignal.
	//
	// Parameters:
	//   - s: the signal to destroy
	DestroySignal(s common.Signal)

	// DestroyFence releases a fence created by CreateFence.
	//
	// Parameters:
	//   - f: the fence to destroy
	DestroyFence(f common.Fence)

	// BeginFrame recycles the per-slot command storage of the given slot.
	// It must be called after the slot's previous submissions are known complete.
	//
	// Parameters:
	//   - slot: the frame slot about to be recorded
	//
	// Returns:
	//   - error: an error if the command storage could not be reset
	BeginFrame(slot common.FrameSlot) error

	// NewCommandBatch opens a command batch targeting the given queue. The batch is closed
	// when it is submitted.
	//
	// Parameters:
	//   - label: a human readable name for logs and debug markers
	//   - queue: the queue the batch will be submitted to
	//
	// Returns:
	//   - CommandBatch: the open batch
	//   - error: an error if the backend could not allocate one
	NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error)

	// Submit hands one merged submission to the device queue it names.
	//
	// Parameters:
	//   - item: the submission to execute
	//
	// Returns:
	//   - error: an error wrapping ErrDeviceLost if the device rejected the work
	Submit(item common.Submission) error

	// WaitFences blocks until every fence is signaled or the timeout elapses.
	//
	// Parameters:
	//   - fences: the fences to wait on
	//   - timeout: the maximum time to wait
	//
	// Returns:
	//   - bool: true if every fence signaled, false on timeout
	//   - error: an error if the wait itself failed
	WaitFences(fences []common.Fence, timeout time.Duration) (bool, error)

	// CreateQuerySet allocates a set of occlusion queries.
	//
	// Parameters:
	//   - label: a human readable name for the query set
	//   - count: the number of query slots
	//
	// Returns:
	//   - common.QuerySet: the query set
	//   - error: an error if the backend could not allocate it
	CreateQuerySet(label string, count uint32) (common.QuerySet, error)

	// AcquireImage acquires the next presentable image of a window for the given slot.
	// The caller must hold the window's lock. An out-of-date surface is reconfigured first;
	// when the image still cannot be acquired the window is marked out of date and no image is
	// recorded, so nothing waits on the signal this frame.
	//
	// Parameters:
	//   - w: the window to acquire from
	//   - slot: the frame slot being recorded
	//   - signal: the signal the backend signals once the image is ready
	//
	// Returns:
	//   - bool: true if an image was acquired
	//   - error: an error if acquisition failed for a reason other than an out-of-date surface
	AcquireImage(w window.Window, slot common.FrameSlot, signal common.Signal) (bool, error)

	// Present queues the image acquired for slot, waiting on the window's render complete signals.
	// The caller must hold the window's lock.
	//
	// Parameters:
	//   - w: the window to present
	//   - slot: the frame slot being presented
	//
	// Returns:
	//   - error: an error if presentation failed for a reason other than an out-of-date surface
	Present(w window.Window, slot common.FrameSlot) error

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	//
	// Returns:
	//   - error: an error if the surface could not be reconfigured
	Resize(width, height int) error

	// SetPresentMode changes the surface present mode. It takes effect on the next Resize.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)

	// WaitIdle blocks until the device has finished all submitted work.
	WaitIdle()

	// Release destroys the backend. Every later call returns ErrReleased or does nothing.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend type and window.
// It panics when the backend cannot be brought up, matching window construction.
//
// Parameters:
//   - backendType: the GPU backend to construct
//   - w: the window the backend presents to
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the constructed renderer
func NewRenderer(backendType RendererBackendType, w window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
	}

	// Options first so config flags are set before the backend requests a device.
	for _, opt := range options {
		opt(r)
	}

	msaa := MSAA4x
	if r.pendingMSAA != nil {
		msaa = *r.pendingMSAA
	}

	switch backendType {
	case BackendTypeWGPU:
		if w == nil || w.Headless() {
			panic(fmt.Errorf("%w: wgpu requires a platform window", ErrUnsupportedBackend))
		}
		r.backend = newWGPURendererBackend(w.SurfaceDescriptor(), r.forceFallbackAdapter, msaa)
	case BackendTypeVulkan:
		b, err := newVulkanRendererBackend(r.vulkan)
		if err != nil {
			panic(err)
		}
		r.backend = b
	case BackendTypeHeadless:
		r.backend = newHeadlessRendererBackend(r.headless)
	default:
		panic(fmt.Errorf("%w: %d", ErrUnsupportedBackend, backendType))
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	if w != nil {
		if err := r.backend.ConfigureSurface(w.Width(), w.Height()); err != nil {
			panic(err)
		}
	}
	log.Printf("[Renderer] %s backend ready", backendType)
	return r
}

func (r *renderer) BackendType() RendererBackendType {
	return r.backendType
}

func (r *renderer) CreateSignal() (common.Signal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	return r.backend.CreateSignal()
}

func (r *renderer) CreateFence() (common.Fence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	return r.backend.CreateFence()
}

func (r *renderer) ResetFence(f common.Fence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return r.backend.ResetFence(f)
}

func (r *renderer) DestroySignal(s common.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || s == nil {
		return
	}
	r.backend.DestroySignal(s)
}

func (r *renderer) DestroyFence(f common.Fence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released || f == nil {
		return
	}
	r.backend.DestroyFence(f)
}

func (r *renderer) BeginFrame(slot common.FrameSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return r.backend.BeginFrame(slot)
}

func (r *renderer) NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	return r.backend.NewCommandBatch(label, queue)
}

func (r *renderer) Submit(item common.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	if err := r.backend.Submit(item); err != nil {
		return fmt.Errorf("submit %s: %w", item.Label, err)
	}
	return nil
}

// WaitFences does not take the renderer lock so query downloads and batch allocation can proceed
// while the frame loop blocks on a slot.
func (r *renderer) WaitFences(fences []common.Fence, timeout time.Duration) (bool, error) {
	r.mu.Lock()
	released := r.released
	r.mu.Unlock()
	if released {
		return false, ErrReleased
	}
	if len(fences) == 0 {
		return true, nil
	}
	return r.backend.WaitFences(fences, timeout)
}

func (r *renderer) CreateQuerySet(label string, count uint32) (common.QuerySet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return nil, ErrReleased
	}
	return r.backend.CreateQuerySet(label, count)
}

func (r *renderer) AcquireImage(w window.Window, slot common.FrameSlot, signal common.Signal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return false, ErrReleased
	}

	if w.OutOfDate() {
		if err := r.backend.ConfigureSurface(w.Width(), w.Height()); err != nil {
			return false, fmt.Errorf("reconfigure surface: %w", err)
		}
		w.SetOutOfDate(false)
	}

	idx, outOfDate, err := r.backend.AcquireImage(signal)
	if err != nil {
		return false, fmt.Errorf("acquire image: %w", err)
	}
	if outOfDate {
		w.SetOutOfDate(true)
		return false, nil
	}
	w.SetImageAcquired(slot, signal, idx)
	return true, nil
}

func (r *renderer) Present(w window.Window, slot common.FrameSlot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}

	if _, ok := w.ImageAcquiredSignal(slot); !ok {
		return nil
	}
	outOfDate, err := r.backend.Present(w.ImageIndex(slot), w.RenderCompleteSignals())
	if err != nil {
		return fmt.Errorf("present: %w", err)
	}
	if outOfDate {
		w.SetOutOfDate(true)
	}
	return nil
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrReleased
	}
	return r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.SetPresentMode(mode)
}

func (r *renderer) WaitIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.WaitIdle()
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.backend.WaitIdle()
	r.backend.Release()
	r.released = true
}
