package renderer

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// WebGPU executes submissions on a single queue in order, so signals are bookkeeping only and the
// compute queue aliases the graphics queue.

type wgpuSignal struct{ id uint64 }

func (s *wgpuSignal) SignalID() uint64 { return s.id }

type wgpuFence struct {
	id        uint64
	submitted atomic.Bool
	done      atomic.Bool
}

func (f *wgpuFence) FenceID() uint64 { return f.id }

// WGPUBatch is the command batch of the WebGPU backend. It wraps one command encoder and at most one
// open render pass at a time.
type WGPUBatch struct {
	id        uint64
	label     string
	queue     common.QueueSelector
	backend   *wgpuRendererBackendImpl
	encoder   *wgpu.CommandEncoder
	pass      *wgpu.RenderPassEncoder
	submitted bool
}

var _ CommandBatch = &WGPUBatch{}

func (b *WGPUBatch) Label() string               { return b.label }
func (b *WGPUBatch) Queue() common.QueueSelector { return b.queue }

// Encoder returns the command encoder backing the batch.
func (b *WGPUBatch) Encoder() *wgpu.CommandEncoder {
	return b.encoder
}

// Pass returns the open render pass, or nil.
func (b *WGPUBatch) Pass() *wgpu.RenderPassEncoder {
	return b.pass
}

// BeginSurfacePass opens a render pass on the image acquired this frame, with the surface depth buffer.
// The first surface pass of a frame clears; later passes load. A non-nil occlusion set is attached so
// BeginQuery/EndQuery can be recorded inside the pass.
//
// Parameters:
//   - occlusion: the query set occlusion queries in this pass write to, or nil
//
// Returns:
//   - *wgpu.RenderPassEncoder: the open pass
//   - error: an error if no surface image is held or a pass is already open
func (b *WGPUBatch) BeginSurfacePass(occlusion common.QuerySet) (*wgpu.RenderPassEncoder, error) {
	if b.pass != nil {
		return nil, fmt.Errorf("batch %s: render pass already open", b.label)
	}
	desc, err := b.backend.surfacePassDescriptor()
	if err != nil {
		return nil, err
	}
	if qs, ok := occlusion.(*wgpuQuerySet); ok {
		desc.OcclusionQuerySet = qs.set
	}
	b.pass = b.encoder.BeginRenderPass(desc)
	return b.pass, nil
}

// EndPass closes the open render pass, if any.
func (b *WGPUBatch) EndPass() {
	if b.pass == nil {
		return
	}
	b.pass.End()
	b.pass.Release()
	b.pass = nil
}

// ResetQueries is a no-op: WebGPU query slots need no reset before reuse.
func (b *WGPUBatch) ResetQueries(set common.QuerySet, first, count uint32) {}

// BeginQuery opens a surface pass carrying set when no pass is open yet.
func (b *WGPUBatch) BeginQuery(set common.QuerySet, slot uint32) {
	if b.pass == nil {
		if _, err := b.BeginSurfacePass(set); err != nil {
			log.Printf("[Renderer] %s: begin query %d: %v", b.label, slot, err)
			return
		}
	}
	b.pass.BeginOcclusionQuery(slot)
}

func (b *WGPUBatch) EndQuery(set common.QuerySet, slot uint32) {
	if b.pass == nil {
		return
	}
	b.pass.EndOcclusionQuery()
}

// finish ends the open pass and the encoder.
func (b *WGPUBatch) finish() (*wgpu.CommandBuffer, error) {
	b.EndPass()
	cb, err := b.encoder.Finish(nil)
	b.encoder.Release()
	b.encoder = nil
	return cb, err
}

// wgpuQuerySet resolves occlusion results into a buffer and maps a copy of it for reading.
type wgpuQuerySet struct {
	mu       *sync.Mutex
	label    string
	capacity uint32
	device   *wgpu.Device
	queue    *wgpu.Queue
	set      *wgpu.QuerySet
	resolve  *wgpu.Buffer
	readback *wgpu.Buffer
}

var _ common.QuerySet = &wgpuQuerySet{}

func (q *wgpuQuerySet) Capacity() uint32 { return q.capacity }

// ReadResults resolves [first, first+count) to the start of the resolve buffer, copies it into the
// readback buffer and maps it. Both offsets are zero so no alignment padding is needed.
func (q *wgpuQuerySet) ReadResults(first, count uint32, dst []uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.set == nil {
		return ErrReleased
	}
	if uint64(first)+uint64(count) > uint64(q.capacity) || len(dst) < int(count) {
		return fmt.Errorf("read [%d,%d) of %d queries: out of range", first, first+count, q.capacity)
	}
	size := uint64(count) * 8

	encoder, err := q.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	encoder.ResolveQuerySet(q.set, first, count, q.resolve, 0)
	encoder.CopyBufferToBuffer(q.resolve, 0, q.readback, 0, size)
	cb, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return err
	}
	q.queue.Submit(cb)
	cb.Release()

	var status wgpu.BufferMapAsyncStatus
	err = q.readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	})
	if err != nil {
		return err
	}
	q.device.Poll(true, nil)
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return fmt.Errorf("map %s readback: status %d", q.label, status)
	}

	data := q.readback.GetMappedRange(0, uint(size))
	for i := range count {
		dst[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	q.readback.Unmap()
	return nil
}

func (q *wgpuQuerySet) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.set == nil {
		return
	}
	q.set.Release()
	q.resolve.Release()
	q.readback.Release()
	q.set, q.resolve, q.readback = nil, nil, nil
}

type wgpuRendererBackendImpl struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	surfaceFormat        *wgpu.TextureFormat
	msaaTextureView      *wgpu.TextureView
	depthTextureView     *wgpu.TextureView
	renderPassDescriptor *wgpu.RenderPassDescriptor

	presentMode wgpu.PresentMode // defaults to PresentModeImmediate (Uncapped)
	sampleCount MSAASampleCount  // MSAA sample count for the surface pass

	// Frame state for the acquired surface image
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	surfacePass  int

	// fences submitted but not yet observed complete
	inflight []*wgpuFence
	fenceMu  *sync.Mutex

	// batches created since the last BeginFrame that were never submitted
	open map[uint64]*WGPUBatch
}

var _ RendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool, sampleCount MSAASampleCount) *wgpuRendererBackendImpl {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		instance:    wgpu.CreateInstance(nil),
		presentMode: wgpu.PresentModeImmediate,
		sampleCount: sampleCount,
		fenceMu:     &sync.Mutex{},
		open:        make(map[uint64]*WGPUBatch),
	}
	w.surface = w.instance.CreateSurface(surfaceDescriptor)

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		panic(err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
	})
	if err != nil {
		panic(err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w
}

func (b *wgpuRendererBackendImpl) CreateSignal() (common.Signal, error) {
	return &wgpuSignal{id: nextHandleID()}, nil
}

func (b *wgpuRendererBackendImpl) CreateFence() (common.Fence, error) {
	f := &wgpuFence{id: nextHandleID()}
	f.done.Store(true)
	return f, nil
}

func (b *wgpuRendererBackendImpl) ResetFence(f common.Fence) error {
	wf, ok := f.(*wgpuFence)
	if !ok {
		return ErrForeignHandle
	}
	wf.submitted.Store(false)
	wf.done.Store(false)
	return nil
}

func (b *wgpuRendererBackendImpl) DestroySignal(s common.Signal) {}

func (b *wgpuRendererBackendImpl) DestroyFence(f common.Fence) {}

// BeginFrame drops encoders from batches that were recorded but never submitted.
func (b *wgpuRendererBackendImpl) BeginFrame(slot common.FrameSlot) error {
	for id, batch := range b.open {
		if batch.encoder != nil {
			batch.EndPass()
			batch.encoder.Release()
			batch.encoder = nil
		}
		delete(b.open, id)
	}
	return nil
}

func (b *wgpuRendererBackendImpl) NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error) {
	encoder, err := b.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create encoder %s: %w", label, err)
	}
	batch := &WGPUBatch{
		id:      nextHandleID(),
		label:   label,
		queue:   queue,
		backend: b,
		encoder: encoder,
	}
	b.open[batch.id] = batch
	return batch, nil
}

func (b *wgpuRendererBackendImpl) Submit(item common.Submission) error {
	buffers := make([]*wgpu.CommandBuffer, 0, len(item.Batches))
	defer func() {
		for _, cb := range buffers {
			cb.Release()
		}
	}()

	for _, batch := range item.Batches {
		wb, ok := batch.(*WGPUBatch)
		if !ok || wb.backend != b {
			return ErrForeignHandle
		}
		if wb.submitted {
			return fmt.Errorf("batch %s submitted twice", wb.label)
		}
		wb.submitted = true
		delete(b.open, wb.id)
		cb, err := wb.finish()
		if err != nil {
			return fmt.Errorf("finish %s: %w", wb.label, err)
		}
		buffers = append(buffers, cb)
	}

	if len(buffers) > 0 {
		b.queue.Submit(buffers...)
	}

	if item.Fence != nil {
		wf, ok := item.Fence.(*wgpuFence)
		if !ok {
			return ErrForeignHandle
		}
		wf.submitted.Store(true)
		b.fenceMu.Lock()
		b.inflight = append(b.inflight, wf)
		b.fenceMu.Unlock()
	}
	return nil
}

// WaitFences polls the device until idle, which completes every fence submitted so far.
// The poll runs on its own goroutine so the wait can time out.
func (b *wgpuRendererBackendImpl) WaitFences(fences []common.Fence, timeout time.Duration) (bool, error) {
	waiting := false
	for _, f := range fences {
		wf, ok := f.(*wgpuFence)
		if !ok {
			return false, ErrForeignHandle
		}
		if !wf.done.Load() {
			if !wf.submitted.Load() {
				return false, errors.New("wait on a fence that was never submitted")
			}
			waiting = true
		}
	}
	if !waiting {
		return true, nil
	}

	b.fenceMu.Lock()
	batch := b.inflight
	b.inflight = nil
	b.fenceMu.Unlock()

	done := make(chan struct{})
	go func() {
		b.device.Poll(true, nil)
		for _, f := range batch {
			f.done.Store(true)
		}
		close(done)
	}()

	select {
	case <-done:
		return true, nil
	case <-time.After(timeout):
		return false, nil
	}
}

func (b *wgpuRendererBackendImpl) CreateQuerySet(label string, count uint32) (common.QuerySet, error) {
	if count == 0 {
		return nil, errors.New("query set needs at least one query")
	}
	set, err := b.device.CreateQuerySet(&wgpu.QuerySetDescriptor{
		Label: label,
		Type:  wgpu.QueryTypeOcclusion,
		Count: count,
	})
	if err != nil {
		return nil, fmt.Errorf("create query set %s: %w", label, err)
	}
	size := uint64(count) * 8
	resolve, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " resolve",
		Size:  size,
		Usage: wgpu.BufferUsageQueryResolve | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		set.Release()
		return nil, err
	}
	readback, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label + " readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		set.Release()
		resolve.Release()
		return nil, err
	}
	return &wgpuQuerySet{
		mu:       &sync.Mutex{},
		label:    label,
		capacity: count,
		device:   b.device,
		queue:    b.queue,
		set:      set,
		resolve:  resolve,
		readback: readback,
	}, nil
}

func (b *wgpuRendererBackendImpl) ConfigureSurface(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("configure surface %dx%d: invalid size", width, height)
	}
	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surfaceFormat = &capabilities.Formats[0]

	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      *b.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	count := uint32(b.sampleCount)
	msaaEnabled := count > 1

	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
		b.msaaTextureView = nil
	}
	if msaaEnabled {
		// The pass draws into the MSAA texture and resolves into the swapchain view.
		msaaTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
			Label: "MSAA Texture",
			Size: wgpu.Extent3D{
				Width:              uint32(width),
				Height:             uint32(height),
				DepthOrArrayLayers: 1,
			},
			MipLevelCount: 1,
			SampleCount:   count,
			Dimension:     wgpu.TextureDimension2D,
			Format:        *b.surfaceFormat,
			Usage:         wgpu.TextureUsageRenderAttachment,
		})
		if err != nil {
			return err
		}
		b.msaaTextureView, err = msaaTexture.CreateView(nil)
		if err != nil {
			return err
		}
	}

	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	// Depth texture sample count must match the color attachment.
	depthTexture, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Depth Texture",
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   count,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth24Plus,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return err
	}
	b.depthTextureView, err = depthTexture.CreateView(nil)
	if err != nil {
		return err
	}

	storeOp := wgpu.StoreOpStore
	if msaaEnabled {
		storeOp = wgpu.StoreOpDiscard
	}
	b.renderPassDescriptor = &wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:    b.msaaTextureView, // nil when MSAA is off; set per pass
				LoadOp:  wgpu.LoadOpClear,
				StoreOp: storeOp,
				ClearValue: wgpu.Color{
					R: 0.1, G: 0.1, B: 0.1, A: 1.0,
				},
			},
		},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            b.depthTextureView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	}
	return nil
}

// surfacePassDescriptor returns a copy of the surface pass descriptor bound to the held image.
func (b *wgpuRendererBackendImpl) surfacePassDescriptor() (*wgpu.RenderPassDescriptor, error) {
	if b.frameView == nil || b.renderPassDescriptor == nil {
		return nil, errors.New("no surface image acquired")
	}
	color := b.renderPassDescriptor.ColorAttachments[0]
	depth := *b.renderPassDescriptor.DepthStencilAttachment
	if b.sampleCount > 1 {
		color.ResolveTarget = b.frameView
	} else {
		color.View = b.frameView
	}
	if b.surfacePass > 0 {
		color.LoadOp = wgpu.LoadOpLoad
		depth.DepthLoadOp = wgpu.LoadOpLoad
	}
	b.surfacePass++
	return &wgpu.RenderPassDescriptor{
		ColorAttachments:       []wgpu.RenderPassColorAttachment{color},
		DepthStencilAttachment: &depth,
	}, nil
}

func (b *wgpuRendererBackendImpl) SetPresentMode(mode PresentMode) {
	switch mode {
	case PresentModeVSync:
		b.presentMode = wgpu.PresentModeFifo
	case PresentModeUncapped:
		fallthrough
	default:
		b.presentMode = wgpu.PresentModeImmediate
	}
}

func (b *wgpuRendererBackendImpl) AcquireImage(signal common.Signal) (uint32, bool, error) {
	// A held image means the previous frame was never presented.
	if b.frameSurface != nil {
		return 0, false, errors.New("previous frame surface not yet presented")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		log.Printf("[Renderer] surface texture unavailable, reconfiguring: %v", err)
		return 0, true, nil
	}

	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return 0, false, err
	}

	b.frameSurface = surfaceTexture
	b.frameView = view
	b.surfacePass = 0
	return 0, false, nil
}

// Present ignores waits: submissions and presentation are ordered on the single queue.
func (b *wgpuRendererBackendImpl) Present(imageIndex uint32, waits []common.Signal) (bool, error) {
	if b.frameSurface == nil {
		return false, nil
	}

	b.surface.Present()

	if b.frameView != nil {
		b.frameView.Release()
		b.frameView = nil
	}
	b.frameSurface.Release()
	b.frameSurface = nil
	return false, nil
}

func (b *wgpuRendererBackendImpl) WaitIdle() {
	b.device.Poll(true, nil)
}

func (b *wgpuRendererBackendImpl) Release() {
	if b.frameView != nil {
		b.frameView.Release()
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
	}
	if b.msaaTextureView != nil {
		b.msaaTextureView.Release()
	}
	if b.depthTextureView != nil {
		b.depthTextureView.Release()
	}
	b.queue.Release()
	b.device.Release()
	b.adapter.Release()
	b.surface.Release()
	b.instance.Release()
}
