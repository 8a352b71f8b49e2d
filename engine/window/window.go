package window

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Window provides platform windowing, input event handling and the presentation state
// of one on-screen surface.
//
// Presentation state is guarded by the window mutex. The frame loop holds it from image
// acquisition until present; event callbacks that change the surface size take it too.
// Width and Height never take the mutex and may be read while it is held.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the window is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving scroll delta (positive = up/zoom in, negative = down/zoom out)
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key press events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the callback for key release events.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetMiddleMouseDownCallback sets the callback for middle mouse button press.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMiddleMouseDownCallback(callback func(x, y int32))

	// SetMiddleMouseUpCallback sets the callback for middle mouse button release.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMiddleMouseUpCallback(callback func(x, y int32))

	// SetMouseMoveCallback sets the callback for mouse movement.
	//
	// Parameters:
	//   - callback: function receiving mouse x, y position
	SetMouseMoveCallback(callback func(x, y int32))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate (Windows HWND, X11 Xlib, Wayland, macOS Metal, etc.)
	// and is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close closes the window and releases platform resources.
	//
	// Returns:
	//   - error: error if close operation fails
	Close() error

	// ProcessMessages runs the window message loop.
	// Blocks until the window is closed. Calls OnUpdate callback each iteration.
	ProcessMessages()

	// Width returns the current window client area width in pixels.
	//
	// Returns:
	//   - int: width in pixels
	Width() int

	// Height returns the current window client area height in pixels.
	//
	// Returns:
	//   - int: height in pixels
	Height() int

	// Headless reports whether the window has no platform surface.
	//
	// Returns:
	//   - bool: true for headless windows
	Headless() bool

	// Lock takes the window mutex.
	Lock()

	// Unlock releases the window mutex.
	Unlock()

	// BeginFrame clears the render-complete signals and the slot's image-acquired state.
	// Caller must hold the window mutex.
	//
	// Parameters:
	//   - slot: the active frame slot
	BeginFrame(slot common.FrameSlot)

	// SetImageAcquired records the swapchain image acquired for the slot and the signal
	// that fires once it is ready. Caller must hold the window mutex.
	//
	// Parameters:
	//   - slot: the active frame slot
	//   - sig: the image-acquired signal
	//   - imageIndex: the acquired swapchain image
	SetImageAcquired(slot common.FrameSlot, sig common.Signal, imageIndex uint32)

	// ImageAcquiredSignal returns the slot's image-acquired signal if an image was acquired this frame.
	//
	// Parameters:
	//   - slot: the active frame slot
	//
	// Returns:
	//   - common.Signal: the signal
	//   - bool: false if no image was acquired
	ImageAcquiredSignal(slot common.FrameSlot) (common.Signal, bool)

	// ImageIndex returns the swapchain image acquired for the slot.
	//
	// Parameters:
	//   - slot: the active frame slot
	//
	// Returns:
	//   - uint32: the image index
	ImageIndex(slot common.FrameSlot) uint32

	// AddRenderCompleteSignal records a signal presentation must wait on.
	//
	// Parameters:
	//   - sig: the render-complete signal
	AddRenderCompleteSignal(sig common.Signal)

	// RenderCompleteSignals returns the signals recorded since BeginFrame.
	//
	// Returns:
	//   - []common.Signal: the render-complete signals
	RenderCompleteSignals() []common.Signal

	// OutOfDate reports whether the surface must be reconfigured before the next acquire.
	//
	// Returns:
	//   - bool: true after a resize or an out-of-date acquire/present
	OutOfDate() bool

	// SetOutOfDate marks or clears the surface's out-of-date state. Caller must hold the window mutex.
	//
	// Parameters:
	//   - outOfDate: the new state
	SetOutOfDate(outOfDate bool)
}

// acquiredImage is the image-acquisition state of one frame slot.
type acquiredImage struct {
	signal     common.Signal
	imageIndex uint32
	valid      bool
}

// engineWindow is the implementation of the Window interface.
// Holds window configuration, GLFW state, and event callbacks.
type engineWindow struct {
	// title is the window title displayed in the title bar.
	title string

	// maxWidth is the maximum allowed window width during resize.
	maxWidth int

	// maxHeight is the maximum allowed window height during resize.
	maxHeight int

	// minWidth is the minimum allowed window width during resize.
	minWidth int

	// minHeight is the minimum allowed window height during resize.
	minHeight int

	// width is the current window client area width in pixels.
	width atomic.Int32

	// height is the current window client area height in pixels.
	height atomic.Int32

	// headless windows have no platform surface.
	headless bool

	// running is the open state of headless windows.
	running atomic.Bool

	// mu guards the presentation state below.
	mu *sync.Mutex

	// acquired holds the image-acquired state per frame slot.
	acquired []acquiredImage

	// renderComplete holds the signals presentation waits on this frame.
	renderComplete []common.Signal

	// outOfDate is set when the surface must be reconfigured.
	outOfDate bool

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	// onUpdate is called each iteration of the message loop (if set).
	onUpdate func()

	// onResize is called when the window is resized.
	onResize func(width, height int)

	// onScroll is called for mouse wheel events.
	// Positive delta = scroll up (zoom in), negative = scroll down (zoom out).
	onScroll func(delta float32)

	// onKeyDown is called when a key is pressed.
	onKeyDown func(keyCode uint32)

	// onKeyUp is called when a key is released.
	onKeyUp func(keyCode uint32)

	// onMiddleMouseDown is called when the middle mouse button is pressed.
	onMiddleMouseDown func(x, y int32)

	// onMiddleMouseUp is called when the middle mouse button is released.
	onMiddleMouseUp func(x, y int32)

	// onMouseMove is called when the mouse moves within the window.
	onMouseMove func(x, y int32)
}

var _ Window = &engineWindow{}

// NewWindow creates a new Window with the specified options.
// Applies default values first, then each option in order.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the configured window (not yet spawned)
func NewWindow(options ...WindowBuilderOption) Window {
	w := &engineWindow{
		title:     "Default Window Title",
		maxWidth:  1600,
		maxHeight: 1200,
		minWidth:  600,
		minHeight: 200,
		mu:        &sync.Mutex{},
	}
	w.width.Store(1280)
	w.height.Store(720)
	for _, opt := range options {
		opt(w)
	}
	if w.headless {
		w.running.Store(true)
		return w
	}
	if err := newPlatformWindow(w); err != nil {
		panic(fmt.Sprintf("failed to create platform window: %v", err))
	}
	return w
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetMiddleMouseDownCallback(callback func(x, y int32)) {
	w.onMiddleMouseDown = callback
}

func (w *engineWindow) SetMiddleMouseUpCallback(callback func(x, y int32)) {
	w.onMiddleMouseUp = callback
}

func (w *engineWindow) SetMouseMoveCallback(callback func(x, y int32)) {
	w.onMouseMove = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	if w.headless {
		return w.running.Load()
	}
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	if w.headless {
		w.running.Store(false)
		return nil
	}
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !w.headless {
			if succ := platformProcessMessages(w); !succ {
				break
			}
		}

		if w.onUpdate != nil {
			w.onUpdate()
		}

		runtime.Gosched()
	}
}

func (w *engineWindow) Width() int {
	return int(w.width.Load())
}

func (w *engineWindow) Height() int {
	return int(w.height.Load())
}

func (w *engineWindow) Headless() bool {
	return w.headless
}

func (w *engineWindow) Lock() {
	w.mu.Lock()
}

func (w *engineWindow) Unlock() {
	w.mu.Unlock()
}

func (w *engineWindow) BeginFrame(slot common.FrameSlot) {
	clear(w.renderComplete)
	w.renderComplete = w.renderComplete[:0]
	if int(slot) < len(w.acquired) {
		w.acquired[slot] = acquiredImage{}
	}
}

func (w *engineWindow) SetImageAcquired(slot common.FrameSlot, sig common.Signal, imageIndex uint32) {
	if slot < 0 {
		return
	}
	for int(slot) >= len(w.acquired) {
		w.acquired = append(w.acquired, acquiredImage{})
	}
	w.acquired[slot] = acquiredImage{signal: sig, imageIndex: imageIndex, valid: true}
}

func (w *engineWindow) ImageAcquiredSignal(slot common.FrameSlot) (common.Signal, bool) {
	if slot < 0 || int(slot) >= len(w.acquired) || !w.acquired[slot].valid {
		return nil, false
	}
	return w.acquired[slot].signal, true
}

func (w *engineWindow) ImageIndex(slot common.FrameSlot) uint32 {
	if slot < 0 || int(slot) >= len(w.acquired) {
		return 0
	}
	return w.acquired[slot].imageIndex
}

func (w *engineWindow) AddRenderCompleteSignal(sig common.Signal) {
	w.renderComplete = append(w.renderComplete, sig)
}

func (w *engineWindow) RenderCompleteSignals() []common.Signal {
	return w.renderComplete
}

func (w *engineWindow) OutOfDate() bool {
	return w.outOfDate
}

func (w *engineWindow) SetOutOfDate(outOfDate bool) {
	w.outOfDate = outOfDate
}

// resize stores the new framebuffer size and marks the surface out of date.
// Called from the event thread.
func (w *engineWindow) resize(width, height int) {
	w.mu.Lock()
	w.width.Store(int32(width))
	w.height.Store(int32(height))
	w.outOfDate = true
	w.mu.Unlock()
}
