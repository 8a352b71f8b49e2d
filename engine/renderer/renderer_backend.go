package renderer

import (
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeVulkan selects the Vulkan backend. The caller owns the device, queues and swapchain.
	BackendTypeVulkan

	// BackendTypeHeadless selects a backend with no GPU. Submissions complete immediately.
	BackendTypeHeadless
)

func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeVulkan:
		return "vulkan"
	case BackendTypeHeadless:
		return "headless"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// CommandBatch is a recordable unit of GPU work returned by the Renderer.
// Draw callbacks type-assert it to the backend batch (WGPUBatch, VulkanBatch) to record commands.
type CommandBatch interface {
	common.CommandBatch
	common.QueryRecorder
}

// RendererBackend is the top-level backend interface for the Renderer.
// Every method is called with the Renderer's mutex held.
type RendererBackend interface {
	CreateSignal() (common.Signal, error)
	CreateFence() (common.Fence, error)
	ResetFence(f common.Fence) error
	DestroySignal(s common.Signal)
	DestroyFence(f common.Fence)

	BeginFrame(slot common.FrameSlot) error
	NewCommandBatch(label string, queue common.QueueSelector) (CommandBatch, error)
	Submit(item common.Submission) error
	WaitFences(fences []common.Fence, timeout time.Duration) (bool, error)

	CreateQuerySet(label string, count uint32) (common.QuerySet, error)

	ConfigureSurface(width, height int) error
	SetPresentMode(mode PresentMode)
	AcquireImage(signal common.Signal) (imageIndex uint32, outOfDate bool, err error)
	Present(imageIndex uint32, waits []common.Signal) (outOfDate bool, err error)

	WaitIdle()
	Release()
}

var handleIDs atomic.Uint64

// nextHandleID returns a process-wide unique id for signals, fences and batches.
func nextHandleID() uint64 {
	return handleIDs.Add(1)
}

// MSAASampleCount controls the number of samples used for multisample anti-aliasing (MSAA).
// Only specific power-of-two values are valid for GPU hardware. WebGPU guarantees support for
// 1 (off) and 4; higher values (8, 16) are adapter-dependent and may not be available.
type MSAASampleCount uint32

const (
	// MSAAOff disables multisample anti-aliasing (sample count 1).
	MSAAOff MSAASampleCount = 1

	// MSAA4x enables 4× multisample anti-aliasing. This is the default.
	MSAA4x MSAASampleCount = 4
)
