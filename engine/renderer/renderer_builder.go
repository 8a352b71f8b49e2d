package renderer

import (
	"github.com/Carmen-Shannon/oxy-frame/common"
	vk "github.com/vulkan-go/vulkan"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithMSAA sets the multisample anti-aliasing sample count of the WebGPU surface pass.
// When not specified, the default is MSAA4x. Use MSAAOff to disable MSAA entirely.
//
// Parameters:
//   - count: the MSAASampleCount to use
//
// Returns:
//   - RendererBuilderOption: a function that applies the MSAA option to a renderer
func WithMSAA(count MSAASampleCount) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingMSAA = &count
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithVulkanDevice supplies the logical device used by the Vulkan backend.
//
// Parameters:
//   - device: an initialized logical device
//
// Returns:
//   - RendererBuilderOption: a function that applies the device option to a renderer
func WithVulkanDevice(device vk.Device) RendererBuilderOption {
	return func(r *renderer) {
		r.vulkan.device = device
	}
}

// WithVulkanQueue binds a device queue and its family index to a queue selector.
// A missing compute queue is aliased to the graphics queue.
//
// Parameters:
//   - selector: the scheduler queue the vk.Queue serves
//   - queue: the device queue
//   - familyIndex: the queue family index used for command pools
//
// Returns:
//   - RendererBuilderOption: a function that applies the queue option to a renderer
func WithVulkanQueue(selector common.QueueSelector, queue vk.Queue, familyIndex uint32) RendererBuilderOption {
	return func(r *renderer) {
		if r.vulkan.queues == nil {
			r.vulkan.queues = make(map[common.QueueSelector]vulkanQueue)
		}
		r.vulkan.queues[selector] = vulkanQueue{queue: queue, family: familyIndex}
	}
}

// WithVulkanSwapchain supplies the swapchain images are acquired from and presented to.
// The swapchain is recreated by the caller; the renderer only reports when it is out of date.
//
// Parameters:
//   - swapchain: the swapchain
//
// Returns:
//   - RendererBuilderOption: a function that applies the swapchain option to a renderer
func WithVulkanSwapchain(swapchain vk.Swapchain) RendererBuilderOption {
	return func(r *renderer) {
		r.vulkan.swapchain = swapchain
	}
}

// WithVulkanSwapchainRecreate sets the callback used to rebuild the swapchain when it goes out of date.
//
// Parameters:
//   - recreate: called with the new surface size, returns the replacement swapchain
//
// Returns:
//   - RendererBuilderOption: a function that applies the recreate option to a renderer
func WithVulkanSwapchainRecreate(recreate func(width, height int) (vk.Swapchain, error)) RendererBuilderOption {
	return func(r *renderer) {
		r.vulkan.recreate = recreate
	}
}

// WithHeadlessSampler sets the function the headless backend uses to produce occlusion query results.
// The default reports every query as having passed samples.
//
// Parameters:
//   - sampler: returns the sample count for a query slot of the named query set
//
// Returns:
//   - RendererBuilderOption: a function that applies the sampler option to a renderer
func WithHeadlessSampler(sampler func(set string, slot uint32) uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.headless.sampler = sampler
	}
}

// WithHeadlessSwapchainImages sets how many images the headless surface cycles through.
//
// Parameters:
//   - n: the image count, at least 1
//
// Returns:
//   - RendererBuilderOption: a function that applies the image count option to a renderer
func WithHeadlessSwapchainImages(n int) RendererBuilderOption {
	return func(r *renderer) {
		if n > 0 {
			r.headless.images = n
		}
	}
}
