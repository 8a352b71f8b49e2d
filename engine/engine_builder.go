package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/recorder"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables performance profiling output.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithTickRate sets the engine tick rate in frames per second.
// The tick callback will be called at this rate for game logic updates.
// Values <= 0 will be treated as the default (60Hz).
//
// Parameters:
//   - fps: target ticks per second (default 60)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickRate(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			fps = 60.0
		}
		e.engineTickRate = time.Second / time.Duration(fps)
	}
}

// WithWindow sets a custom configured window for the engine to use rather than allowing the engine
// to create and manage one internally.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer sets the renderer the frame loop submits to. The engine takes ownership and
// releases it on shutdown.
//
// Parameters:
//   - r: a renderer created for the engine's window
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithRecorder sets the recorder that fills the frame's command batches.
// Defaults to a draw recorder that plans draws and records nothing.
//
// Parameters:
//   - rec: the recorder
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRecorder(rec recorder.Recorder) EngineBuilderOption {
	return func(e *engine) {
		e.recorder = rec
	}
}

// WithScene registers a scene at the given z-index key during engine construction.
// Scenes are recorded in ascending key order during the render loop.
//
// Parameters:
//   - key: the z-index determining render order (lower renders first)
//   - s: the Scene to register
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithScene(key int, s scene.Scene) EngineBuilderOption {
	return func(e *engine) {
		e.scenes[key] = s
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Second / time.Duration(fps)
	}
}

// WithMaxFramesInFlight sets how many frames the CPU may record ahead of the GPU.
// Values < 1 are ignored (default 2).
//
// Parameters:
//   - n: the number of frame slots
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxFramesInFlight(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.maxFramesInFlight = n
		}
	}
}

// WithMaxEntities sets the entity index bound of every camera's occlusion query set.
// Entities with a larger index are drawn but never queried. Values < 1 are ignored (default 4096).
//
// Parameters:
//   - n: the maximum number of entities
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxEntities(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.maxEntities = n
		}
	}
}

// WithMaxViews sets the view bound of every camera's occlusion query set.
// Values < 1 are ignored (default 2).
//
// Parameters:
//   - n: the maximum number of views per camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithMaxViews(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.maxViews = n
		}
	}
}

// WithFenceTimeout sets how long the frame loop waits on a slot's fences before failing.
//
// Parameters:
//   - d: the timeout (default 1s)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFenceTimeout(d time.Duration) EngineBuilderOption {
	return func(e *engine) {
		if d > 0 {
			e.fenceTimeout = d
		}
	}
}

// WithVisibilityWorkers sets the number of workers culling cameras in parallel.
// Zero keeps the visibility engine's default.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithVisibilityWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.visibilityWorkers = max(n, 0)
	}
}

// WithDownloadWorkers sets how many cameras download occlusion results concurrently.
// Values < 1 are ignored (default 4).
//
// Parameters:
//   - n: the concurrency limit
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithDownloadWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		if n >= 1 {
			e.downloadWorkers = n
		}
	}
}
