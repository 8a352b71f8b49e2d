package camera

import "github.com/go-gl/mathgl/mgl32"

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithUp sets the camera's up vector.
//
// Parameters:
//   - up: the up vector
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's up vector
func WithUp(up mgl32.Vec3) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.up = up
	}
}

// WithFov sets the camera's vertical field of view in radians.
//
// Parameters:
//   - fov: field of view in radians
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFov(fov float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}

// WithAspect sets the camera's aspect ratio (width / height).
//
// Parameters:
//   - aspect: the aspect ratio to set
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's aspect ratio
func WithAspect(aspect float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.aspect = aspect
	}
}

// WithNear sets the near clipping plane distance.
//
// Parameters:
//   - near: near plane distance
//
// Returns:
//   - CameraBuilderOption: a function that sets the near plane
func WithNear(near float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.near = near
	}
}

// WithFar sets the far clipping plane distance.
//
// Parameters:
//   - far: far plane distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the far plane
func WithFar(far float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.far = far
	}
}

// WithController attaches a controller. The transform is derived from it once all options are applied.
//
// Parameters:
//   - ctrl: the controller to attach
//
// Returns:
//   - CameraBuilderOption: functional option to set the controller
func WithController(ctrl CameraController) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.controller = ctrl
	}
}

// WithTransform sets the initial world-to-local transform.
//
// Parameters:
//   - worldToLocal: the camera transform
//
// Returns:
//   - CameraBuilderOption: functional option to set the transform
func WithTransform(worldToLocal mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.setTransform(worldToLocal)
	}
}

// WithEntityIndex attaches the camera to an entity so the camera does not cull or draw it.
//
// Parameters:
//   - index: the entity index
//
// Returns:
//   - CameraBuilderOption: functional option to set the entity index
func WithEntityIndex(index int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.entityIndex = index
	}
}

// WithRenderOrder sets the camera's render order.
//
// Parameters:
//   - order: lower values render first
//
// Returns:
//   - CameraBuilderOption: functional option to set the render order
func WithRenderOrder(order int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.renderOrder = order
	}
}

// WithViewCount sets the number of views, clamped to [1, MaxViews].
//
// Parameters:
//   - count: number of views
//
// Returns:
//   - CameraBuilderOption: functional option to set the view count
func WithViewCount(count int) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.viewCount = min(max(count, 1), MaxViews)
	}
}

// WithEyeOffsets sets per-view eye offset matrices and the view count to match.
//
// Parameters:
//   - offsets: one matrix per view
//
// Returns:
//   - CameraBuilderOption: functional option to set the eye offsets
func WithEyeOffsets(offsets ...mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		n := min(len(offsets), MaxViews)
		copy(c.eyeOffsets[:n], offsets)
		c.viewCount = max(n, 1)
	}
}

// WithProjection overrides one view's projection matrix.
//
// Parameters:
//   - view: the view index
//   - projection: the projection matrix
//
// Returns:
//   - CameraBuilderOption: functional option to set the projection
func WithProjection(view int, projection mgl32.Mat4) CameraBuilderOption {
	return func(c *cameraImpl) {
		if view >= 0 && view < MaxViews {
			c.projectionOverrides[view] = projection
		}
	}
}

// WithDepthPrepass enables the depth pre-pass and with it occlusion queries.
//
// Parameters:
//   - enabled: true to record a depth pre-pass
//
// Returns:
//   - CameraBuilderOption: functional option to set the depth pre-pass flag
func WithDepthPrepass(enabled bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.depthPrepass = enabled
	}
}

// WithVisibilityTestingPaused starts the camera with frozen visibility.
//
// Parameters:
//   - paused: true to freeze visibility testing
//
// Returns:
//   - CameraBuilderOption: functional option to set the paused flag
func WithVisibilityTestingPaused(paused bool) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.visibilityPaused = paused
	}
}

// WithMaxVisibleDistance sets the distance beyond which entities are not drawn.
//
// Parameters:
//   - distance: the max visible distance
//
// Returns:
//   - CameraBuilderOption: functional option to set the max visible distance
func WithMaxVisibleDistance(distance float32) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.maxVisibleDistance = distance
	}
}

// WithRenderTarget sets the camera's render target.
//
// Parameters:
//   - target: a window or offscreen target
//
// Returns:
//   - CameraBuilderOption: functional option to set the render target
func WithRenderTarget(target RenderTarget) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.renderTarget = target
	}
}
