package camera

import (
	"errors"
	"sync"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

var (
	// ErrNoRenderTarget is returned when a camera has nothing to render into.
	ErrNoRenderTarget = errors.New("camera has no render target")

	// ErrNotInitialized is returned when a camera's transform has never been set.
	ErrNotInitialized = errors.New("camera is not initialized")
)

// MaxViews is the largest number of views a single camera may render (one per multiview eye).
const MaxViews = 6

// RenderTarget is anything a camera can render into: a window surface or an offscreen texture.
type RenderTarget interface {
	// Width returns the target width in pixels.
	Width() int
	// Height returns the target height in pixels.
	Height() int
}

type cameraImpl struct {
	mu *sync.Mutex

	id          uuid.UUID
	entityIndex int
	renderOrder int

	up     mgl32.Vec3
	fov    float32
	aspect float32
	near   float32
	far    float32

	viewCount           int
	eyeOffsets          [MaxViews]mgl32.Mat4
	projections         [MaxViews]mgl32.Mat4
	projectionOverrides map[int]mgl32.Mat4

	worldToLocal mgl32.Mat4
	localToWorld mgl32.Mat4
	initialized  bool

	depthPrepass       bool
	visibilityPaused   bool
	maxVisibleDistance float32

	renderTarget RenderTarget
	controller   CameraController
}

// Camera is a renderable point of view with one or more views (stereo/multiview eyes).
// Each view's clip matrix is Projection(view) * View(view) * WorldToLocal().
// A camera is the unit the frame loop culls, occlusion-queries and records for.
type Camera interface {
	// ID returns the camera's stable identity.
	//
	// Returns:
	//   - uuid.UUID: the camera id
	ID() uuid.UUID

	// EntityIndex returns the index of the entity this camera is attached to, or -1.
	// That entity is never culled or drawn by its own camera.
	//
	// Returns:
	//   - int: the entity index or -1
	EntityIndex() int

	// RenderOrder returns the camera's render order. Lower values render first;
	// cameras sharing a value are recorded as one concurrent stage.
	//
	// Returns:
	//   - int: the render order
	RenderOrder() int

	// SetRenderOrder sets the camera's render order.
	//
	// Parameters:
	//   - order: the new render order
	SetRenderOrder(order int)

	// ViewCount returns the number of views the camera renders.
	//
	// Returns:
	//   - int: number of views, at least 1
	ViewCount() int

	// Projection returns the projection matrix of the given view.
	//
	// Parameters:
	//   - view: the view index
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	Projection(view int) mgl32.Mat4

	// View returns the eye offset matrix of the given view, applied after WorldToLocal.
	//
	// Parameters:
	//   - view: the view index
	//
	// Returns:
	//   - mgl32.Mat4: the eye offset matrix, identity for a mono camera
	View(view int) mgl32.Mat4

	// ViewProjection returns Projection(view) * View(view) * WorldToLocal().
	//
	// Parameters:
	//   - view: the view index
	//
	// Returns:
	//   - mgl32.Mat4: the combined clip matrix of the view
	ViewProjection(view int) mgl32.Mat4

	// WorldToLocal returns the camera transform mapping world space into camera space.
	//
	// Returns:
	//   - mgl32.Mat4: the world-to-local matrix
	WorldToLocal() mgl32.Mat4

	// LocalToWorld returns the inverse of WorldToLocal.
	//
	// Returns:
	//   - mgl32.Mat4: the local-to-world matrix
	LocalToWorld() mgl32.Mat4

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the camera position
	Position() mgl32.Vec3

	// SetTransform sets the camera transform directly. Used when no controller is attached.
	//
	// Parameters:
	//   - worldToLocal: the world-to-local matrix
	SetTransform(worldToLocal mgl32.Mat4)

	// SetAspect sets the aspect ratio (width / height) and recomputes projections.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetProjection overrides the projection of one view. Overrides survive SetAspect.
	//
	// Parameters:
	//   - view: the view index
	//   - projection: the projection matrix
	SetProjection(view int, projection mgl32.Mat4)

	// DepthPrepass reports whether the camera records a depth pre-pass.
	// Only cameras with a depth pre-pass issue occlusion queries.
	//
	// Returns:
	//   - bool: true if a depth pre-pass is recorded
	DepthPrepass() bool

	// SetDepthPrepass enables or disables the depth pre-pass.
	//
	// Parameters:
	//   - enabled: true to record a depth pre-pass
	SetDepthPrepass(enabled bool)

	// VisibilityTestingPaused reports whether culling and occlusion state are frozen.
	//
	// Returns:
	//   - bool: true if visibility testing is paused
	VisibilityTestingPaused() bool

	// SetVisibilityTestingPaused freezes or resumes culling and occlusion queries.
	//
	// Parameters:
	//   - paused: true to freeze the previous frame's visibility
	SetVisibilityTestingPaused(paused bool)

	// MaxVisibleDistance returns the distance beyond which entities are neither queried nor drawn.
	//
	// Returns:
	//   - float32: the max visible distance
	MaxVisibleDistance() float32

	// SetMaxVisibleDistance sets the max visible distance.
	//
	// Parameters:
	//   - distance: the new distance
	SetMaxVisibleDistance(distance float32)

	// RenderTarget returns the camera's render target, or nil.
	//
	// Returns:
	//   - RenderTarget: the render target or nil
	RenderTarget() RenderTarget

	// SetRenderTarget sets the camera's render target.
	//
	// Parameters:
	//   - target: the render target
	SetRenderTarget(target RenderTarget)

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// Update reads position/target from the controller and recomputes the transform.
	// If no controller is attached, this method does nothing.
	Update()

	// Validate checks that the camera can contribute to a frame.
	//
	// Returns:
	//   - error: ErrNotInitialized or ErrNoRenderTarget, nil when ready
	Validate() error
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings and a single view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:                  &sync.Mutex{},
		id:                  uuid.New(),
		entityIndex:         -1,
		up:                  mgl32.Vec3{0, 1, 0},
		fov:                 mgl32.DegToRad(45),
		aspect:              1.0,
		near:                0.1,
		far:                 1000.0,
		viewCount:           1,
		projectionOverrides: make(map[int]mgl32.Mat4),
		worldToLocal:        mgl32.Ident4(),
		localToWorld:        mgl32.Ident4(),
		maxVisibleDistance:  math32.Inf(1),
	}
	for i := range c.eyeOffsets {
		c.eyeOffsets[i] = mgl32.Ident4()
	}
	for _, option := range options {
		option(c)
	}
	c.updateProjections()
	c.updateTransform()
	return c
}

func (c *cameraImpl) ID() uuid.UUID {
	return c.id
}

func (c *cameraImpl) EntityIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entityIndex
}

func (c *cameraImpl) RenderOrder() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderOrder
}

func (c *cameraImpl) SetRenderOrder(order int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderOrder = order
}

func (c *cameraImpl) ViewCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewCount
}

func (c *cameraImpl) Projection(view int) mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projections[c.clampView(view)]
}

func (c *cameraImpl) View(view int) mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.eyeOffsets[c.clampView(view)]
}

func (c *cameraImpl) ViewProjection(view int) mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.clampView(view)
	return c.projections[v].Mul4(c.eyeOffsets[v]).Mul4(c.worldToLocal)
}

func (c *cameraImpl) WorldToLocal() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.worldToLocal
}

func (c *cameraImpl) LocalToWorld() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localToWorld
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localToWorld.Col(3).Vec3()
}

func (c *cameraImpl) SetTransform(worldToLocal mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTransform(worldToLocal)
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateProjections()
}

func (c *cameraImpl) SetProjection(view int, projection mgl32.Mat4) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if view < 0 || view >= MaxViews {
		return
	}
	c.projectionOverrides[view] = projection
	c.updateProjections()
}

func (c *cameraImpl) DepthPrepass() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depthPrepass
}

func (c *cameraImpl) SetDepthPrepass(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depthPrepass = enabled
}

func (c *cameraImpl) VisibilityTestingPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visibilityPaused
}

func (c *cameraImpl) SetVisibilityTestingPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visibilityPaused = paused
}

func (c *cameraImpl) MaxVisibleDistance() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxVisibleDistance
}

func (c *cameraImpl) SetMaxVisibleDistance(distance float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxVisibleDistance = distance
}

func (c *cameraImpl) RenderTarget() RenderTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderTarget
}

func (c *cameraImpl) SetRenderTarget(target RenderTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renderTarget = target
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateTransform()
}

func (c *cameraImpl) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	if c.renderTarget == nil {
		return ErrNoRenderTarget
	}
	return nil
}

// clampView maps out-of-range view indices onto the last active view.
// Caller must hold the mutex.
func (c *cameraImpl) clampView(view int) int {
	return min(max(view, 0), c.viewCount-1)
}

// setTransform stores the transform and its inverse.
// Caller must hold the mutex.
func (c *cameraImpl) setTransform(worldToLocal mgl32.Mat4) {
	c.worldToLocal = worldToLocal
	c.localToWorld = worldToLocal.Inv()
	c.initialized = true
}

// updateTransform derives the transform from the controller. No-op without a controller.
// Caller must hold the mutex.
func (c *cameraImpl) updateTransform() {
	if c.controller == nil {
		return
	}
	c.setTransform(mgl32.LookAtV(c.controller.Position(), c.controller.Target(), c.up))
}

// updateProjections recomputes every view's projection from the perspective settings,
// keeping per-view overrides.
// Caller must hold the mutex.
func (c *cameraImpl) updateProjections() {
	base := mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
	for v := range c.projections {
		if p, ok := c.projectionOverrides[v]; ok {
			c.projections[v] = p
			continue
		}
		c.projections[v] = base
	}
}
