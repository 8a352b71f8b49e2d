package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu      *sync.Mutex
	index   atomic.Int32
	enabled atomic.Bool

	mesh        any
	transparent bool
	bounds      common.BoundingSphere

	position      [3]float32
	rotation      [3]float32
	rotationSpeed [3]float32
	scale         [3]float32

	dirty        bool
	localToWorld mgl32.Mat4
	worldToLocal mgl32.Mat4
}

// GameObject is a scene entity with a TRS transform, a bounding sphere and an opaque mesh handle.
// It satisfies visibility.Entity; the scene assigns its index when it is added.
type GameObject interface {
	visibility.Entity

	// SetIndex assigns the object's scene index. -1 marks it as not in a scene.
	//
	// Parameters:
	//   - index: the scene index
	SetIndex(index int)

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Mesh returns the handle draw callbacks use to record the object.
	//
	// Returns:
	//   - any: the mesh handle, or nil
	Mesh() any

	// SetMesh assigns the mesh handle. An object without one is not renderable.
	//
	// Parameters:
	//   - mesh: the mesh handle
	SetMesh(mesh any)

	// SetTransparent marks the object's material as alpha blended.
	//
	// Parameters:
	//   - transparent: true for blended materials
	SetTransparent(transparent bool)

	// SetBounds sets the local-space bounding sphere.
	//
	// Parameters:
	//   - bounds: the bounding sphere
	SetBounds(bounds common.BoundingSphere)

	// Position returns the object's world position.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Rotation returns the object's Euler rotation in radians.
	//
	// Returns:
	//   - rx, ry, rz: rotation angles
	Rotation() (rx, ry, rz float32)

	// RotationSpeed returns the rotation applied per second by Update.
	//
	// Returns:
	//   - rx, ry, rz: rotation speed values
	RotationSpeed() (rx, ry, rz float32)

	// Scale returns the object's scale.
	//
	// Returns:
	//   - sx, sy, sz: scale components
	Scale() (sx, sy, sz float32)

	// SetPosition updates the object's position.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation updates the object's Euler rotation in radians.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation angles
	SetRotation(rx, ry, rz float32)

	// SetRotationSpeed updates the rotation applied per second by Update.
	//
	// Parameters:
	//   - rx, ry, rz: new rotation speeds
	SetRotationSpeed(rx, ry, rz float32)

	// SetScale updates the object's scale.
	//
	// Parameters:
	//   - sx, sy, sz: new scale components
	SetScale(sx, sy, sz float32)

	// Update advances the rotation by RotationSpeed × dt.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	Update(dt float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates an enabled GameObject at the origin with unit scale and a unit bounding sphere.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the new object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	g := &gameObject{
		mu:     &sync.Mutex{},
		scale:  [3]float32{1, 1, 1},
		bounds: common.BoundingSphere{Radius: 1},
		dirty:  true,
	}
	g.index.Store(-1)
	g.enabled.Store(true)
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *gameObject) Index() int {
	return int(g.index.Load())
}

func (g *gameObject) SetIndex(index int) {
	g.index.Store(int32(index))
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Renderable() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled.Load() && g.mesh != nil
}

func (g *gameObject) Mesh() any {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mesh
}

func (g *gameObject) SetMesh(mesh any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mesh = mesh
}

func (g *gameObject) Transparent() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transparent
}

func (g *gameObject) SetTransparent(transparent bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transparent = transparent
}

func (g *gameObject) Bounds() common.BoundingSphere {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bounds
}

func (g *gameObject) SetBounds(bounds common.BoundingSphere) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bounds = bounds
}

func (g *gameObject) Position() (x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position[0], g.position[1], g.position[2]
}

func (g *gameObject) Rotation() (rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotation[0], g.rotation[1], g.rotation[2]
}

func (g *gameObject) RotationSpeed() (rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationSpeed[0], g.rotationSpeed[1], g.rotationSpeed[2]
}

func (g *gameObject) Scale() (sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale[0], g.scale[1], g.scale[2]
}

func (g *gameObject) SetPosition(x, y, z float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = [3]float32{x, y, z}
	g.dirty = true
}

func (g *gameObject) SetRotation(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = [3]float32{rx, ry, rz}
	g.dirty = true
}

func (g *gameObject) SetRotationSpeed(rx, ry, rz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = [3]float32{rx, ry, rz}
}

func (g *gameObject) SetScale(sx, sy, sz float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = [3]float32{sx, sy, sz}
	g.dirty = true
}

func (g *gameObject) Update(dt float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rotationSpeed == [3]float32{} {
		return
	}
	for i := range g.rotation {
		g.rotation[i] += g.rotationSpeed[i] * dt
	}
	g.dirty = true
}

func (g *gameObject) LocalToWorld() mgl32.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rebuild()
	return g.localToWorld
}

func (g *gameObject) WorldToLocal() mgl32.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rebuild()
	return g.worldToLocal
}

// rebuild recomputes T·Rz·Ry·Rx·S and its inverse. Caller holds mu.
func (g *gameObject) rebuild() {
	if !g.dirty {
		return
	}
	t := mgl32.Translate3D(g.position[0], g.position[1], g.position[2])
	r := mgl32.AnglesToQuat(g.rotation[2], g.rotation[1], g.rotation[0], mgl32.ZYX).Mat4()
	s := mgl32.Scale3D(g.scale[0], g.scale[1], g.scale[2])
	g.localToWorld = t.Mul4(r).Mul4(s)
	g.worldToLocal = g.localToWorld.Inv()
	g.dirty = false
}
