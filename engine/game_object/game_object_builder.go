package game_object

import "github.com/Carmen-Shannon/oxy-frame/common"

// GameObjectBuilderOption is a functional option for configuring a GameObject during construction.
type GameObjectBuilderOption func(*gameObject)

// WithEnabled sets whether the GameObject is enabled for rendering.
//
// Parameters:
//   - enabled: true to render the object, false to skip it
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.enabled.Store(enabled)
	}
}

// WithMesh sets the mesh handle draw callbacks record for this GameObject.
//
// Parameters:
//   - mesh: the mesh handle
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the mesh
func WithMesh(mesh any) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.mesh = mesh
	}
}

// WithTransparent marks the GameObject's material as alpha blended.
//
// Parameters:
//   - transparent: true for blended materials
//
// Returns:
//   - GameObjectBuilderOption: functional option to set transparency
func WithTransparent(transparent bool) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.transparent = transparent
	}
}

// WithBounds sets the local-space bounding sphere.
//
// Parameters:
//   - bounds: the bounding sphere
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the bounds
func WithBounds(bounds common.BoundingSphere) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.bounds = bounds
	}
}

// WithPosition sets the initial position of the GameObject.
//
// Parameters:
//   - x, y, z: position components
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the position
func WithPosition(x, y, z float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.position = [3]float32{x, y, z}
	}
}

// WithRotation sets the initial Euler rotation in radians.
//
// Parameters:
//   - rx, ry, rz: rotation angles
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation
func WithRotation(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotation = [3]float32{rx, ry, rz}
	}
}

// WithRotationSpeed sets the rotation applied per second by Update.
//
// Parameters:
//   - rx, ry, rz: rotation speeds
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the rotation speed
func WithRotationSpeed(rx, ry, rz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.rotationSpeed = [3]float32{rx, ry, rz}
	}
}

// WithScale sets the initial scale.
//
// Parameters:
//   - sx, sy, sz: scale components
//
// Returns:
//   - GameObjectBuilderOption: functional option to set the scale
func WithScale(sx, sy, sz float32) GameObjectBuilderOption {
	return func(obj *gameObject) {
		obj.scale = [3]float32{sx, sy, sz}
	}
}
