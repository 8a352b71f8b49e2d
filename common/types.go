// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BoundingSphere is an entity's bounding volume in its local space.
type BoundingSphere struct {
	// Centroid is the sphere center in entity-local coordinates.
	Centroid mgl32.Vec3
	// Radius is the sphere radius in entity-local units.
	Radius float32
}

// FrameSlot identifies which set of synchronization resources and query buffers is in flight.
// Valid values are in [0, maxFramesInFlight).
type FrameSlot int

// Next returns the slot that follows s, wrapping at maxFramesInFlight.
//
// Parameters:
//   - maxFramesInFlight: the number of concurrently outstanding frames
//
// Returns:
//   - FrameSlot: the next slot
func (s FrameSlot) Next(maxFramesInFlight int) FrameSlot {
	if maxFramesInFlight <= 0 {
		return 0
	}
	return FrameSlot((int(s) + 1) % maxFramesInFlight)
}
