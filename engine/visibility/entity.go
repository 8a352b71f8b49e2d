package visibility

import (
	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Entity is the view of a scene entity the visibility engine needs.
// Index is the entity's stable slot in the scene and doubles as its occlusion query index.
type Entity interface {
	// Index returns the entity's scene index.
	//
	// Returns:
	//   - int: the index, unique among live entities
	Index() int

	// Renderable reports whether the entity has a mesh, transform and material to draw.
	// Non-renderable entities are left out of visibility results.
	//
	// Returns:
	//   - bool: true if the entity can be drawn
	Renderable() bool

	// Transparent reports whether the entity's material is alpha blended.
	//
	// Returns:
	//   - bool: true for transparent materials
	Transparent() bool

	// Bounds returns the entity's bounding sphere in local space.
	//
	// Returns:
	//   - common.BoundingSphere: the local bounding sphere
	Bounds() common.BoundingSphere

	// LocalToWorld returns the entity's model matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the local-to-world matrix
	LocalToWorld() mgl32.Mat4

	// WorldToLocal returns the inverse of LocalToWorld.
	//
	// Returns:
	//   - mgl32.Mat4: the world-to-local matrix
	WorldToLocal() mgl32.Mat4
}

// VisibleEntityInfo is one entity's culling result for one camera view.
// Culled entities carry an infinite distance and sort to the end.
type VisibleEntityInfo struct {
	Entity   Entity
	Distance float32
	Visible  bool
}
