package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance from p to the plane.
// Positive values lie on the inside half-space.
//
// Parameters:
//   - p: the point to measure
//
// Returns:
//   - float32: the signed distance
func (p Plane) SignedDistance(point mgl32.Vec3) float32 {
	return p.Normal.Dot(point) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustum extracts normalized frustum planes from a combined clip matrix.
// Uses the Gribb/Hartmann method: each plane is row 3 plus or minus one of rows 0..2.
// When m maps an object's local space to clip space, the planes are expressed in that local space.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - m: the clip matrix (projection * view * model), column-major
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustum(m mgl32.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	rows := [6]mgl32.Vec4{
		FrustumLeft:   r3.Add(r0),
		FrustumRight:  r3.Sub(r0),
		FrustumBottom: r3.Add(r1),
		FrustumTop:    r3.Sub(r1),
		FrustumNear:   r3.Add(r2),
		FrustumFar:    r3.Sub(r2),
	}

	var f Frustum
	for i, r := range rows {
		f.Planes[i] = Plane{Normal: r.Vec3(), Distance: r[3]}
		f.normalizePlane(i)
	}
	return f
}

// CheckSphere reports whether a sphere intersects or lies inside the frustum.
// A sphere is rejected only when it lies entirely on the outside of some plane,
// so a sphere exactly tangent to a plane from outside is still accepted.
//
// Parameters:
//   - center: the sphere center, in the same space as the planes
//   - radius: the sphere radius
//
// Returns:
//   - bool: false if the sphere is fully outside any plane
func (f *Frustum) CheckSphere(center mgl32.Vec3, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := math32.Sqrt(p.Normal.Dot(p.Normal))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
}
