package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestExtractFrustum_OrthoPlanes(t *testing.T) {
	f := ExtractFrustum(mgl32.Ortho(-8, 8, -8, 8, 0, 16))

	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, f.Planes[FrustumRight].Normal)
	assert.Equal(t, float32(8), f.Planes[FrustumRight].Distance)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, f.Planes[FrustumLeft].Normal)
	assert.Equal(t, mgl32.Vec3{0, 0, -1}, f.Planes[FrustumNear].Normal)
	assert.Equal(t, float32(0), f.Planes[FrustumNear].Distance)
}

func TestCheckSphere(t *testing.T) {
	f := ExtractFrustum(mgl32.Ortho(-8, 8, -8, 8, 0, 16))

	tests := []struct {
		name    string
		center  mgl32.Vec3
		radius  float32
		visible bool
	}{
		{"fully inside", mgl32.Vec3{0, 0, -4}, 1, true},
		{"outside right by twice the radius", mgl32.Vec3{10, 0, -4}, 1, false},
		{"tangent to near plane", mgl32.Vec3{0, 0, 0.5}, 0.5, true},
		{"straddling left plane", mgl32.Vec3{-8.5, 0, -4}, 1, true},
		{"beyond far plane", mgl32.Vec3{0, 0, -20}, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.visible, f.CheckSphere(tt.center, tt.radius))
		})
	}
}

func TestCheckSphere_Perspective(t *testing.T) {
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustum(proj.Mul4(view))

	assert.True(t, f.CheckSphere(mgl32.Vec3{}, 1))
	assert.False(t, f.CheckSphere(mgl32.Vec3{0, 0, 10}, 1), "behind the camera")
	assert.False(t, f.CheckSphere(mgl32.Vec3{50, 0, 0}, 1))
}

func TestFrameSlotNext(t *testing.T) {
	assert.Equal(t, FrameSlot(1), FrameSlot(0).Next(2))
	assert.Equal(t, FrameSlot(0), FrameSlot(1).Next(2))
	assert.Equal(t, FrameSlot(0), FrameSlot(0).Next(0))
}
