package game_object

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestNewGameObject_Defaults(t *testing.T) {
	g := NewGameObject()

	assert.Equal(t, -1, g.Index())
	assert.True(t, g.Enabled())
	assert.False(t, g.Renderable(), "no mesh")
	assert.False(t, g.Transparent())
	assert.Equal(t, float32(1), g.Bounds().Radius)
	assert.True(t, g.LocalToWorld().ApproxEqual(mgl32.Ident4()))
}

func TestGameObject_Renderable(t *testing.T) {
	g := NewGameObject(WithMesh("cube"))
	assert.True(t, g.Renderable())

	g.SetEnabled(false)
	assert.False(t, g.Renderable())

	g.SetEnabled(true)
	g.SetMesh(nil)
	assert.False(t, g.Renderable())
}

func TestGameObject_TransformRoundTrip(t *testing.T) {
	g := NewGameObject(
		WithPosition(1, 2, 3),
		WithScale(2, 2, 2),
		WithRotation(0, mgl32.DegToRad(90), 0),
		WithBounds(common.BoundingSphere{Centroid: mgl32.Vec3{1, 0, 0}, Radius: 0.5}),
	)

	world := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 0}, g.LocalToWorld())
	assert.True(t, world.ApproxEqualThreshold(mgl32.Vec3{1, 2, 3}, 1e-5))

	p := mgl32.Vec3{0.3, -0.7, 1.1}
	back := mgl32.TransformCoordinate(mgl32.TransformCoordinate(p, g.LocalToWorld()), g.WorldToLocal())
	assert.True(t, back.ApproxEqualThreshold(p, 1e-4))

	g.SetPosition(-4, 0, 0)
	world = mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 0}, g.LocalToWorld())
	assert.True(t, world.ApproxEqualThreshold(mgl32.Vec3{-4, 0, 0}, 1e-5))
}

func TestGameObject_UpdateAppliesRotationSpeed(t *testing.T) {
	g := NewGameObject(WithRotationSpeed(0, 1, 0))
	g.Update(0.5)
	g.Update(0.25)

	_, ry, _ := g.Rotation()
	assert.InDelta(t, 0.75, ry, 1e-6)
}
