package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()

	assert.Equal(t, -1, c.EntityIndex())
	assert.Equal(t, 1, c.ViewCount())
	assert.False(t, c.DepthPrepass())
	assert.False(t, c.VisibilityTestingPaused())
	assert.Nil(t, c.RenderTarget())
	assert.NotEqual(t, c.ID(), NewCamera().ID())
	assert.ErrorIs(t, c.Validate(), ErrNotInitialized)
}

func TestCameraValidate(t *testing.T) {
	c := NewCamera(WithTransform(mgl32.Ident4()))
	assert.ErrorIs(t, c.Validate(), ErrNoRenderTarget)

	c.SetRenderTarget(NewOffscreenTarget("shadow", 512, 512))
	assert.NoError(t, c.Validate())
}

func TestCameraTransformAndPosition(t *testing.T) {
	worldToLocal := mgl32.Translate3D(-1, -2, -3)
	c := NewCamera(WithTransform(worldToLocal))

	assert.True(t, c.Position().ApproxEqual(mgl32.Vec3{1, 2, 3}))
	assert.True(t, c.LocalToWorld().Mul4(c.WorldToLocal()).ApproxEqual(mgl32.Ident4()))
}

func TestCameraControllerDrivesTransform(t *testing.T) {
	ctrl := NewCameraController(WithRadius(10), WithElevation(0), WithAzimuth(0))
	c := NewCamera(WithController(ctrl))

	c.SetRenderTarget(NewOffscreenTarget("main", 1, 1))
	require.NoError(t, c.Validate())
	assert.InDelta(t, 10, c.Position().Len(), 1e-3)

	ctrl.Zoom(5)
	c.Update()
	assert.InDelta(t, ctrl.Radius(), c.Position().Len(), 1e-3)
}

func TestCameraViewsAndProjectionOverrides(t *testing.T) {
	left := mgl32.Translate3D(0.03, 0, 0)
	right := mgl32.Translate3D(-0.03, 0, 0)
	ortho := mgl32.Ortho(-8, 8, -8, 8, 0, 16)
	c := NewCamera(
		WithEyeOffsets(left, right),
		WithProjection(1, ortho),
		WithTransform(mgl32.Ident4()),
	)

	require.Equal(t, 2, c.ViewCount())
	assert.Equal(t, left, c.View(0))
	assert.Equal(t, right, c.View(1))
	assert.Equal(t, ortho, c.Projection(1))
	assert.Equal(t, right, c.View(7), "out-of-range views clamp to the last view")

	c.SetAspect(2)
	assert.Equal(t, ortho, c.Projection(1), "overrides survive aspect changes")
	assert.Equal(t, mgl32.Perspective(mgl32.DegToRad(45), 2, 0.1, 1000), c.Projection(0))
	assert.Equal(t, ortho.Mul4(right), c.ViewProjection(1))
}

func TestCameraViewCountClamped(t *testing.T) {
	assert.Equal(t, 1, NewCamera(WithViewCount(0)).ViewCount())
	assert.Equal(t, MaxViews, NewCamera(WithViewCount(99)).ViewCount())
}
