package visibility

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	index       int
	renderable  bool
	transparent bool
	bounds      common.BoundingSphere
	position    mgl32.Vec3
}

func (e *testEntity) Index() int                    { return e.index }
func (e *testEntity) Renderable() bool              { return e.renderable }
func (e *testEntity) Transparent() bool             { return e.transparent }
func (e *testEntity) Bounds() common.BoundingSphere { return e.bounds }
func (e *testEntity) LocalToWorld() mgl32.Mat4 {
	return mgl32.Translate3D(e.position.X(), e.position.Y(), e.position.Z())
}
func (e *testEntity) WorldToLocal() mgl32.Mat4 {
	return mgl32.Translate3D(-e.position.X(), -e.position.Y(), -e.position.Z())
}

func newTestEntity(index int, pos mgl32.Vec3, radius float32) *testEntity {
	return &testEntity{
		index:      index,
		renderable: true,
		bounds:     common.BoundingSphere{Radius: radius},
		position:   pos,
	}
}

// orthoCamera looks down -Z from the origin at a 16x16x16 box.
func orthoCamera(options ...camera.CameraBuilderOption) camera.Camera {
	base := []camera.CameraBuilderOption{
		camera.WithProjection(0, mgl32.Ortho(-8, 8, -8, 8, 0, 16)),
		camera.WithTransform(mgl32.Ident4()),
	}
	return camera.NewCamera(append(base, options...)...)
}

func TestCullInsideOutsideTangent(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(1))
	defer v.Release()

	a := newTestEntity(0, mgl32.Vec3{0, 0, -4}, 1)
	b := newTestEntity(1, mgl32.Vec3{10, 0, -4}, 1)
	c := newTestEntity(2, mgl32.Vec3{0, 0, 1}, 1)

	res := v.Cull(orthoCamera(), []Entity{a, b, c})
	require.Len(t, res, 1)
	view := res[0]
	require.Len(t, view, 3)

	assert.Same(t, c, view[0].Entity, "tangent to the near plane is inclusive")
	assert.True(t, view[0].Visible)
	assert.InDelta(t, 0, view[0].Distance, 1e-6)

	assert.Same(t, a, view[1].Entity)
	assert.True(t, view[1].Visible)
	assert.InDelta(t, 3, view[1].Distance, 1e-6)

	assert.Same(t, b, view[2].Entity)
	assert.False(t, view[2].Visible)
	assert.True(t, math32.IsInf(view[2].Distance, 1))
}

func TestCullSkipsSelfAndNonRenderable(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(1))
	defer v.Release()

	self := newTestEntity(0, mgl32.Vec3{0, 0, -2}, 1)
	hidden := newTestEntity(1, mgl32.Vec3{0, 0, -3}, 1)
	hidden.renderable = false
	drawn := newTestEntity(2, mgl32.Vec3{0, 0, -4}, 1)

	res := v.Cull(orthoCamera(camera.WithEntityIndex(0)), []Entity{self, hidden, nil, drawn})
	require.Len(t, res[0], 1)
	assert.Same(t, drawn, res[0][0].Entity)
}

func TestCullTiesKeepIndexOrder(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(1))
	defer v.Release()

	// Two culled entities and two equidistant visible ones, given out of index order.
	entities := []Entity{
		newTestEntity(7, mgl32.Vec3{20, 0, -4}, 1),
		newTestEntity(5, mgl32.Vec3{2, 0, -4}, 1),
		newTestEntity(3, mgl32.Vec3{-20, 0, -4}, 1),
		newTestEntity(4, mgl32.Vec3{-2, 0, -4}, 1),
	}

	view := v.Cull(orthoCamera(), entities)[0]
	indices := make([]int, len(view))
	for i, info := range view {
		indices[i] = info.Entity.Index()
	}
	assert.Equal(t, []int{4, 5, 3, 7}, indices)
}

func TestCullPerView(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(1))
	defer v.Release()

	// The second eye sits 12 units to the left, so an entity at x=6 falls outside its right plane.
	cam := orthoCamera(
		camera.WithEyeOffsets(mgl32.Ident4(), mgl32.Translate3D(12, 0, 0)),
		camera.WithProjection(1, mgl32.Ortho(-8, 8, -8, 8, 0, 16)),
	)
	e := newTestEntity(0, mgl32.Vec3{6, 0, -4}, 1)

	res := v.Cull(cam, []Entity{e})
	require.Len(t, res, 2)
	assert.True(t, res[0][0].Visible)
	assert.False(t, res[1][0].Visible)
}

func TestCullPausedReturnsCachedResult(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(1))
	defer v.Release()

	cam := orthoCamera()
	e := newTestEntity(0, mgl32.Vec3{0, 0, -4}, 1)
	first := v.Cull(cam, []Entity{e})
	require.True(t, first[0][0].Visible)

	cam.SetVisibilityTestingPaused(true)
	e.position = mgl32.Vec3{100, 0, -4}
	frozen := v.Cull(cam, []Entity{e})
	assert.Equal(t, first, frozen)
	assert.True(t, frozen[0][0].Visible)

	cam.SetVisibilityTestingPaused(false)
	assert.False(t, v.Cull(cam, []Entity{e})[0][0].Visible)
}

func TestCullAllAndForget(t *testing.T) {
	v := NewVisibilityEngine(WithWorkers(2))
	defer v.Release()

	camA := orthoCamera()
	camB := orthoCamera(camera.WithTransform(mgl32.Translate3D(-30, 0, 0)))
	e := newTestEntity(0, mgl32.Vec3{0, 0, -4}, 1)

	all := v.CullAll([]camera.Camera{camA, camB}, []Entity{e})
	require.Len(t, all, 2)
	assert.True(t, all[camA.ID()][0][0].Visible)
	assert.False(t, all[camB.ID()][0][0].Visible)

	cached, ok := v.Cached(camB.ID())
	require.True(t, ok)
	assert.Equal(t, all[camB.ID()], cached)

	v.Forget(camB.ID())
	_, ok = v.Cached(camB.ID())
	assert.False(t, ok)
}

func TestNearestPointDistance(t *testing.T) {
	bounds := common.BoundingSphere{Radius: 2}
	at := mgl32.Translate3D(0, 0, -10)
	inv := mgl32.Translate3D(0, 0, 10)

	assert.InDelta(t, 8, NearestPointDistance(mgl32.Vec3{}, bounds, at, inv), 1e-5)
	assert.InDelta(t, 0, NearestPointDistance(mgl32.Vec3{0, 0, -9}, bounds, at, inv), 1e-5)
	assert.InDelta(t, 0, NearestPointDistance(mgl32.Vec3{0, 0, -10}, bounds, at, inv), 1e-5)
}
