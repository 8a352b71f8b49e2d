package recorder

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/occlusion_query"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	index       int
	transparent bool
}

func (e *testEntity) Index() int                    { return e.index }
func (e *testEntity) Renderable() bool              { return true }
func (e *testEntity) Transparent() bool             { return e.transparent }
func (e *testEntity) Bounds() common.BoundingSphere { return common.BoundingSphere{Radius: 1} }
func (e *testEntity) LocalToWorld() mgl32.Mat4      { return mgl32.Ident4() }
func (e *testEntity) WorldToLocal() mgl32.Mat4      { return mgl32.Ident4() }

type occluded map[int]bool

func (o occluded) IsVisible(_, entity int) bool { return !o[entity] }

func info(index int, distance float32, transparent bool) visibility.VisibleEntityInfo {
	return visibility.VisibleEntityInfo{
		Entity:   &testEntity{index: index, transparent: transparent},
		Distance: distance,
		Visible:  !math32.IsInf(distance, 1),
	}
}

func indices(plan []DrawCommand) []int {
	out := make([]int, len(plan))
	for i, cmd := range plan {
		out[i] = cmd.Entity.Index()
	}
	return out
}

// frontToBack is already sorted the way the visibility engine emits it.
var frontToBack = []visibility.VisibleEntityInfo{
	info(0, 1, false),
	info(1, 2, true),
	info(2, 3, false),
	info(3, 4, true),
	info(4, 50, false),
	info(5, math32.Inf(1), false),
}

func TestPlanDepthPrepass(t *testing.T) {
	cam := camera.NewCamera(camera.WithDepthPrepass(true), camera.WithMaxVisibleDistance(10))
	plan := PlanDepthPrepass(cam, 0, frontToBack, occluded{2: true})

	require.Equal(t, []int{0, 1, 2, 3}, indices(plan), "culled and out-of-range entities are not queried")
	for _, cmd := range plan {
		assert.True(t, cmd.Query)
	}

	assert.Equal(t, PipelineNormal, plan[0].Variant)
	assert.False(t, plan[0].BoundingBox)

	assert.Equal(t, PipelineDepthWriteDisabled, plan[1].Variant, "transparent")
	assert.False(t, plan[1].BoundingBox)

	assert.Equal(t, PipelineDepthWriteDisabled, plan[2].Variant, "occluded last frame")
	assert.True(t, plan[2].BoundingBox)
}

func TestPlanDepthPrepassWithoutPrepass(t *testing.T) {
	assert.Empty(t, PlanDepthPrepass(camera.NewCamera(), 0, frontToBack, nil))
}

func TestPlanMainPassOrdering(t *testing.T) {
	cam := camera.NewCamera(camera.WithMaxVisibleDistance(100))
	plan := PlanMainPass(cam, 0, frontToBack, occluded{0: true})

	assert.Equal(t, []int{0, 2, 4, 3, 1}, indices(plan), "no pre-pass ignores occlusion")
	assert.Equal(t, PipelineNormal, plan[0].Variant)
	assert.Equal(t, PipelineDepthTestGreater, plan[3].Variant)
	assert.Equal(t, PipelineDepthTestGreater, plan[4].Variant)
}

func TestPlanMainPassSkipsOccluded(t *testing.T) {
	cam := camera.NewCamera(camera.WithDepthPrepass(true), camera.WithMaxVisibleDistance(10))
	plan := PlanMainPass(cam, 0, frontToBack, occluded{0: true, 3: true})

	assert.Equal(t, []int{2, 1}, indices(plan))
}

type fakeQuerySet struct{}

func (fakeQuerySet) Capacity() uint32                          { return 8 }
func (fakeQuerySet) ReadResults(_, _ uint32, _ []uint64) error { return nil }
func (fakeQuerySet) Release()                                  {}

type fakeBatch struct {
	ops []string
}

func (b *fakeBatch) Label() string                               { return "camera" }
func (b *fakeBatch) Queue() common.QueueSelector                 { return common.QueueGraphics }
func (b *fakeBatch) ResetQueries(_ common.QuerySet, _, _ uint32) { b.ops = append(b.ops, "reset") }
func (b *fakeBatch) BeginQuery(_ common.QuerySet, _ uint32)      { b.ops = append(b.ops, "begin") }
func (b *fakeBatch) EndQuery(_ common.QuerySet, _ uint32)        { b.ops = append(b.ops, "end") }

func TestRecordCameraWrapsPrepassDrawsInQueries(t *testing.T) {
	q, err := occlusion_query.NewQueryPipeline(fakeQuerySet{}, 8, 1)
	require.NoError(t, err)

	batch := &fakeBatch{}
	require.NoError(t, q.Reset(batch))

	rec := NewDrawRecorder(func(b Batch, cmd DrawCommand) error {
		fb := b.(*fakeBatch)
		fb.ops = append(fb.ops, "draw:"+cmd.Variant.String())
		return nil
	})

	cam := camera.NewCamera(camera.WithDepthPrepass(true))
	pass := CameraPass{
		Camera:     cam,
		Visibility: visibility.Result{{info(0, 1, false), info(1, math32.Inf(1), false)}},
		Queries:    q,
	}
	require.NoError(t, rec.RecordCamera(batch, pass))

	assert.Equal(t, []string{"reset", "begin", "draw:normal", "end", "draw:normal"}, batch.ops)
}

func TestRecordCameraDrawsEntitiesBeyondTheQuerySetUnqueried(t *testing.T) {
	q, err := occlusion_query.NewQueryPipeline(fakeQuerySet{}, 8, 1)
	require.NoError(t, err)

	batch := &fakeBatch{}
	require.NoError(t, q.Reset(batch))

	rec := NewDrawRecorder(func(b Batch, _ DrawCommand) error {
		b.(*fakeBatch).ops = append(b.(*fakeBatch).ops, "draw")
		return nil
	})
	pass := CameraPass{
		Camera:     camera.NewCamera(camera.WithDepthPrepass(true)),
		Visibility: visibility.Result{{info(12, 1, false)}},
		Queries:    q,
	}
	require.NoError(t, rec.RecordCamera(batch, pass))
	assert.Equal(t, []string{"reset", "draw", "draw"}, batch.ops)
}

func TestRecordCameraPropagatesDrawErrors(t *testing.T) {
	boom := errors.New("boom")
	rec := NewDrawRecorder(func(Batch, DrawCommand) error { return boom })

	pass := CameraPass{
		Camera:     camera.NewCamera(),
		Visibility: visibility.Result{{info(0, 1, false)}},
	}
	assert.ErrorIs(t, rec.RecordCamera(&fakeBatch{}, pass), boom)
}

func TestGlobalStages(t *testing.T) {
	rec := NewDrawRecorder(nil, WithComputeStage(func(Batch) (bool, error) { return true, nil }))

	ok, err := rec.RecordCompute(&fakeBatch{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = rec.RecordAccelerationStructures(&fakeBatch{})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rec.RecordBlit(&fakeBatch{})
	require.NoError(t, err)
	assert.False(t, ok)
}
