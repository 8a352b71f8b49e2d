package recorder

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/occlusion_query"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
)

// Batch is a command batch open for recording.
type Batch interface {
	common.CommandBatch
	common.QueryRecorder
}

// CameraPass is everything needed to record one camera's stage.
type CameraPass struct {
	Camera     camera.Camera
	Visibility visibility.Result
	// Queries is nil for cameras without a depth pre-pass.
	Queries occlusion_query.QueryPipeline
}

// Recorder produces the frame's command batches. The Record* methods for global stages
// report whether anything was recorded; stages with nothing recorded are left out of the graph.
type Recorder interface {
	// RecordAccelerationStructures records the acceleration structure rebuild.
	//
	// Parameters:
	//   - batch: the batch to record into
	//
	// Returns:
	//   - bool: true if work was recorded
	//   - error: a recording error
	RecordAccelerationStructures(batch Batch) (bool, error)

	// RecordCompute records the frame's global compute work.
	//
	// Parameters:
	//   - batch: the batch to record into
	//
	// Returns:
	//   - bool: true if work was recorded
	//   - error: a recording error
	RecordCompute(batch Batch) (bool, error)

	// RecordCamera records the depth pre-pass and main pass of every view of a camera.
	//
	// Parameters:
	//   - batch: the batch to record into
	//   - pass: the camera and its visibility state
	//
	// Returns:
	//   - error: a recording error; the camera's stage is skipped
	RecordCamera(batch Batch, pass CameraPass) error

	// RecordBlit records the copy of rendered images to their surfaces.
	//
	// Parameters:
	//   - batch: the batch to record into
	//
	// Returns:
	//   - bool: true if work was recorded
	//   - error: a recording error
	RecordBlit(batch Batch) (bool, error)
}

// DrawFunc records one planned draw into a batch.
type DrawFunc func(batch Batch, cmd DrawCommand) error

// StageFunc records a global stage into a batch and reports whether it recorded anything.
type StageFunc func(batch Batch) (bool, error)

type drawRecorder struct {
	draw    DrawFunc
	bvh     StageFunc
	compute StageFunc
	blit    StageFunc
}

var _ Recorder = &drawRecorder{}

// NewDrawRecorder creates a Recorder that plans camera passes from visibility and
// occlusion feedback and hands every planned draw to draw. Global stages are recorded
// by the optional stage functions and skipped when unset.
//
// Parameters:
//   - draw: records one draw
//   - options: functional options to configure the recorder
//
// Returns:
//   - Recorder: the new recorder
func NewDrawRecorder(draw DrawFunc, options ...DrawRecorderBuilderOption) Recorder {
	r := &drawRecorder{draw: draw}
	for _, option := range options {
		option(r)
	}
	return r
}

func (r *drawRecorder) RecordAccelerationStructures(batch Batch) (bool, error) {
	return runStage(r.bvh, batch)
}

func (r *drawRecorder) RecordCompute(batch Batch) (bool, error) {
	return runStage(r.compute, batch)
}

func (r *drawRecorder) RecordBlit(batch Batch) (bool, error) {
	return runStage(r.blit, batch)
}

func (r *drawRecorder) RecordCamera(batch Batch, pass CameraPass) error {
	cam := pass.Camera
	var occ OcclusionFeedback
	if pass.Queries != nil && cam.DepthPrepass() {
		occ = pass.Queries
	}

	for view, infos := range pass.Visibility {
		for _, cmd := range PlanDepthPrepass(cam, view, infos, occ) {
			if err := r.recordQueried(batch, pass.Queries, cmd); err != nil {
				return fmt.Errorf("depth prepass view %d: %w", view, err)
			}
		}
	}
	for view, infos := range pass.Visibility {
		for _, cmd := range PlanMainPass(cam, view, infos, occ) {
			if err := r.draw(batch, cmd); err != nil {
				return fmt.Errorf("main pass view %d: %w", view, err)
			}
		}
	}
	return nil
}

// recordQueried wraps a draw in an occlusion query when the command asks for one.
func (r *drawRecorder) recordQueried(batch Batch, queries occlusion_query.QueryPipeline, cmd DrawCommand) error {
	if !cmd.Query || queries == nil {
		return r.draw(batch, cmd)
	}
	idx := cmd.Entity.Index()
	if err := queries.Begin(batch, cmd.View, idx); err != nil {
		if errors.Is(err, occlusion_query.ErrSlotOutOfRange) {
			return r.draw(batch, cmd)
		}
		return err
	}
	if err := r.draw(batch, cmd); err != nil {
		return err
	}
	return queries.End(batch, cmd.View, idx)
}

func runStage(fn StageFunc, batch Batch) (bool, error) {
	if fn == nil {
		return false, nil
	}
	return fn(batch)
}
