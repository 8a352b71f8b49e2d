package recorder

import (
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/visibility"
)

// PipelineVariant selects the graphics pipeline a draw is recorded with.
type PipelineVariant int

const (
	// PipelineNormal writes and tests depth.
	PipelineNormal PipelineVariant = iota
	// PipelineDepthWriteDisabled tests depth without writing it.
	PipelineDepthWriteDisabled
	// PipelineDepthTestGreater is used for transparent geometry drawn back to front.
	PipelineDepthTestGreater
)

func (p PipelineVariant) String() string {
	switch p {
	case PipelineNormal:
		return "normal"
	case PipelineDepthWriteDisabled:
		return "depth-write-disabled"
	case PipelineDepthTestGreater:
		return "depth-test-greater"
	default:
		return "unknown"
	}
}

// OcclusionFeedback answers whether an entity was visible when last measured.
// Implemented by occlusion_query.QueryPipeline.
type OcclusionFeedback interface {
	IsVisible(view, entity int) bool
}

// DrawCommand is one planned draw.
type DrawCommand struct {
	Entity  visibility.Entity
	View    int
	Variant PipelineVariant
	// BoundingBox draws the entity's bounds instead of its mesh.
	BoundingBox bool
	// Query wraps the draw in an occlusion query for (View, Entity.Index()).
	Query bool
}

// PlanDepthPrepass plans the depth pre-pass of one view. Every visible entity within the
// camera's max visible distance is drawn front to back inside an occlusion query.
// Entities not visible last frame are drawn as bounding boxes without writing depth.
// Cameras without a depth pre-pass get an empty plan.
//
// Parameters:
//   - cam: the camera
//   - view: the view index
//   - infos: the view's front-to-back visibility list
//   - occ: last frame's occlusion feedback, nil if unknown
//
// Returns:
//   - []DrawCommand: the planned draws in recording order
func PlanDepthPrepass(cam camera.Camera, view int, infos []visibility.VisibleEntityInfo, occ OcclusionFeedback) []DrawCommand {
	if !cam.DepthPrepass() {
		return nil
	}
	maxDistance := cam.MaxVisibleDistance()

	var plan []DrawCommand
	for _, info := range infos {
		if !inRange(info, maxDistance) {
			continue
		}
		wasVisible := wasVisible(occ, view, info.Entity)
		transparent := info.Entity.Transparent()

		variant := PipelineNormal
		if !wasVisible || transparent {
			variant = PipelineDepthWriteDisabled
		}
		plan = append(plan, DrawCommand{
			Entity:      info.Entity,
			View:        view,
			Variant:     variant,
			BoundingBox: !wasVisible,
			Query:       true,
		})
	}
	return plan
}

// PlanMainPass plans the main pass of one view: opaque entities front to back, then
// transparent entities back to front. With a depth pre-pass, entities that were
// occluded last frame are left out.
//
// Parameters:
//   - cam: the camera
//   - view: the view index
//   - infos: the view's front-to-back visibility list
//   - occ: last frame's occlusion feedback, nil if unknown
//
// Returns:
//   - []DrawCommand: the planned draws in recording order
func PlanMainPass(cam camera.Camera, view int, infos []visibility.VisibleEntityInfo, occ OcclusionFeedback) []DrawCommand {
	prepass := cam.DepthPrepass()
	maxDistance := cam.MaxVisibleDistance()
	drawn := func(info visibility.VisibleEntityInfo) bool {
		return inRange(info, maxDistance) && (!prepass || wasVisible(occ, view, info.Entity))
	}

	var plan []DrawCommand
	for _, info := range infos {
		if info.Entity.Transparent() || !drawn(info) {
			continue
		}
		plan = append(plan, DrawCommand{Entity: info.Entity, View: view, Variant: PipelineNormal})
	}
	for i := len(infos) - 1; i >= 0; i-- {
		info := infos[i]
		if !info.Entity.Transparent() || !drawn(info) {
			continue
		}
		plan = append(plan, DrawCommand{Entity: info.Entity, View: view, Variant: PipelineDepthTestGreater})
	}
	return plan
}

func inRange(info visibility.VisibleEntityInfo, maxDistance float32) bool {
	return info.Visible && info.Distance <= maxDistance
}

func wasVisible(occ OcclusionFeedback, view int, e visibility.Entity) bool {
	if occ == nil {
		return true
	}
	return occ.IsVisible(view, e.Index())
}
