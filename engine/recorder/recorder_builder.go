package recorder

// DrawRecorderBuilderOption is a functional option for configuring a draw Recorder.
type DrawRecorderBuilderOption func(*drawRecorder)

// WithAccelerationStructureStage sets the function recording the acceleration structure rebuild.
//
// Parameters:
//   - fn: the stage function
//
// Returns:
//   - DrawRecorderBuilderOption: option function to apply
func WithAccelerationStructureStage(fn StageFunc) DrawRecorderBuilderOption {
	return func(r *drawRecorder) {
		r.bvh = fn
	}
}

// WithComputeStage sets the function recording global compute work.
//
// Parameters:
//   - fn: the stage function
//
// Returns:
//   - DrawRecorderBuilderOption: option function to apply
func WithComputeStage(fn StageFunc) DrawRecorderBuilderOption {
	return func(r *drawRecorder) {
		r.compute = fn
	}
}

// WithBlitStage sets the function recording the blit to presentation surfaces.
//
// Parameters:
//   - fn: the stage function
//
// Returns:
//   - DrawRecorderBuilderOption: option function to apply
func WithBlitStage(fn StageFunc) DrawRecorderBuilderOption {
	return func(r *drawRecorder) {
		r.blit = fn
	}
}
