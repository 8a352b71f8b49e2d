package occlusion_query

// QueryPipelineBuilderOption is a functional option for configuring a QueryPipeline.
type QueryPipelineBuilderOption func(*queryPipeline)

// WithLabel sets the label used in log lines, usually the camera id.
//
// Parameters:
//   - label: the label
//
// Returns:
//   - QueryPipelineBuilderOption: option function to apply
func WithLabel(label string) QueryPipelineBuilderOption {
	return func(q *queryPipeline) {
		q.label = label
	}
}

// WithPaused starts the pipeline frozen.
//
// Parameters:
//   - paused: true to start paused
//
// Returns:
//   - QueryPipelineBuilderOption: option function to apply
func WithPaused(paused bool) QueryPipelineBuilderOption {
	return func(q *queryPipeline) {
		q.paused = paused
	}
}

// WithSegmentLogging logs the number of readback segments after every Download.
//
// Parameters:
//   - enabled: true to log
//
// Returns:
//   - QueryPipelineBuilderOption: option function to apply
func WithSegmentLogging(enabled bool) QueryPipelineBuilderOption {
	return func(q *queryPipeline) {
		q.logSegments = enabled
	}
}
