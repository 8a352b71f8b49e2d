package visibility

// VisibilityEngineBuilderOption is a functional option for configuring a VisibilityEngine.
type VisibilityEngineBuilderOption func(*visibilityEngine)

// WithWorkers sets the number of goroutines culling cameras in parallel.
// Defaults to runtime.NumCPU()-1.
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - VisibilityEngineBuilderOption: option function to apply
func WithWorkers(n int) VisibilityEngineBuilderOption {
	return func(v *visibilityEngine) {
		v.workers = max(n, 1)
	}
}
