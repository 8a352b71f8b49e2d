package sync_pool

// SyncPoolBuilderOption is a functional option applied to a pool during construction via NewSyncPool.
type SyncPoolBuilderOption func(*syncPool)

// WithPrewarm creates the given number of signals and fences per slot up front,
// so the first frames do not allocate.
//
// Parameters:
//   - signals: signals to create per slot
//   - fences: fences to create per slot
//
// Returns:
//   - SyncPoolBuilderOption: a function that applies the prewarm counts
func WithPrewarm(signals, fences int) SyncPoolBuilderOption {
	return func(p *syncPool) {
		p.prewarmSignals = max(signals, 0)
		p.prewarmFences = max(fences, 0)
	}
}

// WithGrowthLogging logs every time a slot allocates a new primitive.
//
// Parameters:
//   - enabled: true to log pool growth
//
// Returns:
//   - SyncPoolBuilderOption: a function that toggles growth logging
func WithGrowthLogging(enabled bool) SyncPoolBuilderOption {
	return func(p *syncPool) {
		p.logGrowth = enabled
	}
}
