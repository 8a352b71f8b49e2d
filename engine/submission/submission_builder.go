package submission

import "time"

// SubmissionDriverBuilderOption is a functional option for configuring a SubmissionDriver.
type SubmissionDriverBuilderOption func(*submissionDriver)

// WithFenceTimeout sets how long AwaitSlot and Drain wait for fences. Defaults to one second.
//
// Parameters:
//   - timeout: the maximum wait
//
// Returns:
//   - SubmissionDriverBuilderOption: option function to apply
func WithFenceTimeout(timeout time.Duration) SubmissionDriverBuilderOption {
	return func(d *submissionDriver) {
		d.timeout = timeout
	}
}

// WithLevelLogging logs every submitted level.
//
// Parameters:
//   - enabled: true to log
//
// Returns:
//   - SubmissionDriverBuilderOption: option function to apply
func WithLevelLogging(enabled bool) SubmissionDriverBuilderOption {
	return func(d *submissionDriver) {
		d.logLevels = enabled
	}
}
