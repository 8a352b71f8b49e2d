package common

// Submission is one queue submission: every batch of a level that targets the same
// queue, with the merged wait and signal sets of those batches.
type Submission struct {
	Label   string
	Queue   QueueSelector
	Level   int
	Batches []CommandBatch
	Waits   []SignalWait
	Signals []Signal
	// Fence is signalled when the submission completes, nil if none was requested.
	Fence Fence
}
