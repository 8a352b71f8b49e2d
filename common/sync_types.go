package common

// Signal is a GPU-side synchronization primitive that orders one submission against another.
// Signals are opaque to the scheduler; backends supply the concrete type.
type Signal interface {
	// SignalID returns an identifier that is unique among the signals of one backend.
	//
	// Returns:
	//   - uint64: the signal identifier
	SignalID() uint64
}

// Fence is a CPU-observable completion marker attached to a submission.
type Fence interface {
	// FenceID returns an identifier that is unique among the fences of one backend.
	//
	// Returns:
	//   - uint64: the fence identifier
	FenceID() uint64
}

// CommandBatch is an opaque, pre-recorded unit of GPU work.
type CommandBatch interface {
	// Label returns a human readable name used in logs and debug markers.
	//
	// Returns:
	//   - string: the batch label
	Label() string

	// Queue returns the execution queue this batch must be submitted to.
	//
	// Returns:
	//   - QueueSelector: the target queue
	Queue() QueueSelector
}

// QueueSelector names one of the backend's execution queues.
type QueueSelector int

const (
	// QueueGraphics is the graphics (and present-capable) queue.
	QueueGraphics QueueSelector = iota
	// QueueCompute is the async compute queue. Backends without one alias it to QueueGraphics.
	QueueCompute
)

func (q QueueSelector) String() string {
	switch q {
	case QueueGraphics:
		return "graphics"
	case QueueCompute:
		return "compute"
	default:
		return "unknown"
	}
}

// StageMask is the set of pipeline stages at which a submission waits on its wait signals.
type StageMask uint32

const (
	StageTopOfPipe StageMask = 1 << iota
	StageTransfer
	StageComputeShader
	StageAccelerationStructureBuild
	StageEarlyFragmentTests
	StageColorAttachmentOutput
	StageAllCommands
)

// SignalWait is a signal a submission waits on and the stages that wait for it.
type SignalWait struct {
	Signal Signal
	Stage  StageMask
}
