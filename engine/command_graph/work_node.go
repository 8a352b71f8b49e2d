package command_graph

import (
	"math"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

// NodeID identifies a WorkNode within one frame's graph.
type NodeID uint32

// NodeNoID is the id of no node.
const NodeNoID = NodeID(math.MaxUint32)

// PresentationSurface is an on-screen surface that work can render into.
// Implemented by window.Window.
type PresentationSurface interface {
	// ImageAcquiredSignal returns the signal the surface's image acquisition signals for the slot.
	//
	// Parameters:
	//   - slot: the active frame slot
	//
	// Returns:
	//   - common.Signal: the image-acquired signal
	//   - bool: false if no image was acquired for the slot this frame
	ImageAcquiredSignal(slot common.FrameSlot) (common.Signal, bool)

	// AddRenderCompleteSignal records a signal presentation must wait on.
	//
	// Parameters:
	//   - sig: the render-complete signal
	AddRenderCompleteSignal(sig common.Signal)
}

// Work is one command batch of a stage and what it needs from the graph.
type Work struct {
	Batch common.CommandBatch
	// WaitStage is where the batch waits on its dependencies. Zero means StageAllCommands.
	WaitStage common.StageMask
	// Surfaces are the presentation surfaces the batch renders into.
	Surfaces []PresentationSurface
}

// WorkNode is one schedulable unit of a frame's graph.
type WorkNode struct {
	ID        NodeID
	Batch     common.CommandBatch
	WaitStage common.StageMask
	Level     int

	Dependencies []NodeID
	Children     []NodeID
	Surfaces     []PresentationSurface

	// ImageAcquired holds the image-acquired signals attached from Surfaces.
	ImageAcquired []common.Signal

	// ChildSignals[i] is signalled for Children[i]; SurfaceSignals[i] for Surfaces[i].
	ChildSignals   []common.Signal
	SurfaceSignals []common.Signal

	// Waits is the node's wait set, assigned by Finalize.
	Waits []common.SignalWait
}

// Queue returns the queue the node's batch targets.
func (n *WorkNode) Queue() common.QueueSelector {
	return n.Batch.Queue()
}

// Signals returns every signal the node signals on completion.
func (n *WorkNode) Signals() []common.Signal {
	out := make([]common.Signal, 0, len(n.ChildSignals)+len(n.SurfaceSignals))
	out = append(out, n.ChildSignals...)
	return append(out, n.SurfaceSignals...)
}

// signalFor returns the signal the node produces for the given child.
func (n *WorkNode) signalFor(child NodeID) (common.Signal, bool) {
	for i, c := range n.Children {
		if c == child && i < len(n.ChildSignals) {
			return n.ChildSignals[i], true
		}
	}
	return nil, false
}
