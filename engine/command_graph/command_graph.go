package command_graph

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-frame/common"
)

var (
	// ErrEmptyStage is returned when a stage has no work. The stage is not added.
	ErrEmptyStage = errors.New("stage has no work")

	// ErrFinalized is returned when a graph is modified after Finalize.
	ErrFinalized = errors.New("command graph already finalized")

	// ErrSurfaceQueueConflict is returned when one stage renders into a surface from more than
	// one queue. The stage is not added.
	ErrSurfaceQueueConflict = errors.New("surface consumers of one stage span queues")
)

// SignalSource hands out the frame's synchronization primitives. Implemented by sync_pool.SyncPool.
type SignalSource interface {
	AcquireSignal(slot common.FrameSlot) (common.Signal, error)
	AcquireFence(slot common.FrameSlot) (common.Fence, error)
}

type level struct {
	name  string
	nodes []NodeID
	fence common.Fence
	// terminal is true when some node of the level has no children.
	terminal bool
}

type commandGraph struct {
	slot      common.FrameSlot
	nodes     []WorkNode
	levels    []level
	finalized bool

	// acquired maps each surface to the first level that renders into it.
	acquired map[PresentationSurface]int
}

// CommandGraph is one frame's leveled DAG of command batches. Nodes live in an arena
// and reference each other by NodeID; the arena is discarded or Reset each frame.
// Every stage becomes one level whose nodes depend on every node of the level before it.
type CommandGraph interface {
	// Reset empties the graph for a new frame, keeping its allocations.
	//
	// Parameters:
	//   - slot: the new frame slot
	Reset(slot common.FrameSlot)

	// Slot returns the frame slot the graph is built for.
	//
	// Returns:
	//   - common.FrameSlot: the slot
	Slot() common.FrameSlot

	// AddStage appends a level holding one node per work item. Each node depends on every
	// node of the previous level. Every node of the first level rendering into a surface
	// waits on the surface's image-acquired signal; nodes of later levels are ordered after
	// them by the graph. Those first consumers must share one queue.
	//
	// Parameters:
	//   - name: the stage name used in logs
	//   - work: the stage's batches
	//
	// Returns:
	//   - error: ErrEmptyStage for a stage without work, ErrSurfaceQueueConflict, ErrFinalized after Finalize
	AddStage(name string, work ...Work) error

	// Finalize assigns one signal per child edge and per surface, a fence to every level
	// holding a node without children, and every node's wait set.
	//
	// Parameters:
	//   - pool: the source of signals and fences for the graph's slot
	//
	// Returns:
	//   - error: a wrapped pool error, ErrFinalized if called twice
	Finalize(pool SignalSource) error

	// LevelCount returns the number of levels.
	//
	// Returns:
	//   - int: the level count
	LevelCount() int

	// Level returns the node ids of a level in stage order.
	//
	// Parameters:
	//   - index: the level index
	//
	// Returns:
	//   - []NodeID: the level's nodes
	Level(index int) []NodeID

	// LevelName returns the name of the stage a level was built from.
	//
	// Parameters:
	//   - index: the level index
	//
	// Returns:
	//   - string: the stage name
	LevelName(index int) string

	// LevelFence returns the fence of a level, nil if the level has none.
	//
	// Parameters:
	//   - index: the level index
	//
	// Returns:
	//   - common.Fence: the fence or nil
	LevelFence(index int) common.Fence

	// Node returns the node with the given id. The pointer is valid until Reset.
	//
	// Parameters:
	//   - id: the node id
	//
	// Returns:
	//   - *WorkNode: the node
	Node(id NodeID) *WorkNode

	// NodeCount returns the number of nodes.
	//
	// Returns:
	//   - int: the node count
	NodeCount() int

	// Fences returns every fence attached to the graph in level order.
	//
	// Returns:
	//   - []common.Fence: the fences
	Fences() []common.Fence
}

var _ CommandGraph = &commandGraph{}

// NewCommandGraph creates an empty CommandGraph for the given frame slot.
//
// Parameters:
//   - slot: the active frame slot
//   - options: functional options to configure the graph
//
// Returns:
//   - CommandGraph: the new graph
func NewCommandGraph(slot common.FrameSlot, options ...CommandGraphBuilderOption) CommandGraph {
	g := &commandGraph{slot: slot, acquired: make(map[PresentationSurface]int)}
	for _, option := range options {
		option(g)
	}
	return g
}

func (g *commandGraph) Reset(slot common.FrameSlot) {
	g.slot = slot
	clear(g.nodes)
	g.nodes = g.nodes[:0]
	clear(g.levels)
	g.levels = g.levels[:0]
	clear(g.acquired)
	g.finalized = false
}

func (g *commandGraph) Slot() common.FrameSlot {
	return g.slot
}

func (g *commandGraph) AddStage(name string, work ...Work) error {
	if g.finalized {
		return ErrFinalized
	}
	if len(work) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyStage, name)
	}

	var prev []NodeID
	if n := len(g.levels); n > 0 {
		prev = g.levels[n-1].nodes
	}
	index := len(g.levels)

	claims := make(map[PresentationSurface]common.QueueSelector)
	for _, w := range work {
		for _, s := range w.Surfaces {
			if _, taken := g.acquired[s]; taken {
				continue
			}
			if _, ok := s.ImageAcquiredSignal(g.slot); !ok {
				continue
			}
			q := w.Batch.Queue()
			if prevQueue, seen := claims[s]; seen && prevQueue != q {
				return fmt.Errorf("%w: %s renders on %s and %s", ErrSurfaceQueueConflict, name, prevQueue, q)
			}
			claims[s] = q
		}
	}
	for s := range claims {
		g.acquired[s] = index
	}

	current := make([]NodeID, 0, len(work))
	for _, w := range work {
		id := NodeID(len(g.nodes))
		node := WorkNode{
			ID:           id,
			Batch:        w.Batch,
			WaitStage:    w.WaitStage,
			Level:        index,
			Dependencies: prev,
			Surfaces:     w.Surfaces,
		}
		for _, s := range w.Surfaces {
			if first, ok := g.acquired[s]; !ok || first != index {
				continue
			}
			if sig, ok := s.ImageAcquiredSignal(g.slot); ok {
				node.ImageAcquired = append(node.ImageAcquired, sig)
			}
		}
		g.nodes = append(g.nodes, node)
		current = append(current, id)
	}

	for _, p := range prev {
		g.nodes[p].Children = current
	}
	g.levels = append(g.levels, level{name: name, nodes: current})
	return nil
}

func (g *commandGraph) Finalize(pool SignalSource) error {
	if g.finalized {
		return ErrFinalized
	}

	if err := g.assignSignals(pool); err != nil {
		return err
	}
	g.assignWaits()
	g.finalized = true
	return nil
}

// assignSignals gives every child edge and every surface its own signal and fences the
// levels that hold terminal nodes.
func (g *commandGraph) assignSignals(pool SignalSource) error {
	for i := range g.nodes {
		n := &g.nodes[i]
		n.ChildSignals = n.ChildSignals[:0]
		for range n.Children {
			sig, err := pool.AcquireSignal(g.slot)
			if err != nil {
				return fmt.Errorf("signal for node %d: %w", n.ID, err)
			}
			n.ChildSignals = append(n.ChildSignals, sig)
		}

		n.SurfaceSignals = n.SurfaceSignals[:0]
		for _, s := range n.Surfaces {
			sig, err := pool.AcquireSignal(g.slot)
			if err != nil {
				return fmt.Errorf("render-complete signal for node %d: %w", n.ID, err)
			}
			n.SurfaceSignals = append(n.SurfaceSignals, sig)
			s.AddRenderCompleteSignal(sig)
		}

		if len(n.Children) == 0 {
			g.levels[n.Level].terminal = true
		}
	}

	for i := range g.levels {
		if !g.levels[i].terminal {
			continue
		}
		fence, err := pool.AcquireFence(g.slot)
		if err != nil {
			return fmt.Errorf("fence for level %d: %w", i, err)
		}
		g.levels[i].fence = fence
	}
	return nil
}

// assignWaits builds each node's wait set from the signals its dependencies produce for
// it and the image-acquired signals of its surfaces.
func (g *commandGraph) assignWaits() {
	for i := range g.nodes {
		n := &g.nodes[i]
		stage := n.WaitStage
		if stage == 0 {
			stage = common.StageAllCommands
		}

		n.Waits = n.Waits[:0]
		for _, d := range n.Dependencies {
			if sig, ok := g.nodes[d].signalFor(n.ID); ok {
				n.Waits = append(n.Waits, common.SignalWait{Signal: sig, Stage: stage})
			}
		}
		for _, sig := range n.ImageAcquired {
			n.Waits = append(n.Waits, common.SignalWait{Signal: sig, Stage: common.StageColorAttachmentOutput})
		}
	}
}

func (g *commandGraph) LevelCount() int {
	return len(g.levels)
}

func (g *commandGraph) Level(index int) []NodeID {
	if index < 0 || index >= len(g.levels) {
		return nil
	}
	return g.levels[index].nodes
}

func (g *commandGraph) LevelName(index int) string {
	if index < 0 || index >= len(g.levels) {
		return ""
	}
	return g.levels[index].name
}

func (g *commandGraph) LevelFence(index int) common.Fence {
	if index < 0 || index >= len(g.levels) {
		return nil
	}
	return g.levels[index].fence
}

func (g *commandGraph) Node(id NodeID) *WorkNode {
	if id == NodeNoID || int(id) >= len(g.nodes) {
		return nil
	}
	return &g.nodes[id]
}

func (g *commandGraph) NodeCount() int {
	return len(g.nodes)
}

func (g *commandGraph) Fences() []common.Fence {
	var out []common.Fence
	for _, l := range g.levels {
		if l.fence != nil {
			out = append(out, l.fence)
		}
	}
	return out
}
