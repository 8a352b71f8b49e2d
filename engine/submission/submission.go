package submission

import (
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/command_graph"
	"github.com/Carmen-Shannon/oxy-frame/engine/sync_pool"
)

// ErrFenceTimeout is returned when a frame slot's fences did not signal in time.
var ErrFenceTimeout = errors.New("timed out waiting for frame slot fences")

// Submitter is the execution layer submissions are handed to. Implemented by renderer.Renderer.
type Submitter interface {
	// Submit hands one submission to its queue.
	//
	// Parameters:
	//   - item: the submission
	//
	// Returns:
	//   - error: a backend error
	Submit(item common.Submission) error

	// WaitFences blocks until every fence is signalled or the timeout expires.
	//
	// Parameters:
	//   - fences: the fences to wait on
	//   - timeout: the maximum wait
	//
	// Returns:
	//   - bool: false on timeout
	//   - error: a backend error
	WaitFences(fences []common.Fence, timeout time.Duration) (bool, error)
}

type submissionDriver struct {
	submitter Submitter
	pool      sync_pool.SyncPool

	slot       common.FrameSlot
	slotFences [][]common.Fence
	timeout    time.Duration
	logLevels  bool
}

// SubmissionDriver walks a finalized CommandGraph level by level and submits one merged
// item per queue per level. It owns the active FrameSlot.
type SubmissionDriver interface {
	// Slot returns the active frame slot.
	//
	// Returns:
	//   - common.FrameSlot: the active slot
	Slot() common.FrameSlot

	// AwaitSlot waits for the fences submitted the last time the active slot was used,
	// so its signals are not reused while still pending on the GPU.
	//
	// Returns:
	//   - error: ErrFenceTimeout or a backend error
	AwaitSlot() error

	// Submit submits the graph, retires the active slot's primitives and advances the slot.
	// The graph must have been built for the active slot.
	//
	// Parameters:
	//   - g: the finalized graph
	//
	// Returns:
	//   - []common.Submission: the submissions in the order they were issued
	//   - error: a wrapped backend or pool error; the slot does not advance
	Submit(g command_graph.CommandGraph) ([]common.Submission, error)

	// Drain waits for the fences of every slot. Used at teardown.
	//
	// Returns:
	//   - error: ErrFenceTimeout or a backend error
	Drain() error
}

var _ SubmissionDriver = &submissionDriver{}

// NewSubmissionDriver creates a SubmissionDriver starting at slot 0.
//
// Parameters:
//   - submitter: the execution layer
//   - pool: the sync pool the graphs draw from
//   - options: functional options to configure the driver
//
// Returns:
//   - SubmissionDriver: the new driver
func NewSubmissionDriver(submitter Submitter, pool sync_pool.SyncPool, options ...SubmissionDriverBuilderOption) SubmissionDriver {
	d := &submissionDriver{
		submitter:  submitter,
		pool:       pool,
		slotFences: make([][]common.Fence, pool.MaxFramesInFlight()),
		timeout:    1 * time.Second,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

func (d *submissionDriver) Slot() common.FrameSlot {
	return d.slot
}

func (d *submissionDriver) AwaitSlot() error {
	if err := d.await(d.slotFences[d.slot]); err != nil {
		return fmt.Errorf("slot %d: %w", d.slot, err)
	}
	d.slotFences[d.slot] = d.slotFences[d.slot][:0]
	return nil
}

func (d *submissionDriver) Submit(g command_graph.CommandGraph) ([]common.Submission, error) {
	if g.Slot() != d.slot {
		return nil, fmt.Errorf("graph built for slot %d, active slot is %d", g.Slot(), d.slot)
	}

	var items []common.Submission
	fences := d.slotFences[d.slot][:0]
	for lvl := range g.LevelCount() {
		levelItems, err := d.mergeLevel(g, lvl)
		if err != nil {
			return items, err
		}
		for _, item := range levelItems {
			if err := d.submitter.Submit(item); err != nil {
				return items, fmt.Errorf("submit level %d (%s) on %s queue: %w", lvl, g.LevelName(lvl), item.Queue, err)
			}
			if item.Fence != nil {
				fences = append(fences, item.Fence)
			}
			items = append(items, item)
		}
		if d.logLevels {
			log.Printf("[Submission] slot %d level %d (%s): %d nodes in %d submissions", d.slot, lvl, g.LevelName(lvl), len(g.Level(lvl)), len(levelItems))
		}
	}

	d.slotFences[d.slot] = fences
	d.pool.Retire(d.slot)
	d.slot = d.slot.Next(d.pool.MaxFramesInFlight())
	return items, nil
}

func (d *submissionDriver) Drain() error {
	for slot, fences := range d.slotFences {
		if err := d.await(fences); err != nil {
			return fmt.Errorf("drain slot %d: %w", slot, err)
		}
		d.slotFences[slot] = d.slotFences[slot][:0]
	}
	return nil
}

func (d *submissionDriver) await(fences []common.Fence) error {
	if len(fences) == 0 {
		return nil
	}
	ok, err := d.submitter.WaitFences(fences, d.timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w after %s", ErrFenceTimeout, d.timeout)
	}
	return nil
}

// mergeLevel groups a level's nodes by queue, in queue order, into one submission each
// with deduplicated waits and signals. The level's fence goes to the first submission;
// every further submission of a fenced level gets its own fence from the pool.
func (d *submissionDriver) mergeLevel(g command_graph.CommandGraph, lvl int) ([]common.Submission, error) {
	byQueue := make(map[common.QueueSelector]*common.Submission)
	var queues []common.QueueSelector

	for _, id := range g.Level(lvl) {
		n := g.Node(id)
		q := n.Queue()
		item, ok := byQueue[q]
		if !ok {
			item = &common.Submission{
				Label: fmt.Sprintf("%s/%s", g.LevelName(lvl), q),
				Queue: q,
				Level: lvl,
			}
			byQueue[q] = item
			queues = append(queues, q)
		}
		item.Batches = append(item.Batches, n.Batch)
		item.Waits = mergeWaits(item.Waits, n.Waits)
		item.Signals = mergeSignals(item.Signals, n.Signals())
	}
	slices.Sort(queues)

	out := make([]common.Submission, 0, len(queues))
	fence := g.LevelFence(lvl)
	for i, q := range queues {
		item := *byQueue[q]
		if fence != nil {
			item.Fence = fence
			if i > 0 {
				extra, err := d.pool.AcquireFence(d.slot)
				if err != nil {
					return nil, fmt.Errorf("fence for level %d %s queue: %w", lvl, q, err)
				}
				item.Fence = extra
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// mergeWaits appends waits not yet present, or'ing the stage masks of duplicates.
func mergeWaits(dst, src []common.SignalWait) []common.SignalWait {
	for _, w := range src {
		idx := slices.IndexFunc(dst, func(e common.SignalWait) bool {
			return e.Signal.SignalID() == w.Signal.SignalID()
		})
		if idx >= 0 {
			dst[idx].Stage |= w.Stage
			continue
		}
		dst = append(dst, w)
	}
	return dst
}

// mergeSignals appends signals not yet present.
func mergeSignals(dst, src []common.Signal) []common.Signal {
	for _, s := range src {
		if !slices.ContainsFunc(dst, func(e common.Signal) bool { return e.SignalID() == s.SignalID() }) {
			dst = append(dst, s)
		}
	}
	return dst
}
