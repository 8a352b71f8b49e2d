package occlusion_query

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/bits-and-blooms/bitset"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the pipeline's current state.
	ErrInvalidState = errors.New("occlusion query pipeline in invalid state")

	// ErrSlotOutOfRange is returned for a view or entity outside the pipeline's capacity.
	ErrSlotOutOfRange = errors.New("occlusion query slot out of range")

	// ErrCapacity is returned when a query set is smaller than maxEntities * maxViews.
	ErrCapacity = errors.New("query set too small")
)

// State is the lifecycle state of a QueryPipeline.
type State int

const (
	// StateIdle is the state between frames.
	StateIdle State = iota
	// StateRecording is entered by Reset and left by FinishRecording.
	StateRecording
	// StateDownloading is held while Download reads back results.
	StateDownloading
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateDownloading:
		return "downloading"
	default:
		return "unknown"
	}
}

// Segment is one contiguous run of query slots read back with a single call.
type Segment struct {
	First uint32
	Count uint32
}

type queryPipeline struct {
	mu *sync.Mutex

	label       string
	set         common.QuerySet
	maxEntities int
	maxViews    int

	state    State
	paused   bool
	recorded bool

	// pending is set while recording; queried is the mask of slots whose results are meaningful.
	pending    *bitset.BitSet
	queried    *bitset.BitSet
	maxQueried int
	results    []uint64

	// staging receives a download and is copied into results once every segment succeeded.
	staging []uint64

	lastSegments []Segment
	logSegments  bool
}

// QueryPipeline is one camera's occlusion query channel. Queries recorded during the
// depth pre-pass of frame F are downloaded at the end of F and answer IsVisible
// while frame F+1 records, so every answer is at least one frame stale.
// Slot of (view, entity) is entity + view*maxEntities.
type QueryPipeline interface {
	// State returns the pipeline's current state.
	//
	// Returns:
	//   - State: the current state
	State() State

	// Capacity returns maxEntities * maxViews.
	//
	// Returns:
	//   - int: the number of query slots
	Capacity() int

	// Slot maps a view and entity to a query slot.
	//
	// Parameters:
	//   - view: the view index
	//   - entity: the entity index
	//
	// Returns:
	//   - uint32: the slot
	//   - error: ErrSlotOutOfRange if either index is out of range
	Slot(view, entity int) (uint32, error)

	// SetPaused freezes or resumes the pipeline. While paused Reset, Begin, End,
	// FinishRecording and Download do nothing and prior results are kept.
	//
	// Parameters:
	//   - paused: true to freeze
	SetPaused(paused bool)

	// Paused reports whether the pipeline is frozen.
	//
	// Returns:
	//   - bool: true if paused
	Paused() bool

	// Reset records a reset of the whole query range into rec, clears the pending
	// mask and enters StateRecording. Called at the start of a depth pre-pass.
	//
	// Parameters:
	//   - rec: the command batch recording the depth pre-pass
	//
	// Returns:
	//   - error: ErrInvalidState while downloading
	Reset(rec common.QueryRecorder) error

	// Begin records the start of the query for (view, entity) and marks the slot pending.
	//
	// Parameters:
	//   - rec: the command batch recording the depth pre-pass
	//   - view: the view index
	//   - entity: the entity index
	//
	// Returns:
	//   - error: ErrInvalidState outside StateRecording, ErrSlotOutOfRange for bad indices
	Begin(rec common.QueryRecorder, view, entity int) error

	// End records the end of the query for (view, entity).
	//
	// Parameters:
	//   - rec: the command batch recording the depth pre-pass
	//   - view: the view index
	//   - entity: the entity index
	//
	// Returns:
	//   - error: ErrInvalidState outside StateRecording, ErrSlotOutOfRange for bad indices
	End(rec common.QueryRecorder, view, entity int) error

	// FinishRecording leaves StateRecording. The pre-pass counts as recorded.
	FinishRecording()

	// AbortRecording drops the queries recorded since Reset, for a batch that will not be submitted.
	// The previous results stay readable.
	AbortRecording()

	// Download reads back every pending query, one call per maximal run of pending slots,
	// then makes the pending mask the queried mask and clears it. A no-op unless a
	// depth pre-pass was recorded and at least one query is pending.
	//
	// Returns:
	//   - int: the number of readback calls issued
	//   - error: a wrapped backend error; masks, results and LastSegments are left untouched on failure
	Download() (int, error)

	// IsVisible reports whether the entity passed the depth test when last downloaded.
	// Slots without a downloaded result are reported visible.
	//
	// Parameters:
	//   - view: the view index
	//   - entity: the entity index
	//
	// Returns:
	//   - bool: false only if a downloaded result says zero samples passed
	IsVisible(view, entity int) bool

	// LastSegments returns the runs read back by the most recent Download.
	//
	// Returns:
	//   - []Segment: the runs in ascending slot order
	LastSegments() []Segment

	// Release frees the backend query set and returns to StateIdle.
	Release()
}

var _ QueryPipeline = &queryPipeline{}

// NewQueryPipeline creates a QueryPipeline over a backend query set.
//
// Parameters:
//   - set: the camera's query set, at least maxEntities * maxViews slots
//   - maxEntities: the number of entity slots per view
//   - maxViews: the number of views
//   - options: functional options to configure the pipeline
//
// Returns:
//   - QueryPipeline: the new pipeline
//   - error: ErrCapacity if the set is too small
func NewQueryPipeline(set common.QuerySet, maxEntities, maxViews int, options ...QueryPipelineBuilderOption) (QueryPipeline, error) {
	if maxEntities <= 0 || maxViews <= 0 {
		return nil, fmt.Errorf("%w: %d entities x %d views", ErrCapacity, maxEntities, maxViews)
	}
	capacity := maxEntities * maxViews
	if set == nil || int(set.Capacity()) < capacity {
		return nil, fmt.Errorf("%w: need %d slots", ErrCapacity, capacity)
	}

	q := &queryPipeline{
		mu:          &sync.Mutex{},
		set:         set,
		maxEntities: maxEntities,
		maxViews:    maxViews,
		pending:     bitset.New(uint(capacity)),
		queried:     bitset.New(uint(capacity)),
		results:     make([]uint64, capacity),
		staging:     make([]uint64, capacity),
	}
	for _, option := range options {
		option(q)
	}
	return q, nil
}

func (q *queryPipeline) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *queryPipeline) Capacity() int {
	return q.maxEntities * q.maxViews
}

func (q *queryPipeline) Slot(view, entity int) (uint32, error) {
	if view < 0 || view >= q.maxViews || entity < 0 || entity >= q.maxEntities {
		return 0, fmt.Errorf("%w: view %d entity %d", ErrSlotOutOfRange, view, entity)
	}
	return uint32(entity + view*q.maxEntities), nil
}

func (q *queryPipeline) SetPaused(paused bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.paused = paused
}

func (q *queryPipeline) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *queryPipeline) Reset(rec common.QueryRecorder) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return nil
	}
	if q.state == StateDownloading || q.set == nil {
		return fmt.Errorf("%w: reset while %s", ErrInvalidState, q.state)
	}

	rec.ResetQueries(q.set, 0, uint32(q.Capacity()))
	q.pending.ClearAll()
	q.maxQueried = 0
	q.recorded = false
	q.state = StateRecording
	return nil
}

func (q *queryPipeline) Begin(rec common.QueryRecorder, view, entity int) error {
	slot, err := q.Slot(view, entity)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return nil
	}
	if q.state != StateRecording {
		return fmt.Errorf("%w: begin while %s", ErrInvalidState, q.state)
	}

	rec.BeginQuery(q.set, slot)
	q.pending.Set(uint(slot))
	q.maxQueried = max(q.maxQueried, int(slot)+1)
	return nil
}

func (q *queryPipeline) End(rec common.QueryRecorder, view, entity int) error {
	slot, err := q.Slot(view, entity)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return nil
	}
	if q.state != StateRecording {
		return fmt.Errorf("%w: end while %s", ErrInvalidState, q.state)
	}

	rec.EndQuery(q.set, slot)
	return nil
}

func (q *queryPipeline) FinishRecording() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateRecording {
		return
	}
	q.recorded = true
	q.state = StateIdle
}

func (q *queryPipeline) AbortRecording() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != StateRecording {
		return
	}
	q.pending.ClearAll()
	q.maxQueried = 0
	q.recorded = false
	q.state = StateIdle
}

func (q *queryPipeline) Download() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused || q.state != StateIdle || !q.recorded || q.maxQueried == 0 {
		return 0, nil
	}

	q.state = StateDownloading
	defer func() { q.state = StateIdle }()

	var segments []Segment
	limit := uint(q.maxQueried)
	for next := uint(0); next < limit; {
		first, ok := q.pending.NextSet(next)
		if !ok || first >= limit {
			break
		}
		end, found := q.pending.NextClear(first)
		if !found || end > limit {
			end = limit
		}
		count := uint32(end - first)
		if err := q.set.ReadResults(uint32(first), count, q.staging[first:end]); err != nil {
			return len(segments), fmt.Errorf("download queries [%d,%d): %w", first, end, err)
		}
		segments = append(segments, Segment{First: uint32(first), Count: count})
		next = end
	}
	for _, seg := range segments {
		copy(q.results[seg.First:seg.First+seg.Count], q.staging[seg.First:seg.First+seg.Count])
	}
	q.lastSegments = segments

	if q.logSegments {
		log.Printf("[OcclusionQuery] %s downloaded %d queries in %d segments", q.label, q.pending.Count(), len(segments))
	}

	q.queried, q.pending = q.pending, q.queried
	q.pending.ClearAll()
	q.maxQueried = 0
	q.recorded = false
	return len(segments), nil
}

func (q *queryPipeline) IsVisible(view, entity int) bool {
	slot, err := q.Slot(view, entity)
	if err != nil {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.queried.Test(uint(slot)) {
		return true
	}
	return q.results[slot] > 0
}

func (q *queryPipeline) LastSegments() []Segment {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Segment(nil), q.lastSegments...)
}

func (q *queryPipeline) Release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.set != nil {
		q.set.Release()
		q.set = nil
	}
	q.pending.ClearAll()
	q.recorded = false
	q.maxQueried = 0
	q.state = StateIdle
}
