package common

// QuerySet is a backend pool of occlusion queries owned by one camera.
type QuerySet interface {
	// Capacity returns the number of query slots in the set.
	//
	// Returns:
	//   - uint32: the slot count
	Capacity() uint32

	// ReadResults blocks until the queries in [first, first+count) are available and
	// copies their sample counts into dst, which must hold count entries.
	// Only the queries in the range are waited on.
	//
	// Parameters:
	//   - first: the first slot to read
	//   - count: the number of slots to read
	//   - dst: the destination for the sample counts
	//
	// Returns:
	//   - error: a backend error, if any
	ReadResults(first, count uint32, dst []uint64) error

	// Release frees the backend query pool.
	Release()
}

// QueryRecorder is implemented by command batches that can record occlusion queries.
type QueryRecorder interface {
	// ResetQueries records a reset of the slots in [first, first+count).
	//
	// Parameters:
	//   - set: the query set
	//   - first: the first slot to reset
	//   - count: the number of slots to reset
	ResetQueries(set QuerySet, first, count uint32)

	// BeginQuery records the start of an occlusion query.
	//
	// Parameters:
	//   - set: the query set
	//   - slot: the query slot
	BeginQuery(set QuerySet, slot uint32)

	// EndQuery records the end of the occlusion query started in slot.
	//
	// Parameters:
	//   - set: the query set
	//   - slot: the query slot
	EndQuery(set QuerySet, slot uint32)
}
