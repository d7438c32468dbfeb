package logbuffer

// RotateLog advances the active partition when a producer observes a trip
// (§4.4). Only the first trip-observer for a given term id actually
// performs the rotation; producers that retry after losing the race simply
// re-observe the new active index. currentTermID is the term id the
// tripping producer was writing into.
//
// Returns the new active partition index and true if this call performed
// the rotation, or the current (unchanged) index and false if another
// producer already rotated past currentTermID.
func (lb *LogBuffers) RotateLog(activeIndex int32, currentTermID int32) (int32, bool) {
	nextIndex := RotateIndex(activeIndex)
	nextNextIndex := RotateIndex(nextIndex)
	nextTermID := currentTermID + 1

	// Every racer computes the same nextIndex/nextTermID, so these writes
	// are idempotent for a losing racer; they must land before the CAS
	// publishes the new active index, or a producer that observes the new
	// index on its very next read could claim against a stale tail left
	// over from a prior rotation of this same partition.
	lb.meta.TailCounter[nextIndex].Set(PackTail(nextTermID, 0))
	lb.meta.Status[nextNextIndex].Set(PartitionStatusNeedsCleaning)
	lb.meta.Status[nextIndex].Set(PartitionStatusInUse)

	// Only the producer that wins this CAS is considered to have performed
	// the rotation; every other producer that trips against the same term
	// observes the new active index on retry instead.
	if !lb.meta.ActivePartitionIndex.CompareAndSwap(activeIndex, nextIndex) {
		return lb.meta.ActivePartitionIndex.Get(), false
	}

	return nextIndex, true
}

// NeedsCleaning reports whether partitionIndex is currently marked
// NEEDS_CLEANING.
func (lb *LogBuffers) NeedsCleaning(partitionIndex int32) bool {
	return lb.meta.Status[partitionIndex].Get() == PartitionStatusNeedsCleaning
}

// CleanPartition zero-fills partitionIndex's term buffer, then marks it
// CLEAN. The metadata tail is left as it is; RotateLog resets it when the
// partition next becomes active. Must only be called by the single background
// cleaner goroutine; concurrent callers would race on the zero-fill.
func (lb *LogBuffers) CleanPartition(partitionIndex int32) {
	buf := lb.termBuffers[partitionIndex]
	zero(buf.Slice(0, lb.termLength))
	lb.meta.Status[partitionIndex].Set(PartitionStatusClean)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// PendingCleans returns the set of partition indices currently marked
// NEEDS_CLEANING, used by the background cleaner to find work.
func (lb *LogBuffers) PendingCleans() []int32 {
	var pending []int32
	for i := int32(0); i < PartitionCount; i++ {
		if lb.NeedsCleaning(i) {
			pending = append(pending, i)
		}
	}
	return pending
}
