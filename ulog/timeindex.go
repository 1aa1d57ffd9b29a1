package ulog

import "sort"

// EntryKind discriminates what a TimeIndex entry represents.
type EntryKind int

const (
	// EntryOther covers AddLogged, RemoveLogged, Dropout, Synchronization,
	// and Unknown records: tagged with the running maximum timestamp seen
	// so far, for stable ordering against neighboring time-bearing records.
	EntryOther EntryKind = iota
	EntryLog
	EntryData
)

// IndexEntry is one (timestamp, file offset, kind) tuple in the TimeIndex.
type IndexEntry struct {
	Timestamp uint64
	Offset    uint64
	Kind      EntryKind
	MsgID     uint16 // valid iff Kind == EntryData
}

// TimeIndex is the sorted-by-(timestamp,offset) array built during open()
// that drives ranged and ordered iteration.
type TimeIndex struct {
	entries []IndexEntry
}

// Len returns the number of indexed records.
func (idx *TimeIndex) Len() int {
	return len(idx.entries)
}

// At returns the entry at position i.
func (idx *TimeIndex) At(i int) IndexEntry {
	return idx.entries[i]
}

// sortStable sorts entries by (timestamp, offset) ascending. The offset
// tiebreak preserves file order across records sharing a timestamp.
func (idx *TimeIndex) sortStable() {
	sort.Slice(idx.entries, func(i, j int) bool {
		a, b := idx.entries[i], idx.entries[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return a.Offset < b.Offset
	})
}

// Range returns the contiguous index range [lo, hi] of entries whose
// timestamps lie in [start, end] inclusive, per findRange. ok is false if no
// entry qualifies.
func (idx *TimeIndex) Range(start, end uint64) (lo, hi int, ok bool) {
	return findRange(idx.entries, start, end)
}

// findRange performs the binary search described in spec §4.7: the smallest
// i with entries[i].Timestamp >= start, and the largest j with
// entries[j].Timestamp <= end. It returns ok=false if either does not exist
// or i > j, and works correctly on an empty slice.
func findRange(entries []IndexEntry, start, end uint64) (lo, hi int, ok bool) {
	n := len(entries)
	i := sort.Search(n, func(k int) bool { return entries[k].Timestamp >= start })
	if i == n {
		return 0, 0, false
	}
	j := sort.Search(n, func(k int) bool { return entries[k].Timestamp > end }) - 1
	if j < i {
		return 0, 0, false
	}
	return i, j, true
}

// TimeRange returns the smallest and largest timestamps among time-bearing
// (Data or Log) entries, or ok=false if no time-bearing record exists.
// EntryOther entries do not affect the result.
func (idx *TimeIndex) TimeRange() (min, max uint64, ok bool) {
	haveAny := false
	for _, e := range idx.entries {
		if e.Kind == EntryData || e.Kind == EntryLog {
			if !haveAny || e.Timestamp < min {
				min = e.Timestamp
			}
			if !haveAny || e.Timestamp > max {
				max = e.Timestamp
			}
			haveAny = true
		}
	}
	return min, max, haveAny
}
