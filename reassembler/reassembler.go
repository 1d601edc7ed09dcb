// Package reassembler turns out-of-order, possibly-overlapping byte ranges
// indexed by an absolute stream offset into an in-order byte stream.
package reassembler

import (
	"github.com/google/btree"

	"tcpip-core/stream"
)

// fragment is one entry of the pending (not-yet-deliverable) store, keyed
// by its absolute starting offset.
type fragment struct {
	offset int64
	data   []byte
}

func (f fragment) end() int64 { return f.offset + int64(len(f.data)) }

func less(a, b fragment) bool { return a.offset < b.offset }

// Reassembler accepts out-of-order fragments and delivers them in order to
// an owned ByteStream.
//
// pending is a github.com/google/btree.BTreeG ordered by absolute offset.
// The teacher's go.mod already carried google/btree as an indirect
// dependency (pulled in transitively by the gvisor-derived netstack
// tooling) without ever importing it directly; this is the "balanced-tree
// map" spec.md §9 calls for (lower_bound, iterate-forward, insert, erase),
// so the dependency is promoted to direct and actually exercised here
// instead of being dropped.
type Reassembler struct {
	out *stream.Writer

	nextIndex int64
	pending   *btree.BTreeG[fragment]

	eofSeen  bool
	eofIndex int64
}

// New constructs a Reassembler delivering into out, whose capacity bounds
// how far ahead of nextIndex a fragment may be accepted.
func New(out *stream.Writer) *Reassembler {
	return &Reassembler{
		out:     out,
		pending: btree.NewG(32, less),
	}
}

// Insert accepts a fragment of data starting at the absolute offset
// firstIndex. isLast marks the fragment as containing (or ending at) EOF.
func (r *Reassembler) Insert(firstIndex int64, data []byte, isLast bool) {
	if isLast {
		r.eofSeen = true
		r.eofIndex = firstIndex + int64(len(data))
	}

	windowEnd := r.nextIndex + int64(r.out.AvailableCapacity())

	// Clip to the intersection of [firstIndex, firstIndex+len(data)) and
	// [nextIndex, windowEnd). Computing the clipped bounds before slicing
	// (rather than subtracting raw offsets directly into the slice index)
	// keeps this safe for fragments that lie entirely outside the window
	// in either direction, and for stale redeliveries of already-drained
	// ranges — both would otherwise produce a negative slice bound.
	start, end := firstIndex, firstIndex+int64(len(data))
	clippedStart, clippedEnd := start, end
	if clippedStart < r.nextIndex {
		clippedStart = r.nextIndex
	}
	if clippedEnd > windowEnd {
		clippedEnd = windowEnd
	}
	if clippedStart >= clippedEnd {
		r.closeIfDone()
		return
	}
	data = data[clippedStart-start : clippedEnd-start]
	start, end = clippedStart, clippedEnd

	if start == r.nextIndex {
		r.push(data)
		r.drainPending()
	} else {
		r.storePending(fragment{offset: start, data: data})
	}

	r.closeIfDone()
}

// push delivers data (already known to start at nextIndex) to the output
// stream and advances nextIndex.
func (r *Reassembler) push(data []byte) {
	n := r.out.Push(data)
	r.nextIndex += int64(n)
	// A short push (capacity exhausted mid-write) leaves the remainder
	// nowhere to go; the sender is expected to retransmit it later, so it
	// is simply dropped per §4.3's capacity-pressure policy.
}

// storePending inserts fragment f into pending, coalescing with any
// overlapping or adjacent neighbors so that pending always holds
// non-overlapping, gap-separated entries.
func (r *Reassembler) storePending(f fragment) {
	windowEnd := r.nextIndex + int64(r.out.AvailableCapacity())

	// Merge with the immediate predecessor if it overlaps or abuts f.
	r.pending.DescendLessOrEqual(fragment{offset: f.offset}, func(prev fragment) bool {
		if prev.end() >= f.offset {
			f = mergeInto(prev, f)
			r.pending.Delete(prev)
		}
		return false
	})

	// Merge with every successor whose offset falls within f's span.
	var toDelete []fragment
	r.pending.AscendGreaterOrEqual(fragment{offset: f.offset}, func(next fragment) bool {
		if next.offset > f.end() {
			return false
		}
		f = mergeInto(f, next)
		toDelete = append(toDelete, next)
		return true
	})
	for _, d := range toDelete {
		r.pending.Delete(d)
	}

	if f.end() > windowEnd {
		f.data = f.data[:windowEnd-f.offset]
	}
	if len(f.data) > 0 {
		r.pending.ReplaceOrInsert(f)
	}
}

// mergeInto combines two fragments known to overlap or touch, preferring
// bytes from b wherever their spans overlap. Both fragments describe the
// same absolute offsets under the protocol, so any consistent overlap
// policy is correct; this one favors the fragment passed second, which at
// both call sites in storePending is the one starting at the higher (or
// equal) offset.
func mergeInto(a, b fragment) fragment {
	lo := a.offset
	if b.offset < lo {
		lo = b.offset
	}
	hi := a.end()
	if b.end() > hi {
		hi = b.end()
	}
	merged := make([]byte, hi-lo)
	copy(merged[a.offset-lo:], a.data)
	copy(merged[b.offset-lo:], b.data)
	return fragment{offset: lo, data: merged}
}

// drainPending pushes any pending entries that have become contiguous with
// nextIndex, dropping any already-covered prefix.
func (r *Reassembler) drainPending() {
	for {
		var head fragment
		found := false
		r.pending.AscendGreaterOrEqual(fragment{offset: 0}, func(f fragment) bool {
			head, found = f, true
			return false
		})
		if !found || head.offset > r.nextIndex {
			return
		}
		r.pending.Delete(head)
		data := head.data
		if head.offset < r.nextIndex {
			data = data[r.nextIndex-head.offset:]
		}
		r.push(data)
	}
}

func (r *Reassembler) closeIfDone() {
	if r.eofSeen && r.nextIndex == r.eofIndex {
		r.out.Close()
	}
}

// CountBytesPending sums the length of every fragment currently held back
// awaiting earlier data; exposed for tests only.
func (r *Reassembler) CountBytesPending() int {
	total := 0
	r.pending.Ascend(func(f fragment) bool {
		total += len(f.data)
		return true
	})
	return total
}

// NextIndex exposes the absolute offset of the next byte the Reassembler
// expects to deliver; exposed for tests only.
func (r *Reassembler) NextIndex() int64 { return r.nextIndex }
