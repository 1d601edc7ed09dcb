package tcpsender

import (
	"container/heap"
	"time"

	"tcpip-core/tcpmsg"
)

// outstandingSegment records one segment sent but not yet fully
// acknowledged, keyed by its absolute starting sequence number.
type outstandingSegment struct {
	start   int64
	seqLen  int
	seg     tcpmsg.Segment
	sentAt  time.Time
	heapIdx int
}

func (o *outstandingSegment) end() int64 { return o.start + int64(o.seqLen) }

// outstandingQueue is a container/heap min-heap ordered by start sequence
// number, adapted from the teacher's priorityQueue/pq.go (there, a heap of
// early-arrival packets ordered by sequence number; here, the same shape
// repurposed to order a sender's in-flight segments for retransmission).
// Because segments are always appended in increasing sequence order and
// popped from the front, the heap behaves as a FIFO in practice, but the
// heap gives O(log n) access to the retransmission candidate even if a
// future extension (not used by this spec) reordered entries.
type outstandingQueue struct {
	items outstandingHeap
}

type outstandingHeap []*outstandingSegment

func (h outstandingHeap) Len() int            { return len(h) }
func (h outstandingHeap) Less(i, j int) bool  { return h[i].start < h[j].start }
func (h outstandingHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIdx = i
	h[j].heapIdx = j
}
func (h *outstandingHeap) Push(x any) {
	o := x.(*outstandingSegment)
	o.heapIdx = len(*h)
	*h = append(*h, o)
}
func (h *outstandingHeap) Pop() any {
	old := *h
	n := len(old)
	o := old[n-1]
	old[n-1] = nil
	o.heapIdx = -1
	*h = old[:n-1]
	return o
}

func (q *outstandingQueue) Push(o *outstandingSegment) {
	heap.Push(&q.items, o)
}

func (q *outstandingQueue) Len() int { return q.items.Len() }

func (q *outstandingQueue) Empty() bool { return len(q.items) == 0 }

// Front returns the lowest-sequence outstanding segment (the
// retransmission candidate) without removing it.
func (q *outstandingQueue) Front() *outstandingSegment {
	if q.Empty() {
		return nil
	}
	return q.items[0]
}

// PopAcked removes every outstanding segment fully covered by ackAbs
// (start+seqLen <= ackAbs), returning how many bytes they covered.
func (q *outstandingQueue) PopAcked(ackAbs int64) (bytesFreed int) {
	for !q.Empty() && q.items[0].end() <= ackAbs {
		o := heap.Pop(&q.items).(*outstandingSegment)
		bytesFreed += o.seqLen
	}
	return bytesFreed
}

// BytesInFlight sums the sequence length of every outstanding segment.
func (q *outstandingQueue) BytesInFlight() int {
	total := 0
	for _, o := range q.items {
		total += o.seqLen
	}
	return total
}
