// Package stream implements ByteStream: a bounded FIFO of bytes with a
// producer side (Writer) and consumer side (Reader), a sticky close bit,
// and a sticky error bit.
//
// The underlying storage is a github.com/smallnest/ringbuffer.RingBuffer
// sized to the stream's capacity, the way the sibling CS1680 TCP/IP stacks
// in this pack back their socket buffers, rather than a hand-rolled
// fixed-array ring (compare the teacher's pkg/buffer.go TCPBuffer, whose
// wraparound arithmetic this module's predecessor reimplemented by hand).
package stream

import (
	"sync"

	"github.com/smallnest/ringbuffer"
)

// byteStream is the shared state behind a Writer/Reader pair. All access in
// this core is serialized by a single-threaded driver (see SPEC_FULL.md
// §5), but a mutex is kept here since Writer and Reader are two
// independent handles over the same storage and nothing prevents a caller
// from holding both across goroutines.
type byteStream struct {
	mu       sync.Mutex
	capacity int
	buf      *ringbuffer.RingBuffer
	pushed   uint64
	popped   uint64
	closed   bool
	errored  bool
}

// New constructs a ByteStream with a fixed capacity and returns split
// Writer/Reader handles over it, per the producer-owns-writes,
// consumer-owns-reads split mandated for shared mutable streams.
func New(capacity int) (*Writer, *Reader) {
	bs := &byteStream{
		capacity: capacity,
		buf:      ringbuffer.New(capacity),
	}
	return &Writer{bs: bs}, &Reader{bs: bs}
}

// Writer is the producer-side view of a ByteStream.
type Writer struct{ bs *byteStream }

// Reader is the consumer-side view of a ByteStream.
type Reader struct{ bs *byteStream }

// Push appends min(len(data), available_capacity) bytes; excess bytes are
// silently dropped. A no-op once the stream is closed or errored.
func (w *Writer) Push(data []byte) int {
	bs := w.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if bs.closed || bs.errored || len(data) == 0 {
		return 0
	}
	avail := bs.capacity - bs.buffered()
	if avail <= 0 {
		return 0
	}
	if len(data) > avail {
		data = data[:avail]
	}
	n, _ := bs.buf.Write(data)
	bs.pushed += uint64(n)
	return n
}

// Close sets the sticky close flag: no more bytes will ever be pushed.
func (w *Writer) Close() {
	bs := w.bs
	bs.mu.Lock()
	bs.closed = true
	bs.mu.Unlock()
}

// SetError sets the sticky error flag from the producer side (tcpreceiver
// uses it to record a peer RST on the inbound stream it reassembles into).
func (w *Writer) SetError() {
	bs := w.bs
	bs.mu.Lock()
	bs.errored = true
	bs.mu.Unlock()
}

// AvailableCapacity returns capacity - buffered.
func (w *Writer) AvailableCapacity() int {
	bs := w.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.capacity - bs.buffered()
}

// BytesPushed returns the monotonically non-decreasing total pushed.
func (w *Writer) BytesPushed() uint64 {
	bs := w.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.pushed
}

// IsClosed reports the sticky close flag.
func (w *Writer) IsClosed() bool {
	bs := w.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.closed
}

// HasError reports the sticky error flag.
func (w *Writer) HasError() bool {
	bs := w.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.errored
}

// Peek returns a contiguous view over some non-empty prefix of the
// buffered bytes. Callers must loop, re-Peek()ing, until Peek returns an
// empty slice. The returned slice is only valid until the next mutating
// call on the Reader.
func (r *Reader) Peek() []byte {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	n := bs.buffered()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	// PeekAll-by-copy: smallnest/ringbuffer exposes no zero-copy peek, so
	// a Bytes() snapshot stands in as the "view" the spec permits
	// returning (implementations may return a shorter prefix; this
	// returns the whole buffered run).
	copy(out, bs.buf.Bytes())
	return out
}

// Pop discards min(n, buffered) leading bytes and advances the popped
// counter.
func (r *Reader) Pop(n int) int {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	avail := bs.buffered()
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	discard := make([]byte, n)
	got, _ := bs.buf.Read(discard)
	bs.popped += uint64(got)
	return got
}

// IsFinished reports closed && bytes_pushed == bytes_popped.
func (r *Reader) IsFinished() bool {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.closed && bs.pushed == bs.popped
}

// HasError reports the sticky error flag.
func (r *Reader) HasError() bool {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.errored
}

// IsClosed reports the sticky close flag.
func (r *Reader) IsClosed() bool {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.closed
}

// SetError sets the sticky error flag from the consumer side (tcpsender
// uses it to record a peer RST on the outbound stream it reads from).
func (r *Reader) SetError() {
	bs := r.bs
	bs.mu.Lock()
	bs.errored = true
	bs.mu.Unlock()
}

// BytesBuffered returns the number of bytes currently queued.
func (r *Reader) BytesBuffered() int {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.buffered()
}

// BytesPopped returns the monotonically non-decreasing total popped.
func (r *Reader) BytesPopped() uint64 {
	bs := r.bs
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.popped
}

func (bs *byteStream) buffered() int {
	return bs.buf.Length()
}
