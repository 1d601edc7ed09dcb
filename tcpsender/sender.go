// Package tcpsender implements the sender half of the TCP state machine:
// packetizing an outbound ByteStream into segments within the peer's
// advertised window, tracking outstanding segments, and retransmitting on
// timeout with exponential backoff.
package tcpsender

import (
	"time"

	"tcpip-core/seqnum"
	"tcpip-core/stream"
	"tcpip-core/tcpmsg"
)

// TransmitFunc is the callback a Sender uses to emit a segment; the actual
// Ethernet/IP transport lives outside this package (spec.md §1).
type TransmitFunc func(tcpmsg.Segment)

// Sender is the sender half of a TCP connection.
type Sender struct {
	in  *stream.Reader
	isn seqnum.Value

	nextSeqno seqnum.Absolute
	ackno     seqnum.Absolute

	windowSize uint16
	synSent    bool
	finSent    bool

	outstanding outstandingQueue

	initialRTO                 time.Duration
	currentRTO                 time.Duration
	elapsed                    time.Duration
	running                    bool
	consecutiveRetransmissions int
}

// New constructs a Sender reading from in, using isn as its fixed initial
// sequence number and initialRTO as its starting retransmission timeout.
// Per spec.md §6 the initial advertised window is 1.
func New(in *stream.Reader, isn seqnum.Value, initialRTO time.Duration) *Sender {
	return &Sender{
		in:         in,
		isn:        isn,
		windowSize: 1,
		initialRTO: initialRTO,
		currentRTO: initialRTO,
	}
}

// BytesInFlight returns the total sequence length of outstanding segments.
func (s *Sender) BytesInFlight() int { return s.outstanding.BytesInFlight() }

// NextSeqno exposes the absolute next sequence number, for tests.
func (s *Sender) NextSeqno() seqnum.Absolute { return s.nextSeqno }

// AckNo exposes the absolute highest-acknowledged sequence number, for tests.
func (s *Sender) AckNo() seqnum.Absolute { return s.ackno }

// ConsecutiveRetransmissions exposes the backoff counter, for tests.
func (s *Sender) ConsecutiveRetransmissions() int { return s.consecutiveRetransmissions }

// CurrentRTO exposes the current retransmission timeout, for tests.
func (s *Sender) CurrentRTO() time.Duration { return s.currentRTO }

// Push packetizes as much of the outbound stream as the peer's advertised
// window allows, emitting each segment via transmit.
func (s *Sender) Push(transmit TransmitFunc) {
	w := int(s.windowSize)
	if w < 1 {
		w = 1
	}

	for s.BytesInFlight() < w && !s.finSent {
		synBit := !s.synSent
		remaining := w - s.BytesInFlight()

		payloadCap := remaining
		if synBit {
			payloadCap--
		}
		if payloadCap > tcpmsg.MaxPayloadSize {
			payloadCap = tcpmsg.MaxPayloadSize
		}
		if payloadCap < 0 {
			payloadCap = 0
		}
		payload := s.drain(payloadCap)

		seg := tcpmsg.Segment{
			SeqNo:   seqnum.Wrap(s.nextSeqno, s.isn),
			SYN:     synBit,
			Payload: payload,
		}

		consumedSoFar := boolToInt(synBit) + len(payload)
		if !s.finSent && s.in.IsFinished() && remaining > consumedSoFar {
			seg.FIN = true
		}

		seqLen := seg.SequenceLength()
		if seqLen == 0 {
			return
		}

		start := s.nextSeqno
		transmit(seg)
		if seg.SYN {
			s.synSent = true
		}
		if seg.FIN {
			s.finSent = true
		}
		s.nextSeqno += seqnum.Absolute(seqLen)
		s.outstanding.Push(&outstandingSegment{start: int64(start), seqLen: seqLen, seg: seg})
		if !s.running {
			s.running = true
			s.elapsed = 0
		}
	}
}

func (s *Sender) drain(n int) []byte {
	if n <= 0 {
		return nil
	}
	peeked := s.in.Peek()
	if len(peeked) > n {
		peeked = peeked[:n]
	}
	if len(peeked) == 0 {
		return nil
	}
	out := make([]byte, len(peeked))
	copy(out, peeked)
	s.in.Pop(len(out))
	return out
}

// MakeEmptyMessage returns a bare segment carrying no payload: RST if the
// outbound stream has errored, otherwise an empty ack-carrier.
func (s *Sender) MakeEmptyMessage() tcpmsg.Segment {
	return tcpmsg.Segment{
		SeqNo: seqnum.Wrap(s.nextSeqno, s.isn),
		RST:   s.in.HasError(),
	}
}

// Receive consumes an inbound ackno/window message.
func (s *Sender) Receive(msg tcpmsg.ReceiverMessage) {
	if s.in.HasError() {
		return
	}
	if msg.RST {
		s.in.SetError()
		return
	}
	s.windowSize = msg.WindowSize
	if !msg.HasAckNo {
		return
	}

	ackAbs := int64(seqnum.Unwrap(msg.AckNo, s.isn, s.nextSeqno))
	if ackAbs > int64(s.nextSeqno) {
		return // acknowledges unsent data
	}
	if ackAbs <= int64(s.ackno) {
		return // stale ack
	}

	freed := s.outstanding.PopAcked(ackAbs)
	if freed > 0 {
		s.ackno = seqnum.Absolute(ackAbs)
		s.currentRTO = s.initialRTO
		s.consecutiveRetransmissions = 0
		s.elapsed = 0
		s.running = !s.outstanding.Empty()
	}
}

// Tick advances the retransmission timer by dt and retransmits the
// earliest outstanding segment if it has expired.
func (s *Sender) Tick(dt time.Duration, transmit TransmitFunc) {
	if s.running {
		s.elapsed += dt
	}
	if !s.running || s.elapsed < s.currentRTO || s.outstanding.Empty() {
		return
	}

	head := s.outstanding.Front()
	transmit(head.seg)

	if s.windowSize > 0 {
		s.consecutiveRetransmissions++
		s.currentRTO *= 2
	}
	s.elapsed = 0
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
