package tcpsender

import (
	"testing"
	"time"

	"tcpip-core/seqnum"
	"tcpip-core/stream"
	"tcpip-core/tcpmsg"
)

func TestPushSendsSYNFirst(t *testing.T) {
	w, r := stream.New(64)
	w.Push([]byte("hello"))
	s := New(r, seqnum.Value(100), time.Millisecond)

	var sent []tcpmsg.Segment
	s.Push(func(seg tcpmsg.Segment) { sent = append(sent, seg) })

	if len(sent) == 0 || !sent[0].SYN {
		t.Fatalf("expected first segment to carry SYN, got %+v", sent)
	}
	if s.BytesInFlight() == 0 {
		t.Fatalf("expected outstanding bytes after push")
	}
}

func TestReceiveAckRetiresOutstanding(t *testing.T) {
	w, r := stream.New(64)
	w.Push([]byte("abc"))
	isn := seqnum.Value(5000)
	s := New(r, isn, time.Millisecond)

	var sent []tcpmsg.Segment
	s.Push(func(seg tcpmsg.Segment) { sent = append(sent, seg) })
	if s.BytesInFlight() == 0 {
		t.Fatalf("expected bytes in flight before ack")
	}

	s.Receive(tcpmsg.ReceiverMessage{
		HasAckNo:   true,
		AckNo:      seqnum.Wrap(seqnum.Absolute(s.NextSeqno()), isn),
		WindowSize: 64,
	})
	if s.BytesInFlight() != 0 {
		t.Fatalf("expected bytes_in_flight == 0 after full ack, got %d", s.BytesInFlight())
	}
	if s.ConsecutiveRetransmissions() != 0 {
		t.Fatalf("ack should reset consecutive retransmissions")
	}
}

// TestRetransmitWithBackoff implements spec.md §8 scenario 5: an
// unacknowledged segment is retransmitted once its RTO elapses, and RTO
// doubles on each consecutive retransmission while the window stays open.
func TestRetransmitWithBackoff(t *testing.T) {
	w, r := stream.New(64)
	w.Push([]byte("x"))
	s := New(r, seqnum.Value(1), time.Millisecond)
	s.windowSize = 10

	retransmits := 0
	s.Push(func(tcpmsg.Segment) {})
	initialRTO := s.CurrentRTO()

	transmit := func(tcpmsg.Segment) { retransmits++ }

	s.Tick(initialRTO-time.Microsecond, transmit)
	if retransmits != 0 {
		t.Fatalf("should not retransmit before RTO elapses")
	}

	s.Tick(2*time.Microsecond, transmit)
	if retransmits != 1 {
		t.Fatalf("expected one retransmission once RTO elapses, got %d", retransmits)
	}
	if s.CurrentRTO() != 2*initialRTO {
		t.Fatalf("RTO should double after a retransmission, got %v want %v", s.CurrentRTO(), 2*initialRTO)
	}
	if s.ConsecutiveRetransmissions() != 1 {
		t.Fatalf("expected consecutive_retransmissions == 1, got %d", s.ConsecutiveRetransmissions())
	}

	s.Tick(s.CurrentRTO(), transmit)
	if retransmits != 2 {
		t.Fatalf("expected a second retransmission, got %d", retransmits)
	}
	if s.ConsecutiveRetransmissions() != 2 {
		t.Fatalf("expected consecutive_retransmissions == 2, got %d", s.ConsecutiveRetransmissions())
	}
}

// TestZeroWindowProbeSkipsBackoff implements spec.md §8 scenario 6: when the
// peer advertises a zero window, the sender still retransmits its
// outstanding segment (here the one-sequence-number SYN) on timeout, but the
// RTO does not double and the retransmission counter does not advance for
// that probe.
func TestZeroWindowProbeSkipsBackoff(t *testing.T) {
	w, r := stream.New(64)
	w.Push([]byte("x"))
	s := New(r, seqnum.Value(1), time.Millisecond)

	s.Push(func(tcpmsg.Segment) {})
	s.Receive(tcpmsg.ReceiverMessage{HasAckNo: false, WindowSize: 0})

	s.windowSize = 0
	initialRTO := s.CurrentRTO()

	probes := 0
	s.Tick(initialRTO, func(tcpmsg.Segment) { probes++ })

	if probes != 1 {
		t.Fatalf("expected a zero-window probe, got %d", probes)
	}
	if s.CurrentRTO() != initialRTO {
		t.Fatalf("RTO must not double for a zero-window probe, got %v want %v", s.CurrentRTO(), initialRTO)
	}
	if s.ConsecutiveRetransmissions() != 0 {
		t.Fatalf("consecutive_retransmissions must not advance for a zero-window probe, got %d", s.ConsecutiveRetransmissions())
	}
}

func TestBytesInFlightInvariant(t *testing.T) {
	w, r := stream.New(64)
	w.Push([]byte("hello world"))
	w.Close()
	s := New(r, seqnum.Value(9), time.Millisecond)
	s.windowSize = 100

	s.Push(func(tcpmsg.Segment) {})

	total := 0
	for _, o := range s.outstanding.items {
		total += o.seqLen
	}
	if total != s.BytesInFlight() {
		t.Fatalf("bytes_in_flight invariant broken: sum=%d reported=%d", total, s.BytesInFlight())
	}
	if int64(s.AckNo()) > int64(s.NextSeqno()) {
		t.Fatalf("ackno must never exceed next_seqno")
	}
}
