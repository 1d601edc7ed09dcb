package tcpreceiver

import (
	"testing"

	"tcpip-core/seqnum"
	"tcpip-core/stream"
	"tcpip-core/tcpmsg"
)

func TestHandshakeAndDataAndFIN(t *testing.T) {
	w, r := stream.New(64)
	recv := New(w, r)

	isn := seqnum.Value(1000)

	recv.Receive(tcpmsg.Segment{SeqNo: isn, SYN: true})
	reply := recv.Send()
	if !reply.HasAckNo || reply.AckNo != seqnum.Wrap(1, isn) {
		t.Fatalf("after SYN: ackno = %+v, want wrap(1, isn)", reply)
	}
	if reply.WindowSize != 64 {
		t.Fatalf("window = %d, want 64", reply.WindowSize)
	}

	recv.Receive(tcpmsg.Segment{SeqNo: seqnum.Wrap(1, isn), Payload: []byte("hi")})
	reply = recv.Send()
	if reply.AckNo != seqnum.Wrap(3, isn) {
		t.Fatalf("after data: ackno = %v, want wrap(3, isn)", reply.AckNo)
	}

	recv.Receive(tcpmsg.Segment{SeqNo: seqnum.Wrap(3, isn), FIN: true})
	reply = recv.Send()
	if reply.AckNo != seqnum.Wrap(4, isn) {
		t.Fatalf("after FIN: ackno = %v, want wrap(4, isn)", reply.AckNo)
	}
}

func TestPreSYNSegmentsDiscarded(t *testing.T) {
	w, r := stream.New(64)
	recv := New(w, r)
	recv.Receive(tcpmsg.Segment{SeqNo: 5, Payload: []byte("nope")})
	reply := recv.Send()
	if reply.HasAckNo {
		t.Fatalf("expected no ackno before ISN is established")
	}
}

func TestRSTSetsStickyError(t *testing.T) {
	w, r := stream.New(64)
	recv := New(w, r)
	recv.Receive(tcpmsg.Segment{RST: true})
	if !r.HasError() {
		t.Fatalf("RST should set the sticky error bit")
	}
	reply := recv.Send()
	if reply.HasAckNo {
		t.Fatalf("ISN never set, so ackno should stay absent even after RST")
	}
}

func TestIdempotentRetransmission(t *testing.T) {
	w, r := stream.New(64)
	recv := New(w, r)
	isn := seqnum.Value(42)
	recv.Receive(tcpmsg.Segment{SeqNo: isn, SYN: true})
	recv.Receive(tcpmsg.Segment{SeqNo: seqnum.Wrap(1, isn), Payload: []byte("ab")})

	first := recv.Send()
	recv.Receive(tcpmsg.Segment{SeqNo: seqnum.Wrap(1, isn), Payload: []byte("ab")}) // retransmit
	second := recv.Send()
	if first != second {
		t.Fatalf("receiver not idempotent under retransmission: %+v != %+v", first, second)
	}
}
