// Package tcpmsg defines the two message shapes exchanged between a
// TCPSender and a TCPReceiver: the sender-to-receiver Segment and the
// receiver-to-sender ReceiverMessage. Both directions share these types so
// that TCPSender.Receive and TCPReceiver.Send speak the same vocabulary,
// mirroring spec.md §3's single Segment/ReceiverMessage data model rather
// than letting each half of the connection define its own shadow copy.
package tcpmsg

import "tcpip-core/seqnum"

// MaxPayloadSize is the TCP segment payload cap (spec.md §6).
const MaxPayloadSize = 1000

// Segment is one outbound TCP segment (sender-to-receiver direction).
type Segment struct {
	SeqNo   seqnum.Value
	SYN     bool
	Payload []byte
	FIN     bool
	RST     bool
}

// SequenceLength is SYN + len(Payload) + FIN: how many sequence numbers
// this segment consumes.
func (s Segment) SequenceLength() int {
	n := len(s.Payload)
	if s.SYN {
		n++
	}
	if s.FIN {
		n++
	}
	return n
}

// IsEmpty reports whether this segment carries no information at all (no
// flags, no payload, no RST). TCPSender.Push never emits such a segment;
// TCPSender.MakeEmptyMessage returns one as a bare ack carrier.
func (s Segment) IsEmpty() bool {
	return s.SequenceLength() == 0 && !s.RST
}

// ReceiverMessage is one inbound ackno/window/RST reply (receiver-to-sender
// direction).
type ReceiverMessage struct {
	HasAckNo   bool
	AckNo      seqnum.Value
	WindowSize uint16
	RST        bool
}
