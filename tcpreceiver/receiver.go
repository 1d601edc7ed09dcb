// Package tcpreceiver implements the receiver half of the TCP state
// machine: turning inbound segments into Reassembler insertions and
// producing ackno/window/RST replies.
package tcpreceiver

import (
	"tcpip-core/reassembler"
	"tcpip-core/seqnum"
	"tcpip-core/stream"
	"tcpip-core/tcpmsg"
)

const maxWindow = 0xFFFF

// Receiver is the receiver half of a TCP connection.
type Receiver struct {
	isnSet bool
	isn    seqnum.Value

	re  *reassembler.Reassembler
	out *stream.Writer
	in  *stream.Reader
}

// New constructs a Receiver that reassembles into the given output stream.
// in is the reader side of the same stream; the Unwrap checkpoint
// (bytes_pushed) and the sticky error bit are both read through out.
func New(out *stream.Writer, in *stream.Reader) *Receiver {
	return &Receiver{re: reassembler.New(out), out: out, in: in}
}

// Receive processes one inbound segment.
func (r *Receiver) Receive(msg tcpmsg.Segment) {
	if msg.RST {
		r.out.SetError()
		return
	}
	if msg.SYN && !r.isnSet {
		r.isn = msg.SeqNo
		r.isnSet = true
	}
	if !r.isnSet {
		return
	}

	checkpoint := seqnum.Absolute(r.out.BytesPushed())
	absSeq := seqnum.Unwrap(msg.SeqNo, r.isn, checkpoint)

	var streamIndex int64
	if msg.SYN {
		streamIndex = 0
	} else {
		streamIndex = int64(absSeq) - 1
	}

	r.re.Insert(streamIndex, msg.Payload, msg.FIN)
}

// Send produces the receiver's current ackno/window/RST state.
func (r *Receiver) Send() tcpmsg.ReceiverMessage {
	avail := r.out.AvailableCapacity()
	win := avail
	if win > maxWindow {
		win = maxWindow
	}
	msg := tcpmsg.ReceiverMessage{
		WindowSize: uint16(win),
		RST:        r.out.HasError(),
	}
	if !r.isnSet {
		return msg
	}
	absAck := seqnum.Absolute(1) + seqnum.Absolute(r.out.BytesPushed())
	if r.out.IsClosed() {
		absAck++
	}
	msg.HasAckNo = true
	msg.AckNo = seqnum.Wrap(absAck, r.isn)
	return msg
}
