// Package wire encodes and decodes the bytes that travel between adjacent
// hosts: TCP segments carried as gVisor's header.TCP wire format inside an
// IPv4 payload, and IPv4 datagrams parsed with iptcp-headers. Neither the
// core tcpsender/tcpreceiver packages nor netiface depend on this package;
// it exists purely for cmd/tcpdemo to turn tcpmsg.Segment/ReceiverMessage
// values into bytes an Ethernet peer can actually carry, the way the
// teacher's pkg/socket.go sendTCP and tcp_protocol.go decode path do for
// their own sockets.
package wire

import (
	"net/netip"

	"github.com/google/netstack/tcpip"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"

	"tcpip-core/seqnum"
	"tcpip-core/tcpmsg"
)

// TCPHeaderLen is the fixed header length this codec emits: no TCP options.
const TCPHeaderLen = header.TCPMinimumSize

// EncodeSegment renders a Segment as wire bytes: a TCP header (with the
// checksum computed over the pseudo-header, as iptcp_utils.ComputeTCPChecksum
// does in the teacher's sendTCP) followed by the payload. ackNo/windowSize
// come from the receiver side of the connection, srcPort/dstPort/src/dst
// identify the four-tuple.
func EncodeSegment(seg tcpmsg.Segment, ackNo uint32, hasAck bool, windowSize uint16, srcPort, dstPort uint16, src, dst netip.Addr) []byte {
	flags := uint8(0)
	if seg.SYN {
		flags |= header.TCPFlagSyn
	}
	if seg.FIN {
		flags |= header.TCPFlagFin
	}
	if seg.RST {
		flags |= header.TCPFlagRst
	}
	if hasAck {
		flags |= header.TCPFlagAck
	}

	fields := header.TCPFields{
		SrcPort:       srcPort,
		DstPort:       dstPort,
		SeqNum:        uint32(seg.SeqNo),
		AckNum:        ackNo,
		DataOffset:    TCPHeaderLen,
		Flags:         flags,
		WindowSize:    windowSize,
		Checksum:      0,
		UrgentPointer: 0,
	}

	hdr := make(header.TCP, TCPHeaderLen)
	hdr.Encode(&fields)

	checksum := tcpChecksum(hdr, src, dst, seg.Payload)
	hdr.SetChecksum(checksum)

	out := make([]byte, 0, TCPHeaderLen+len(seg.Payload))
	out = append(out, hdr...)
	out = append(out, seg.Payload...)
	return out
}

// DecodeSegment parses wire bytes into a Segment plus the inbound ackno
// the peer carried, mirroring header.TCP's accessor methods over the
// teacher's own hand-decoded flag checks (pkg/tcp_protocol.go).
func DecodeSegment(b []byte) (seg tcpmsg.Segment, ackNo uint32, hasAck bool, windowSize uint16, err error) {
	if len(b) < TCPHeaderLen {
		return tcpmsg.Segment{}, 0, false, 0, errors.New("wire: TCP segment shorter than minimum header")
	}
	hdr := header.TCP(b)

	seg.SeqNo = seqnum.Value(hdr.SequenceNumber())
	seg.SYN = hdr.Flags()&header.TCPFlagSyn != 0
	seg.FIN = hdr.Flags()&header.TCPFlagFin != 0
	seg.RST = hdr.Flags()&header.TCPFlagRst != 0
	seg.Payload = append([]byte(nil), hdr.Payload()...)

	hasAck = hdr.Flags()&header.TCPFlagAck != 0
	ackNo = hdr.AckNumber()
	windowSize = hdr.WindowSize()
	return seg, ackNo, hasAck, windowSize, nil
}

func tcpChecksum(hdr header.TCP, src, dst netip.Addr, payload []byte) uint16 {
	length := uint16(len(hdr) + len(payload))
	xsum := header.PseudoHeaderChecksum(header.TCPProtocolNumber, tcpAddress(src), tcpAddress(dst), length)
	xsum = header.Checksum(hdr, xsum)
	xsum = header.Checksum(payload, xsum)
	return ^xsum
}

func tcpAddress(a netip.Addr) tcpip.Address {
	b := a.As4()
	return tcpip.Address(b[:])
}
