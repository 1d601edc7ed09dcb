package wire

import (
	"net/netip"

	ipv4header "github.com/brown-csci1680/iptcp-headers"
	"github.com/google/netstack/tcpip/header"
	"github.com/pkg/errors"
)

// TCPProtocolNumber is the IPv4 protocol number carried in an encoded
// datagram's header, matching the teacher's SendIP call sites that pass 6
// (TCP) as the protocol number literal.
const TCPProtocolNumber = 6

// EncodeIPv4 wraps payload in an IPv4 header the way the teacher's SendIP
// does: version 4, no options, TTL 16, checksum computed over the marshaled
// header.
func EncodeIPv4(src, dst netip.Addr, payload []byte) ([]byte, error) {
	hdr := ipv4header.IPv4Header{
		Version:  4,
		Len:      ipv4header.HeaderLen,
		TOS:      0,
		TotalLen: ipv4header.HeaderLen + len(payload),
		ID:       0,
		Flags:    0,
		FragOff:  0,
		TTL:      16,
		Protocol: TCPProtocolNumber,
		Checksum: 0,
		Src:      src,
		Dst:      dst,
		Options:  []byte{},
	}
	headerBytes, err := hdr.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "wire: marshal IPv4 header")
	}
	hdr.Checksum = int(ComputeChecksum(headerBytes))
	headerBytes, err = hdr.Marshal()
	if err != nil {
		return nil, errors.Wrap(err, "wire: marshal IPv4 header with checksum")
	}

	out := make([]byte, 0, len(headerBytes)+len(payload))
	out = append(out, headerBytes...)
	out = append(out, payload...)
	return out, nil
}

// DecodeIPv4 parses a datagram's IPv4 header and returns the header plus
// the remaining TCP payload.
func DecodeIPv4(b []byte) (ipv4header.IPv4Header, []byte, error) {
	hdr, err := ipv4header.ParseHeader(b)
	if err != nil {
		return ipv4header.IPv4Header{}, nil, errors.Wrap(err, "wire: parse IPv4 header")
	}
	if hdr.Len > len(b) {
		return ipv4header.IPv4Header{}, nil, errors.New("wire: IPv4 header length exceeds datagram")
	}
	return *hdr, b[hdr.Len:], nil
}

// ComputeChecksum computes the IPv4 header checksum, lifted directly from
// the teacher's pkg/protocol.go ComputeChecksum: header.Checksum's running
// sum, one's-complemented.
func ComputeChecksum(headerBytes []byte) uint16 {
	return header.Checksum(headerBytes, 0) ^ 0xffff
}
