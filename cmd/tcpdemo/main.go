// Command tcpdemo is a minimal two-peer integration smoke-test harness: it
// wires a ByteStream, TCPSender/TCPReceiver, and NetworkInterface together
// over a real UDP socket standing in for the physical Ethernet link, and
// drives them from a REPL, the way the teacher's cmd/vhost.go drives its
// own IPStack/TCPStack pair — but flag-configured rather than
// lnxconfig-file-configured, since that file format belongs to the
// excluded CLI-driver/config layer.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"net"
	"net/netip"
	"os"
	"strings"
	"time"

	"tcpip-core/netiface"
	"tcpip-core/seqnum"
	"tcpip-core/stream"
	"tcpip-core/tcpmsg"
	"tcpip-core/tcpreceiver"
	"tcpip-core/tcpsender"
	"tcpip-core/wire"
)

const tickInterval = 100 * time.Millisecond

func main() {
	localAddr := flag.String("laddr", "127.0.0.1:9090", "local UDP address simulating this host's Ethernet link")
	remoteAddr := flag.String("raddr", "127.0.0.1:9091", "peer UDP address simulating the other end of the link")
	localIP := flag.String("lip", "10.0.0.1", "this host's IPv4 address")
	remoteIP := flag.String("rip", "10.0.0.2", "peer host's IPv4 address")
	flag.Parse()

	lip := netip.MustParseAddr(*localIP)
	rip := netip.MustParseAddr(*remoteIP)
	lether := macFromIP(lip)
	rether := macFromIP(rip)

	conn, err := net.ListenPacket("udp", *localAddr)
	if err != nil {
		fmt.Println("listen:", err)
		return
	}
	defer conn.Close()

	peer, err := net.ResolveUDPAddr("udp", *remoteAddr)
	if err != nil {
		fmt.Println("resolve peer:", err)
		return
	}

	port := &udpPort{conn: conn, peer: peer}
	iface := netiface.New(lether, addrToUint32(lip), port)

	outW, outR := stream.New(64 * 1024) // inbound application stream
	inW, inR := stream.New(64 * 1024)   // outbound application stream

	recv := tcpreceiver.New(outW, outR)
	sender := tcpsender.New(inR, seqnum.Value(1000), 200*time.Millisecond)

	transmit := func(seg tcpmsg.Segment) {
		reply := recv.Send()
		segBytes := wire.EncodeSegment(seg, uint32(reply.AckNo), reply.HasAckNo, reply.WindowSize, 1680, 1680, lip, rip)
		dgram, err := wire.EncodeIPv4(lip, rip, segBytes)
		if err != nil {
			fmt.Println("encode:", err)
			return
		}
		iface.SendDatagram(dgram, addrToUint32(rip))
	}

	go listen(conn, iface, rether)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			iface.Tick(tickInterval)
			sender.Tick(tickInterval, transmit)

			for {
				dgram, ok := iface.PopInbound()
				if !ok {
					break
				}
				_, payload, err := wire.DecodeIPv4(dgram)
				if err != nil {
					fmt.Println("decode ipv4:", err)
					continue
				}
				seg, ackNo, hasAck, windowSize, err := wire.DecodeSegment(payload)
				if err != nil {
					fmt.Println("decode segment:", err)
					continue
				}
				recv.Receive(seg)
				if hasAck {
					sender.Receive(tcpmsg.ReceiverMessage{
						HasAckNo:   true,
						AckNo:      seqnum.Value(ackNo),
						WindowSize: windowSize,
					})
				}
				sender.Push(transmit)
			}
		}
	}()

	fmt.Println("tcpdemo ready. Commands: send <text>, recv, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "quit":
			return
		case line == "recv":
			buf := make([]byte, outR.BytesBuffered())
			n := copy(buf, outR.Peek())
			outR.Pop(n)
			fmt.Printf("received: %q\n", buf[:n])
		case strings.HasPrefix(line, "send "):
			inW.Push([]byte(strings.TrimPrefix(line, "send ")))
			sender.Push(transmit)
		default:
			fmt.Println("unknown command:", line)
		}
	}
}

func listen(conn net.PacketConn, iface *netiface.Interface, _ netiface.MAC) {
	buf := make([]byte, 65536)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			fmt.Println("read:", err)
			return
		}
		frame, ok := decodeFrame(buf[:n])
		if !ok {
			continue
		}
		iface.RecvFrame(frame)
	}
}

// udpPort adapts a net.PacketConn into a netiface.OutputPort by framing
// each Ethernet frame as dst(6) src(6) type(2) payload, and shipping it as
// one UDP datagram to the peer — the physical transport the teacher's own
// UDP-simulated link layer (pkg/protocol.go's Conn field) stands in for.
type udpPort struct {
	conn net.PacketConn
	peer net.Addr
}

func (p *udpPort) Transmit(f netiface.Frame) {
	b := encodeFrame(f)
	if _, err := p.conn.WriteTo(b, p.peer); err != nil {
		fmt.Println("write:", err)
	}
}

func encodeFrame(f netiface.Frame) []byte {
	b := make([]byte, 6+6+2+len(f.Payload))
	copy(b[0:6], f.Dst[:])
	copy(b[6:12], f.Src[:])
	binary.BigEndian.PutUint16(b[12:14], f.Type)
	copy(b[14:], f.Payload)
	return b
}

func decodeFrame(b []byte) (netiface.Frame, bool) {
	if len(b) < 14 {
		return netiface.Frame{}, false
	}
	var f netiface.Frame
	copy(f.Dst[:], b[0:6])
	copy(f.Src[:], b[6:12])
	f.Type = binary.BigEndian.Uint16(b[12:14])
	f.Payload = append([]byte(nil), b[14:]...)
	return f, true
}

// macFromIP derives a deterministic locally-administered MAC from an IPv4
// address, standing in for the static config the teacher reads from its
// lnx file's Neighbors table.
func macFromIP(ip netip.Addr) netiface.MAC {
	b := ip.As4()
	return netiface.MAC{0x02, 0x00, 0x00, b[1], b[2], b[3]}
}

func addrToUint32(ip netip.Addr) uint32 {
	b := ip.As4()
	return binary.BigEndian.Uint32(b[:])
}
