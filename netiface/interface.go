package netiface

import (
	"time"

	ipv4header "github.com/brown-csci1680/iptcp-headers"
	"github.com/pkg/errors"
)

// ARPEntryTTL and ARPRequestPeriod are the two ARP timeouts (spec.md §6);
// the TCP retransmission timer's own timeout lives in tcpsender.
const (
	ARPEntryTTL      = 30 * time.Second
	ARPRequestPeriod = 5 * time.Second
)

type arpEntry struct {
	ether MAC
	age   time.Duration
}

// Interface is a NetworkInterface: one IP⇄Ethernet adapter resolving
// next-hop IPs to Ethernet addresses via ARP.
//
// State mirrors spec.md §4.6 directly: arp is the resolved-address cache,
// pend holds datagrams queued behind an in-flight ARP request, reqAge is
// that request's own age. The invariant "an entry in pend implies an entry
// in reqAge" is maintained by SendDatagram and torn down together in both
// RecvFrame's drain step and Tick's expiry step.
type Interface struct {
	ownEther MAC
	ownIP    uint32
	out      OutputPort

	arp    map[uint32]*arpEntry
	pend   map[uint32][][]byte
	reqAge map[uint32]time.Duration

	inbound [][]byte
}

// New constructs a NetworkInterface with its own Ethernet/IP address pair,
// transmitting resolved frames to out.
func New(ownEther MAC, ownIP uint32, out OutputPort) *Interface {
	return &Interface{
		ownEther: ownEther,
		ownIP:    ownIP,
		out:      out,
		arp:      make(map[uint32]*arpEntry),
		pend:     make(map[uint32][][]byte),
		reqAge:   make(map[uint32]time.Duration),
	}
}

// SendDatagram transmits dgram to nextHopIP, resolving via ARP first if the
// cache holds no entry for it.
func (n *Interface) SendDatagram(dgram []byte, nextHopIP uint32) {
	if entry, ok := n.arp[nextHopIP]; ok {
		n.out.Transmit(Frame{Dst: entry.ether, Src: n.ownEther, Type: EtherTypeIPv4, Payload: dgram})
		return
	}

	n.pend[nextHopIP] = append(n.pend[nextHopIP], dgram)
	if _, inFlight := n.reqAge[nextHopIP]; inFlight {
		return
	}
	n.reqAge[nextHopIP] = 0
	req := ARPMessage{
		Opcode:      ARPRequest,
		SenderEther: n.ownEther,
		SenderIP:    n.ownIP,
		TargetEther: MAC{},
		TargetIP:    nextHopIP,
	}
	n.out.Transmit(Frame{Dst: Broadcast, Src: n.ownEther, Type: EtherTypeARP, Payload: req.Serialize()})
}

// RecvFrame processes one inbound Ethernet frame.
func (n *Interface) RecvFrame(frame Frame) {
	if frame.Dst != n.ownEther && frame.Dst != Broadcast {
		return
	}

	switch frame.Type {
	case EtherTypeIPv4:
		if _, err := ipv4header.ParseHeader(frame.Payload); err != nil {
			return
		}
		n.inbound = append(n.inbound, frame.Payload)
	case EtherTypeARP:
		msg, ok := ParseARP(frame.Payload)
		if !ok {
			return
		}
		n.arp[msg.SenderIP] = &arpEntry{ether: msg.SenderEther, age: 0}
		if msg.Opcode == ARPRequest && msg.TargetIP == n.ownIP {
			reply := ARPMessage{
				Opcode:      ARPReply,
				SenderEther: n.ownEther,
				SenderIP:    n.ownIP,
				TargetEther: msg.SenderEther,
				TargetIP:    msg.SenderIP,
			}
			n.out.Transmit(Frame{Dst: msg.SenderEther, Src: n.ownEther, Type: EtherTypeARP, Payload: reply.Serialize()})
		}
		n.drainPending(msg.SenderIP, msg.SenderEther)
	}
}

func (n *Interface) drainPending(ip uint32, ether MAC) {
	queue, ok := n.pend[ip]
	if !ok {
		return
	}
	for _, dgram := range queue {
		n.out.Transmit(Frame{Dst: ether, Src: n.ownEther, Type: EtherTypeIPv4, Payload: dgram})
	}
	delete(n.pend, ip)
	delete(n.reqAge, ip)
}

// Tick ages the ARP cache and pending-request timers by dt, dropping
// expired entries.
func (n *Interface) Tick(dt time.Duration) {
	for ip, entry := range n.arp {
		entry.age += dt
		if entry.age >= ARPEntryTTL {
			delete(n.arp, ip)
		}
	}
	for ip, age := range n.reqAge {
		age += dt
		if age >= ARPRequestPeriod {
			delete(n.pend, ip)
			delete(n.reqAge, ip)
			continue
		}
		n.reqAge[ip] = age
	}
}

// PopInbound removes and returns the oldest inbound IPv4 payload delivered
// by RecvFrame, if any.
func (n *Interface) PopInbound() ([]byte, bool) {
	if len(n.inbound) == 0 {
		return nil, false
	}
	dgram := n.inbound[0]
	n.inbound = n.inbound[1:]
	return dgram, true
}

// ParseFailure wraps an IPv4 header decode error with call-site context,
// for callers (e.g. cmd/tcpdemo) that want to log rather than silently
// drop malformed frames the way RecvFrame itself does per spec.md §4.6.
func ParseFailure(payload []byte) error {
	_, err := ipv4header.ParseHeader(payload)
	if err == nil {
		return nil
	}
	return errors.Wrap(err, "netiface: parse IPv4 datagram")
}

// HasARPEntry reports whether the cache currently holds ip, for tests.
func (n *Interface) HasARPEntry(ip uint32) bool {
	_, ok := n.arp[ip]
	return ok
}

// PendingCount reports how many datagrams are queued behind ip's
// in-flight ARP request, for tests.
func (n *Interface) PendingCount(ip uint32) int {
	return len(n.pend[ip])
}
