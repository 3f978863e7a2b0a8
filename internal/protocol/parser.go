package protocol

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Datagram is a UDP datagram lifted out of a captured frame.
type Datagram struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
	Payload []byte
}

// ParseDatagram uses gopacket to decode a captured frame and extract its UDP datagram.
func ParseDatagram(data []byte, firstLayer gopacket.Decoder) (*Datagram, error) {
	packet := gopacket.NewPacket(data, firstLayer, gopacket.Default)

	var dg Datagram
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		dg.SrcIP = ip.SrcIP
		dg.DstIP = ip.DstIP
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		dg.SrcIP = ip.SrcIP
		dg.DstIP = ip.DstIP
	} else {
		return nil, fmt.Errorf("not an IP packet")
	}

	l := packet.Layer(layers.LayerTypeUDP)
	if l == nil {
		return nil, fmt.Errorf("not a UDP packet")
	}
	udp := l.(*layers.UDP)
	dg.SrcPort = uint16(udp.SrcPort)
	dg.DstPort = uint16(udp.DstPort)
	dg.Payload = udp.Payload

	return &dg, nil
}
