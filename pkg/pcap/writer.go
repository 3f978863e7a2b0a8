package pcap

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
)

// Writer produces an Ethernet pcap capture of UDP datagrams.
type Writer struct {
	w *pcapgo.Writer
}

// NewWriter writes the capture file header to out.
func NewWriter(out io.Writer) (*Writer, error) {
	w := pcapgo.NewWriter(out)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: w}, nil
}

// WriteUDP serializes one UDP datagram into an Ethernet frame and appends it
// to the capture. Both addresses must be of the same family.
func (w *Writer) WriteUDP(ts time.Time, srcIP net.IP, srcPort uint16, dstIP net.IP, dstPort uint16, payload []byte) error {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}

	var network gopacket.SerializableLayer
	if src4, dst4 := srcIP.To4(), dstIP.To4(); src4 != nil && dst4 != nil {
		eth.EthernetType = layers.EthernetTypeIPv4
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: src4, DstIP: dst4}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	} else {
		eth.EthernetType = layers.EthernetTypeIPv6
		ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP, SrcIP: srcIP, DstIP: dstIP}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return err
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, network, udp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("failed to serialize layers: %w", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     ts,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	return w.w.WritePacket(ci, buf.Bytes())
}
