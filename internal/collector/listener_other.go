//go:build !linux

package collector

import "net"

type datagram struct {
	payload []byte
	dstPort uint16
	srcIP   string
	srcPort uint16
}

type listener struct{}

func openListener(net.IP, []uint16, int, int) (*listener, error) {
	return nil, ErrUnsupported
}

func (l *listener) wait(int) ([]int, bool, error) { return nil, true, nil }
func (l *listener) receive(int) (datagram, bool, error) { return datagram{}, false, nil }
func (l *listener) wake() {}
func (l *listener) close() error { return nil }
