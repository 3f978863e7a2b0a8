//go:build linux

package collector

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// datagram is one received UDP payload with its addressing.
type datagram struct {
	payload []byte
	dstPort uint16
	srcIP   string
	srcPort uint16
}

// listener owns the measurement sockets and an epoll instance watching them,
// plus an eventfd used to wake the control loop for shutdown.
type listener struct {
	epfd   int
	wakefd int
	ports  map[int]uint16 // socket fd -> bound port
	buf    []byte
	events []unix.EpollEvent

	mu     sync.Mutex
	closed bool
}

func openListener(ip net.IP, ports []uint16, rcvBuf, maxDatagram int) (_ *listener, err error) {
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("collector address %s is not IPv4", ip)
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	l := &listener{
		epfd:   epfd,
		wakefd: -1,
		ports:  make(map[int]uint16, len(ports)),
		buf:    make([]byte, maxDatagram),
		events: make([]unix.EpollEvent, len(ports)+1),
	}
	defer func() {
		if err != nil {
			l.close()
		}
	}()

	l.wakefd, err = unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	if err = l.watch(l.wakefd); err != nil {
		return nil, err
	}

	for _, port := range ports {
		fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_UDP)
		if err != nil {
			return nil, fmt.Errorf("socket for port %d: %w", port, err)
		}
		l.ports[fd] = port

		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return nil, fmt.Errorf("SO_REUSEADDR on port %d: %w", port, err)
		}
		if rcvBuf > 0 {
			// The kernel caps the value at net.core.rmem_max.
			if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_RCVBUF, rcvBuf); err != nil {
				log.Printf("Warning: SO_RCVBUF=%d on port %d: %v", rcvBuf, port, err)
			}
		}

		sa := &unix.SockaddrInet4{Port: int(port)}
		copy(sa.Addr[:], ip4)
		if err := unix.Bind(fd, sa); err != nil {
			return nil, fmt.Errorf("bind %s:%d: %w", ip4, port, err)
		}
		if err := l.watch(fd); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *listener) watch(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	return nil
}

// wait blocks until at least one socket is readable, the wake-up fd fires or
// the timeout (milliseconds, -1 for none) expires.
func (l *listener) wait(timeout int) (ready []int, woken bool, err error) {
	n, err := unix.EpollWait(l.epfd, l.events, timeout)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, false, nil
		}
		return nil, false, err
	}
	for _, ev := range l.events[:n] {
		fd := int(ev.Fd)
		if fd == l.wakefd {
			woken = true
			continue
		}
		ready = append(ready, fd)
	}
	return ready, woken, nil
}

// receive reads one datagram from fd. The payload aliases an internal buffer
// that is reused by the next call.
func (l *listener) receive(fd int) (datagram, bool, error) {
	n, from, err := unix.Recvfrom(fd, l.buf, 0)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return datagram{}, false, nil
		}
		return datagram{}, false, err
	}
	dg := datagram{payload: l.buf[:n], dstPort: l.ports[fd]}
	if sa, ok := from.(*unix.SockaddrInet4); ok {
		dg.srcIP = net.IP(sa.Addr[:]).String()
		dg.srcPort = uint16(sa.Port)
	}
	return dg, true, nil
}

func (l *listener) wake() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.wakefd < 0 {
		return
	}
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	if _, err := unix.Write(l.wakefd, one[:]); err != nil && !errors.Is(err, unix.EAGAIN) {
		log.Printf("Warning: failed to wake collector loop: %v", err)
	}
}

func (l *listener) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	for fd := range l.ports {
		if err := unix.Close(fd); err != nil {
			errs = append(errs, err)
		}
	}
	if l.wakefd >= 0 {
		if err := unix.Close(l.wakefd); err != nil {
			errs = append(errs, err)
		}
	}
	if err := unix.Close(l.epfd); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
