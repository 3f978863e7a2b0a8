//go:build linux

package collector

import (
	"DelayBench/internal/model"
	"DelayBench/internal/snapshot"
	"context"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// notifySink signals once it has received want records. It runs on the
// collector's control loop.
type notifySink struct {
	want int
	got  int
	done chan struct{}
}

func (s *notifySink) Consume(model.PacketRecord) error {
	s.got++
	if s.got == s.want {
		close(s.done)
	}
	return nil
}

func freePorts(t *testing.T, n int) []uint16 {
	t.Helper()
	var ports []uint16
	var conns []*net.UDPConn
	for i := 0; i < n; i++ {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		require.NoError(t, err)
		conns = append(conns, conn)
		ports = append(ports, uint16(conn.LocalAddr().(*net.UDPAddr).Port))
	}
	for _, c := range conns {
		c.Close()
	}
	return ports
}

func send(t *testing.T, port uint16, body []byte) {
	t.Helper()
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(port)})
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(body)
	require.NoError(t, err)
}

func TestRunCapturesAcrossPortsAndFlushesOnStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ports = freePorts(t, 3)
	cfg.ReceiveBufferBytes = 1 << 20

	sink := &notifySink{want: 3, done: make(chan struct{})}
	c, err := New(cfg, WithSink(sink))
	require.NoError(t, err)
	require.NoError(t, c.Start())
	assert.ErrorIs(t, c.Start(), ErrAlreadyStarted)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()

	send(t, cfg.Ports[0], payload(1, 10, 20))
	send(t, cfg.Ports[1], []byte("ctl"))
	send(t, cfg.Ports[1], payload(2, 10, 40))
	send(t, cfg.Ports[2], payload(3, 50, 45))

	select {
	case <-sink.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for datagrams")
	}

	c.Stop()
	c.Stop()
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}

	var nodeLog model.NodeDelayLog
	require.NoError(t, snapshot.ReadJSON(c.OutputPath(), &nodeLog))
	assert.Equal(t, "pod1", nodeLog.PodID)
	require.Len(t, nodeLog.Records, 3)

	byID := map[uint64]model.PacketRecord{}
	for _, r := range nodeLog.Records {
		byID[r.PacketID] = r
		assert.Equal(t, "127.0.0.1", r.SourceIP)
		assert.NotZero(t, r.SourcePort)
	}
	assert.Equal(t, cfg.Ports[1], byID[2].DestinationPort)
	assert.Equal(t, int64(30), byID[2].Delta)
	assert.Equal(t, int64(-5), byID[3].Delta)
	assert.Equal(t, uint64(1), c.Counters().Discarded)

	// Sockets are closed: the ports can be bound again.
	for _, p := range cfg.Ports {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: int(p)})
		require.NoError(t, err)
		conn.Close()
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ports = freePorts(t, 2)
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()
	cancel()

	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not stop")
	}
	_, err = os.Stat(c.OutputPath())
	assert.NoError(t, err)
}

func TestStopBeforeRunStillFlushes(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ports = freePorts(t, 1)
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	c.Stop()
	require.NoError(t, c.Run(context.Background()))
	_, err = os.Stat(c.OutputPath())
	assert.NoError(t, err)
}

func TestRunCheckpointsPeriodically(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ports = freePorts(t, 1)
	cfg.CheckpointInterval = "20ms"
	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start())

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(context.Background()) }()
	send(t, cfg.Ports[0], payload(1, 1, 2))

	require.Eventually(t, func() bool {
		var nodeLog model.NodeDelayLog
		if err := snapshot.ReadJSON(c.OutputPath(), &nodeLog); err != nil {
			return false
		}
		return len(nodeLog.Records) == 1
	}, 5*time.Second, 10*time.Millisecond)

	c.Stop()
	require.NoError(t, <-runErr)
}

func TestStartFailsOnBusyPort(t *testing.T) {
	busy, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer busy.Close()

	cfg := testConfig(t)
	cfg.Ports = []uint16{uint16(busy.LocalAddr().(*net.UDPAddr).Port)}
	c, err := New(cfg)
	require.NoError(t, err)
	assert.Error(t, c.Start())
}
