package transport

import (
	"bufio"
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"peerwire/pkg/peers"
	"peerwire/pkg/protocol"
)

// frameSink accepts connections and decodes every inbound frame onto got.
// closeAfterFirst makes each connection die after one frame, simulating a
// peer that kills the link mid-stream.
func frameSink(t *testing.T, closeAfterFirst bool) (netip.AddrPort, <-chan protocol.Envelope, *atomic.Int32) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	got := make(chan protocol.Envelope, 256)
	var conns atomic.Int32
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil { return }
			conns.Add(1)
			go func(c net.Conn) {
				defer c.Close()
				br := bufio.NewReader(c)
				for {
					frame, err := protocol.ReadFrame(br, 0)
					if err != nil { return }
					env, err := protocol.UnmarshalWire(frame)
					if err != nil { return }
					got <- env
					if closeAfterFirst { return }
				}
			}(conn)
		}
	}()
	return l.Addr().(*net.TCPAddr).AddrPort(), got, &conns
}

// unreachableEndpoint reserves a loopback port and releases it, yielding an
// endpoint that refuses connections.
func unreachableEndpoint(t *testing.T) netip.AddrPort {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ep := l.Addr().(*net.TCPAddr).AddrPort()
	require.NoError(t, l.Close())
	return ep
}

func recvEnvelope(t *testing.T, ch <-chan protocol.Envelope, within time.Duration) protocol.Envelope {
	t.Helper()
	select {
	case env := <-ch:
		return env
	case <-time.After(within):
		t.Fatalf("no envelope within %v", within)
		return protocol.Envelope{}
	}
}

func TestFanOutAttemptsEveryDestination(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep1, got1, _ := frameSink(t, false)
	ep2, got2, _ := frameSink(t, false)
	bad := unreachableEndpoint(t)

	transmit := make(chan protocol.Envelope, 16)
	retransmit := make(chan Failure, 16)
	s := NewSender(transmit, retransmit, nil, Options{DialTimeout: 500 * time.Millisecond})
	go s.Run(ctx)

	transmit <- protocol.Envelope{
		Sender:       1,
		Destinations: []netip.AddrPort{ep1, bad, ep2},
		Payload:      []byte("fanout"),
	}

	// both reachable peers get their copy despite the failure in between
	e1 := recvEnvelope(t, got1, 2*time.Second)
	require.Equal(t, []byte("fanout"), e1.Payload)
	require.Equal(t, []netip.AddrPort{ep1}, e1.Destinations, "worker copies target exactly one endpoint")

	e2 := recvEnvelope(t, got2, 2*time.Second)
	require.Equal(t, []byte("fanout"), e2.Payload)

	// the unreachable destination lands in the retransmission sink
	select {
	case f := <-retransmit:
		require.Equal(t, bad, f.Endpoint)
		require.Equal(t, []byte("fanout"), f.Envelope.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("no failure routed to retransmitter")
	}
}

func TestSenderReusesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep, got, conns := frameSink(t, false)

	transmit := make(chan protocol.Envelope, 16)
	retransmit := make(chan Failure, 16)
	s := NewSender(transmit, retransmit, nil, Options{})
	go s.Run(ctx)

	for i := 0; i < 5; i++ {
		transmit <- protocol.Envelope{Sender: 1, Destinations: []netip.AddrPort{ep}, Payload: []byte{byte(i)}}
	}
	for i := 0; i < 5; i++ {
		env := recvEnvelope(t, got, 2*time.Second)
		require.Equal(t, []byte{byte(i)}, env.Payload, "same-link delivery is FIFO")
	}
	require.Equal(t, int32(1), conns.Load(), "one connection per peer")
}

func TestRespawnAfterPeerKillsConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ep, got, conns := frameSink(t, true)

	transmit := make(chan protocol.Envelope, 256)
	retransmit := make(chan Failure, 256)
	opts := Options{RetryDelay: 10 * time.Millisecond}
	s := NewSender(transmit, retransmit, nil, opts)
	r := NewRetransmitter(retransmit, transmit, opts.RetryDelay)
	go s.Run(ctx)
	go r.Run(ctx)

	transmit <- protocol.Envelope{Sender: 1, Destinations: []netip.AddrPort{ep}, Payload: []byte("first")}
	recvEnvelope(t, got, 2*time.Second)

	// keep probing; the coordinator must detect the dead link, respawn and
	// deliver over a fresh connection without falling over
	var probe atomic.Int32
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)
	for conns.Load() < 2 {
		select {
		case <-ticker.C:
			i := probe.Add(1)
			transmit <- protocol.Envelope{Sender: 1, Destinations: []netip.AddrPort{ep}, Payload: []byte{byte(i)}}
		case <-deadline:
			t.Fatal("no respawned connection within deadline")
		}
	}
	recvEnvelope(t, got, 2*time.Second)
}

func TestUnreachablePeerRetriedUntilUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := unreachableEndpoint(t)
	stats := peers.NewStore()

	transmit := make(chan protocol.Envelope, 256)
	retransmit := make(chan Failure, 256)
	opts := Options{RetryDelay: 20 * time.Millisecond, DialTimeout: 200 * time.Millisecond}
	s := NewSender(transmit, retransmit, stats, opts)
	r := NewRetransmitter(retransmit, transmit, opts.RetryDelay)
	go s.Run(ctx)
	go r.Run(ctx)

	transmit <- protocol.Envelope{Sender: 1, Destinations: []netip.AddrPort{bad}, Payload: []byte("later")}

	// retried indefinitely while the peer is down
	require.Eventually(t, func() bool {
		st, ok := stats.Get(bad)
		return ok && st.Retries >= 3
	}, 5*time.Second, 10*time.Millisecond, "expected repeated retries while unreachable")

	// bring the peer up on the reserved endpoint; the pending retry loop
	// must land the envelope without any new submission
	l, err := net.Listen("tcp", bad.String())
	require.NoError(t, err)
	defer l.Close()
	got := make(chan protocol.Envelope, 16)
	go func() {
		conn, err := l.Accept()
		if err != nil { return }
		defer conn.Close()
		br := bufio.NewReader(conn)
		for {
			frame, err := protocol.ReadFrame(br, 0)
			if err != nil { return }
			env, err := protocol.UnmarshalWire(frame)
			if err != nil { return }
			got <- env
		}
	}()

	env := recvEnvelope(t, got, 5*time.Second)
	require.Equal(t, []byte("later"), env.Payload)
}
