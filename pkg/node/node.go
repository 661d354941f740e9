// Package node wires the transport triad together: it builds the bounded
// queues, starts the receiver, retransmitter and sender, and exposes the
// two channels the application sees — outbound submission and inbound
// delivery.
package node

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"peerwire/pkg/peers"
	"peerwire/pkg/protocol"
	"peerwire/pkg/transport"
)

// Options configures one node's transport layer.
type Options struct {
	// ID is the sender identifier stamped on envelopes built by Send.
	ID uint64
	// Listen is this node's own endpoint. Port 0 binds an ephemeral port;
	// ListenAddr reports the actual endpoint.
	Listen netip.AddrPort
	// QueueCapacity bounds the submission, delivery and retransmit queues
	// as well as each per-worker queue. Defaults to 10,000.
	QueueCapacity int
	// RetryDelay is the fixed retransmission delay. Defaults to 30ms.
	RetryDelay time.Duration
	// DialTimeout bounds one outbound connect. Defaults to 1s.
	DialTimeout time.Duration
	// MaxFrame bounds one inbound frame.
	MaxFrame uint32
	// Stats receives per-endpoint counters; optional.
	Stats *peers.Store
}

// Node is a running transport layer. All of its goroutines exit when the
// context passed to Start is cancelled.
type Node struct {
	id         uint64
	listenAddr netip.AddrPort
	stats      *peers.Store

	transmit chan protocol.Envelope
	deliver  chan protocol.Envelope
}

// Start brings up the transport triad. It returns once the listener is
// bound and accepting — the explicit readiness acknowledgment bootstrap
// code should wait on instead of sleeping. A bind failure aborts startup.
func Start(ctx context.Context, opts Options) (*Node, error) {
	qcap := opts.QueueCapacity
	if qcap <= 0 { qcap = 10_000 }
	if opts.Stats == nil { opts.Stats = peers.NewStore() }

	topts := transport.Options{
		QueueCapacity: qcap,
		DialTimeout:   opts.DialTimeout,
		RetryDelay:    opts.RetryDelay,
		MaxFrame:      opts.MaxFrame,
	}

	n := &Node{
		id:       opts.ID,
		stats:    opts.Stats,
		transmit: make(chan protocol.Envelope, qcap),
		deliver:  make(chan protocol.Envelope, qcap),
	}
	retransmit := make(chan transport.Failure, qcap)

	recv := transport.NewReceiver(opts.Listen, n.deliver, opts.Stats, topts)
	if err := recv.Listen(ctx); err != nil {
		return nil, fmt.Errorf("node %d: %w", opts.ID, err)
	}
	n.listenAddr = recv.Addr()

	retr := transport.NewRetransmitter(retransmit, n.transmit, opts.RetryDelay)
	send := transport.NewSender(n.transmit, retransmit, opts.Stats, topts)

	go recv.Run(ctx)
	go retr.Run(ctx)
	go send.Run(ctx)

	zap.L().Info("transport started",
		zap.Uint64("node", opts.ID),
		zap.Stringer("listen", n.listenAddr))
	return n, nil
}

// Outbound is the submission queue. The application is its sole producer;
// submitting blocks while the queue is full.
func (n *Node) Outbound() chan<- protocol.Envelope { return n.transmit }

// Inbound is the delivery sink. The application is its sole consumer; a
// stalled consumer eventually stalls inbound workers upstream.
func (n *Node) Inbound() <-chan protocol.Envelope { return n.deliver }

// ListenAddr returns the endpoint the listener is actually bound to.
func (n *Node) ListenAddr() netip.AddrPort { return n.listenAddr }

// Stats returns the node's peer statistics store.
func (n *Node) Stats() *peers.Store { return n.stats }

// Send stamps the node's identifier on a payload and submits it to the
// given destinations. Delivery is best effort: the transport retries
// failed sends indefinitely but never reports failure back.
func (n *Node) Send(ctx context.Context, payload []byte, dests ...netip.AddrPort) error {
	if len(dests) == 0 {
		return fmt.Errorf("send: no destinations")
	}
	env := protocol.Envelope{Sender: n.id, Destinations: dests, Payload: payload}
	select {
	case n.transmit <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
