package transport

import (
	"net/netip"
	"time"

	"peerwire/pkg/protocol"
)

// Failure pairs a single-destination envelope with the endpoint whose
// connect or write failed. It is the unit handed to the Retransmitter.
type Failure struct {
	Envelope protocol.Envelope
	Endpoint netip.AddrPort
}

// Options holds the transport tunables shared by Sender, Retransmitter and
// Receiver. The zero value is usable; withDefaults fills in the gaps.
type Options struct {
	// QueueCapacity bounds each per-worker outbound queue.
	QueueCapacity int
	// DialTimeout bounds a single TCP connect attempt.
	DialTimeout time.Duration
	// RetryDelay is the fixed retransmission delay.
	RetryDelay time.Duration
	// MaxFrame bounds a single inbound frame.
	MaxFrame uint32
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 { o.QueueCapacity = 10_000 }
	if o.DialTimeout <= 0 { o.DialTimeout = time.Second }
	if o.RetryDelay <= 0 { o.RetryDelay = 30 * time.Millisecond }
	if o.MaxFrame == 0 { o.MaxFrame = protocol.DefaultMaxFrame }
	return o
}

// link is the Sender's record of one outbound peer worker. The worker closes
// done when it terminates for any reason, which is how the Sender detects a
// stale link on the next handoff.
type link struct {
	queue chan protocol.Envelope
	done  chan struct{}
}
