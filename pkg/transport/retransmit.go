package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"peerwire/pkg/protocol"
)

// Retransmitter delays failed single-destination envelopes by a fixed
// interval and resubmits them to the coordinator's inbound queue.
//
// Known limitations, kept deliberately: the number of concurrently pending
// timers is unbounded, and the delay is fixed with no backoff and no retry
// ceiling. A permanently unreachable peer therefore causes indefinite retry
// traffic.
type Retransmitter struct {
	in    <-chan Failure
	out   chan<- protocol.Envelope
	delay time.Duration
	log   *zap.Logger
}

// NewRetransmitter wires the scheduler between the failure sink and the
// coordinator's submission queue.
func NewRetransmitter(in <-chan Failure, out chan<- protocol.Envelope, delay time.Duration) *Retransmitter {
	if delay <= 0 { delay = 30 * time.Millisecond }
	return &Retransmitter{
		in:    in,
		out:   out,
		delay: delay,
		log:   zap.L().Named("retransmitter"),
	}
}

// Run accepts failures until ctx is cancelled or the failure queue closes.
// Each failure gets its own timer goroutine so new failures are accepted
// while earlier ones are still pending.
func (r *Retransmitter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-r.in:
			if !ok { return }
			r.log.Debug("retry scheduled", zap.Stringer("peer", f.Endpoint), zap.Duration("delay", r.delay))
			go r.requeue(ctx, f)
		}
	}
}

// requeue waits out the delay and resubmits the envelope as a fresh
// single-destination submission.
func (r *Retransmitter) requeue(ctx context.Context, f Failure) {
	t := time.NewTimer(r.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}
	select {
	case r.out <- f.Envelope.To(f.Endpoint):
	case <-ctx.Done():
	}
}
