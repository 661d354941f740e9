package transport

import (
	"bufio"
	"context"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"peerwire/pkg/peers"
	"peerwire/pkg/protocol"
)

// Sender is the transport coordinator. It consumes multi-destination
// envelopes, fans each out per destination and routes every copy to the
// outbound worker owning that peer's connection, spawning one on demand.
//
// The endpoint→link map lives on the Run goroutine's stack and is never
// shared. A spawn replacing an existing entry is last-write-wins; since
// only this goroutine writes the map, such races are sequential by
// construction.
type Sender struct {
	transmit   <-chan protocol.Envelope
	retransmit chan<- Failure
	stats      *peers.Store
	opts       Options
	log        *zap.Logger
}

// NewSender wires a coordinator between the outbound submission queue and
// the retransmission sink. A nil stats store is replaced with a fresh one.
func NewSender(transmit <-chan protocol.Envelope, retransmit chan<- Failure, stats *peers.Store, opts Options) *Sender {
	if stats == nil { stats = peers.NewStore() }
	return &Sender{
		transmit:   transmit,
		retransmit: retransmit,
		stats:      stats,
		opts:       opts.withDefaults(),
		log:        zap.L().Named("sender"),
	}
}

// Run consumes the submission queue until ctx is cancelled or the queue is
// closed. It never returns an error: transport failures are routed to the
// Retransmitter, not surfaced to the caller.
func (s *Sender) Run(ctx context.Context) {
	links := make(map[netip.AddrPort]*link)

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-s.transmit:
			if !ok { return }
			for _, dest := range env.Destinations {
				s.dispatch(ctx, links, env.To(dest), dest)
			}
		}
	}
}

// dispatch routes one single-destination envelope. Handoff to a live worker
// blocks while its queue is full (backpressure); a closed done channel marks
// the link stale and triggers a respawn.
func (s *Sender) dispatch(ctx context.Context, links map[netip.AddrPort]*link, env protocol.Envelope, dest netip.AddrPort) {
	if l, ok := links[dest]; ok {
		select {
		case <-l.done:
			// worker died since the last handoff
			s.log.Debug("stale link", zap.Stringer("peer", dest))
			delete(links, dest)
		default:
			select {
			case l.queue <- env:
				return
			case <-l.done:
				s.log.Debug("stale link", zap.Stringer("peer", dest))
				delete(links, dest)
			case <-ctx.Done():
				return
			}
		}
	}

	// Spawn a fresh worker and wait for its one-shot connect result.
	l := &link{
		queue: make(chan protocol.Envelope, s.opts.QueueCapacity),
		done:  make(chan struct{}),
	}
	connected := make(chan error, 1)
	go s.runWorker(ctx, dest, l, connected)

	err, ok := <-connected
	if !ok || err != nil {
		// connect failed, or the worker died before signaling; no link is
		// installed and the envelope goes to the retransmitter
		s.toRetransmit(ctx, env, dest)
		return
	}

	select {
	case l.queue <- env:
		links[dest] = l
	case <-l.done:
		s.toRetransmit(ctx, env, dest)
	case <-ctx.Done():
	}
}

func (s *Sender) toRetransmit(ctx context.Context, env protocol.Envelope, dest netip.AddrPort) {
	s.stats.RecordRetry(dest)
	select {
	case s.retransmit <- Failure{Envelope: env, Endpoint: dest}:
	case <-ctx.Done():
	}
}

// runWorker owns one TCP connection to one peer. It attempts exactly one
// connect and reports the outcome once on connected. On success it writes
// queued envelopes in FIFO order until a write fails, the queue closes or
// ctx is cancelled. The worker never retries anything itself; a failed
// write is forwarded to the retransmitter and the worker terminates,
// closing done so the Sender respawns on the next handoff.
func (s *Sender) runWorker(ctx context.Context, dest netip.AddrPort, l *link, connected chan<- error) {
	defer close(l.done)
	defer close(connected)

	d := net.Dialer{Timeout: s.opts.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", dest.String())
	if err != nil {
		s.log.Warn("connect failed", zap.Stringer("peer", dest), zap.Error(err))
		s.stats.RecordConnect(dest, false)
		connected <- err
		return
	}
	defer conn.Close()
	s.log.Info("outbound connection established", zap.Stringer("peer", dest))
	s.stats.RecordConnect(dest, true)
	connected <- nil

	bw := bufio.NewWriter(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-l.queue:
			if !ok { return }
			frame, err := env.MarshalWire()
			if err != nil {
				// nothing a retry can fix; drop the envelope
				s.log.Error("encode failed", zap.Stringer("peer", dest), zap.Error(err))
				continue
			}
			if err := writeFrame(bw, frame); err != nil {
				s.log.Warn("write failed", zap.Stringer("peer", dest), zap.Error(err))
				s.stats.RecordSend(dest, 0, false)
				s.toRetransmit(ctx, env, dest)
				return
			}
			s.stats.RecordSend(dest, len(frame), true)
		}
	}
}

func writeFrame(bw *bufio.Writer, frame []byte) error {
	if err := protocol.WriteFrame(bw, frame); err != nil { return err }
	return bw.Flush()
}
