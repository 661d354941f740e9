package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"

	"go.uber.org/zap"

	"peerwire/pkg/peers"
	"peerwire/pkg/protocol"
)

// Receiver binds this node's own endpoint and spawns one inbound worker per
// accepted connection. Each worker reads frames, decodes them and forwards
// every decoded envelope to the delivery sink.
type Receiver struct {
	listen  netip.AddrPort
	deliver chan<- protocol.Envelope
	stats   *peers.Store
	opts    Options
	log     *zap.Logger

	l     net.Listener
	bound netip.AddrPort
}

// NewReceiver wires a listener for the given endpoint. Port 0 is allowed;
// Addr reports the actual bound endpoint after Listen.
func NewReceiver(listen netip.AddrPort, deliver chan<- protocol.Envelope, stats *peers.Store, opts Options) *Receiver {
	if stats == nil { stats = peers.NewStore() }
	return &Receiver{
		listen:  listen,
		deliver: deliver,
		stats:   stats,
		opts:    opts.withDefaults(),
		log:     zap.L().Named("receiver"),
	}
}

// Listen binds the node's own endpoint. Returning without error is the
// readiness acknowledgment: once Listen returns, peers may connect. A bind
// failure is fatal to node startup and is returned to the caller.
func (r *Receiver) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", r.listen.String())
	if err != nil {
		return fmt.Errorf("bind %s: %w", r.listen, err)
	}
	r.l = l
	r.bound = l.Addr().(*net.TCPAddr).AddrPort()
	r.log.Info("listening", zap.Stringer("addr", r.bound))
	return nil
}

// Addr returns the bound endpoint. Valid only after Listen.
func (r *Receiver) Addr() netip.AddrPort { return r.bound }

// Run accepts connections until ctx is cancelled. Accept errors are logged
// and the loop continues; there is no backoff and no connection limit.
// Listen must have been called first.
func (r *Receiver) Run(ctx context.Context) {
	if r.l == nil {
		r.log.Error("run called before listen")
		return
	}
	go func() {
		<-ctx.Done()
		_ = r.l.Close()
	}()

	for {
		conn, err := r.l.Accept()
		if err != nil {
			if ctx.Err() != nil { return }
			if errors.Is(err, net.ErrClosed) { return }
			r.log.Warn("accept failed", zap.Error(err))
			continue
		}
		r.log.Info("inbound connection established", zap.Stringer("peer", conn.RemoteAddr()))
		go r.serve(ctx, conn)
	}
}

// serve is one inbound peer worker. It terminates on read error, peer
// disconnect or a malformed frame; a decode failure costs only this
// connection, never the node.
func (r *Receiver) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	remote, _ := netip.ParseAddrPort(conn.RemoteAddr().String())
	br := bufio.NewReader(conn)
	for {
		frame, err := protocol.ReadFrame(br, r.opts.MaxFrame)
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.log.Info("connection closed by peer", zap.Stringer("peer", conn.RemoteAddr()))
			} else if ctx.Err() == nil {
				r.log.Warn("read failed", zap.Stringer("peer", conn.RemoteAddr()), zap.Error(err))
			}
			return
		}

		env, err := protocol.UnmarshalWire(frame)
		if err != nil {
			r.log.Warn("dropping connection on malformed frame", zap.Stringer("peer", conn.RemoteAddr()), zap.Error(err))
			return
		}
		r.stats.RecordReceive(remote, len(frame))

		select {
		case r.deliver <- env:
		case <-ctx.Done():
			return
		}
	}
}
