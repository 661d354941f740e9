package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"peerwire/pkg/config"
	"peerwire/pkg/node"
	"peerwire/pkg/observability"
	"peerwire/pkg/peers"
	"peerwire/pkg/protocol/codec"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("peerwire-node started", zap.String("app", cfg.AppName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stats := peers.NewStore()
	n, err := node.Start(ctx, node.Options{
		ID:            cfg.NodeID,
		Listen:        cfg.ListenAddr(),
		QueueCapacity: cfg.Net.QueueCapacity,
		RetryDelay:    time.Duration(cfg.Net.RetryDelayMS) * time.Millisecond,
		DialTimeout:   time.Duration(cfg.Net.DialTimeoutMS) * time.Millisecond,
		MaxFrame:      cfg.Net.MaxFrameBytes,
		Stats:         stats,
	})
	if err != nil {
		// bind failure is fatal; the node cannot start
		zap.L().Error("failed to start transport", zap.Error(err))
		return 1
	}

	if opts.Ping {
		if dests := cfg.PeerAddrs(); len(dests) > 0 {
			if err := n.Send(ctx, []byte("ping"), dests...); err != nil {
				zap.L().Warn("ping submission failed", zap.Error(err))
			}
		}
	}

	jsonc := codec.JSON()
	statsTick := time.NewTicker(30 * time.Second)
	defer statsTick.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("shutting down")
			return 0
		case env := <-n.Inbound():
			// the node binary has no consensus layer on top; it just logs
			// what a real application would consume
			b, _ := jsonc.Marshal(env)
			zap.L().Info("delivered", zap.Uint64("sender", env.Sender), zap.ByteString("envelope", b))
		case <-statsTick.C:
			for _, st := range stats.Snapshot() {
				zap.L().Info("peer stats",
					zap.Stringer("endpoint", st.Endpoint),
					zap.Uint64("sent", st.FramesSent),
					zap.Uint64("received", st.FramesReceived),
					zap.Uint64("retries", st.Retries),
					zap.Uint64("connect_failures", st.ConnectFailures))
			}
		}
	}
}
