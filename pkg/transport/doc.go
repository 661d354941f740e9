// Package transport implements the point-to-point transport triad: a Sender
// that lazily keeps one outbound TCP connection per peer, a Retransmitter
// that resubmits failed sends after a fixed delay, and a Receiver that
// accepts inbound connections and forwards decoded envelopes to the
// delivery sink.
//
// All cross-task communication is via bounded channels. The endpoint→link
// map is private state of the Sender goroutine; no other goroutine touches
// it, so it needs no locking.
package transport
