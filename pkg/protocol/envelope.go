// Package protocol defines the envelope exchanged between peers and the
// length-prefixed framing that carries it over a TCP stream.
package protocol

import (
	"fmt"
	"net/netip"

	"peerwire/pkg/protocol/codec"
)

// wire is the canonical CBOR codec every node uses on the wire.
var wire = codec.MustCBOR()

// Envelope is one unit of application data addressed to one or more peers.
// The transport treats Payload as opaque bytes; interpreting it belongs to
// the application layer.
//
// Field order is fixed (toarray): sender, destinations, payload. Canonical
// CBOR over that array is the deterministic wire encoding.
type Envelope struct {
	_            struct{}         `cbor:",toarray"`
	Sender       uint64           `json:"sender"`
	Destinations []netip.AddrPort `json:"destinations"`
	Payload      []byte           `json:"payload"`
}

// To returns a copy of the envelope scoped to a single destination. Inside
// an outbound worker an envelope always targets exactly one endpoint.
func (e Envelope) To(dest netip.AddrPort) Envelope {
	return Envelope{
		Sender:       e.Sender,
		Destinations: []netip.AddrPort{dest},
		Payload:      e.Payload,
	}
}

// MarshalWire encodes the envelope with the canonical wire codec.
func (e Envelope) MarshalWire() ([]byte, error) {
	b, err := wire.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// UnmarshalWire decodes an envelope produced by MarshalWire.
func UnmarshalWire(data []byte) (Envelope, error) {
	var e Envelope
	if err := wire.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}
