package codec

import (
	cbor "github.com/fxamacker/cbor/v2"
)

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// CBOR returns a deterministic CBOR codec (RFC 8949 canonical form).
// Structs tagged with `cbor:",toarray"` encode in fixed field order, which
// is what keeps the wire representation stable across nodes.
func CBOR() (Codec, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil { return nil, err }
	dm, err := cbor.DecOptions{}.DecMode()
	if err != nil { return nil, err }
	return cborCodec{enc: em, dec: dm}, nil
}

// MustCBOR is CBOR for callers that cannot handle an error; the canonical
// options are constant, so a failure here is a programming bug.
func MustCBOR() Codec {
	c, err := CBOR()
	if err != nil { panic(err) }
	return c
}

func (c cborCodec) ContentType() string              { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)    { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
