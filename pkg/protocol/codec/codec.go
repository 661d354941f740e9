// Package codec provides the serialization formats used to move envelopes
// between peers. The wire format must be deterministic: two nodes encoding
// the same record must produce identical bytes.
package codec

// Codec marshals typed messages. Implementations must be symmetric:
// Unmarshal(Marshal(v)) reproduces v exactly.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs.
type Registry struct{ byType map[string]Codec }

// NewRegistry constructs a registry preloaded with the built-in codecs:
// canonical CBOR (the wire default) and JSON (tooling/debug output).
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(MustCBOR())
	return r
}

// Register adds a codec, replacing any previous one for the same type.
func (r *Registry) Register(c Codec) { r.byType[c.ContentType()] = c }

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }
