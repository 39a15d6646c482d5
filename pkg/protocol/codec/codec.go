package codec

// Codec marshals whole values. It is the building block for body codecs of
// structured payloads (JSON, CBOR, Protobuf, FlatBuffers).
type Codec interface {
    ContentType() string
    Marshal(v any) ([]byte, error)
    Unmarshal(data []byte, v any) error
}

// appender is implemented by codecs that can marshal into an existing slice.
type appender interface {
    AppendMarshal(dst []byte, v any) ([]byte, error)
}

// Registry maps content types and short names to codecs.
type Registry struct {
    byType map[string]Codec
    byName map[string]Codec
}

// NewRegistry constructs a registry preloaded with the codecs that need no
// initialization: JSON, Protobuf and FlatBuffers. CBOR can be added with
// Register(CBOR()).
func NewRegistry() *Registry {
    r := &Registry{byType: make(map[string]Codec), byName: make(map[string]Codec)}
    r.Register(JSON())
    r.Register(Proto())
    r.Register(FlatBuffers())
    return r
}

// Register adds a codec under its content type and short name.
func (r *Registry) Register(c Codec) {
    r.byType[c.ContentType()] = c
    r.byName[shortName(c.ContentType())] = c
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec { return r.byType[contentType] }

// Named returns a codec by short name (json, cbor, proto, flatbuffers), or nil.
func (r *Registry) Named(name string) Codec { return r.byName[name] }

func shortName(contentType string) string {
    switch contentType {
    case ContentJSON:
        return "json"
    case ContentCBOR:
        return "cbor"
    case ContentProto:
        return "proto"
    case ContentFlatBuffers:
        return "flatbuffers"
    default:
        return contentType
    }
}

const (
    ContentJSON        = "application/json"
    ContentCBOR        = "application/cbor"
    ContentProto       = "application/x-protobuf"
    ContentFlatBuffers = "application/x-flatbuffers"
)
