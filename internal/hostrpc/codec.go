package hostrpc

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// codecName intentionally overrides grpc-go's built-in "proto" codec
// registration (encoding.RegisterCodec is designed to be replaceable —
// see google.golang.org/grpc/encoding). Every message on this service is
// a plain Go struct with `cbor` tags; no .proto/codegen is involved.
const codecName = "proto"

type cborCodec struct{}

func (cborCodec) Marshal(v any) ([]byte, error) { return cbor.Marshal(v) }

func (cborCodec) Unmarshal(data []byte, v any) error { return cbor.Unmarshal(data, v) }

func (cborCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(cborCodec{})
}
