package grpcsubstrate

import (
	"github.com/ugorji/go/codec"
	"google.golang.org/grpc/encoding"
)

// codecName is negotiated as the gRPC content-subtype
// ("application/grpc+dlmsgpack"), selecting msgpackCodec in place of
// the default protobuf codec for every call this substrate makes.
// Grounded on internal/wire's existing use of ugorji/go/codec for
// wire-level serialization, avoiding a second, protobuf-shaped encoding
// for the same record fields (spec.md draws no protobuf schema; the
// content grammar is the only wire format this system defines).
const codecName = "dlmsgpack"

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}

var msgpackHandle = &codec.MsgpackHandle{}

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, msgpackHandle)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf, nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	dec := codec.NewDecoderBytes(data, msgpackHandle)
	return dec.Decode(v)
}

func (msgpackCodec) Name() string { return codecName }
