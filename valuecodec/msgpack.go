package valuecodec

import (
	"github.com/ugorji/go/codec"
)

var msgpackHandle = &codec.MsgpackHandle{}

// MsgpackCodec is a compact, self-describing binary encoding: it
// carries the U64 counter sentinel and raw byte values without the
// base64 inflation a textual codec needs for binary payloads.
type MsgpackCodec struct{}

func NewMsgpackCodec() *MsgpackCodec { return &MsgpackCodec{} }

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(v any) ([]byte, error) {
	w, err := toWire(v, 0)
	if err != nil {
		return nil, err
	}
	var out []byte
	enc := codec.NewEncoderBytes(&out, msgpackHandle)
	if err := enc.Encode(w); err != nil {
		return nil, ErrSerializationFailure
	}
	if err := checkSize(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (MsgpackCodec) Decode(b []byte) (any, error) {
	var w wireValue
	dec := codec.NewDecoderBytes(b, msgpackHandle)
	if err := dec.Decode(&w); err != nil {
		return nil, ErrSerializationFailure
	}
	return fromWire(w)
}
