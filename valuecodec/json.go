package valuecodec

import (
	json "github.com/goccy/go-json"
)

// JSONCodec is a human-readable JSON encoding: binary values are
// base64-framed by the underlying []byte-as-string JSON convention,
// circular/too-deep references are rejected, and a counter is stored
// as a marked object rather than a bare number so it round-trips as
// U64, not int64.
type JSONCodec struct{}

func NewJSONCodec() *JSONCodec { return &JSONCodec{} }

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(v any) ([]byte, error) {
	w, err := toWire(v, 0)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, ErrSerializationFailure
	}
	if err := checkSize(b); err != nil {
		return nil, err
	}
	return b, nil
}

func (JSONCodec) Decode(b []byte) (any, error) {
	var w wireValue
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, ErrSerializationFailure
	}
	return fromWire(w)
}
