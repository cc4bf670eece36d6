// Package valuecodec defines the pluggable value-encoding boundary: the
// engine treats values as opaque except for one sentinel type, the U64
// counter, which participates in sum/min/max mutations. The engine
// never inspects encoded bytes directly — it only asks a Codec whether
// the value it got back from Decode is a counter.
package valuecodec

import "errors"

// MaxValueSize is the hard per-value serialized size limit. Codecs may
// add a small amount of framing on top (see MaxFrameSlack) but must
// reject anything that would serialize past MaxValueSize+MaxFrameSlack.
const MaxValueSize = 65536

// MaxFrameSlack is the framing allowance a codec may add on top of
// MaxValueSize for envelope/tag overhead.
const MaxFrameSlack = 40

var (
	ErrSerializationFailure = errors.New("valuecodec: serialization failure")
	ErrValueTooLarge        = errors.New("valuecodec: value too large")
	ErrCircularReference    = errors.New("valuecodec: circular or too-deeply-nested reference")
)

// U64 is the sentinel 64-bit-unsigned counter type.
type U64 uint64

// NewU64 builds a counter from an int64, failing if negative (outside
// the valid [0, 2^64) range for a counter).
func NewU64(v int64) (U64, error) {
	if v < 0 {
		return 0, errors.New("valuecodec: counter value out of range")
	}
	return U64(v), nil
}

// IsCounter reports whether v is the U64 sentinel type.
func IsCounter(v any) bool {
	_, ok := v.(U64)
	return ok
}

// Codec is the fixed contract every value encoding plugin implements.
type Codec interface {
	// Name identifies the codec family, e.g. "json", "msgpack".
	Name() string
	// Encode serializes v, failing with ErrSerializationFailure or
	// ErrValueTooLarge as appropriate.
	Encode(v any) ([]byte, error)
	// Decode is Encode's inverse. A counter-valued payload decodes
	// back to the U64 sentinel, not to its underlying integer.
	Decode(b []byte) (any, error)
}
