// Package key implements the ordered binary key codec: a typed tuple of
// key parts encodes to a lexicographically sortable byte string, and
// decodes back to the same tuple. The tag byte leads every part, so
// byte-string < string < integer < double < boolean parts sort by type
// before they sort by value — tests in key_test.go pin that ordering.
package key

import (
	"encoding/binary"
	"errors"
	"math"
)

// Tag identifies the type of a single key part. It is always the first
// byte written for that part, which is what makes cross-type ordering
// fall out of a plain byte-lexicographic compare.
type Tag byte

const (
	TagBytes  Tag = 0x01
	TagString Tag = 0x02
	TagInt    Tag = 0x03
	TagFloat  Tag = 0x04
	TagBool   Tag = 0x05
)

const (
	// MaxWriteSize is the largest encoded key accepted for a write.
	MaxWriteSize = 2048
	// MaxReadSize is one byte larger than MaxWriteSize so that
	// sentinel lookups built as encodedKey+0xff remain valid reads.
	MaxReadSize = 2049
)

var (
	ErrEmptyKey      = errors.New("key: empty key")
	ErrSizeExceeded  = errors.New("key: encoded size exceeds limit")
	ErrInvalidTag    = errors.New("key: invalid tag byte")
	ErrTruncated     = errors.New("key: truncated part")
)

// Part is exactly one of byte-string, UTF-8 string, signed 64-bit
// integer, IEEE-754 double, or boolean.
type Part struct {
	tag Tag
	b   []byte
	s   string
	i   int64
	f   float64
	bl  bool
}

func Bytes(b []byte) Part  { return Part{tag: TagBytes, b: append([]byte(nil), b...)} }
func String(s string) Part { return Part{tag: TagString, s: s} }
func Int(i int64) Part     { return Part{tag: TagInt, i: i} }
func Float(f float64) Part { return Part{tag: TagFloat, f: f} }
func Bool(b bool) Part     { return Part{tag: TagBool, bl: b} }

// Tag reports the part's type tag.
func (p Part) Tag() Tag { return p.tag }

// AsBytes, AsString, AsInt, AsFloat, AsBool return the part's value and
// whether the part actually holds that type.
func (p Part) AsBytes() ([]byte, bool)  { return p.b, p.tag == TagBytes }
func (p Part) AsString() (string, bool) { return p.s, p.tag == TagString }
func (p Part) AsInt() (int64, bool)     { return p.i, p.tag == TagInt }
func (p Part) AsFloat() (float64, bool) { return p.f, p.tag == TagFloat }
func (p Part) AsBool() (bool, bool)     { return p.bl, p.tag == TagBool }

// Equal reports whether two parts have the same tag and value.
func (p Part) Equal(o Part) bool {
	if p.tag != o.tag {
		return false
	}
	switch p.tag {
	case TagBytes:
		return string(p.b) == string(o.b)
	case TagString:
		return p.s == o.s
	case TagInt:
		return p.i == o.i
	case TagFloat:
		return p.f == o.f
	case TagBool:
		return p.bl == o.bl
	}
	return false
}

func isValidTag(b byte) bool {
	return b >= byte(TagBytes) && b <= byte(TagBool)
}

func encodePart(out []byte, p Part) []byte {
	out = append(out, byte(p.tag))
	switch p.tag {
	case TagBytes:
		out = append(out, p.b...)
	case TagString:
		out = append(out, []byte(p.s)...)
	case TagInt:
		var buf [8]byte
		// Big-endian over the two's-complement bit pattern: negative
		// values do not sort before non-negative ones by magnitude, only
		// by their leading bit.
		binary.BigEndian.PutUint64(buf[:], uint64(p.i))
		out = append(out, buf[:]...)
	case TagFloat:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.f))
		out = append(out, buf[:]...)
	case TagBool:
		if p.bl {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
	}
	return append(out, 0x00)
}

// Encode concatenates the per-part encodings of parts and fails with
// ErrSizeExceeded if the result is longer than limit. Pass MaxWriteSize
// for writes and MaxReadSize for reads.
func Encode(parts []Part, limit int) ([]byte, error) {
	if len(parts) == 0 {
		return nil, ErrEmptyKey
	}
	var out []byte
	for _, p := range parts {
		out = encodePart(out, p)
	}
	if len(out) > limit {
		return nil, ErrSizeExceeded
	}
	return out, nil
}

// Decode is the inverse of Encode: it scans the byte string positionally
// and reconstructs the tuple of parts.
func Decode(b []byte) ([]Part, error) {
	if len(b) == 0 {
		return nil, ErrEmptyKey
	}
	var parts []Part
	i := 0
	for i < len(b) {
		tag := Tag(b[i])
		i++
		switch tag {
		case TagBytes:
			j, err := scanBytesTerminator(b, i)
			if err != nil {
				return nil, err
			}
			parts = append(parts, Bytes(b[i:j]))
			i = j + 1
		case TagString:
			j := i
			for j < len(b) && b[j] != 0x00 {
				j++
			}
			if j >= len(b) {
				return nil, ErrTruncated
			}
			parts = append(parts, String(string(b[i:j])))
			i = j + 1
		case TagInt:
			if i+8 >= len(b) || b[i+8] != 0x00 {
				return nil, ErrTruncated
			}
			v := binary.BigEndian.Uint64(b[i : i+8])
			parts = append(parts, Int(int64(v)))
			i += 9
		case TagFloat:
			if i+8 >= len(b) || b[i+8] != 0x00 {
				return nil, ErrTruncated
			}
			v := binary.BigEndian.Uint64(b[i : i+8])
			parts = append(parts, Float(math.Float64frombits(v)))
			i += 9
		case TagBool:
			if i+1 >= len(b) || b[i+1] != 0x00 {
				return nil, ErrTruncated
			}
			parts = append(parts, Bool(b[i] != 0x00))
			i += 2
		default:
			return nil, ErrInvalidTag
		}
	}
	return parts, nil
}

// scanBytesTerminator finds the 0x00 that terminates a byte-string
// payload starting at position i: a 0x00 only counts as the terminator
// when it is followed by a valid tag byte or end-of-buffer, since a
// raw byte-string payload may itself contain 0x00 bytes. A payload that
// contains 0x00 directly followed by a byte in 0x01..0x05 is cut at that
// point, so such a byte-string part does not decode back unchanged.
func scanBytesTerminator(b []byte, i int) (int, error) {
	for k := i; k < len(b); k++ {
		if b[k] != 0x00 {
			continue
		}
		if k+1 == len(b) || isValidTag(b[k+1]) {
			return k, nil
		}
	}
	return 0, ErrTruncated
}
