package valkeyrie

import (
	"encoding/base64"

	"github.com/ducktors/valkeyrie/key"
)

// Selector describes which range of keys a list operation traverses.
// Exactly one of four forms may be set: Prefix alone, Prefix+Start,
// Prefix+End, or Start+End without a Prefix. Use the constructors
// below rather than building one by hand.
type Selector struct {
	hasPrefix bool
	prefix    []key.Part
	hasStart  bool
	start     []key.Part
	hasEnd    bool
	end       []key.Part
}

// ByPrefix selects every key that extends prefix. An empty prefix
// selects every key in the store.
func ByPrefix(prefix []key.Part) Selector {
	return Selector{hasPrefix: true, prefix: prefix}
}

// ByPrefixFrom selects keys extending prefix, starting at start
// (inclusive). start must be a strict extension of prefix.
func ByPrefixFrom(prefix, start []key.Part) Selector {
	return Selector{hasPrefix: true, prefix: prefix, hasStart: true, start: start}
}

// ByPrefixUntil selects keys extending prefix, up to end (exclusive).
// end must be a strict extension of prefix.
func ByPrefixUntil(prefix, end []key.Part) Selector {
	return Selector{hasPrefix: true, prefix: prefix, hasEnd: true, end: end}
}

// ByRange selects keys in [start, end) with no prefix constraint.
func ByRange(start, end []key.Part) Selector {
	return Selector{hasStart: true, start: start, hasEnd: true, end: end}
}

// bounds is the planner's output: the half-open [startHash, endHash)
// range to scan, plus the prefixHash row to exclude (empty means
// exclude nothing).
type bounds struct {
	startHash  string
	endHash    string
	prefixHash string
}

func planSelector(sel Selector) (bounds, error) {
	switch {
	case sel.hasPrefix && len(sel.prefix) == 0 && !sel.hasStart && !sel.hasEnd:
		// {prefix: []} — the whole keyspace.
		return bounds{startHash: "", endHash: "ffff", prefixHash: ""}, nil

	case sel.hasPrefix && !sel.hasStart && !sel.hasEnd:
		h, err := hashForRead(sel.prefix)
		if err != nil {
			return bounds{}, err
		}
		return bounds{startHash: h, endHash: h + "ff", prefixHash: h}, nil

	case sel.hasPrefix && sel.hasStart && !sel.hasEnd:
		if !isStrictExtension(sel.prefix, sel.start) {
			return bounds{}, ErrPrefixBoundsViolation
		}
		ph, err := hashForRead(sel.prefix)
		if err != nil {
			return bounds{}, err
		}
		sh, err := hashForRead(sel.start)
		if err != nil {
			return bounds{}, err
		}
		return bounds{startHash: sh, endHash: ph + "ff", prefixHash: ph}, nil

	case sel.hasPrefix && !sel.hasStart && sel.hasEnd:
		if !isStrictExtension(sel.prefix, sel.end) {
			return bounds{}, ErrPrefixBoundsViolation
		}
		ph, err := hashForRead(sel.prefix)
		if err != nil {
			return bounds{}, err
		}
		eh, err := hashForRead(sel.end)
		if err != nil {
			return bounds{}, err
		}
		return bounds{startHash: ph, endHash: eh, prefixHash: ph}, nil

	case !sel.hasPrefix && sel.hasStart && sel.hasEnd:
		sh, err := hashForRead(sel.start)
		if err != nil {
			return bounds{}, err
		}
		eh, err := hashForRead(sel.end)
		if err != nil {
			return bounds{}, err
		}
		if sh > eh {
			return bounds{}, ErrStartAfterEnd
		}
		return bounds{startHash: sh, endHash: eh, prefixHash: ""}, nil

	default:
		return bounds{}, ErrInvalidSelector
	}
}

func isStrictExtension(prefix, longer []key.Part) bool {
	if len(longer) <= len(prefix) {
		return false
	}
	for i := range prefix {
		if !prefix[i].Equal(longer[i]) {
			return false
		}
	}
	return true
}

// resumeKey rebuilds the key the cursor was captured at: [...prefix,
// lastPart] for the three prefix forms, or [...start[:-1], lastPart]
// for the plain start/end form.
func (sel Selector) resumeKey(lastPart key.Part) []key.Part {
	if sel.hasPrefix {
		out := make([]key.Part, len(sel.prefix)+1)
		copy(out, sel.prefix)
		out[len(sel.prefix)] = lastPart
		return out
	}
	out := make([]key.Part, len(sel.start))
	copy(out, sel.start)
	out[len(out)-1] = lastPart
	return out
}

func encodeCursor(lastPart key.Part) (string, error) {
	enc, err := key.Encode([]key.Part{lastPart}, key.MaxReadSize)
	if err != nil {
		return "", translateKeyErr(err)
	}
	return base64.RawURLEncoding.EncodeToString(enc), nil
}

func decodeCursor(cursor string) (key.Part, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return key.Part{}, wrapErr(KindInvalidSelector, "malformed cursor", err)
	}
	parts, err := key.Decode(raw)
	if err != nil || len(parts) != 1 {
		return key.Part{}, newErr(KindInvalidSelector, "cursor does not decode to a single key part")
	}
	return parts[0], nil
}
