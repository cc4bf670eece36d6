package valuecodec

import "fmt"

// maxDepth bounds recursive map/array nesting. Real circular references
// through map[string]any (a map that contains itself) would recurse
// forever without this; a depth limit catches that the same way it
// catches pathologically deep legitimate structures, at the cost of
// rejecting both with the same error.
const maxDepth = 32

// wireValue is the self-describing envelope both the JSON-like and
// tagged-binary codecs serialize: a concrete, typed struct (not a bare
// `any`) so that round-tripping through either encoding library
// preserves the original Go type instead of collapsing everything to
// float64/map[string]interface{} the way decoding into `any` would.
type wireValue struct {
	T  string               `json:"t" codec:"t"`
	S  *string               `json:"s,omitempty" codec:"s,omitempty"`
	B  []byte                `json:"b,omitempty" codec:"b,omitempty"`
	F  float64               `json:"f,omitempty" codec:"f,omitempty"`
	I  int64                 `json:"i,omitempty" codec:"i,omitempty"`
	U  uint64                `json:"u,omitempty" codec:"u,omitempty"`
	Bo bool                  `json:"bo,omitempty" codec:"bo,omitempty"`
	M  map[string]wireValue `json:"m,omitempty" codec:"m,omitempty"`
	A  []wireValue           `json:"a,omitempty" codec:"a,omitempty"`
}

func toWire(v any, depth int) (wireValue, error) {
	if depth > maxDepth {
		return wireValue{}, ErrCircularReference
	}
	switch x := v.(type) {
	case nil:
		return wireValue{T: "null"}, nil
	case bool:
		return wireValue{T: "bool", Bo: x}, nil
	case string:
		if len(x) > MaxValueSize {
			return wireValue{}, ErrValueTooLarge
		}
		s := x
		return wireValue{T: "string", S: &s}, nil
	case []byte:
		if len(x) > MaxValueSize {
			return wireValue{}, ErrValueTooLarge
		}
		return wireValue{T: "bytes", B: x}, nil
	case int:
		return wireValue{T: "int", I: int64(x)}, nil
	case int64:
		return wireValue{T: "int", I: x}, nil
	case float64:
		return wireValue{T: "float", F: x}, nil
	case U64:
		return wireValue{T: "u64", U: uint64(x)}, nil
	case map[string]any:
		m := make(map[string]wireValue, len(x))
		for k, vv := range x {
			w, err := toWire(vv, depth+1)
			if err != nil {
				return wireValue{}, err
			}
			m[k] = w
		}
		return wireValue{T: "map", M: m}, nil
	case []any:
		a := make([]wireValue, len(x))
		for i, vv := range x {
			w, err := toWire(vv, depth+1)
			if err != nil {
				return wireValue{}, err
			}
			a[i] = w
		}
		return wireValue{T: "array", A: a}, nil
	default:
		return wireValue{}, fmt.Errorf("%w: unsupported type %T", ErrSerializationFailure, v)
	}
}

func fromWire(w wireValue) (any, error) {
	switch w.T {
	case "null":
		return nil, nil
	case "bool":
		return w.Bo, nil
	case "string":
		if w.S == nil {
			return "", nil
		}
		return *w.S, nil
	case "bytes":
		return w.B, nil
	case "int":
		return w.I, nil
	case "float":
		return w.F, nil
	case "u64":
		return U64(w.U), nil
	case "map":
		m := make(map[string]any, len(w.M))
		for k, vv := range w.M {
			dv, err := fromWire(vv)
			if err != nil {
				return nil, err
			}
			m[k] = dv
		}
		return m, nil
	case "array":
		a := make([]any, len(w.A))
		for i, vv := range w.A {
			dv, err := fromWire(vv)
			if err != nil {
				return nil, err
			}
			a[i] = dv
		}
		return a, nil
	default:
		return nil, fmt.Errorf("%w: unknown wire tag %q", ErrSerializationFailure, w.T)
	}
}

func checkSize(b []byte) error {
	if len(b) > MaxValueSize+MaxFrameSlack {
		return ErrValueTooLarge
	}
	return nil
}
