package valuecodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func allCodecs() []Codec {
	return []Codec{NewJSONCodec(), NewMsgpackCodec()}
}

func TestRoundTripScalars(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			values := []any{
				nil, true, false, "hello", []byte{0x01, 0x02, 0xff},
				int64(42), int64(-7), 3.14, U64(9),
			}
			for _, v := range values {
				b, err := c.Encode(v)
				require.NoError(t, err)
				got, err := c.Decode(b)
				require.NoError(t, err)
				require.Equal(t, v, got)
			}
		})
	}
}

func TestCounterRoundTripsAsSentinel(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Encode(U64(0xFFFFFFFFFFFFFFFF))
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			require.True(t, IsCounter(got))
			require.Equal(t, U64(0xFFFFFFFFFFFFFFFF), got)
		})
	}
}

func TestNestedMapAndArray(t *testing.T) {
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			v := map[string]any{
				"a": int64(1),
				"b": []any{"x", int64(2), U64(3)},
			}
			b, err := c.Encode(v)
			require.NoError(t, err)
			got, err := c.Decode(b)
			require.NoError(t, err)
			require.Equal(t, v, got)
		})
	}
}

func TestValueTooLargeRejected(t *testing.T) {
	big := make([]byte, MaxValueSize+1)
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Encode(big)
			require.ErrorIs(t, err, ErrValueTooLarge)
		})
	}
}

func TestCircularReferenceRejected(t *testing.T) {
	m := map[string]any{}
	m["self"] = m
	for _, c := range allCodecs() {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Encode(m)
			require.ErrorIs(t, err, ErrCircularReference)
		})
	}
}
