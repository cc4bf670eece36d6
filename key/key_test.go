package key

import "testing"

func roundTrip(t *testing.T, parts []Part) []Part {
	t.Helper()
	enc, err := Encode(parts, MaxWriteSize)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return dec
}

func TestRoundTripEachType(t *testing.T) {
	cases := [][]Part{
		{Bytes([]byte{0x01, 0x00, 0x02})},
		{String("hello")},
		{Int(42)},
		{Int(-7)},
		{Float(3.14)},
		{Bool(true)},
		{Bool(false)},
		{String("a"), Bytes([]byte{0xff, 0x00, 0xfe}), Int(9)},
	}
	for i, parts := range cases {
		dec := roundTrip(t, parts)
		if len(dec) != len(parts) {
			t.Fatalf("case %d: len=%d want=%d", i, len(dec), len(parts))
		}
		for j := range parts {
			if !dec[j].Equal(parts[j]) {
				t.Fatalf("case %d part %d: got %+v want %+v", i, j, dec[j], parts[j])
			}
		}
	}
}

func TestBytesPartWithInnerZeroFollowedByPayloadLikeByte(t *testing.T) {
	// A 0x00 inside the payload immediately followed by a byte that is
	// NOT a valid tag must not be mistaken for a terminator.
	payload := []byte{0x10, 0x00, 0x20, 0x00, 0x30}
	dec := roundTrip(t, []Part{Bytes(payload), Int(1)})
	got, ok := dec[0].AsBytes()
	if !ok || string(got) != string(payload) {
		t.Fatalf("got %x ok=%v want %x", got, ok, payload)
	}
}

func TestEmptyKeyRejected(t *testing.T) {
	if _, err := Encode(nil, MaxWriteSize); err != ErrEmptyKey {
		t.Fatalf("got %v want ErrEmptyKey", err)
	}
}

func TestSizeExceeded(t *testing.T) {
	big := make([]byte, MaxWriteSize)
	if _, err := Encode([]Part{Bytes(big)}, MaxWriteSize); err != ErrSizeExceeded {
		t.Fatalf("got %v want ErrSizeExceeded", err)
	}
}

func TestCrossTypeOrdering(t *testing.T) {
	// bytes < string < integer < double < boolean, purely because the
	// tag byte leads every part's encoding.
	order := []Part{
		Bytes([]byte{0xff}),
		String("zzz"),
		Int(-1),
		Float(1e300),
		Bool(false),
	}
	var prev []byte
	for i, p := range order {
		enc, err := Encode([]Part{p}, MaxWriteSize)
		if err != nil {
			t.Fatalf("encode %d: %v", i, err)
		}
		if i > 0 && string(prev) >= string(enc) {
			t.Fatalf("expected strictly increasing at %d: prev=%x cur=%x", i, prev, enc)
		}
		prev = enc
	}
}

func TestIntegerOrderingWithinType(t *testing.T) {
	ints := []int64{0, 1, 2, 100, 1 << 40}
	var prev []byte
	for _, v := range ints {
		enc, err := Encode([]Part{Int(v)}, MaxWriteSize)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if prev != nil && string(prev) >= string(enc) {
			t.Fatalf("expected increasing order at %d", v)
		}
		prev = enc
	}
}

func TestUnknownTagRejected(t *testing.T) {
	if _, err := Decode([]byte{0x09, 0x00}); err != ErrInvalidTag {
		t.Fatalf("got %v want ErrInvalidTag", err)
	}
}

func TestTruncatedRejected(t *testing.T) {
	if _, err := Decode([]byte{byte(TagInt), 1, 2, 3}); err != ErrTruncated {
		t.Fatalf("got %v want ErrTruncated", err)
	}
}
