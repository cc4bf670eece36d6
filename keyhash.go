package valkeyrie

import (
	"encoding/hex"

	"github.com/ducktors/valkeyrie/key"
)

// hashForWrite and hashForRead enforce two different size limits:
// reads get one extra byte of headroom so that sentinel lookups built
// as hash+"\xff" stay valid.
func hashForWrite(parts []key.Part) (string, error) {
	return encodeHash(parts, key.MaxWriteSize)
}

func hashForRead(parts []key.Part) (string, error) {
	return encodeHash(parts, key.MaxReadSize)
}

func encodeHash(parts []key.Part, limit int) (string, error) {
	enc, err := key.Encode(parts, limit)
	if err != nil {
		return "", translateKeyErr(err)
	}
	return hex.EncodeToString(enc), nil
}

// decodeHash is the inverse of encodeHash: it recovers the tuple of
// parts from the hex key_hash stored in a row, used so that reads
// return a key that has round-tripped through the codec.
func decodeHash(hash string) ([]key.Part, error) {
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return nil, wrapErr(KindInvalidKeyHash, "stored key_hash is not valid hex", err)
	}
	parts, err := key.Decode(raw)
	if err != nil {
		return nil, wrapErr(KindInvalidKeyHash, "stored key_hash does not decode", err)
	}
	return parts, nil
}

func translateKeyErr(err error) error {
	switch err {
	case key.ErrEmptyKey:
		return ErrEmptyKey
	case key.ErrSizeExceeded:
		return ErrKeySizeExceeded
	case key.ErrInvalidTag, key.ErrTruncated:
		return ErrInvalidKeyHash
	default:
		return wrapErr(KindInvalidKey, "invalid key", err)
	}
}
