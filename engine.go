package valkeyrie

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ducktors/valkeyrie/key"
	"github.com/ducktors/valkeyrie/valuecodec"
)

// MaxGetManyKeys is getMany's quota (§6: "getMany ≤ 10 keys").
const MaxGetManyKeys = 10

func nowMillis() int64 { return time.Now().UnixMilli() }

// Get fetches one entry. A non-existent or expired key is not an
// error: it comes back as an Entry with Value == nil and
// Versionstamp == "".
func (kv *KV) Get(ctx context.Context, keyParts []key.Part) (Entry, error) {
	if err := kv.enter(); err != nil {
		return Entry{}, err
	}
	if len(keyParts) == 0 {
		return Entry{}, ErrEmptyKey
	}
	hash, err := hashForRead(keyParts)
	if err != nil {
		return Entry{}, err
	}
	row, err := kv.store.Get(ctx, hash, nowMillis())
	if err != nil {
		return Entry{}, wrapErr(KindStoreFailure, "get", err)
	}
	if row == nil {
		return Entry{Key: keyParts}, nil
	}
	decodedKey, err := decodeHash(hash)
	if err != nil {
		return Entry{}, err
	}
	val, err := kv.codec.Decode(row.Value)
	if err != nil {
		return Entry{}, wrapErr(KindSerializationFailure, "decode value", err)
	}
	return Entry{Key: decodedKey, Value: val, Versionstamp: row.Versionstamp}, nil
}

// GetMany fetches several entries in the order requested.
func (kv *KV) GetMany(ctx context.Context, keys [][]key.Part) ([]Entry, error) {
	if err := kv.enter(); err != nil {
		return nil, err
	}
	if len(keys) > MaxGetManyKeys {
		return nil, ErrTooManyRanges
	}
	out := make([]Entry, 0, len(keys))
	for _, k := range keys {
		e, err := kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// SetOptions configures Set. ExpireIn, when positive, is added to the
// operation's start time to compute an absolute expiry.
type SetOptions struct {
	ExpireIn time.Duration
}

// Set writes value under key, stamping it with one freshly drawn
// versionstamp.
func (kv *KV) Set(ctx context.Context, keyParts []key.Part, value any, opts SetOptions) (CommitResult, error) {
	if err := kv.enter(); err != nil {
		return CommitResult{}, err
	}
	if len(keyParts) == 0 {
		return CommitResult{}, ErrEmptyKey
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		return CommitResult{}, err
	}
	encoded, err := kv.codec.Encode(value)
	if err != nil {
		return CommitResult{}, translateCodecErr(err)
	}
	vs := kv.clock.Next()
	var expiresAt *int64
	if opts.ExpireIn > 0 {
		at := nowMillis() + opts.ExpireIn.Milliseconds()
		expiresAt = &at
	}
	if err := kv.store.Put(ctx, hash, encoded, vs, expiresAt); err != nil {
		return CommitResult{}, wrapErr(KindStoreFailure, "set", err)
	}
	return CommitResult{OK: true, Versionstamp: vs}, nil
}

// Delete unconditionally removes key.
func (kv *KV) Delete(ctx context.Context, keyParts []key.Part) error {
	if err := kv.enter(); err != nil {
		return err
	}
	if len(keyParts) == 0 {
		return ErrEmptyKey
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		return err
	}
	if err := kv.store.Delete(ctx, hash); err != nil {
		return wrapErr(KindStoreFailure, "delete", err)
	}
	return nil
}

// Cleanup physically removes every entry whose expiry has passed.
func (kv *KV) Cleanup(ctx context.Context) error {
	if err := kv.enter(); err != nil {
		return err
	}
	if err := kv.store.DeleteExpired(ctx, nowMillis()); err != nil {
		return wrapErr(KindStoreFailure, "cleanup", err)
	}
	kv.logger.Debug("valkeyrie: cleanup swept expired entries", zap.Int64("now", nowMillis()))
	return nil
}

func translateCodecErr(err error) error {
	if err == nil {
		return nil
	}
	kind := KindSerializationFailure
	if errors.Is(err, valuecodec.ErrValueTooLarge) {
		kind = KindValueTooLarge
	}
	return wrapErr(kind, "encode value", err)
}
