package valkeyrie

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ducktors/valkeyrie/internal/ordstore"
	"github.com/ducktors/valkeyrie/key"
	"github.com/ducktors/valkeyrie/valuecodec"
	"github.com/ducktors/valkeyrie/versionstamp"
)

// Per-batch quotas the builder enforces as entries accumulate, and
// commit() preflights against the running byte totals.
const (
	MaxChecks           = 100
	MaxMutations        = 1000
	MaxTotalKeySize     = 81920
	MaxTotalMutationSize = 819200
)

type mutationKind int

const (
	mutSet mutationKind = iota
	mutDelete
	mutSum
	mutMin
	mutMax
)

type mutation struct {
	kind         mutationKind
	keyParts     []key.Part
	hash         string
	encodedValue []byte
	expiresAt    *int64
	operand      valuecodec.U64
}

// errCheckFailed is the internal rollback signal a failed optimistic
// check raises inside WithTransaction. It never escapes Commit: it is
// translated back into a plain CommitResult{OK: false}.
var errCheckFailed = errors.New("valkeyrie: optimistic check failed")

func (m mutation) keySize() int { return len(m.hash) / 2 }

func (m mutation) mutationSize() int {
	switch m.kind {
	case mutSet:
		return m.keySize() + len(m.encodedValue)
	case mutDelete:
		return m.keySize()
	default:
		return m.keySize() + 8
	}
}

func (m mutation) typeError() *Error {
	var op string
	switch m.kind {
	case mutSum:
		op = "sum"
	case mutMin:
		op = "min"
	case mutMax:
		op = "max"
	}
	return newErr(KindNotACounter, fmt.Sprintf("Failed to perform '%s' mutation on a non-U64 value in the database", op))
}

type check struct {
	hash     string
	expected *string // nil means "absent or expired"
}

// MutationKind identifies which of the five mutation shapes a Mutation
// value carries.
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationDelete
	MutationSum
	MutationMin
	MutationMax
)

// Mutation is the generic form accepted by AtomicBatch.Mutate, for
// callers building a batch from data rather than chained calls. Value
// applies to MutationSet only; Operand applies to MutationSum/Min/Max
// only; ExpireIn applies to MutationSet only.
type Mutation struct {
	Kind     MutationKind
	Key      []key.Part
	Value    any
	Operand  valuecodec.U64
	ExpireIn time.Duration
}

// AtomicBatch accumulates checks and mutations for one all-or-nothing
// commit against a single freshly drawn versionstamp. The zero value
// is not usable; construct one with KV.Atomic. Every builder method
// returns the batch itself so calls can be chained; a validation
// failure is latched and surfaces from Commit.
type AtomicBatch struct {
	kv        *KV
	checks    []check
	mutations []mutation

	totalKeySize      int
	totalMutationSize int

	err error
}

// Atomic begins a new atomic transaction builder.
func (kv *KV) Atomic() *AtomicBatch {
	return &AtomicBatch{kv: kv}
}

// Check adds an optimistic-concurrency precondition: expected must
// either be nil (the key must be absent or expired) or point to a
// 20-character lowercase hex versionstamp the key must currently carry.
func (b *AtomicBatch) Check(keyParts []key.Part, expected *string) *AtomicBatch {
	if b.err != nil {
		return b
	}
	if len(b.checks) >= MaxChecks {
		b.err = ErrTooManyChecks
		return b
	}
	if expected != nil && !versionstamp.Valid(*expected) {
		b.err = ErrInvalidVersionstamp
		return b
	}
	if len(keyParts) == 0 {
		b.err = ErrEmptyKey
		return b
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		b.err = err
		return b
	}
	b.checks = append(b.checks, check{hash: hash, expected: expected})
	return b
}

// Set stages a write.
func (b *AtomicBatch) Set(keyParts []key.Part, value any, opts SetOptions) *AtomicBatch {
	if b.err != nil {
		return b
	}
	if len(keyParts) == 0 {
		b.err = ErrEmptyKey
		return b
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		b.err = err
		return b
	}
	encoded, err := b.kv.codec.Encode(value)
	if err != nil {
		b.err = translateCodecErr(err)
		return b
	}
	var expiresAt *int64
	if opts.ExpireIn > 0 {
		at := nowMillis() + opts.ExpireIn.Milliseconds()
		expiresAt = &at
	}
	return b.addMutation(mutation{kind: mutSet, keyParts: keyParts, hash: hash, encodedValue: encoded, expiresAt: expiresAt})
}

// Delete stages an unconditional removal.
func (b *AtomicBatch) Delete(keyParts []key.Part) *AtomicBatch {
	if b.err != nil {
		return b
	}
	if len(keyParts) == 0 {
		b.err = ErrEmptyKey
		return b
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		b.err = err
		return b
	}
	return b.addMutation(mutation{kind: mutDelete, keyParts: keyParts, hash: hash})
}

// Sum stages `current = (current + operand) mod 2^64`, treating an
// absent key as a current value of zero.
func (b *AtomicBatch) Sum(keyParts []key.Part, operand valuecodec.U64) *AtomicBatch {
	return b.stageCounterOp(mutSum, keyParts, operand)
}

// Min stages `current = min(current, operand)`, treating an absent key
// as a current value of operand.
func (b *AtomicBatch) Min(keyParts []key.Part, operand valuecodec.U64) *AtomicBatch {
	return b.stageCounterOp(mutMin, keyParts, operand)
}

// Max stages `current = max(current, operand)`, treating an absent key
// as a current value of operand.
func (b *AtomicBatch) Max(keyParts []key.Part, operand valuecodec.U64) *AtomicBatch {
	return b.stageCounterOp(mutMax, keyParts, operand)
}

// Counter validates v and returns it as a U64 counter operand, for
// building Sum/Min/Max operands from a caller-supplied int64 instead of
// an already-typed valuecodec.U64. It fails if v is negative, the only
// way an int64 can fall outside U64's valid [0, 2^64) range.
func Counter(v int64) (valuecodec.U64, error) {
	u, err := valuecodec.NewU64(v)
	if err != nil {
		return 0, newErr(KindCounterOutOfRange, "counter value out of range")
	}
	return u, nil
}

func (b *AtomicBatch) stageCounterOp(kind mutationKind, keyParts []key.Part, operand valuecodec.U64) *AtomicBatch {
	if b.err != nil {
		return b
	}
	if len(keyParts) == 0 {
		b.err = ErrEmptyKey
		return b
	}
	hash, err := hashForWrite(keyParts)
	if err != nil {
		b.err = err
		return b
	}
	return b.addMutation(mutation{kind: kind, keyParts: keyParts, hash: hash, operand: operand})
}

// Mutate stages the mutation m describes. It is the generic entry
// point Set/Delete/Sum/Min/Max are built on, for callers assembling a
// batch from data rather than chained calls.
func (b *AtomicBatch) Mutate(m Mutation) *AtomicBatch {
	switch m.Kind {
	case MutationSet:
		return b.Set(m.Key, m.Value, SetOptions{ExpireIn: m.ExpireIn})
	case MutationDelete:
		return b.Delete(m.Key)
	case MutationSum:
		return b.Sum(m.Key, m.Operand)
	case MutationMin:
		return b.Min(m.Key, m.Operand)
	case MutationMax:
		return b.Max(m.Key, m.Operand)
	default:
		if b.err == nil {
			b.err = newErr(KindInvalidKey, "unknown mutation kind")
		}
		return b
	}
}

func (b *AtomicBatch) addMutation(m mutation) *AtomicBatch {
	if b.err != nil {
		return b
	}
	if len(b.mutations) >= MaxMutations {
		b.err = ErrTooManyMutations
		return b
	}
	b.mutations = append(b.mutations, m)
	b.totalKeySize += m.keySize()
	b.totalMutationSize += m.mutationSize()
	return b
}

// Commit preflights the batch's size quotas, draws one versionstamp,
// and executes checks-then-mutations inside a single store
// transaction. A failed check yields CommitResult{OK: false} with a
// nil error — rolled back, not an error. A non-counter value under a
// sum/min/max mutation rolls back and returns a real error.
func (b *AtomicBatch) Commit(ctx context.Context) (CommitResult, error) {
	if err := b.kv.enter(); err != nil {
		return CommitResult{}, err
	}
	if b.err != nil {
		return CommitResult{}, b.err
	}
	if b.totalKeySize > MaxTotalKeySize {
		return CommitResult{}, ErrTotalKeySizeExceeded
	}
	if b.totalMutationSize > MaxTotalMutationSize {
		return CommitResult{}, ErrTotalMutationSizeExceeded
	}

	vs := b.kv.clock.Next()
	var result CommitResult
	var typeErr *Error

	txErr := b.kv.store.WithTransaction(ctx, func(tx *ordstore.Tx) error {
		now := nowMillis()

		for _, c := range b.checks {
			row, err := tx.Get(ctx, c.hash, now)
			if err != nil {
				return err
			}
			var matched bool
			if c.expected == nil {
				matched = row == nil
			} else {
				matched = row != nil && row.Versionstamp == *c.expected
			}
			if !matched {
				return errCheckFailed
			}
		}

		for _, m := range b.mutations {
			switch m.kind {
			case mutSet:
				if err := tx.Put(ctx, m.hash, m.encodedValue, vs, m.expiresAt); err != nil {
					return err
				}
			case mutDelete:
				if err := tx.Delete(ctx, m.hash); err != nil {
					return err
				}
			default:
				newVal, err := applyCounterOp(ctx, tx, b.kv.codec, now, m)
				if err != nil {
					if te, ok := err.(*Error); ok {
						typeErr = te
					}
					return err
				}
				encoded, err := b.kv.codec.Encode(newVal)
				if err != nil {
					ce := translateCodecErr(err)
					typeErr = ce.(*Error)
					return ce
				}
				if err := tx.Put(ctx, m.hash, encoded, vs, nil); err != nil {
					return err
				}
			}
		}

		result = CommitResult{OK: true, Versionstamp: vs}
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errCheckFailed) {
			return CommitResult{OK: false}, nil
		}
		if typeErr != nil {
			return CommitResult{}, typeErr
		}
		return CommitResult{}, wrapErr(KindStoreFailure, "atomic commit", txErr)
	}
	return result, nil
}

func applyCounterOp(ctx context.Context, tx *ordstore.Tx, codec valuecodec.Codec, now int64, m mutation) (valuecodec.U64, error) {
	row, err := tx.Get(ctx, m.hash, now)
	if err != nil {
		return 0, err
	}
	if row == nil {
		return m.operand, nil
	}
	decoded, err := codec.Decode(row.Value)
	if err != nil {
		return 0, err
	}
	if !valuecodec.IsCounter(decoded) {
		return 0, m.typeError()
	}
	cur := uint64(decoded.(valuecodec.U64))
	op := uint64(m.operand)
	switch m.kind {
	case mutSum:
		return valuecodec.U64(cur + op), nil
	case mutMin:
		if op < cur {
			return valuecodec.U64(op), nil
		}
		return valuecodec.U64(cur), nil
	case mutMax:
		if op > cur {
			return valuecodec.U64(op), nil
		}
		return valuecodec.U64(cur), nil
	}
	return 0, m.typeError()
}
