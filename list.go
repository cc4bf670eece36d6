package valkeyrie

import (
	"context"

	"github.com/ducktors/valkeyrie/internal/ordstore"
	"github.com/ducktors/valkeyrie/key"
)

// ListOptions configures List. The zero value lists every matching
// entry ascending, one batch of the store's default size at a time.
type ListOptions struct {
	// Limit caps the number of entries returned. Zero means unbounded.
	Limit int
	// BatchSize overrides how many rows are fetched from the backing
	// store per round trip. Zero means the KV's configured default.
	BatchSize int
	// Cursor resumes a prior listing exactly where it left off, as
	// returned by Iterator.Cursor.
	Cursor string
	// Reverse lists descending instead of ascending.
	Reverse bool
}

// Iterator is a lazy, resumable sequence of entries matching a
// Selector. Call Next repeatedly until it reports no more entries.
type Iterator struct {
	kv      *KV
	ctx     context.Context
	sel     Selector
	reverse bool

	startHash  string
	endHash    string
	prefixHash string

	batchSize int
	unlimited bool
	remaining int

	buf       []ordstore.Entry
	bufIdx    int
	batchFull bool // last fetch returned a full batch; more may remain

	lastKey []key.Part
	done    bool
}

// List begins a listing over sel. The returned Iterator is valid for
// the lifetime of ctx.
func (kv *KV) List(ctx context.Context, sel Selector, opts ListOptions) (*Iterator, error) {
	if err := kv.enter(); err != nil {
		return nil, err
	}

	b, err := planSelector(sel)
	if err != nil {
		return nil, err
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = kv.batchDefault
	}
	if batchSize > kv.batchMax {
		return nil, ErrTooManyEntries
	}

	it := &Iterator{
		kv:         kv,
		ctx:        ctx,
		sel:        sel,
		reverse:    opts.Reverse,
		startHash:  b.startHash,
		endHash:    b.endHash,
		prefixHash: b.prefixHash,
		batchSize:  batchSize,
		unlimited:  opts.Limit == 0,
		remaining:  opts.Limit,
	}

	if opts.Cursor != "" {
		part, err := decodeCursor(opts.Cursor)
		if err != nil {
			return nil, err
		}
		resumed := sel.resumeKey(part)
		hash, err := hashForRead(resumed)
		if err != nil {
			return nil, err
		}
		if it.reverse {
			it.endHash = hash
		} else {
			it.startHash = hash + "00"
		}
	}

	return it, nil
}

// Next returns the next entry in the sequence. The second return value
// is false once the sequence is exhausted; Next must not be called
// again after that.
func (it *Iterator) Next() (Entry, bool, error) {
	if it.done {
		return Entry{}, false, nil
	}
	if !it.unlimited && it.remaining <= 0 {
		it.done = true
		return Entry{}, false, nil
	}

	if it.bufIdx >= len(it.buf) {
		if it.buf != nil && !it.batchFull {
			it.done = true
			return Entry{}, false, nil
		}
		if err := it.fetch(); err != nil {
			return Entry{}, false, err
		}
		if len(it.buf) == 0 {
			it.done = true
			return Entry{}, false, nil
		}
	}

	row := it.buf[it.bufIdx]
	it.bufIdx++
	if !it.unlimited {
		it.remaining--
	}

	parts, err := decodeHash(row.KeyHash)
	if err != nil {
		return Entry{}, false, err
	}
	val, err := it.kv.codec.Decode(row.Value)
	if err != nil {
		return Entry{}, false, wrapErr(KindSerializationFailure, "decode value", err)
	}
	it.lastKey = parts

	if it.bufIdx >= len(it.buf) && it.batchFull {
		// Narrow the window so the next fetch resumes strictly past (or
		// before, in reverse) the last row this batch yielded.
		if it.reverse {
			it.endHash = row.KeyHash
		} else {
			it.startHash = row.KeyHash + "00"
		}
	}

	return Entry{Key: parts, Value: val, Versionstamp: row.Versionstamp}, true, nil
}

func (it *Iterator) fetch() error {
	limit := it.batchSize
	if !it.unlimited && it.remaining < limit {
		limit = it.remaining
	}
	rows, err := it.kv.store.Range(it.ctx, it.startHash, it.endHash, it.prefixHash, nowMillis(), limit, it.reverse)
	if err != nil {
		return wrapErr(KindStoreFailure, "list", err)
	}
	it.buf = rows
	it.bufIdx = 0
	it.batchFull = len(rows) == limit
	return nil
}

// Cursor returns a token that resumes this listing immediately after
// the last entry Next returned. Before the first successful Next call
// it returns "".
func (it *Iterator) Cursor() (string, error) {
	if it.lastKey == nil {
		return "", nil
	}
	return encodeCursor(it.lastKey[len(it.lastKey)-1])
}
