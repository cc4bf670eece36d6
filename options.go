// Package valkeyrie is an embeddable, ordered key-value store: keys
// are tuples of typed parts that sort the way their tuple compares,
// values carry a monotone versionstamp, entries may expire, and reads
// span prefixes or ranges with a resumable cursor. Writes go through
// either a single Set/Delete or an AtomicBatch of checks and
// mutations executed as one transaction.
package valkeyrie

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ducktors/valkeyrie/internal/ordstore"
	"github.com/ducktors/valkeyrie/valuecodec"
	"github.com/ducktors/valkeyrie/versionstamp"
)

// Default and max batch sizes for List's range planner.
const (
	DefaultBatchSize = 500
	MaxBatchSize     = 1000
)

// Options configures Open. The zero value is valid: an in-memory store
// with the default (tagged-binary) serializer, no logging, and the
// default batch sizes — omitting Path opens an in-memory database the
// same way an empty data directory does.
type Options struct {
	// Path is the filesystem path of the backing database. Empty opens
	// an in-memory store.
	Path string
	// Serializer is the value codec plugin. Defaults to a tagged-binary
	// (msgpack) codec if nil.
	Serializer valuecodec.Codec
	// Logger receives structured lifecycle events. Defaults to a no-op
	// logger if nil.
	Logger *zap.Logger
	// BatchSizeDefault and BatchSizeMax override list()'s default and
	// maximum page size. Zero means use the built-in default.
	BatchSizeDefault int
	BatchSizeMax     int
}

func (o Options) validate() error {
	if o.BatchSizeDefault < 0 {
		return newErr(KindInvalidSelector, "batch_size_default must be >= 0")
	}
	if o.BatchSizeMax < 0 {
		return newErr(KindInvalidSelector, "batch_size_max must be >= 0")
	}
	if o.BatchSizeDefault > 0 && o.BatchSizeMax > 0 && o.BatchSizeDefault > o.BatchSizeMax {
		return newErr(KindInvalidSelector, "batch_size_default must be <= batch_size_max")
	}
	if o.Path != "" && strings.TrimSpace(o.Path) == "" {
		return newErr(KindInvalidSelector, "path must not be blank")
	}
	return nil
}

// KV is the engine façade (component C5): the only type most callers
// ever touch. The zero value is not usable; construct one with Open.
type KV struct {
	store  *ordstore.Store
	codec  valuecodec.Codec
	clock  versionstamp.Clock
	logger *zap.Logger

	batchDefault int
	batchMax     int

	mu     sync.RWMutex
	closed bool
}

// Open acquires a store handle. Release it with Close, typically via
// `defer kv.Close()`.
func Open(opts Options) (*KV, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codec := opts.Serializer
	if codec == nil {
		codec = valuecodec.NewMsgpackCodec()
	}
	batchMax := opts.BatchSizeMax
	if batchMax == 0 {
		batchMax = MaxBatchSize
	}
	batchDefault := opts.BatchSizeDefault
	if batchDefault == 0 {
		batchDefault = DefaultBatchSize
		if batchDefault > batchMax {
			batchDefault = batchMax
		}
	}

	store, err := ordstore.Open(opts.Path, logger)
	if err != nil {
		if errors.Is(err, ordstore.ErrSchemaVersion) {
			return nil, wrapErr(KindSchemaVersion, "open backing store", err)
		}
		return nil, wrapErr(KindConstructorMisuse, "open backing store", err)
	}

	return &KV{
		store:        store,
		codec:        codec,
		logger:       logger,
		batchDefault: batchDefault,
		batchMax:     batchMax,
	}, nil
}

// Close is idempotent; every operation after Close fails with
// ErrDatabaseClosed.
func (kv *KV) Close() error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if kv.closed {
		return nil
	}
	kv.closed = true
	kv.logger.Debug("valkeyrie: closing")
	return kv.store.Close()
}

func (kv *KV) enter() error {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	if kv.closed {
		return ErrDatabaseClosed
	}
	return nil
}
