package ordstore

import (
	"context"
	"errors"
	"testing"
)

var errTestRollback = errors.New("ordstore test: forced rollback")

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open("", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	if e, err := s.Get(ctx, "a1", 0); err != nil || e != nil {
		t.Fatalf("Get on empty store: e=%v err=%v", e, err)
	}

	if err := s.Put(ctx, "a1", []byte("v1"), "00000000000000000001", nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	e, err := s.Get(ctx, "a1", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e == nil || string(e.Value) != "v1" {
		t.Fatalf("got %+v want value v1", e)
	}

	if err := s.Put(ctx, "a1", []byte("v2"), "00000000000000000002", nil); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	e, err = s.Get(ctx, "a1", 0)
	if err != nil || e == nil || string(e.Value) != "v2" {
		t.Fatalf("upsert did not overwrite: %+v err=%v", e, err)
	}

	if err := s.Delete(ctx, "a1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if e, err := s.Get(ctx, "a1", 0); err != nil || e != nil {
		t.Fatalf("Get after delete: e=%v err=%v", e, err)
	}
}

func TestGetExcludesExpiredRows(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	expiresAt := int64(100)
	if err := s.Put(ctx, "k", []byte("v"), "00000000000000000001", &expiresAt); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if e, err := s.Get(ctx, "k", 50); err != nil || e == nil {
		t.Fatalf("Get before expiry: e=%v err=%v", e, err)
	}
	if e, err := s.Get(ctx, "k", 100); err != nil || e != nil {
		t.Fatalf("Get at expiry boundary: e=%v err=%v", e, err)
	}
}

func TestRangeAscendingAndReverse(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	for _, h := range []string{"a1", "a2", "a3", "a4"} {
		if err := s.Put(ctx, h, []byte(h), "00000000000000000001", nil); err != nil {
			t.Fatalf("Put %s: %v", h, err)
		}
	}

	rows, err := s.Range(ctx, "a1", "a9", "", 0, 10, false)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("got %d rows want 4", len(rows))
	}
	for i, h := range []string{"a1", "a2", "a3", "a4"} {
		if rows[i].KeyHash != h {
			t.Fatalf("row %d: got %s want %s", i, rows[i].KeyHash, h)
		}
	}

	rev, err := s.Range(ctx, "a1", "a9", "", 0, 10, true)
	if err != nil {
		t.Fatalf("Range reverse: %v", err)
	}
	for i, h := range []string{"a4", "a3", "a2", "a1"} {
		if rev[i].KeyHash != h {
			t.Fatalf("reverse row %d: got %s want %s", i, rev[i].KeyHash, h)
		}
	}
}

func TestRangeExcludesPrefixHash(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	for _, h := range []string{"a1", "a1ff", "a2"} {
		if err := s.Put(ctx, h, []byte(h), "00000000000000000001", nil); err != nil {
			t.Fatalf("Put %s: %v", h, err)
		}
	}

	rows, err := s.Range(ctx, "a1", "a1ff", "a1", 0, 10, false)
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected the exact prefixHash row excluded, got %d rows", len(rows))
	}
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	expired := int64(10)
	live := int64(1000)
	if err := s.Put(ctx, "k1", []byte("v"), "00000000000000000001", &expired); err != nil {
		t.Fatalf("Put k1: %v", err)
	}
	if err := s.Put(ctx, "k2", []byte("v"), "00000000000000000001", &live); err != nil {
		t.Fatalf("Put k2: %v", err)
	}

	if err := s.DeleteExpired(ctx, 500); err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if e, _ := s.Get(ctx, "k1", 0); e != nil {
		t.Fatalf("expired row k1 survived cleanup")
	}
	if e, _ := s.Get(ctx, "k2", 0); e == nil {
		t.Fatalf("live row k2 was swept")
	}
}

func TestWithTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	sentinel := errTestRollback
	err := s.WithTransaction(ctx, func(tx *Tx) error {
		if err := tx.Put(ctx, "k", []byte("v"), "00000000000000000001", nil); err != nil {
			return err
		}
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("got %v want sentinel", err)
	}
	if e, _ := s.Get(ctx, "k", 0); e != nil {
		t.Fatalf("write inside rolled-back transaction was persisted")
	}
}

func TestWithTransactionCommits(t *testing.T) {
	ctx := context.Background()
	s := open(t)

	err := s.WithTransaction(ctx, func(tx *Tx) error {
		return tx.Put(ctx, "k", []byte("v"), "00000000000000000001", nil)
	})
	if err != nil {
		t.Fatalf("WithTransaction: %v", err)
	}
	if e, _ := s.Get(ctx, "k", 0); e == nil {
		t.Fatalf("committed write not visible")
	}
}
