package valkeyrie

import "github.com/ducktors/valkeyrie/key"

// Entry is the tuple (key, value, versionstamp) returned by a read.
// Value and Versionstamp are both the zero value when the key does not
// exist (or has expired): Value is nil and Versionstamp is "".
type Entry struct {
	Key          []key.Part
	Value        any
	Versionstamp string
}

// Found reports whether this entry represents a present row.
func (e Entry) Found() bool { return e.Versionstamp != "" }

// CommitResult is Set's and an atomic batch's outcome. A failed
// optimistic-concurrency check is reported as OK == false with a zero
// Versionstamp — it is not an error.
type CommitResult struct {
	OK           bool
	Versionstamp string
}
