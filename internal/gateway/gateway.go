// Package gateway defines the abstract interface to the shared remote
// document store. The store is the single source of truth for profiles,
// leagues and memberships; every conditional write goes through Transact so
// read-modify-write sequences are never lost.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrKeyNotFound is returned by Get when no document exists at a key.
	ErrKeyNotFound = errors.New("gateway: key not found")
	// ErrTxConflict is returned by Transact when a watched document changed
	// between the transactional read and the commit.
	ErrTxConflict = errors.New("gateway: transaction conflict")
)

// Tx is the transactional read/write handle passed to Transact callbacks.
// Reads observe committed state as of the transaction; writes are buffered
// and applied atomically at commit, or not at all.
type Tx interface {
	// Get unmarshals the document at key into dest, or ErrKeyNotFound.
	Get(key string, dest any) error
	// Set buffers a full-document write.
	Set(key string, value any)
}

// Store is the remote state gateway. Callers must not cache mutable
// documents across transaction boundaries; any read that guards a write is
// re-performed inside the same Transact call.
type Store interface {
	// Get reads a document outside any transaction. No ordering is assumed
	// between a Get and a concurrent Transact.
	Get(ctx context.Context, key string, dest any) error
	// Set writes a document. With merge, top-level fields of value are
	// folded into the existing document instead of replacing it.
	Set(ctx context.Context, key string, value any, merge bool) error
	// Subscribe delivers the committed bytes of the document at key after
	// every write. The cancel func must be called to release the feed.
	Subscribe(ctx context.Context, key string) (<-chan []byte, func(), error)
	// Transact runs fn against a transactional handle. keys lists every
	// document fn may read or write; a concurrent commit touching any of
	// them aborts with ErrTxConflict and no writes applied.
	Transact(ctx context.Context, keys []string, fn func(tx Tx) error) error
}
