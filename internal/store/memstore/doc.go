// Package memstore provides in-process implementations of the user, listing
// and review repositories.
//
// All three repositories returned by New share one state guarded by a single
// sync.RWMutex, so cross-collection operations such as recomputing a seller's
// rating aggregate are atomic with respect to review writes. Values are copied
// in and out; callers never hold references into the store.
//
// memstore backs `server --in-memory` for local development and the service
// and handler tests. It enforces the same invariants as the Postgres schema:
// unique emails and ratings in [1, 5].
package memstore
