// Package medium defines the persistent key/value medium behind application
// state, and the backends that implement it.
//
// A Medium stores serialized (JSON) text under namespaced keys. The state
// layer only needs four operations from it:
//
//	Has(ctx, key)         → is something stored under key?
//	Get(ctx, key)         → the stored text, if any
//	Set(ctx, key, value)  → store text under key
//	Remove(ctx, key)      → drop key
//
// # Backends
//
//   - Memory: process-local map, the analogue of a browser tab's session storage
//   - SQL: any database/sql driver (SQLite, PostgreSQL, MySQL)
//   - S3: one object per key in an S3 bucket
//   - Remote: HTTP client for the key/value API served by pkg/kvserver
//   - Cached: LRU read cache in front of any slower backend
//
// A nil Medium is valid everywhere a Medium is accepted and means
// "persistence is unavailable": nothing is ever persisted and nothing fails.
package medium
