// Package jsonldb provides a generic, concurrent-safe, JSONL-backed data store.
//
// # Overview
//
// [Table] stores rows in a JSONL (JSON Lines) file with full in-memory caching
// for fast reads. Tables are safe for concurrent use by multiple goroutines.
//
// # Concurrency
//
// Every mutation holds the write lock for the whole read-modify-write cycle,
// including the file write, so callers never need to retry.
//
// # Secondary Indexes
//
// [UniqueIndex] provides O(1) lookups by an arbitrary key and rejects rows
// that would collide with an existing one. Indexes stay synchronized with
// table mutations via [TableObserver].
//
// # File Format
//
// One JSON object per line. Rows are sorted by ID on load if out of order
// (clock drift, manual edits). Appends are O(1); updates and deletes rewrite
// the file through a temporary file and a rename.
package jsonldb
