// Package mirror keeps a local copy of the remote listing and serves pages from it.
//
// The Synchronizer treats the local store as valid whenever it holds at least
// one record. An empty store triggers a full fetch followed by a full replace:
// clear, then sequential fixed-size batches, each committed before the next
// one starts. AddRecord prepends a record by rewriting the collection, and
// ForceRefresh drops the collection before fetching again.
package mirror
