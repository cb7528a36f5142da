// Package blob groups the content-addressable store adapters.
//
// Adapters:
//   - fs: sharded files on local disk (default)
//   - badger: BadgerDB key-value store
//   - memory: in-process map for tests and ephemeral runs
//
// All adapters key blobs by domain.ContentKey and share the conformance
// suite in blobtest.
package blob
