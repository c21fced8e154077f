// Package storage persists the kvmesh store across restarts.
//
// The store exposes two entry points to persistence: InitialSet for the
// single-threaded bulk load at startup and Enumerate for the dump at
// shutdown. A Persister drives one Backend through those entry points:
//
//   - json: one JSON document (database.json)
//   - snapshot: checksummed snapshot files, optionally zstd compressed and
//     encrypted, with retention
//   - badger: an embedded Badger database
//
// Persistence failures never touch the in-memory store. They are returned
// to the caller, which decides whether to continue with a partial dataset.
package storage
