// Package snapshot writes and reads kvmesh snapshot files.
//
// File layout:
//
//	snapshot-<ulid>.snap
//	[magic:8 "KVMSNAP1"]
//	[HeaderLen:4][HeaderJSON:HeaderLen]
//	[DataLen:4][Data:DataLen]   (JSON records, optionally zstd, optionally sealed)
//	[checksum:32 SHA-256 of all bytes above]
//
// Snapshot IDs are ULIDs, so lexical order is creation order. Load picks the
// newest snapshot that passes verification and falls back to older ones
// when the newest is corrupted. Prune applies the retention policy.
package snapshot
