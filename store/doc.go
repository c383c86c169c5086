// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists task list snapshots to local disk.
//
// Each list gets its own directory under the store root, named by the
// list id in hex. Snapshots are whole-state files named by their
// creation time in milliseconds, zero-padded so lexical order is
// chronological. A snapshot file is a CBOR envelope: schema version,
// codec marker, compression tag, a BLAKE3 integrity digest of the
// uncompressed payload, and the payload itself. Writes are atomic
// (temp file, fsync, rename, parent directory sync), so a crash can
// lose the newest checkpoint but never corrupt an existing one.
//
// The store keeps a small history per list (retention policy, default
// 3) and enforces a byte budget across the whole root: strict mode
// fails a save that would exceed the budget, degraded mode skips it
// with a warning and keeps serving.
//
// The checkpoint scheduler decides when a dirty replica is worth
// flushing: a mutation-count threshold for busy lists, a dirty-time
// floor for quiet ones, and a debounce floor so bursts do not thrash
// the disk. The decision function is pure; the replica drives it from
// its clock.
package store
