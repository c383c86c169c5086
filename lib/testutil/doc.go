// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Taskmesh packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls. The
// replica tests use RequireReceive to read emitted deltas from the
// outbound channel without risking a hung test run.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation. Use it instead of time.Now() when tests need unique
// task titles or agent names distinguishable across subtests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Taskmesh-internal dependencies.
package testutil
