// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/taskmesh-foundation/taskmesh/lib/clock"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
	"github.com/taskmesh-foundation/taskmesh/tasklist"
)

// snapshotSuffix is the file extension of finished snapshots. The
// atomic-write temp file uses a different suffix, so a crash mid-write
// can never leave a half-snapshot that looks loadable.
const snapshotSuffix = ".snapshot"

// ErrNotFound reports that no snapshot exists for the requested list.
var ErrNotFound = errors.New("no snapshot found")

// Config carries the dependencies for a file store.
type Config struct {
	// Root is the store directory; created if missing.
	Root string

	// Policy tunes retention and budget. Zero value means
	// DefaultPolicy.
	Policy Policy

	// Compression is the tag applied to new snapshots; nil selects
	// zstd. CompressionNone is a valid choice and stores payloads
	// uncompressed.
	Compression *CompressionTag

	// Clock names snapshot files; nil means the real clock.
	Clock clock.Clock

	// Logger receives retention and budget warnings; nil means
	// slog.Default().
	Logger *slog.Logger
}

// Store is a file-backed snapshot store. Safe for concurrent use by
// callers that serialize per-list saves (the replica does).
type Store struct {
	root        string
	policy      Policy
	compression CompressionTag
	clk         clock.Clock
	logger      *slog.Logger
}

// New opens (or initializes) a store at cfg.Root. A fresh directory
// gets a manifest; an existing one has its manifest verified.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("store: root directory required")
	}
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	compression := CompressionZstd
	if cfg.Compression != nil {
		switch *cfg.Compression {
		case CompressionNone, CompressionLZ4, CompressionZstd:
			compression = *cfg.Compression
		default:
			return nil, fmt.Errorf("store: unknown compression tag %d", *cfg.Compression)
		}
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Root, 0o700); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	if err := ensureManifest(cfg.Root); err != nil {
		return nil, err
	}

	return &Store{
		root:        cfg.Root,
		policy:      policy,
		compression: compression,
		clk:         clk,
		logger:      logger,
	}, nil
}

// Policy returns the store's effective policy.
func (s *Store) Policy() Policy { return s.policy }

func (s *Store) listDir(id ident.ListID) string {
	return filepath.Join(s.root, id.String())
}

// Save writes a snapshot of list and applies retention. Budget
// enforcement runs first: in strict mode an over-budget store fails
// the save; in degraded mode the save is skipped with a warning and
// reported as success (the in-memory replica stays authoritative).
func (s *Store) Save(ctx context.Context, list *tasklist.TaskList) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	usage, err := s.UsageBytes()
	if err != nil {
		return err
	}
	level := EvaluateBudget(usage, s.policy.Retention)
	switch level {
	case BudgetWarning, BudgetCritical:
		s.logger.Warn("snapshot store nearing budget",
			"level", level.String(),
			"usage_bytes", usage,
			"budget_bytes", s.policy.Retention.BudgetBytes)
	case BudgetExceeded:
		if s.policy.Mode == ModeStrict {
			return fmt.Errorf("store budget exhausted: %d of %d bytes used", usage, s.policy.Retention.BudgetBytes)
		}
		s.logger.Warn("snapshot skipped, store budget exhausted",
			"list", list.ID.Short(),
			"usage_bytes", usage,
			"budget_bytes", s.policy.Retention.BudgetBytes)
		return nil
	}

	encoded, err := EncodeSnapshot(list, s.compression)
	if err != nil {
		return err
	}

	directory := s.listDir(list.ID)
	if err := os.MkdirAll(directory, 0o700); err != nil {
		return fmt.Errorf("creating list directory: %w", err)
	}
	name := fmt.Sprintf("%020d%s", s.clk.Now().UnixMilli(), snapshotSuffix)
	if err := writeFileAtomic(filepath.Join(directory, name), encoded); err != nil {
		return err
	}

	if err := s.enforceRetention(list.ID); err != nil {
		// The snapshot itself landed; stale history is an annoyance,
		// not a failure.
		s.logger.Warn("snapshot retention failed", "list", list.ID.Short(), "error", err)
	}
	return nil
}

// LoadLatest returns the newest loadable snapshot of the list. A
// damaged newest snapshot falls back to older history; ErrNotFound
// means nothing was ever saved, ErrCorrupted means everything on disk
// is damaged.
func (s *Store) LoadLatest(ctx context.Context, id ident.ListID) (*tasklist.TaskList, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := s.snapshotNames(id)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("list %s: %w", id.Short(), ErrNotFound)
	}

	var lastErr error
	for i := len(names) - 1; i >= 0; i-- {
		data, err := os.ReadFile(filepath.Join(s.listDir(id), names[i]))
		if err != nil {
			lastErr = err
			continue
		}
		list, err := DecodeSnapshot(data)
		if err != nil {
			s.logger.Warn("skipping unreadable snapshot", "list", id.Short(), "file", names[i], "error", err)
			lastErr = err
			continue
		}
		return list, nil
	}
	return nil, fmt.Errorf("list %s: all %d snapshots unreadable: %w", id.Short(), len(names), lastErr)
}

// Delete removes the list's directory and all its snapshots.
func (s *Store) Delete(id ident.ListID) error {
	if err := os.RemoveAll(s.listDir(id)); err != nil {
		return fmt.Errorf("deleting list directory: %w", err)
	}
	return nil
}

// Lists returns the ids of every list with a directory in the store.
func (s *Store) Lists() ([]ident.ListID, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("reading store root: %w", err)
	}
	var ids []ident.ListID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := ident.ParseListID(entry.Name())
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids, nil
}

// snapshotNames returns the list's snapshot file names sorted oldest
// first. Missing directory means no snapshots.
func (s *Store) snapshotNames(id ident.ListID) ([]string, error) {
	entries, err := os.ReadDir(s.listDir(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading list directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotSuffix) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// writeFileAtomic writes data so that path either keeps its old
// content or holds the complete new content, never a prefix. Write,
// sync, close, rename, then sync the parent directory so the rename
// survives power loss.
func writeFileAtomic(path string, data []byte) error {
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary snapshot file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary snapshot file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary snapshot file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary snapshot file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming snapshot into place: %w", err)
	}

	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}
	return nil
}
