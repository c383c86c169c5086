// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// enforceRetention trims the list's history to the newest Keep
// snapshots and sweeps stale temp files from interrupted writes.
func (s *Store) enforceRetention(id ident.ListID) error {
	names, err := s.snapshotNames(id)
	if err != nil {
		return err
	}
	keep := s.policy.Retention.Keep
	if excess := len(names) - keep; excess > 0 {
		for _, name := range names[:excess] {
			if err := os.Remove(filepath.Join(s.listDir(id), name)); err != nil {
				return fmt.Errorf("removing expired snapshot %s: %w", name, err)
			}
		}
	}

	entries, err := os.ReadDir(s.listDir(id))
	if err != nil {
		return fmt.Errorf("reading list directory: %w", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			os.Remove(filepath.Join(s.listDir(id), entry.Name()))
		}
	}
	return nil
}

// Prune applies retention across the whole store and removes orphan
// directories: list directories with no snapshots left, and entries
// that are not list directories at all.
func (s *Store) Prune() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("reading store root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := ident.ParseListID(entry.Name())
		if err != nil {
			s.logger.Warn("removing foreign directory from store root", "name", entry.Name())
			os.RemoveAll(filepath.Join(s.root, entry.Name()))
			continue
		}
		if err := s.enforceRetention(id); err != nil {
			return err
		}
		names, err := s.snapshotNames(id)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			if err := os.Remove(s.listDir(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("removing orphan list directory: %w", err)
			}
		}
	}
	return nil
}

// UsageBytes returns the total size of every file under the store
// root.
func (s *Store) UsageBytes() (int64, error) {
	var total int64
	err := filepath.WalkDir(s.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// A file can vanish mid-walk during retention.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("measuring store usage: %w", err)
	}
	return total, nil
}
