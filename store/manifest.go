// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// manifestName is the marker file at the store root. Its presence
// distinguishes "a taskmesh store" from "some directory", and its
// schema version gates future layout migrations.
const manifestName = "store.manifest.json"

// manifestSchemaVersion is the store layout version.
const manifestSchemaVersion = 1

// ErrManifestMissing reports a store root without a manifest: either
// the directory is not a store or initialization was interrupted
// before the manifest write.
var ErrManifestMissing = errors.New("store manifest missing")

// Manifest describes a store root. JSON because it is operator-facing
// and occasionally read by hand.
type Manifest struct {
	SchemaVersion int    `json:"schema_version"`
	StoreID       string `json:"store_id"`
}

// ensureManifest writes the manifest on first open and verifies it on
// every later open.
func ensureManifest(root string) error {
	path := filepath.Join(root, manifestName)

	existing, err := readManifest(path)
	if err == nil {
		if existing.SchemaVersion != manifestSchemaVersion {
			return fmt.Errorf("store manifest schema %d not supported (want %d)",
				existing.SchemaVersion, manifestSchemaVersion)
		}
		return nil
	}
	if !errors.Is(err, ErrManifestMissing) {
		return err
	}

	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return fmt.Errorf("generating store id: %w", err)
	}
	manifest := Manifest{
		SchemaVersion: manifestSchemaVersion,
		StoreID:       hex.EncodeToString(id[:]),
	}
	encoded, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store manifest: %w", err)
	}
	if err := writeFileAtomic(path, append(encoded, '\n')); err != nil {
		return fmt.Errorf("writing store manifest: %w", err)
	}
	return nil
}

// readManifest loads and validates the manifest at path.
func readManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Manifest{}, ErrManifestMissing
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("reading store manifest: %w", err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing store manifest: %w", err)
	}
	if manifest.StoreID == "" {
		return Manifest{}, fmt.Errorf("store manifest has no store id")
	}
	return manifest, nil
}

// Manifest returns the manifest of an opened store.
func (s *Store) Manifest() (Manifest, error) {
	return readManifest(filepath.Join(s.root, manifestName))
}
