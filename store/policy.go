// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how the store reacts when the byte budget is exhausted.
type Mode string

const (
	// ModeStrict fails saves that would exceed the budget. The
	// replica keeps its dirty state and surfaces the error.
	ModeStrict Mode = "strict"

	// ModeDegraded skips saves that would exceed the budget, logging
	// a warning. In-memory state keeps working; durability degrades.
	ModeDegraded Mode = "degraded"
)

// CheckpointPolicy tunes when a dirty list is flushed to disk.
type CheckpointPolicy struct {
	// MutationThreshold flushes after this many mutations since the
	// last save, regardless of time.
	MutationThreshold int `yaml:"mutation_threshold"`

	// DirtyTimeFloor flushes once any unsaved change is at least
	// this old, regardless of count.
	DirtyTimeFloor time.Duration `yaml:"dirty_time_floor"`

	// DebounceFloor suppresses flushes closer together than this, so
	// a mutation burst becomes one write.
	DebounceFloor time.Duration `yaml:"debounce_floor"`
}

// RetentionPolicy tunes how much snapshot history the store keeps.
type RetentionPolicy struct {
	// Keep is the number of snapshots retained per list.
	Keep int `yaml:"keep"`

	// BudgetBytes caps the total size of the store root.
	BudgetBytes int64 `yaml:"budget_bytes"`

	// WarnPercent and CriticalPercent are the usage levels (percent
	// of BudgetBytes) at which the store starts logging warnings.
	WarnPercent     int `yaml:"warn_percent"`
	CriticalPercent int `yaml:"critical_percent"`
}

// Policy is the persistence configuration, loadable from YAML.
type Policy struct {
	Mode       Mode             `yaml:"mode"`
	Checkpoint CheckpointPolicy `yaml:"checkpoint"`
	Retention  RetentionPolicy  `yaml:"retention"`
}

// DefaultPolicy returns the tuning used when no policy file is given.
func DefaultPolicy() Policy {
	return Policy{
		Mode: ModeStrict,
		Checkpoint: CheckpointPolicy{
			MutationThreshold: 32,
			DirtyTimeFloor:    5 * time.Minute,
			DebounceFloor:     2 * time.Second,
		},
		Retention: RetentionPolicy{
			Keep:            3,
			BudgetBytes:     256 << 20,
			WarnPercent:     80,
			CriticalPercent: 90,
		},
	}
}

// LoadPolicy reads a YAML policy file, fills unset fields from
// [DefaultPolicy], and validates the result.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("reading policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses YAML policy bytes with defaults and validation.
func ParsePolicy(data []byte) (Policy, error) {
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parsing policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

// Validate checks the policy for values the store cannot operate with.
func (p Policy) Validate() error {
	switch p.Mode {
	case ModeStrict, ModeDegraded:
	default:
		return fmt.Errorf("policy: unknown mode %q", p.Mode)
	}
	if p.Checkpoint.MutationThreshold <= 0 {
		return fmt.Errorf("policy: mutation_threshold must be positive, got %d", p.Checkpoint.MutationThreshold)
	}
	if p.Checkpoint.DirtyTimeFloor <= 0 {
		return fmt.Errorf("policy: dirty_time_floor must be positive, got %v", p.Checkpoint.DirtyTimeFloor)
	}
	if p.Checkpoint.DebounceFloor <= 0 {
		return fmt.Errorf("policy: debounce_floor must be positive, got %v", p.Checkpoint.DebounceFloor)
	}
	if p.Retention.Keep <= 0 {
		return fmt.Errorf("policy: retention keep must be positive, got %d", p.Retention.Keep)
	}
	if p.Retention.BudgetBytes <= 0 {
		return fmt.Errorf("policy: budget_bytes must be positive, got %d", p.Retention.BudgetBytes)
	}
	if p.Retention.WarnPercent <= 0 || p.Retention.WarnPercent > 100 {
		return fmt.Errorf("policy: warn_percent out of range: %d", p.Retention.WarnPercent)
	}
	if p.Retention.CriticalPercent < p.Retention.WarnPercent || p.Retention.CriticalPercent > 100 {
		return fmt.Errorf("policy: critical_percent out of range: %d", p.Retention.CriticalPercent)
	}
	return nil
}
