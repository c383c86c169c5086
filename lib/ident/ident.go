// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package ident defines the identifier types used across Taskmesh.
//
// AgentID and PeerID are opaque 32-byte actor identifiers assigned by
// the external identity layer. TaskID and ListID are content-addressed
// BLAKE3 digests derived from creation-time fields, so independently
// created tasks never collide and an identifier never changes over the
// life of the object it names.
//
// All four types are comparable, usable as map keys, and totally
// ordered by bytes.Compare. The canonical text form is 64-character
// lowercase hex; the raw 32-byte form is used inside CBOR structs.
package ident

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// AgentID identifies an agent within a collaboration group. Assigned
// by the identity layer; opaque to this module.
type AgentID [32]byte

// PeerID identifies a replica endpoint on the mesh. A single agent may
// run several replicas, each with its own PeerID.
type PeerID [32]byte

// TaskID is the content-addressed identifier of a task. Derived once
// at creation via [DeriveTaskID] and never reassigned.
type TaskID [32]byte

// ListID is the content-addressed identifier of a task list. Derived
// once at creation via [DeriveListID].
type ListID [32]byte

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
func (a AgentID) Compare(b AgentID) int { return bytes.Compare(a[:], b[:]) }

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
func (a PeerID) Compare(b PeerID) int { return bytes.Compare(a[:], b[:]) }

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
func (a TaskID) Compare(b TaskID) int { return bytes.Compare(a[:], b[:]) }

// Compare returns -1, 0, or 1 ordering a before, equal to, or after b.
func (a ListID) Compare(b ListID) int { return bytes.Compare(a[:], b[:]) }

// IsZero reports whether a is the all-zero identifier.
func (a AgentID) IsZero() bool { return a == AgentID{} }

// IsZero reports whether a is the all-zero identifier.
func (a PeerID) IsZero() bool { return a == PeerID{} }

// IsZero reports whether a is the all-zero identifier.
func (a TaskID) IsZero() bool { return a == TaskID{} }

// IsZero reports whether a is the all-zero identifier.
func (a ListID) IsZero() bool { return a == ListID{} }

func (a AgentID) String() string { return hex.EncodeToString(a[:]) }
func (a PeerID) String() string  { return hex.EncodeToString(a[:]) }
func (a TaskID) String() string  { return hex.EncodeToString(a[:]) }
func (a ListID) String() string  { return hex.EncodeToString(a[:]) }

// Short returns the first 8 hex characters, for log output.
func (a AgentID) Short() string { return a.String()[:8] }

// Short returns the first 8 hex characters, for log output.
func (a PeerID) Short() string { return a.String()[:8] }

// Short returns the first 8 hex characters, for log output.
func (a TaskID) Short() string { return a.String()[:8] }

// Short returns the first 8 hex characters, for log output.
func (a ListID) Short() string { return a.String()[:8] }

// MarshalText implements encoding.TextMarshaler. Identifiers encode as
// 64-character lowercase hex in JSON and in CBOR map keys.
func (a AgentID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// MarshalText implements encoding.TextMarshaler.
func (a PeerID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// MarshalText implements encoding.TextMarshaler.
func (a TaskID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// MarshalText implements encoding.TextMarshaler.
func (a ListID) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AgentID) UnmarshalText(text []byte) error {
	decoded, err := parseHex32("agent id", text)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *PeerID) UnmarshalText(text []byte) error {
	decoded, err := parseHex32("peer id", text)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *TaskID) UnmarshalText(text []byte) error {
	decoded, err := parseHex32("task id", text)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *ListID) UnmarshalText(text []byte) error {
	decoded, err := parseHex32("list id", text)
	if err != nil {
		return err
	}
	*a = decoded
	return nil
}

// ParseAgentID parses the 64-character hex form of an AgentID.
func ParseAgentID(text string) (AgentID, error) {
	id, err := parseHex32("agent id", []byte(text))
	return AgentID(id), err
}

// ParsePeerID parses the 64-character hex form of a PeerID.
func ParsePeerID(text string) (PeerID, error) {
	id, err := parseHex32("peer id", []byte(text))
	return PeerID(id), err
}

// ParseTaskID parses the 64-character hex form of a TaskID.
func ParseTaskID(text string) (TaskID, error) {
	id, err := parseHex32("task id", []byte(text))
	return TaskID(id), err
}

// ParseListID parses the 64-character hex form of a ListID.
func ParseListID(text string) (ListID, error) {
	id, err := parseHex32("list id", []byte(text))
	return ListID(id), err
}

func parseHex32(kind string, text []byte) ([32]byte, error) {
	var id [32]byte
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return id, fmt.Errorf("parsing %s: %w", kind, err)
	}
	if len(decoded) != 32 {
		return id, fmt.Errorf("%s is %d bytes, want 32", kind, len(decoded))
	}
	copy(id[:], decoded)
	return id, nil
}
