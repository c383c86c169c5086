// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

package ident

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures that the same input bytes produce different
// hashes in different contexts, preventing cross-domain collisions.
type domainKey [32]byte

// Domain separation keys. These are fixed constants — changing them
// invalidates all existing identifiers in that domain. The byte values
// are the ASCII encoding of the domain name, zero-padded to 32 bytes,
// which keeps the keys inspectable in hex dumps without sacrificing
// any cryptographic property.
var (
	taskDomainKey = domainKey{
		't', 'a', 's', 'k', 'm', 'e', 's', 'h', '.', 't', 'a', 's', 'k', '.', 'i', 'd',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}

	listDomainKey = domainKey{
		't', 'a', 's', 'k', 'm', 'e', 's', 'h', '.', 'l', 'i', 's', 't', '.', 'i', 'd',
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)

// DeriveTaskID computes the content-addressed identifier for a task
// from its immutable creation fields. Two agents creating tasks with
// the same title at the same logical timestamp still get distinct IDs
// as long as their AgentIDs differ.
func DeriveTaskID(title string, creator AgentID, timestamp uint64) TaskID {
	return TaskID(derive(taskDomainKey, title, creator, timestamp))
}

// DeriveListID computes the content-addressed identifier for a task
// list from its immutable creation fields.
func DeriveListID(name string, creator AgentID, timestamp uint64) ListID {
	return ListID(derive(listDomainKey, name, creator, timestamp))
}

// derive hashes name || creator || timestamp(LE) under the given
// domain key. The name length is prefixed so that ("ab", creator) and
// ("a", "b"+creator-ish inputs) cannot collide across field
// boundaries.
func derive(key domainKey, name string, creator AgentID, timestamp uint64) [32]byte {
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("ident: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(name)))
	hasher.Write(scratch[:])
	hasher.Write([]byte(name))
	hasher.Write(creator[:])
	binary.LittleEndian.PutUint64(scratch[:], timestamp)
	hasher.Write(scratch[:])

	var id [32]byte
	copy(id[:], hasher.Sum(nil))
	return id
}
