// Copyright 2026 The Taskmesh Authors
// SPDX-License-Identifier: Apache-2.0

// Package envelope encrypts deltas for transit through an untrusted
// gossip layer.
//
// Each collaboration group shares a secret distributed by the (out of
// scope) key management layer. Per-message keys are derived with
// HKDF-SHA256 bound to the group id and a key epoch, so rotating the
// epoch retires all earlier traffic keys. The AEAD is
// XChaCha20-Poly1305 with a random 24-byte nonce prepended to the
// ciphertext; the version byte, group id, epoch, and sender are
// additional authenticated data, so a ciphertext replayed into
// another group or epoch, or with a forged sender, fails
// authentication outright.
//
// Open never hands unauthenticated bytes to the caller: any failure
// is ErrDecryptFailed (or a typed mismatch error detected before
// decryption), and the merge engine only ever sees plaintext that
// passed authentication.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/taskmesh-foundation/taskmesh/lib/codec"
	"github.com/taskmesh-foundation/taskmesh/lib/ident"
)

// KeySize is the size of group secrets and derived message keys.
const KeySize = 32

// Version is the envelope format version byte. Authenticated as part
// of the AAD; tampering with it fails decryption.
const Version byte = 0x01

// hkdfInfoDelta is the HKDF info prefix for delta traffic keys.
// Changing it invalidates all ciphertext in flight.
var hkdfInfoDelta = []byte("taskmesh.delta.enc.v1")

// aadContext is the AAD domain prefix after the version byte.
var aadContext = []byte("taskmesh.delta")

// GroupID identifies a collaboration group. Opaque here; assigned by
// the identity layer.
type GroupID [32]byte

func (g GroupID) String() string { return fmt.Sprintf("%x", g[:]) }

// Typed rejection errors. Group and epoch mismatches are detectable
// before decryption; everything after that is ErrDecryptFailed with
// no further detail, by design of the AEAD.
var (
	// ErrDecryptFailed reports an envelope that failed
	// authentication: wrong key, tampered ciphertext, forged sender,
	// or a truncated frame.
	ErrDecryptFailed = errors.New("envelope decryption failed")

	// ErrGroupMismatch reports an envelope addressed to a different
	// group.
	ErrGroupMismatch = errors.New("envelope for a different group")

	// ErrEpochMismatch reports an envelope sealed under a different
	// key epoch.
	ErrEpochMismatch = errors.New("envelope from a different key epoch")
)

// Sealed is the wire form of an encrypted delta. Group, epoch, and
// sender travel in the clear (the gossip layer routes on them) but
// are authenticated: altering any of them breaks Open.
type Sealed struct {
	GroupID    GroupID      `cbor:"group_id"`
	Epoch      uint64       `cbor:"epoch"`
	Sender     ident.PeerID `cbor:"sender"`
	Ciphertext []byte       `cbor:"ciphertext"`
}

// deriveKey expands the group secret into the traffic key for
// (group, epoch).
func deriveKey(secret []byte, group GroupID, epoch uint64) ([]byte, error) {
	info := make([]byte, 0, len(hkdfInfoDelta)+len(group)+8)
	info = append(info, hkdfInfoDelta...)
	info = append(info, group[:]...)
	info = binary.LittleEndian.AppendUint64(info, epoch)

	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, info), key); err != nil {
		return nil, fmt.Errorf("deriving traffic key: %w", err)
	}
	return key, nil
}

// buildAAD assembles the authenticated context: version byte, domain
// string, group, epoch, sender.
func buildAAD(group GroupID, epoch uint64, sender ident.PeerID) []byte {
	aad := make([]byte, 0, 1+len(aadContext)+len(group)+8+len(sender))
	aad = append(aad, Version)
	aad = append(aad, aadContext...)
	aad = append(aad, group[:]...)
	aad = binary.LittleEndian.AppendUint64(aad, epoch)
	aad = append(aad, sender[:]...)
	return aad
}

// Seal encrypts plaintext for the group under the given epoch's
// traffic key. The secret must be KeySize bytes.
func Seal(plaintext []byte, group GroupID, epoch uint64, sender ident.PeerID, secret []byte) (*Sealed, error) {
	if len(secret) != KeySize {
		return nil, fmt.Errorf("group secret is %d bytes, want %d", len(secret), KeySize)
	}
	key, err := deriveKey(secret, group, epoch)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("generating random nonce: %w", err)
	}

	// Ciphertext layout: nonce || sealed bytes.
	output := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	copy(output, nonce[:])
	output = aead.Seal(output, nonce[:], plaintext, buildAAD(group, epoch, sender))

	return &Sealed{
		GroupID:    group,
		Epoch:      epoch,
		Sender:     sender,
		Ciphertext: output,
	}, nil
}

// Open authenticates and decrypts an envelope. group and epoch are
// the receiver's expectations: a mismatch is reported before any
// cryptography runs, so callers can distinguish routing errors from
// hostile ciphertext.
func Open(sealed *Sealed, group GroupID, epoch uint64, secret []byte) ([]byte, error) {
	if sealed.GroupID != group {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrGroupMismatch, sealed.GroupID, group)
	}
	if sealed.Epoch != epoch {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrEpochMismatch, sealed.Epoch, epoch)
	}
	if len(secret) != KeySize {
		return nil, fmt.Errorf("group secret is %d bytes, want %d", len(secret), KeySize)
	}
	if len(sealed.Ciphertext) < chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: frame too short", ErrDecryptFailed)
	}

	key, err := deriveKey(secret, group, epoch)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := sealed.Ciphertext[:chacha20poly1305.NonceSizeX]
	ciphertext := sealed.Ciphertext[chacha20poly1305.NonceSizeX:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, buildAAD(group, epoch, sealed.Sender))
	if err != nil {
		// No detail: the AEAD does not say why, and neither do we.
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// Encode serializes an envelope for the gossip layer.
func (s *Sealed) Encode() ([]byte, error) {
	return codec.Marshal(s)
}

// Decode parses an envelope received from the gossip layer. A frame
// that does not parse is treated as tampering.
func Decode(data []byte) (*Sealed, error) {
	var sealed Sealed
	if err := codec.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("%w: undecodable frame", ErrDecryptFailed)
	}
	return &sealed, nil
}
