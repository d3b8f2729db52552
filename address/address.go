// Package address derives versioned, checksummed hash160 addresses from
// secp256k1 public keys.
package address

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/weiihann/addrbench/base58"
)

const (
	// Version is the leading byte of every address payload.
	Version byte = 0x00

	// HashLen is the size of a hash160 digest.
	HashLen = 20
	// ChecksumLen is the number of double-SHA-256 bytes appended.
	ChecksumLen = 4
	// PayloadLen is version + hash160 + checksum.
	PayloadLen = 1 + HashLen + ChecksumLen
)

var (
	// ErrKeyGeneration wraps failures to create or load a private key.
	ErrKeyGeneration = errors.New("key generation failed")
	// ErrHash reports a digest of unexpected size.
	ErrHash = errors.New("hash computation failed")
	// ErrInvalidLength is returned for payloads that are not PayloadLen bytes.
	ErrInvalidLength = errors.New("invalid address length")
	// ErrInvalidVersion is returned when the leading byte is not Version.
	ErrInvalidVersion = errors.New("invalid address version")
	// ErrChecksumMismatch is returned when the trailing bytes do not match.
	ErrChecksumMismatch = errors.New("address checksum mismatch")
)

// Address is the 25-byte binary form of an address.
type Address [PayloadLen]byte

// String returns the base58 text form.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Hash160 returns the 20-byte public key hash.
func (a Address) Hash160() []byte {
	return a[1 : 1+HashLen]
}

// Checksum returns the trailing 4 bytes.
func (a Address) Checksum() []byte {
	return a[1+HashLen:]
}

// Verify checks the version byte and recomputes the checksum over the
// first 21 bytes.
func (a Address) Verify() error {
	if a[0] != Version {
		return fmt.Errorf("%w: 0x%02x", ErrInvalidVersion, a[0])
	}

	want := Checksum(a[:1+HashLen])
	if !bytes.Equal(a.Checksum(), want[:]) {
		return fmt.Errorf("%w: have %x, want %x",
			ErrChecksumMismatch, a.Checksum(), want)
	}

	return nil
}

// Parse decodes and validates a base58 address.
func Parse(s string) (Address, error) {
	var a Address

	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("decode address: %w", err)
	}

	if len(raw) != PayloadLen {
		return a, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(raw))
	}

	copy(a[:], raw)

	if err := a.Verify(); err != nil {
		return a, err
	}

	return a, nil
}

// DoubleSHA256 returns sha256(sha256(b)).
func DoubleSHA256(b []byte) [sha256.Size]byte {
	first := sha256.Sum256(b)

	return sha256.Sum256(first[:])
}

// Checksum returns the first 4 bytes of DoubleSHA256(versioned).
func Checksum(versioned []byte) [ChecksumLen]byte {
	var sum [ChecksumLen]byte

	h := DoubleSHA256(versioned)
	copy(sum[:], h[:ChecksumLen])

	return sum
}

// FromHash160 assembles an address from a 20-byte public key hash.
func FromHash160(hash []byte) (Address, error) {
	var a Address

	if len(hash) != HashLen {
		return a, fmt.Errorf("%w: hash160 has %d bytes", ErrHash, len(hash))
	}

	a[0] = Version
	copy(a[1:], hash)

	sum := Checksum(a[:1+HashLen])
	copy(a[1+HashLen:], sum[:])

	return a, nil
}

// FromPublicKey derives the address of a serialized public key using
// fresh hash state. Generator reuses its hash state instead.
func FromPublicKey(pubKey []byte) (Address, error) {
	return newHasher().address(pubKey)
}
