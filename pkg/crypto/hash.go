// Package crypto provides cryptographic primitives for gscd.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/Klingon-tech/klingnet-chain/pkg/types"
)

// Hash computes a SHA-256 hash of the input data.
func Hash(data []byte) types.Hash {
	return sha256.Sum256(data)
}

// DoubleHash computes Hash(Hash(data)).
func DoubleHash(data []byte) types.Hash {
	first := Hash(data)
	return Hash(first[:])
}

// HashConcat hashes the concatenation of two hashes.
// Used for building merkle trees.
func HashConcat(a, b types.Hash) types.Hash {
	var buf [64]byte
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return Hash(buf[:])
}

// addressPublicSuffix and addressPubkeySuffix match the literal domain
// separators a wallet appends before hashing a private key.
const (
	addressPublicSuffix = "GSC_PUBLIC"
	addressPubkeySuffix = "GSC_PUBKEY"
)

// DeriveAddress derives a GSC1 address from a 32-byte private key:
//
//  1. publicKeyHash = SHA-256(priv || "GSC_PUBLIC")
//  2. addressBytes = publicKeyHash[:20]
//  3. checksum = SHA-256(SHA-256("GSC" || addressBytes))[:4]
//  4. full = addressBytes || checksum  (24 bytes)
//  5. address = "GSC1" + hex(full)[:32]
//
// The derivation is deliberately lossy: only the first 16 of the 24
// payload bytes survive into the address string.
func DeriveAddress(priv [32]byte) types.Address {
	publicKeyHash := Hash(append(priv[:], []byte(addressPublicSuffix)...))
	addressBytes := publicKeyHash[:20]

	checksumInput := append([]byte("GSC"), addressBytes...)
	checksum := DoubleHash(checksumInput)

	full := append(append([]byte{}, addressBytes...), checksum[:4]...)
	hexFull := hex.EncodeToString(full)

	return types.Address(types.AddressPrefix + hexFull[:types.AddressHexLen])
}

// DisplayPublicKey returns a display-only "public key" hash for a private
// key. It is not a real elliptic-curve public key and is never used for
// signature verification.
func DisplayPublicKey(priv [32]byte) types.Hash {
	return Hash(append(priv[:], []byte(addressPubkeySuffix)...))
}
