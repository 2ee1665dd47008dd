package wallet

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

// Encryption constants.
const (
	SaltSize = 32
	// Encrypted format: [salt(32)][iterations(4)][nonce(24)][ciphertext...]
	headerSize = SaltSize + 4

	// MinIterations is the PBKDF2 iteration count of DefaultParams,
	// which the keystore always uses. Encrypt uses whatever count its
	// caller passes, and Decrypt uses the count recorded in its input.
	MinIterations = 100_000
)

// EncryptionParams holds PBKDF2 parameters.
type EncryptionParams struct {
	Iterations uint32
}

// DefaultParams returns the recommended PBKDF2 parameters.
func DefaultParams() EncryptionParams {
	return EncryptionParams{Iterations: MinIterations}
}

// deriveKey runs PBKDF2-HMAC-SHA256 to derive a 32-byte encryption key
// from a password and salt.
func deriveKey(password, salt []byte, params EncryptionParams) []byte {
	return pbkdf2.Key(password, salt, int(params.Iterations), chacha20poly1305.KeySize, sha256.New)
}

// Encrypt encrypts data with password using PBKDF2 + XChaCha20-Poly1305.
//
// Output format: salt(32) | iterations(4) | nonce(24) | ciphertext
func Encrypt(data, password []byte, params EncryptionParams) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return encryptWithSalt(data, password, salt, params)
}

// encryptWithSalt encrypts data using a caller-supplied salt, so a
// wallet can reuse a single salt across multiple encrypted fields.
func encryptWithSalt(data, password, salt []byte, params EncryptionParams) ([]byte, error) {
	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := aead.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, headerSize+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = binary.LittleEndian.AppendUint32(out, params.Iterations)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt decrypts data encrypted by Encrypt with the given password.
func Decrypt(encrypted, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	minSize := headerSize + nonceSize + chacha20poly1305.Overhead
	if len(encrypted) < minSize {
		return nil, fmt.Errorf("encrypted data too short: %d bytes, need at least %d", len(encrypted), minSize)
	}

	salt := encrypted[:SaltSize]
	iterations := binary.LittleEndian.Uint32(encrypted[SaltSize:])
	params := EncryptionParams{Iterations: iterations}

	nonce := encrypted[headerSize : headerSize+nonceSize]
	ciphertext := encrypted[headerSize+nonceSize:]

	key := deriveKey(password, salt, params)
	defer zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// seal encrypts plaintext with an already-derived key, prefixing a
// fresh random nonce. Used to encrypt several fields of the same
// wallet under one key+salt without re-running PBKDF2 per field.
func seal(key, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return append(nonce, aead.Seal(nil, nonce, plaintext, nil)...), nil
}

// open decrypts data produced by seal with the same key.
func open(key, data []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonceSize := aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
