package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the required storage key length: 256 bits for AES-256.
const KeySize = 32

// derivationLabel provides domain separation so a passphrase reused elsewhere
// never yields the same key material.
const derivationLabel = "cookiekeeper-storage-v1"

// GenerateKey creates a new random 32-byte storage key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKey deterministically derives a storage key from an operator
// passphrase via HKDF-SHA256. The same passphrase always yields the same key,
// which lets deployments configure encryption through the environment without
// managing raw key files.
func DeriveKey(passphrase string) []byte {
	reader := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(derivationLabel))
	key := make([]byte, KeySize)
	// Read from HKDF over SHA-256 cannot fail for a 32-byte request.
	if _, err := io.ReadFull(reader, key); err != nil {
		panic(err)
	}
	return key
}

// validateKey checks the storage key length.
func validateKey(key []byte) error {
	if len(key) != KeySize {
		return ErrInvalidKey
	}
	return nil
}
