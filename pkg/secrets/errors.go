package secrets

import "errors"

var (
	// ErrInvalidKey is returned when the storage key is not exactly KeySize bytes.
	ErrInvalidKey = errors.New("secrets: storage key must be 32 bytes")

	// ErrEncryptionFailed is returned when sealing the payload fails.
	ErrEncryptionFailed = errors.New("secrets: encryption failed")

	// ErrDecryptionFailed is returned when opening the payload fails,
	// including authentication failures from a wrong key.
	ErrDecryptionFailed = errors.New("secrets: decryption failed")

	// ErrInvalidCiphertext is returned when the ciphertext is too short to
	// contain a nonce.
	ErrInvalidCiphertext = errors.New("secrets: invalid ciphertext format")
)
