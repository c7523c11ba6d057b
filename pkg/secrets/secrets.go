package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// EncryptBytes seals data under the storage key using AES-256-GCM.
// The returned ciphertext is nonce || sealed data.
func EncryptBytes(key, data []byte) ([]byte, error) {
	aead, err := newAEAD(key, ErrEncryptionFailed)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Join(ErrEncryptionFailed, err)
	}

	return aead.Seal(nonce, nonce, data, nil), nil
}

// DecryptBytes opens ciphertext produced by EncryptBytes. A wrong key or a
// tampered payload fails authentication and returns ErrDecryptionFailed.
func DecryptBytes(key, ciphertext []byte) ([]byte, error) {
	aead, err := newAEAD(key, ErrDecryptionFailed)
	if err != nil {
		return nil, err
	}

	nonceSize := aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrInvalidCiphertext
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Join(ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// newAEAD builds the AES-GCM cipher, wrapping setup failures with the
// stage-appropriate sentinel.
func newAEAD(key []byte, sentinel error) (cipher.AEAD, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Join(sentinel, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Join(sentinel, err)
	}
	return aead, nil
}
