// Package secrets provides symmetric encryption for credential payloads at
// rest. Session cookies are bearer credentials: anyone holding the persisted
// file can impersonate the session, so stores may encrypt the serialized
// record before writing it to disk.
//
// Encryption is AES-256-GCM under a single 32-byte storage key. Keys can be
// generated randomly (GenerateKey) or derived deterministically from an
// operator passphrase (DeriveKey, HKDF-SHA256 with a fixed domain label).
//
// # Usage
//
//	key := secrets.DeriveKey("correct horse battery staple")
//
//	ciphertext, err := secrets.EncryptBytes(key, payload)
//	// ...
//	plaintext, err := secrets.DecryptBytes(key, ciphertext)
//
// The ciphertext layout is nonce || sealed data; DecryptBytes rejects
// anything shorter than a nonce with ErrInvalidCiphertext.
package secrets
