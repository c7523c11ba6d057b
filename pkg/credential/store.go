package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/cookiekeeper/pkg/secrets"
)

// Store persists credential records. Implementations must be safe for
// concurrent use; the keeper serializes its own writes but other processes
// may read concurrently.
type Store interface {
	// Load returns the persisted record, or ErrNotFound when none exists.
	Load(ctx context.Context) (*Record, error)

	// Save persists the record, replacing any previous one.
	Save(ctx context.Context, record *Record) error
}

// FileStore persists the record as a JSON file. Writes go through a temp
// file in the same directory followed by rename, so readers never observe a
// partially written record. With an encryption key configured the JSON
// payload is sealed with AES-GCM before it touches disk.
type FileStore struct {
	path string
	key  []byte
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithEncryptionKey enables encryption at rest with a 32-byte storage key.
func WithEncryptionKey(key []byte) FileOption {
	if len(key) != secrets.KeySize {
		panic("WithEncryptionKey: key must be 32 bytes")
	}
	return func(s *FileStore) { s.key = key }
}

// NewFileStore creates a file-backed store at path.
func NewFileStore(path string, opts ...FileOption) *FileStore {
	if path == "" {
		panic("NewFileStore: path cannot be empty")
	}
	s := &FileStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads and decodes the persisted record.
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read credential file: %w", err)
	}

	if s.key != nil {
		data, err = secrets.DecryptBytes(s.key, data)
		if err != nil {
			return nil, errors.Join(ErrCorruptRecord, err)
		}
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// Save atomically writes the record.
func (s *FileStore) Save(_ context.Context, record *Record) error {
	if record == nil || len(record.Entries) == 0 {
		return ErrEmptyRecord
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential record: %w", err)
	}

	if s.key != nil {
		data, err = secrets.EncryptBytes(s.key, data)
		if err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credential-*")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credential file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod credential file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credential file: %w", err)
	}
	return nil
}
