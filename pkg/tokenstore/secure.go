package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// ErrDecrypt is returned when a stored value cannot be opened with the
// configured passphrase.
var ErrDecrypt = errors.New("tokenstore: cannot decrypt value")

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32
)

// SecureConfig configures the encrypted file backend.
type SecureConfig struct {
	Path       string
	Passphrase string

	// ScryptN is the scrypt cost parameter. Zero means 1<<15.
	ScryptN int
}

// secureFile is the on-disk layout: one salt per file and sealed values.
type secureFile struct {
	Salt    string            `json:"salt"`
	Entries map[string]string `json:"entries"`
}

// SecureStore keeps values in a file, each sealed with NaCl secretbox under a
// key derived from the passphrase with scrypt.
type SecureStore struct {
	mu   sync.Mutex
	path string
	salt []byte
	key  [keySize]byte
}

func NewSecureStore(cfg SecureConfig) (*SecureStore, error) {
	if cfg.Passphrase == "" {
		return nil, fmt.Errorf("tokenstore: secure backend requires a passphrase")
	}
	if _, err := NewFileStore(cfg.Path); err != nil {
		return nil, err
	}
	if cfg.ScryptN == 0 {
		cfg.ScryptN = 1 << 15
	}

	var file secureFile
	if err := readJSON(cfg.Path, &file); err != nil {
		return nil, err
	}

	var salt []byte
	if file.Salt != "" {
		decoded, err := base64.StdEncoding.DecodeString(file.Salt)
		if err != nil {
			return nil, fmt.Errorf("tokenstore: bad salt: %w", err)
		}
		salt = decoded
	} else {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("tokenstore: salt: %w", err)
		}
	}

	derived, err := scrypt.Key([]byte(cfg.Passphrase), salt, cfg.ScryptN, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("tokenstore: derive key: %w", err)
	}

	s := &SecureStore{path: cfg.Path, salt: salt}
	copy(s.key[:], derived)
	return s, nil
}

func (s *SecureStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return "", err
	}
	sealed, ok := file.Entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return s.open(sealed)
}

func (s *SecureStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	file.Entries[key] = sealed
	return writeJSON(s.path, file)
}

func (s *SecureStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := file.Entries[key]; !ok {
		return nil
	}
	delete(file.Entries, key)
	return writeJSON(s.path, file)
}

func (s *SecureStore) Name() string { return BackendSecure }

func (s *SecureStore) Close() error {
	s.mu.Lock()
	for i := range s.key {
		s.key[i] = 0
	}
	s.mu.Unlock()
	return nil
}

func (s *SecureStore) load() (*secureFile, error) {
	file := &secureFile{}
	if err := readJSON(s.path, file); err != nil {
		return nil, err
	}
	if file.Entries == nil {
		file.Entries = make(map[string]string)
	}
	file.Salt = base64.StdEncoding.EncodeToString(s.salt)
	return file, nil
}

func (s *SecureStore) seal(value string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("tokenstore: nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(value), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *SecureStore) open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(data) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
