package tokenstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, TokenKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty store, got %v", err)
	}

	if err := s.Set(ctx, TokenKey, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := s.Get(ctx, TokenKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "abc" {
		t.Errorf("Expected 'abc', got %q", v)
	}

	if err := s.Set(ctx, TokenKey, "def"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	if v, _ := s.Get(ctx, TokenKey); v != "def" {
		t.Errorf("Expected 'def' after overwrite, got %q", v)
	}

	if err := s.Delete(ctx, TokenKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, TokenKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, TokenKey); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	testStoreContract(t, s)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Set(ctx, TokenKey, "abc"); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Expected nothing stored, got %d keys", s.Len())
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session", "tokens.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	testStoreContract(t, s)
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	ctx := context.Background()

	first, _ := NewFileStore(path)
	if err := first.Set(ctx, TokenKey, "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected mode 0600, got %o", perm)
	}

	second, _ := NewFileStore(path)
	if v, err := second.Get(ctx, TokenKey); err != nil || v != "abc" {
		t.Errorf("Expected 'abc' from second instance, got %q (%v)", v, err)
	}
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Error("Expected error for empty path")
	}
}

func newTestSecureStore(t *testing.T, path, passphrase string) *SecureStore {
	t.Helper()
	s, err := NewSecureStore(SecureConfig{Path: path, Passphrase: passphrase, ScryptN: 1 << 10})
	if err != nil {
		t.Fatalf("NewSecureStore failed: %v", err)
	}
	return s
}

func TestSecureStore(t *testing.T) {
	s := newTestSecureStore(t, filepath.Join(t.TempDir(), "tokens.sealed"), "hunter2")
	defer s.Close()
	testStoreContract(t, s)
}

func TestSecureStore_EncryptsAtRest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.sealed")
	ctx := context.Background()

	s := newTestSecureStore(t, path, "hunter2")
	if err := s.Set(ctx, TokenKey, "super-secret-token"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if strings.Contains(string(raw), "super-secret-token") {
		t.Error("Token stored in plaintext")
	}

	reopened := newTestSecureStore(t, path, "hunter2")
	if v, err := reopened.Get(ctx, TokenKey); err != nil || v != "super-secret-token" {
		t.Errorf("Expected token from reopened store, got %q (%v)", v, err)
	}

	wrong := newTestSecureStore(t, path, "wrong")
	if _, err := wrong.Get(ctx, TokenKey); !errors.Is(err, ErrDecrypt) {
		t.Errorf("Expected ErrDecrypt with wrong passphrase, got %v", err)
	}
}

func TestNewSecureStore_RequiresPassphrase(t *testing.T) {
	_, err := NewSecureStore(SecureConfig{Path: filepath.Join(t.TempDir(), "x")})
	if err == nil {
		t.Error("Expected error for empty passphrase")
	}
}

func TestNew(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"default", Config{}, BackendMemory, false},
		{"memory", Config{Backend: BackendMemory}, BackendMemory, false},
		{"file", Config{Backend: BackendFile, Path: filepath.Join(dir, "f.json")}, BackendFile, false},
		{"secure", Config{Backend: BackendSecure, Path: filepath.Join(dir, "s.json"), Passphrase: "p"}, BackendSecure, false},
		{"unknown", Config{Backend: "keychain"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if tt.wantErr {
				return
			}
			defer s.Close()
			if s.Name() != tt.want {
				t.Errorf("Expected backend %s, got %s", tt.want, s.Name())
			}
		})
	}
}

func TestTokenHelpers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	token, err := GetToken(ctx, s)
	if err != nil || token != "" {
		t.Errorf("Expected empty token without error, got %q (%v)", token, err)
	}

	if err := SetToken(ctx, s, "abc"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}
	if token, _ := GetToken(ctx, s); token != "abc" {
		t.Errorf("Expected 'abc', got %q", token)
	}

	if err := DeleteToken(ctx, s); err != nil {
		t.Fatalf("DeleteToken failed: %v", err)
	}
	if token, _ := GetToken(ctx, s); token != "" {
		t.Errorf("Expected token cleared, got %q", token)
	}
}
