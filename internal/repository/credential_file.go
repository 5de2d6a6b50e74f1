package repository

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pride/internal/crypto"
	"pride/internal/models"

	"go.uber.org/zap"
)

// FileCredentialStore keeps credentials in a flat file, one JSON object per
// line. Records are only ever appended. The whole file is indexed in memory
// at open; every append is fsynced before Register returns.
type FileCredentialStore struct {
	mu     sync.RWMutex
	path   string
	file   *os.File
	hashes map[string]string
	hasher crypto.PasswordHasher
	logger *zap.Logger
}

type fileRecord struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewFileCredentialStore opens (creating if needed) the credential file at path.
func NewFileCredentialStore(path string, hasher crypto.PasswordHasher, logger *zap.Logger) (*FileCredentialStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s := &FileCredentialStore{
		path:   path,
		file:   file,
		hashes: make(map[string]string),
		hasher: hasher,
		logger: logger,
	}

	if err := s.load(); err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	logger.Info("Credential store opened", zap.String("path", path), zap.Int("accounts", len(s.hashes)))
	return s, nil
}

func (s *FileCredentialStore) load() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	scanner := bufio.NewScanner(s.file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var rec fileRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil || rec.Username == "" {
			s.logger.Warn("Skipping malformed credential record", zap.Int("line", line))
			continue
		}
		// First record wins; later duplicates can only come from manual edits.
		if _, exists := s.hashes[rec.Username]; !exists {
			s.hashes[rec.Username] = rec.PasswordHash
		}
	}
	return scanner.Err()
}

// Register hashes password and appends a new record. It returns false and
// leaves the store untouched if username is already registered.
func (s *FileCredentialStore) Register(ctx context.Context, username, password string) (bool, error) {
	if err := ValidateUsername(username); err != nil {
		return false, err
	}
	if password == "" {
		return false, ErrEmptyPassword
	}

	s.mu.RLock()
	_, exists := s.hashes[username]
	s.mu.RUnlock()
	if exists {
		return false, nil
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	return s.append(username, hash)
}

// Import appends a record whose password is already hashed.
func (s *FileCredentialStore) Import(ctx context.Context, cred models.Credential) (bool, error) {
	if err := ValidateUsername(cred.Username); err != nil {
		return false, err
	}
	if cred.PasswordHash == "" {
		return false, ErrEmptyPassword
	}
	if err := crypto.ValidateHash(cred.PasswordHash); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidHash, err)
	}
	return s.append(cred.Username, cred.PasswordHash)
}

func (s *FileCredentialStore) append(username, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Re-check under the write lock: a concurrent Register may have won.
	if _, exists := s.hashes[username]; exists {
		return false, nil
	}

	line, err := json.Marshal(fileRecord{Username: username, PasswordHash: hash, CreatedAt: time.Now().UTC()})
	if err != nil {
		return false, fmt.Errorf("failed to encode credential record: %w", err)
	}
	line = append(line, '\n')

	if _, err := s.file.Write(line); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := s.file.Sync(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	s.hashes[username] = hash
	return true, nil
}

// Verify reports whether password matches the stored hash for username.
func (s *FileCredentialStore) Verify(ctx context.Context, username, password string) (bool, error) {
	s.mu.RLock()
	hash, exists := s.hashes[username]
	s.mu.RUnlock()
	if !exists {
		return false, nil
	}

	ok, err := s.hasher.Compare(hash, password)
	if err != nil {
		s.logger.Error("Stored password hash is unreadable", zap.String("username", username), zap.Error(err))
		return false, nil
	}
	return ok, nil
}

// Close releases the underlying file.
func (s *FileCredentialStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ParseLegacyCredentials reads the old "username,hash" flat file format.
// Blank lines are skipped; any other line without a comma is an error.
func ParseLegacyCredentials(r io.Reader) ([]models.Credential, error) {
	var creds []models.Credential

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		username, hash, ok := strings.Cut(text, ",")
		if !ok || username == "" || hash == "" || strings.Contains(hash, ",") {
			return nil, fmt.Errorf("line %d: expected username,hash", line)
		}
		creds = append(creds, models.Credential{Username: username, PasswordHash: hash})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return creds, nil
}
