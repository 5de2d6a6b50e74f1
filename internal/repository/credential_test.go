package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"pride/internal/crypto"
	"pride/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// storeFactories lets every behavioural test run against each backend.
var storeFactories = map[string]func(t *testing.T) CredentialStore{
	"file": func(t *testing.T) CredentialStore {
		s, err := NewFileCredentialStore(filepath.Join(t.TempDir(), "accounts.jsonl"), crypto.NewPasswordHasher(), zap.NewNop())
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T) CredentialStore {
		db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "credentials.db"), zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, MigrateDB(db, zap.NewNop()))
		return NewSQLCredentialStore(db, crypto.NewPasswordHasher(), zap.NewNop())
	},
}

func TestCredentialStore_Scenario(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			ok, err := store.Register(ctx, "alice", "Secret123")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Verify(ctx, "alice", "Secret123")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Verify(ctx, "alice", "wrong")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = store.Register(ctx, "alice", "Other456")
			require.NoError(t, err)
			assert.False(t, ok, "duplicate registration must fail")

			ok, err = store.Verify(ctx, "alice", "Secret123")
			require.NoError(t, err)
			assert.True(t, ok, "original password must still verify")

			ok, err = store.Verify(ctx, "alice", "Other456")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCredentialStore_UnknownUserAndCaseSensitivity(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			ok, err := store.Verify(ctx, "nobody", "x")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = store.Register(ctx, "Bob", "pw")
			require.NoError(t, err)

			ok, err = store.Verify(ctx, "bob", "pw")
			require.NoError(t, err)
			assert.False(t, ok)

			ok, err = store.Register(ctx, "bob", "pw2")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestCredentialStore_InvalidInput(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			for _, username := range []string{"", "a,b", "line\nbreak"} {
				ok, err := store.Register(ctx, username, "pw")
				assert.False(t, ok)
				assert.ErrorIs(t, err, ErrInvalidUsername)
			}

			ok, err := store.Register(ctx, "carol", "")
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrEmptyPassword)
		})
	}
}

func TestCredentialStore_ConcurrentRegisterSameUsername(t *testing.T) {
	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			const workers = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := store.Register(ctx, "racer", "pw")
					assert.NoError(t, err)
					if ok {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, 1, successes)
		})
	}
}

func TestFileCredentialStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "accounts.jsonl")

	store, err := NewFileCredentialStore(path, crypto.NewPasswordHasher(), zap.NewNop())
	require.NoError(t, err)
	ok, err := store.Register(ctx, "alice", "Secret123")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(raw), "\n"))
	assert.NotContains(t, string(raw), "Secret123")

	reopened, err := NewFileCredentialStore(path, crypto.NewPasswordHasher(), zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	ok, err = reopened.Verify(ctx, "alice", "Secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reopened.Register(ctx, "alice", "again")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileCredentialStore_SkipsMalformedLines(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.jsonl")

	hash, err := crypto.NewPasswordHasher().Hash("pw")
	require.NoError(t, err)
	body := "not json\n\n{\"username\":\"dave\",\"password_hash\":\"" + hash + "\"}\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	store, err := NewFileCredentialStore(path, crypto.NewPasswordHasher(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	ok, err := store.Verify(ctx, "dave", "pw")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileCredentialStore_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	_, err := NewFileCredentialStore(filepath.Join(blocker, "accounts.jsonl"), crypto.NewPasswordHasher(), zap.NewNop())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestCredentialImporter_LegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)

	creds, err := ParseLegacyCredentials(strings.NewReader("alice," + string(legacy) + "\n\n"))
	require.NoError(t, err)
	require.Len(t, creds, 1)

	for name, open := range storeFactories {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			defer store.Close()

			importer, ok := store.(CredentialImporter)
			require.True(t, ok)

			added, err := importer.Import(ctx, creds[0])
			require.NoError(t, err)
			assert.True(t, added)

			other, err := crypto.NewPasswordHasher().Hash("Other456")
			require.NoError(t, err)
			added, err = importer.Import(ctx, models.Credential{Username: "alice", PasswordHash: other})
			require.NoError(t, err)
			assert.False(t, added)

			for _, bad := range []string{
				"x",
				"$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHQ$",
				"$argon2id$v=19$m=65536,t=0,p=4$c2FsdA$aGFzaA",
				"$2a$10$short",
			} {
				added, err = importer.Import(ctx, models.Credential{Username: "bob", PasswordHash: bad})
				assert.ErrorIs(t, err, ErrInvalidHash, bad)
				assert.False(t, added)
			}
			ok, err = store.Verify(ctx, "bob", "anything")
			require.NoError(t, err)
			assert.False(t, ok, "rejected imports are not stored")

			ok, err = store.Verify(ctx, "alice", "Secret123")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestParseLegacyCredentials_Malformed(t *testing.T) {
	_, err := ParseLegacyCredentials(strings.NewReader("alice,hash\nbroken\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}
