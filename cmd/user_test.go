package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := fmt.Sprintf("credentials:\n  backend: file\n  path: %s\nlogging:\n  level: warn\n", filepath.Join(dir, "accounts.jsonl"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestUserAddAndVerify(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "Secret123\n", "user", "add", "alice", "--password-stdin", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, `user "alice" created`)

	_, err = run(t, "Other456\n", "user", "add", "alice", "--password-stdin", "-c", cfg)
	assert.ErrorContains(t, err, "already exists")

	out, err = run(t, "Secret123", "user", "verify", "alice", "--password-stdin", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	_, err = run(t, "wrong\n", "user", "verify", "alice", "--password-stdin", "-c", cfg)
	assert.ErrorContains(t, err, "invalid credentials")
}

func TestUserAdd_TerminalPrompt(t *testing.T) {
	cfg := writeConfig(t)

	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte("Secret123"), nil }
	t.Cleanup(func() { readPassword = orig })

	passwordStdin = false
	_, err := run(t, "", "user", "add", "bob", "-c", cfg)
	require.NoError(t, err)

	_, err = run(t, "Secret123\n", "user", "verify", "bob", "--password-stdin", "-c", cfg)
	assert.NoError(t, err)
}

func TestUserImportLegacy(t *testing.T) {
	cfg := writeConfig(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("lama123"), bcrypt.MinCost)
	require.NoError(t, err)
	legacy := filepath.Join(t.TempDir(), "akun.txt")
	require.NoError(t, os.WriteFile(legacy, []byte("budi,"+string(hash)+"\n"), 0o600))

	out, err := run(t, "", "user", "import", legacy, "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 1, skipped 0")

	out, err = run(t, "", "user", "import", legacy, "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "imported 0, skipped 1")

	_, err = run(t, "lama123\n", "user", "verify", "budi", "--password-stdin", "-c", cfg)
	assert.NoError(t, err)
}
