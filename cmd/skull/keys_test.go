package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitorsaz/skull-agent/internal/crypto"
)

func TestKeysEncryptAndShow(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	dir := t.TempDir()
	out := filepath.Join(dir, "wallet.json")

	cmd := newKeysCmd()
	cmd.PersistentFlags().String("config", "", "")
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"encrypt", "--key", base58.Encode(key), "--out", out, "--password", "hunter2"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), crypto.Address(key))

	blob, err := os.ReadFile(out)
	require.NoError(t, err)
	got, err := crypto.DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, key, got)

	t.Setenv("SKULL_WALLET_PRIVATE_KEY", "")
	t.Setenv("SOLANA_PRIVATE_KEY", "")
	t.Setenv("SKULL_WALLET_ENCRYPTED_KEY_PATH", out)
	t.Setenv("SKULL_WALLET_KEY_PASSWORD", "hunter2")

	show := newKeysCmd()
	show.PersistentFlags().String("config", filepath.Join(dir, "missing.toml"), "")
	stdout.Reset()
	show.SetOut(&stdout)
	show.SetArgs([]string{"show"})
	require.NoError(t, show.Execute())
	assert.Equal(t, crypto.Address(key), strings.TrimSpace(stdout.String()))
}

func TestKeysEncrypt_RequiresPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")

	cmd := newKeysCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"encrypt", "--key", "x", "--out", filepath.Join(t.TempDir(), "w.json")})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), passwordEnv)
}
