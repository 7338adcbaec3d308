package sshkeygen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func TestGenerateEd25519KeyPair(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ssh", "id_ed25519")
	pubPath := filepath.Join(dir, "ssh", "id_ed25519.pub")

	require.NoError(t, GenerateEd25519KeyPair(privPath, pubPath))

	privInfo, err := os.Stat(privPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), privInfo.Mode().Perm())

	privBytes, err := os.ReadFile(privPath)
	require.NoError(t, err)
	signer, err := ssh.ParsePrivateKey(privBytes)
	require.NoError(t, err)
	require.Equal(t, "ssh-ed25519", signer.PublicKey().Type())

	pubBytes, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	pubKey, _, _, _, err := ssh.ParseAuthorizedKey(pubBytes)
	require.NoError(t, err)
	require.Equal(t, signer.PublicKey().Marshal(), pubKey.Marshal())
}

func TestGenerateEd25519KeyPairKeepsExistingKey(t *testing.T) {
	dir := t.TempDir()
	privPath := filepath.Join(dir, "id_ed25519")
	pubPath := filepath.Join(dir, "id_ed25519.pub")

	require.NoError(t, GenerateEd25519KeyPair(privPath, pubPath))
	original, err := os.ReadFile(privPath)
	require.NoError(t, err)

	require.NoError(t, GenerateEd25519KeyPair(privPath, pubPath))
	unchanged, err := os.ReadFile(privPath)
	require.NoError(t, err)
	require.Equal(t, original, unchanged)
}
