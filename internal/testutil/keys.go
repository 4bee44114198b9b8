package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// KeyPair is a freshly generated ed25519 key written to disk.
type KeyPair struct {
	PrivateKeyPath string
	PublicKey      ssh.PublicKey
	Signer         ssh.Signer
}

// GenerateSigner returns a new in-memory ed25519 signer.
func GenerateSigner(t testing.TB) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// CreateSSHKeyPairOnDisk writes an OpenSSH private key under t.TempDir. A
// non-empty passphrase encrypts it.
func CreateSSHKeyPairOnDisk(t testing.TB, passphrase string) KeyPair {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "sftpxfer-test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "sftpxfer-test", []byte(passphrase))
	}
	require.NoError(t, err)

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(keyPath, pem.EncodeToMemory(block), 0o600))

	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return KeyPair{PrivateKeyPath: keyPath, PublicKey: signer.PublicKey(), Signer: signer}
}

// WriteKnownHosts writes a known_hosts file trusting key for addr.
func WriteKnownHosts(t testing.TB, addr string, key ssh.PublicKey) string {
	t.Helper()
	line := knownhosts.Line([]string{knownhosts.Normalize(addr)}, key)
	path := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(path, []byte(line+"\n"), 0o600))
	return path
}
