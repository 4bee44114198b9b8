package sshutils

import (
	"errors"
	"fmt"
	"os"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/crypto/ssh"
)

// KeyReader loads private key material from disk.
type KeyReader func(path string) ([]byte, error)

var SSHKeyReader KeyReader = os.ReadFile

// LoadSigner reads and parses the private key referenced by cred. Every
// failure, including a missing or wrong passphrase, is reported as
// models.ErrorKindKeyNotFound.
func LoadSigner(read KeyReader, cred models.Credential) (ssh.Signer, error) {
	if read == nil {
		read = SSHKeyReader
	}

	keyPath, err := homedir.Expand(cred.KeyPath)
	if err != nil {
		keyPath = cred.KeyPath
	}
	if keyPath == "" {
		return nil, models.NewError(models.ErrorKindKeyNotFound, "private key path is empty", nil)
	}

	material, err := read(keyPath)
	if err != nil {
		return nil, models.NewError(
			models.ErrorKindKeyNotFound,
			fmt.Sprintf("failed to read private key %s", keyPath),
			err,
		)
	}

	var signer ssh.Signer
	if cred.HasPassphrase() {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(material, []byte(cred.Passphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(material)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			return nil, models.NewError(
				models.ErrorKindKeyNotFound,
				fmt.Sprintf("private key %s is encrypted and no passphrase was given", keyPath),
				err,
			)
		}
		return nil, models.NewError(
			models.ErrorKindKeyNotFound,
			fmt.Sprintf("failed to parse private key %s", keyPath),
			err,
		)
	}
	return signer, nil
}

// authMethods turns a credential into the ssh.AuthMethod list offered to the
// server.
func authMethods(read KeyReader, cred models.Credential) ([]ssh.AuthMethod, error) {
	switch cred.Kind {
	case models.CredentialPassword:
		if cred.Secret == "" {
			return nil, models.NewError(models.ErrorKindConfig, "password cannot be empty", nil)
		}
		return []ssh.AuthMethod{ssh.Password(cred.Secret)}, nil
	case models.CredentialPublicKey:
		signer, err := LoadSigner(read, cred)
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, models.NewError(
			models.ErrorKindConfig,
			fmt.Sprintf("unsupported credential kind %q", cred.Kind),
			nil,
		)
	}
}
