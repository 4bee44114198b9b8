package sshutils

import (
	"strings"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/mitchellh/go-homedir"
)

// AuthConfig is the raw authentication input of a transfer.
type AuthConfig struct {
	Password   string
	KeyPath    string
	Passphrase string
}

// ResolveCredential picks the authentication method from cfg. A key path wins
// over a password. The key file is not opened here; that happens at connect
// time.
func ResolveCredential(cfg AuthConfig) (models.Credential, error) {
	keyPath := strings.TrimSpace(cfg.KeyPath)
	if keyPath != "" {
		if expanded, err := homedir.Expand(keyPath); err == nil {
			keyPath = expanded
		}
		return models.PublicKeyCredential(keyPath, cfg.Passphrase), nil
	}

	if cfg.Passphrase != "" {
		return models.Credential{}, models.NewError(
			models.ErrorKindConfig,
			"passphrase provided without key path",
			nil,
		)
	}

	if cfg.Password != "" {
		return models.PasswordCredential(cfg.Password), nil
	}

	return models.Credential{}, models.NewError(
		models.ErrorKindConfig,
		"no authentication method provided",
		nil,
	)
}
