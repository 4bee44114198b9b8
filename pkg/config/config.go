package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/sshutils"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/transfer"
	"github.com/spf13/viper"
)

const (
	KeyHost                  = "sftp.host"
	KeyPort                  = "sftp.port"
	KeyUsername              = "sftp.username"
	KeyPassword              = "sftp.password"
	KeyKeyPath               = "sftp.key_path"
	KeyPassphrase            = "sftp.passphrase"
	KeyTimeout               = "sftp.timeout"
	KeyTransferTimeout       = "sftp.transfer_timeout"
	KeyKnownHostsFile        = "sftp.known_hosts_file"
	KeyInsecureIgnoreHostKey = "sftp.insecure_ignore_host_key"
	KeyBackend               = "sftp.backend"
	KeyPathMode              = "sftp.path_mode"
)

// Settings is the resolved configuration of one transfer.
type Settings struct {
	Host                  string
	Port                  int
	Username              string
	Password              string
	KeyPath               string
	Passphrase            string
	Timeout               time.Duration
	TransferTimeout       time.Duration
	KnownHostsFile        string
	InsecureIgnoreHostKey bool
	Backend               sshutils.Backend
	PathMode              models.PathMode
}

// SetDefaults registers defaults and environment lookup on v. SFTP_HOST
// overrides sftp.host and so on.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, sshutils.DefaultSSHPort)
	v.SetDefault(KeyTimeout, sshutils.DefaultConnectTimeout)
	v.SetDefault(KeyTransferTimeout, time.Duration(0))
	v.SetDefault(KeyKnownHostsFile, sshutils.DefaultKnownHostsFile)
	v.SetDefault(KeyInsecureIgnoreHostKey, false)
	v.SetDefault(KeyBackend, string(sshutils.BackendSFTP))
	v.SetDefault(KeyPathMode, string(models.PathModeHome))

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{KeyHost, KeyUsername, KeyPassword, KeyKeyPath, KeyPassphrase} {
		_ = v.BindEnv(key)
	}
}

// Load reads Settings from v. Errors are configuration errors.
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)

	backend, err := sshutils.ParseBackend(v.GetString(KeyBackend))
	if err != nil {
		return nil, err
	}
	pathMode, err := models.ParsePathMode(v.GetString(KeyPathMode))
	if err != nil {
		return nil, models.NewError(models.ErrorKindConfig, "invalid "+KeyPathMode, err)
	}

	s := &Settings{
		Host:                  strings.TrimSpace(v.GetString(KeyHost)),
		Port:                  v.GetInt(KeyPort),
		Username:              strings.TrimSpace(v.GetString(KeyUsername)),
		Password:              v.GetString(KeyPassword),
		KeyPath:               v.GetString(KeyKeyPath),
		Passphrase:            v.GetString(KeyPassphrase),
		Timeout:               v.GetDuration(KeyTimeout),
		TransferTimeout:       v.GetDuration(KeyTransferTimeout),
		KnownHostsFile:        v.GetString(KeyKnownHostsFile),
		InsecureIgnoreHostKey: v.GetBool(KeyInsecureIgnoreHostKey),
		Backend:               backend,
		PathMode:              pathMode,
	}

	if s.Timeout < 0 {
		return nil, models.NewError(models.ErrorKindConfig, fmt.Sprintf("%s must not be negative", KeyTimeout), nil)
	}
	if s.TransferTimeout < 0 {
		return nil, models.NewError(models.ErrorKindConfig, fmt.Sprintf("%s must not be negative", KeyTransferTimeout), nil)
	}
	return s, nil
}

func (s *Settings) Target() (models.ConnectionTarget, error) {
	return models.NewConnectionTarget(s.Host, s.Port, s.Username)
}

func (s *Settings) Auth() sshutils.AuthConfig {
	return sshutils.AuthConfig{
		Password:   s.Password,
		KeyPath:    s.KeyPath,
		Passphrase: s.Passphrase,
	}
}

func (s *Settings) Options() transfer.Options {
	return transfer.Options{
		Timeout:         s.Timeout,
		TransferTimeout: s.TransferTimeout,
		HostKey: sshutils.HostKeyPolicy{
			KnownHostsFile:        s.KnownHostsFile,
			InsecureIgnoreHostKey: s.InsecureIgnoreHostKey,
		},
		Backend:  s.Backend,
		PathMode: s.PathMode,
	}
}
