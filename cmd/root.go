package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/config"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultConfigName = ".sftpxfer"

type rootOptions struct {
	cfgFile  string
	envFile  string
	logLevel string
	retries  uint64
	progress bool
}

// NewRootCmd builds the sftpxfer command tree. Settings live in the global
// viper instance, which is reset here.
func NewRootCmd() *cobra.Command {
	viper.Reset()
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "sftpxfer",
		Short: "sftpxfer transfers single files over SFTP",
		Long: `sftpxfer uploads or downloads one file per invocation over SFTP,
authenticating with a password or a private key.`,
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return initConfig(opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.sftpxfer.yaml)")
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading SFTP_* variables")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.Uint64Var(&opts.retries, "retries", 0, "retry transient failures this many times")
	flags.BoolVar(&opts.progress, "progress", false, "show a spinner while transferring")

	flags.String("host", "", "SFTP server host")
	flags.Int("port", 0, "SFTP server port (default 22)")
	flags.String("username", "", "login user")
	flags.String("password", "", "login password")
	flags.String("key-path", "", "private key file; takes precedence over --password")
	flags.String("passphrase", "", "private key passphrase")
	flags.Duration("timeout", 0, "connect and authenticate timeout (default 15s)")
	flags.Duration("transfer-timeout", 0, "data transfer deadline (default none)")
	flags.String("known-hosts-file", "", "known_hosts file (default ~/.ssh/known_hosts)")
	flags.Bool("insecure-ignore-host-key", false, "skip host key verification")
	flags.String("backend", "", "file transfer backend: sftp or shell")
	flags.String("path-mode", "", "relative remote paths: home or root")

	bindFlags(flags, map[string]string{
		"host":                     config.KeyHost,
		"port":                     config.KeyPort,
		"username":                 config.KeyUsername,
		"password":                 config.KeyPassword,
		"key-path":                 config.KeyKeyPath,
		"passphrase":               config.KeyPassphrase,
		"timeout":                  config.KeyTimeout,
		"transfer-timeout":         config.KeyTransferTimeout,
		"known-hosts-file":         config.KeyKnownHostsFile,
		"insecure-ignore-host-key": config.KeyInsecureIgnoreHostKey,
		"backend":                  config.KeyBackend,
		"path-mode":                config.KeyPathMode,
	})

	rootCmd.AddCommand(newUploadCmd(opts))
	rootCmd.AddCommand(newDownloadCmd(opts))
	return rootCmd
}

// bindFlags maps flag names to config keys. Unset flags fall through to the
// environment, the config file and the defaults.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

// initConfig loads the dotenv file, the config file and the environment, then
// sets up logging.
func initConfig(opts *rootOptions) error {
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", opts.envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if opts.cfgFile != "" {
		viper.SetConfigFile(opts.cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return err
		}
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultConfigName)
	}
	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if opts.logLevel != "" {
		viper.Set("general.log_level", opts.logLevel)
	}
	logger.InitLoggerOutputs()
	if err := logger.Initialize(logger.Config{
		Level:         logger.GlobalLogLevel,
		FilePath:      logFilePath(),
		Format:        viper.GetString("general.log_format"),
		WithTrace:     viper.GetBool("general.log_trace"),
		EnableConsole: logger.GlobalEnableConsoleLogger,
		EnableBuffer:  logger.GlobalEnableBufferLogger,
		InstantSync:   logger.GlobalInstantSync,
	}); err != nil {
		return err
	}

	if used := viper.ConfigFileUsed(); used != "" {
		logger.Get().Debugf("Using config file: %s", used)
	}
	return nil
}

func logFilePath() string {
	if !logger.GlobalEnableFileLogger {
		return ""
	}
	return logger.GlobalLogPath
}

// Execute runs the root command against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
