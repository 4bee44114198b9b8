package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/cenkalti/backoff/v4"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/config"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/models"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/transfer"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const spinnerInterval = 100 * time.Millisecond

// newBackOff is the delay policy between retries.
var newBackOff = func() backoff.BackOff {
	return backoff.NewExponentialBackOff()
}

// TransferError is returned by the upload and download commands when the
// transfer itself failed.
type TransferError struct {
	Result models.TransferResult
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%s: %s", e.Result.Kind(), e.Result.Detail())
}

func newUploadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <local-path> <remote-path>",
		Short: "Upload a local file to the SFTP server",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, opts, models.NewUploadRequest(args[0], args[1]))
		},
	}
}

func newDownloadCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <remote-path> <local-path>",
		Short: "Download a remote file from the SFTP server",
		Args:  cobra.ExactArgs(2), //nolint:mnd
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransfer(cmd, opts, models.NewDownloadRequest(args[0], args[1]))
		},
	}
}

func runTransfer(cmd *cobra.Command, opts *rootOptions, req models.TransferRequest) error {
	settings, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	target, err := settings.Target()
	if err != nil {
		return err
	}

	l := logger.Get()
	client := transfer.NewClient(transfer.WithLogger(l))
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.progress {
		s := spinner.New(spinner.CharSets[14], spinnerInterval, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" %s", req)
		s.Start()
		defer s.Stop()
	}

	result := retryTransfer(ctx, l, opts.retries, func() models.TransferResult {
		return client.Transfer(ctx, target, settings.Auth(), req, settings.Options())
	})
	if !result.Succeeded() {
		printBufferedLogs(cmd)
		return &TransferError{Result: result}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", req, result.BytesTransferred)
	return nil
}

// retryTransfer runs attempt up to retries+1 times. Only failures that may
// clear up on their own are retried.
func retryTransfer(
	ctx context.Context,
	l *logger.Logger,
	retries uint64,
	attempt func() models.TransferResult,
) models.TransferResult {
	var result models.TransferResult
	tries := 0
	op := func() error {
		tries++
		result = attempt()
		if result.Succeeded() {
			return nil
		}
		if !isRetryable(result.Kind()) {
			return backoff.Permanent(result.Err())
		}
		return result.Err()
	}
	notify := func(err error, next time.Duration) {
		l.WarnWithFields("Transfer attempt failed, retrying",
			zap.Int("attempt", tries),
			zap.Duration("next", next),
			zap.Error(err),
		)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), retries), ctx)
	_ = backoff.RetryNotify(op, b, notify)
	return result
}

// printBufferedLogs shows the tail of the in-memory log when nothing was
// written to the console.
func printBufferedLogs(cmd *cobra.Command) {
	if logger.GlobalEnableConsoleLogger || !logger.GlobalEnableBufferLogger {
		return
	}
	for _, line := range logger.GetLastLines(logger.LastLogLines) {
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}
}

func isRetryable(kind models.ErrorKind) bool {
	switch kind {
	case models.ErrorKindTimeout, models.ErrorKindUnreachable, models.ErrorKindConnectionLost:
		return true
	default:
		return false
	}
}
