package main

import (
	"os"

	"github.com/lahrah/sftp-file-transfer-solution/cmd"
	"github.com/lahrah/sftp-file-transfer-solution/pkg/logger"
)

func main() {
	exitCode := 0
	logger.RecoverAndLog(func() {
		if err := cmd.Execute(); err != nil {
			exitCode = 1
		}
	})
	_ = logger.Get().Sync()
	os.Exit(exitCode)
}
