package testutil

import (
	"os"

	"github.com/spf13/viper"
)

// GetTestViper returns a fresh viper instance loaded from the given YAML.
func GetTestViper(yamlContent string) (*viper.Viper, error) {
	testConfig := viper.New()
	configFile, cleanup, err := WriteStringToTempFileWithExtension(yamlContent, ".yaml")
	if err != nil {
		return nil, err
	}
	defer cleanup()
	testConfig.SetConfigType("yaml")
	testConfig.SetConfigFile(configFile)
	if err := testConfig.ReadInConfig(); err != nil {
		return nil, err
	}
	return testConfig, nil
}

// WriteStringToTempFileWithExtension writes content to a temp file ending in
// extension and returns its path and a cleanup function.
func WriteStringToTempFileWithExtension(content string, extension string) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "temp-*"+extension)
	if err != nil {
		return "", nil, err
	}
	return finishTempFile(tempFile, content)
}

func WriteStringToTempFile(content string) (string, func(), error) {
	tempFile, err := os.CreateTemp("", "temp-*")
	if err != nil {
		return "", nil, err
	}
	return finishTempFile(tempFile, content)
}

func finishTempFile(tempFile *os.File, content string) (string, func(), error) {
	if _, err := tempFile.WriteString(content); err != nil {
		tempFile.Close()
		os.Remove(tempFile.Name())
		return "", nil, err
	}

	tempFile.Close()

	cleanup := func() {
		os.Remove(tempFile.Name())
	}

	return tempFile.Name(), cleanup, nil
}
