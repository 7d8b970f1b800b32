// Package bootstrap loads process configuration from dotenv files at startup.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when no name is given.
const DefaultEnvFile = ".env"

// EnvFilePath maps a dotenv name to its file name: "" is ".env", names that
// already start with ".env" are kept, anything else becomes ".env.<name>".
func EnvFilePath(name string) string {
	switch {
	case name == "":
		return DefaultEnvFile
	case strings.HasPrefix(name, DefaultEnvFile):
		return name
	default:
		return DefaultEnvFile + "." + name
	}
}

// InitializeEnvironment loads the dotenv file selected by name, relative to the
// current working directory, into the process environment. Variables that are
// already set keep their values. It returns the absolute path that was loaded.
//
// A missing file is reported before anything is loaded; the error wraps
// fs.ErrNotExist.
func InitializeEnvironment(name string) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	path := filepath.Join(wd, EnvFilePath(name))

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("environment file %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("environment file %s is a directory", path)
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("failed to load environment file %s: %w", path, err)
	}
	return path, nil
}

// MustInitializeEnvironment is InitializeEnvironment for script entry points;
// it panics on error.
func MustInitializeEnvironment(name string) string {
	path, err := InitializeEnvironment(name)
	if err != nil {
		panic(err)
	}
	return path
}
