package files

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// EnvProduction is the value of the env variable that quiets successful saves.
const EnvProduction = "production"

// IsProduction reports whether the env variable selects production behaviour.
// Anything else, including unset, means development.
func IsProduction() bool {
	return os.Getenv("env") == EnvProduction
}

// SaveFile writes data to path, creating parent directories as needed. The data
// is written to a temporary file in the same directory and renamed into place,
// so readers never see a partial file.
//
// Failures are logged and returned. Successful saves are logged at debug level
// in development only.
func SaveFile(path string, data []byte, logger zerolog.Logger) error {
	log := logger.With().Str("component", "files").Str("path", path).Logger()
	if err := writeAtomic(path, data); err != nil {
		log.Error().Err(err).Msg("Failed to save file")
		return err
	}
	if !IsProduction() {
		log.Debug().Int("bytes", len(data)).Msg("Saved file")
	}
	return nil
}

// SaveJSON marshals v with two-space indentation and saves it with SaveFile.
func SaveJSON(path string, v any, logger zerolog.Logger) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	return SaveFile(path, append(data, '\n'), logger)
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close file: %w", err)
	}
	//nolint:gosec // G302: files saved by the toolkit are meant to be readable by the user's group
	if err := os.Chmod(tmpName, 0o640); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
