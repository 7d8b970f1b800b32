package files

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSaveFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.txt")
	if err := SaveFile(path, []byte("hello"), zerolog.Nop()); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read saved file: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Expected 'hello', got %q", data)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, found %d entries", len(entries))
	}
}

func TestSaveFile_ReturnsCause(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}

	var buf bytes.Buffer
	err := SaveFile(filepath.Join(blocker, "out.txt"), []byte("x"), zerolog.New(&buf))
	if err == nil {
		t.Fatal("Expected error when parent is a file")
	}
	if !strings.Contains(buf.String(), "Failed to save file") {
		t.Errorf("Expected failure to be logged, got %q", buf.String())
	}
}

func TestSaveFile_Verbosity(t *testing.T) {
	tests := []struct {
		env     string
		wantLog bool
	}{
		{env: "", wantLog: true},
		{env: "development", wantLog: true},
		{env: EnvProduction, wantLog: false},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			t.Setenv("env", tt.env)
			var buf bytes.Buffer
			logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

			if err := SaveFile(filepath.Join(t.TempDir(), "f"), []byte("x"), logger); err != nil {
				t.Fatalf("SaveFile failed: %v", err)
			}
			if got := strings.Contains(buf.String(), "Saved file"); got != tt.wantLog {
				t.Errorf("Expected success log %v, got %v (%q)", tt.wantLog, got, buf.String())
			}
		})
	}
}

func TestSaveJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := SaveJSON(path, map[string]string{"answer": "42"}, zerolog.Nop()); err != nil {
		t.Fatalf("SaveJSON failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "{\n  \"answer\": \"42\"\n}\n" {
		t.Errorf("Unexpected JSON %q", data)
	}
}
