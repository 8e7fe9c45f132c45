package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("probe", ItemID("abc"))
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"item_id":"abc"`) {
		t.Errorf("log output %q missing item_id field", data)
	}
}

func TestNew_UnknownLevelFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	logger, err := New(Config{Level: "loud", Format: "json", OutputPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("shown")
	logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "hidden") {
		t.Error("debug entry written at info level")
	}
	if !strings.Contains(string(data), "shown") {
		t.Error("info entry missing")
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
}
