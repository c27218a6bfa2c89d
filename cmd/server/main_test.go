package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := setupLogger(tt.level, "text")
			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
				t.Errorf("level below %s should be disabled", tt.want)
			}
		})
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("KEYPORTAL_TEST_A=from-file\nKEYPORTAL_TEST_B=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env.local"), []byte("KEYPORTAL_TEST_C=local\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Chdir(dir)
	t.Setenv("KEYPORTAL_TEST_A", "from-env")
	t.Setenv("KEYPORTAL_TEST_B", "")
	os.Unsetenv("KEYPORTAL_TEST_B")
	t.Setenv("KEYPORTAL_TEST_C", "")
	os.Unsetenv("KEYPORTAL_TEST_C")

	loadDotEnv()

	if got := os.Getenv("KEYPORTAL_TEST_A"); got != "from-env" {
		t.Errorf("KEYPORTAL_TEST_A = %q, want from-env", got)
	}
	if got := os.Getenv("KEYPORTAL_TEST_B"); got != "from-file" {
		t.Errorf("KEYPORTAL_TEST_B = %q, want from-file", got)
	}
	if got := os.Getenv("KEYPORTAL_TEST_C"); got != "local" {
		t.Errorf("KEYPORTAL_TEST_C = %q, want local", got)
	}
}
