package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// isolateCLI resets package flag state and clears credential env vars so
// .env files loaded by one test cannot leak into another.
func isolateCLI(t *testing.T, dir string) {
	t.Helper()

	oldConfigDir := configDir
	oldSkip := runSkipPersist
	oldJSON := loadJSON
	t.Cleanup(func() {
		configDir = oldConfigDir
		runSkipPersist = oldSkip
		loadJSON = oldJSON
	})

	configDir = dir
	runSkipPersist = false
	loadJSON = false

	for _, key := range []string{
		"REDDIT_CLIENT_ID", "REDDIT_CLIENT_SECRET", "REDDIT_USERNAME", "REDDIT_PASSWORD",
		"REDDIT_USER_AGENT", "DATABASE_URL", "GCS_CREDENTIALS_JSON", "GCS_BUCKET_NAME",
	} {
		t.Setenv(key, "")
	}
}

func writeTestConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func testCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func captureStdout(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	oldStdout := os.Stdout
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("open stdout pipe: %v", err)
	}

	os.Stdout = writer
	runErr := fn()
	_ = writer.Close()
	os.Stdout = oldStdout

	out, readErr := io.ReadAll(reader)
	_ = reader.Close()
	if readErr != nil {
		t.Fatalf("read stdout pipe: %v", readErr)
	}
	return string(out), runErr
}

func requireContains(t *testing.T, got, want string) {
	t.Helper()

	if !strings.Contains(got, want) {
		t.Fatalf("expected output to contain %q, got:\n%s", want, got)
	}
}
