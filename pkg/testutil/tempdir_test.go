//go:build !integration

package testutil_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grammatic/grammatic/pkg/testutil"
)

func TestGetTestRunDir(t *testing.T) {
	dir := testutil.GetTestRunDir()

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Errorf("test run directory does not exist: %s", dir)
	}

	if !strings.Contains(dir, "grammatic-test-runs") {
		t.Errorf("test run directory should contain 'grammatic-test-runs', got: %s", dir)
	}

	dir2 := testutil.GetTestRunDir()
	if dir != dir2 {
		t.Errorf("GetTestRunDir should return same directory, got %s and %s", dir, dir2)
	}
}

func TestTempDir(t *testing.T) {
	tempDir := testutil.TempDir(t, "test-pattern-*")

	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("temp directory does not exist: %s", tempDir)
	}

	testRunDir := testutil.GetTestRunDir()
	if !strings.HasPrefix(tempDir, testRunDir) {
		t.Errorf("temp directory should be under test run directory, got: %s (expected prefix: %s)", tempDir, testRunDir)
	}

	if !strings.Contains(filepath.Base(tempDir), "test-pattern-") {
		t.Errorf("temp directory should contain pattern, got: %s", tempDir)
	}
}

func TestTempDirCleanup(t *testing.T) {
	var tempDir string

	t.Run("subtest", func(t *testing.T) {
		tempDir = testutil.TempDir(t, "cleanup-test-*")
	})

	if tempDir == "" {
		t.Fatal("tempDir should have been set by subtest")
	}
	if _, err := os.Stat(tempDir); !os.IsNotExist(err) {
		t.Errorf("temp directory should be removed after the subtest: %s", tempDir)
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := testutil.TempDir(t, "write-file-*")

	path := testutil.WriteFile(t, dir, "grammars/json/grammar.js", "module.exports = grammar({})")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read back %s: %v", path, err)
	}
	if string(data) != "module.exports = grammar({})" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestWriteScriptIsExecutable(t *testing.T) {
	dir := testutil.TempDir(t, "write-script-*")

	script := testutil.WriteScript(t, dir, "fake-tool", `echo "fake $1"`)

	out, err := exec.Command(script, "run").Output()
	if err != nil {
		t.Fatalf("script failed: %v", err)
	}
	if strings.TrimSpace(string(out)) != "fake run" {
		t.Errorf("unexpected output: %q", out)
	}
}
