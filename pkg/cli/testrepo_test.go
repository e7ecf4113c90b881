//go:build !integration

package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/grammatic/grammatic/pkg/testutil"
)

const testCommit = "89abcdef0123456789abcdef0123456789abcdef"

// newTestRepo creates a repository whose grammatic.yaml points every tool
// at a fake script, with one grammar "json" that is generated and has a
// corpus. It returns the repository root.
func newTestRepo(t *testing.T) string {
	t.Helper()
	root := testutil.TempDir(t, "cli-*")
	bin := filepath.Join(root, "bin")

	treeSitter := testutil.WriteScript(t, bin, "tree-sitter", `case "$1" in
  --version) echo "tree-sitter 0.22.6" ;;
  generate) mkdir -p src && echo "/* generated */" > src/parser.c ;;
  test) echo "  ✓ numbers" ;;
  parse) echo '{"type":"document","children":[{"type":"number"}]}' ;;
esac`)
	cc := testutil.WriteScript(t, bin, "cc", `out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
: > "$out"`)
	git := testutil.WriteScript(t, bin, "git", `case "$1" in
  rev-parse) echo `+testCommit+` ;;
  *) exit 1 ;;
esac`)

	testutil.WriteFile(t, root, "grammatic.yaml", `tools:
  grammar_compiler: `+treeSitter+`
  test_runner: `+treeSitter+`
  c_compiler: `+cc+`
  cxx_compiler: `+cc+`
  git: `+git+`
`)
	testutil.WriteFile(t, root, "grammars/json/grammar.js", "module.exports = grammar({name: 'json'});\n")
	testutil.WriteFile(t, root, "grammars/json/src/parser.c", "/* generated */\n")
	testutil.WriteFile(t, root, "grammars/json/test/corpus/numbers.txt", "===\nnumber\n===\n1\n---\n(document (number))\n")
	return root
}

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.String()
	}()

	defer func() {
		os.Stdout = orig
	}()
	fn()
	w.Close()
	return <-done
}
