package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	code   int
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"TASKLIST_ROOT", "TASKLIST_BACKEND", "TASKLIST_DSN", "TASKLIST_KEY"} {
		t.Setenv(k, "")
	}
}

func run(t *testing.T, root, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	full := append([]string{"--root", root}, args...)
	code := RunIO(full, strings.NewReader(stdin), &out, &errOut)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func TestScenarioAcrossInvocations(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()

	r := run(t, root, "", "add", "Learn", "X")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "To-Do List:\n1. [ ] Learn X\nTask added: \"Learn X\"\n", r.stdout)

	r = run(t, root, "", "add", "Build Y")
	require.Equal(t, ExitOK, r.code, r.stderr)

	r = run(t, root, "", "toggle", "1")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Task completed: \"Learn X\"")

	r = run(t, root, "", "ls")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "To-Do List:\n1. [x] Learn X\n2. [ ] Build Y\n", r.stdout)

	b, err := os.ReadFile(filepath.Join(root, "data", "tasks.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"text":"Learn X","completed":true},{"text":"Build Y","completed":false}]`, string(b))
}

func TestAddRejectsBlankText(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	r := run(t, root, "", "add", "   ")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "add: please enter a task")
	assert.Empty(t, r.stdout)
}

func TestIndexErrors(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", "a").code)

	r := run(t, root, "", "toggle", "5")
	assert.Equal(t, ExitNotFound, r.code)
	assert.Contains(t, r.stderr, "toggle: invalid position 5 (have 1 tasks)")

	for _, pos := range []string{"0", "-1", "-9223372036854775808"} {
		r = run(t, root, "", "rm", pos)
		assert.Equal(t, ExitUsage, r.code, "rm %s", pos)
		assert.Contains(t, r.stderr, "rm: invalid position \""+pos+"\"")
	}

	r = run(t, root, "", "done", "first")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "invalid position")

	r = run(t, root, "", "rm")
	assert.Equal(t, ExitUsage, r.code)

	r = run(t, root, "", "--quiet", "ls")
	assert.Equal(t, "To-Do List:\n1. [ ] a\n", r.stdout)
}

func TestDoneAndRemove(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	for _, text := range []string{"a", "b", "c"} {
		require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", text).code)
	}
	r := run(t, root, "", "done", "3")
	require.Equal(t, ExitOK, r.code, r.stderr)
	r = run(t, root, "", "rm", "2.")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "Task deleted: \"b\"")

	r = run(t, root, "", "--format", "tsv", "ls")
	assert.Equal(t, "1\tfalse\ta\n2\ttrue\tc\n", r.stdout)
}

func TestClearAsksFirst(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", "a").code)

	r := run(t, root, "n\n", "clear")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "Are you sure you want to delete all tasks? [y/N]")
	assert.Contains(t, r.stdout, "Cancelled.")
	assert.Equal(t, "To-Do List:\n1. [ ] a\n", run(t, root, "", "ls").stdout)

	r = run(t, root, "", "clear")
	assert.Contains(t, r.stdout, "Cancelled.", "EOF must decline")

	r = run(t, root, "yes\n", "clear")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "All tasks deleted.")
	assert.Equal(t, "To-Do List:\n(no tasks)\n", run(t, root, "", "ls").stdout)
}

func TestClearYesSkipsPrompt(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", "a").code)

	r := run(t, root, "", "clear", "--yes")
	assert.Equal(t, ExitOK, r.code)
	assert.NotContains(t, r.stdout, "[y/N]")
	assert.Equal(t, "To-Do List:\n(no tasks)\n", run(t, root, "", "ls").stdout)
}

func TestShellSession(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	script := strings.Join([]string{
		"add Learn X",
		"add",
		"add Build Y",
		"toggle 1",
		"rm 9",
		"bogus",
		"clear",
		"n",
		"rm 2",
		"quit",
		"add never reached",
	}, "\n") + "\n"

	r := run(t, root, script, "shell")
	require.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "1. [x] Learn X\n2. [ ] Build Y\n")
	assert.Contains(t, r.stdout, "Cancelled.")
	assert.Contains(t, r.stderr, "add: please enter a task")
	assert.Contains(t, r.stderr, "rm: invalid position 9 (have 2 tasks)")
	assert.Contains(t, r.stderr, `unknown command "bogus"`)

	assert.Equal(t, "To-Do List:\n1. [x] Learn X\n", run(t, root, "", "ls").stdout)
}

func TestShellStopsAtEOF(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	r := run(t, root, "add a", "shell")
	assert.Equal(t, ExitOK, r.code)
	assert.Equal(t, "To-Do List:\n1. [ ] a\n", run(t, root, "", "ls").stdout)
}

func TestCorruptStoreStartsEmpty(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "tasks.json"), []byte("{broken"), 0o644))

	r := run(t, root, "", "ls")
	assert.Equal(t, ExitOK, r.code)
	assert.Equal(t, "To-Do List:\n(no tasks)\n", r.stdout)
	assert.Contains(t, r.stderr, "level=WARN")
}

func TestSQLiteBackendViaConfig(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "init").code)
	r := run(t, root, "", "config", "set", "backend", "sqlite")
	require.Equal(t, ExitOK, r.code, r.stderr)

	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", "stored in sqlite").code)
	assert.FileExists(t, filepath.Join(root, "tasklist.db"))
	assert.NoFileExists(t, filepath.Join(root, "data", "tasks.json"))
	assert.Equal(t, "To-Do List:\n1. [ ] stored in sqlite\n", run(t, root, "", "ls").stdout)
}

func TestKeySelectsList(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "--key", "work", "add", "ship it").code)
	assert.Equal(t, "To-Do List:\n(no tasks)\n", run(t, root, "", "ls").stdout)
	assert.Equal(t, "To-Do List:\n1. [ ] ship it\n", run(t, root, "", "ls", "--key", "work").stdout)
}

func TestExportWritesFile(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.Equal(t, ExitOK, run(t, root, "", "--quiet", "add", "a").code)

	for _, format := range []string{"json", "pdf"} {
		r := run(t, root, "", "export", "--format", format)
		require.Equal(t, ExitOK, r.code, r.stderr)
		path := strings.TrimSpace(strings.TrimPrefix(r.stdout, "Wrote export to:"))
		assert.Equal(t, filepath.Join(root, "exports"), filepath.Dir(path))
		assert.True(t, strings.HasSuffix(path, "."+format))
		assert.FileExists(t, path)
	}

	r := run(t, root, "", "export", "--format", "csv")
	assert.Equal(t, ExitInternal, r.code)
}

func TestConfigShowReflectsOverrides(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	t.Setenv("TASKLIST_KEY", "errands")
	r := run(t, root, "", "config", "show")
	require.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, `"key": "errands"`)
	assert.Contains(t, r.stdout, `"backend": "file"`)

	r = run(t, root, "", "config", "set", "confirm_clear", "false")
	require.Equal(t, ExitOK, r.code, r.stderr)
	b, err := os.ReadFile(filepath.Join(root, "config.yaml"))
	require.NoError(t, err)
	assert.NotContains(t, string(b), "errands", "env overrides must not be persisted")

	r = run(t, root, "", "config", "set", "backend", "redis")
	assert.Equal(t, ExitUsage, r.code)
}

func TestUsageErrors(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	assert.Equal(t, ExitUsage, run(t, root, "").code)
	assert.Equal(t, ExitUsage, run(t, root, "", "frobnicate").code)
	assert.Equal(t, ExitUsage, run(t, root, "", "--format", "html", "ls").code)
	assert.Equal(t, ExitUsage, run(t, root, "", "--quiet", "--verbose", "ls").code)
	assert.Equal(t, ExitUsage, run(t, root, "", "--backend", "redis", "ls").code)

	r := run(t, root, "", "help")
	assert.Equal(t, ExitOK, r.code)
	assert.Contains(t, r.stdout, "Usage:")
}

func TestReorderFlags(t *testing.T) {
	got := reorderFlags([]string{"x", "--format", "pdf", "--", "-y"}, map[string]bool{"--format": true})
	assert.Equal(t, []string{"--format", "pdf", "x", "-y"}, got)
}

func TestAddAcceptsDashText(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	r := run(t, root, "", "add", "--", "-urgent", "call")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "To-Do List:\n1. [ ] -urgent call\n", run(t, root, "", "ls").stdout)

	r = run(t, root, "", "--quiet", "add", "--", "pass", "--verbose", "to", "the", "linter")
	require.Equal(t, ExitOK, r.code, r.stderr)
	r = run(t, root, "", "--quiet", "add", "--", "--format", "the", "report")
	require.Equal(t, ExitOK, r.code, r.stderr)

	r = run(t, root, "", "--format", "tsv", "ls")
	assert.Equal(t, "1\tfalse\t-urgent call\n2\tfalse\tpass --verbose to the linter\n3\tfalse\t--format the report\n", r.stdout)
}

func TestConfigSetRepairsInvalidBackend(t *testing.T) {
	isolateEnv(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.yaml"), []byte("backend: redis\nkey: work\n"), 0o644))

	r := run(t, root, "", "ls")
	assert.Equal(t, ExitUsage, r.code)
	assert.Contains(t, r.stderr, "unknown backend")

	r = run(t, root, "", "config", "set", "backend", "file")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Equal(t, "Set backend = file\n", r.stdout)

	r = run(t, root, "", "config", "show")
	require.Equal(t, ExitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, `"backend": "file"`)
	assert.Contains(t, r.stdout, `"key": "work"`)

	r = run(t, root, "", "config", "set", "backend")
	assert.Equal(t, ExitUsage, r.code)
}
