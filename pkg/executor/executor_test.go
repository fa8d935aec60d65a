package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestResolveInterpreter(t *testing.T) {
	e := New(Options{})

	t.Run("by extension", func(t *testing.T) {
		dir := t.TempDir()
		interpreter, err := e.resolveInterpreter(writeScript(t, dir, "extract.py", "print('hi')\n"))
		require.NoError(t, err)
		assert.Equal(t, "python3", interpreter)

		interpreter, err = e.resolveInterpreter(writeScript(t, dir, "run.sh", "echo hi\n"))
		require.NoError(t, err)
		assert.Equal(t, "bash", interpreter)
	})

	t.Run("shebang fallback", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "tool", "#!/usr/bin/env python3\nprint('hi')\n")

		interpreter, err := e.resolveInterpreter(path)
		require.NoError(t, err)
		assert.Equal(t, "python3", interpreter)
	})

	t.Run("python variants normalized", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "tool", "#!/usr/bin/python3.11\nprint('hi')\n")

		interpreter, err := e.resolveInterpreter(path)
		require.NoError(t, err)
		assert.Equal(t, "python3", interpreter)
	})

	t.Run("undeterminable interpreter", func(t *testing.T) {
		dir := t.TempDir()
		path := writeScript(t, dir, "tool", "no shebang here\n")

		_, err := e.resolveInterpreter(path)
		var secErr *SecurityError
		require.ErrorAs(t, err, &secErr)
		assert.Contains(t, secErr.Reason, "could not determine interpreter")
	})

	t.Run("disallowed interpreter", func(t *testing.T) {
		restricted := New(Options{AllowedInterpreters: []string{"python3"}})
		dir := t.TempDir()
		path := writeScript(t, dir, "run.sh", "echo hi\n")

		_, err := restricted.resolveInterpreter(path)
		var secErr *SecurityError
		require.ErrorAs(t, err, &secErr)
		assert.Contains(t, secErr.Reason, "'bash' not allowed")
	})
}

func TestShebangInterpreter(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, "node", shebangInterpreter(writeScript(t, dir, "a", "#!/usr/bin/env node\n")))
	assert.Equal(t, "bash", shebangInterpreter(writeScript(t, dir, "b", "#!/bin/bash\necho hi\n")))
	assert.Equal(t, "", shebangInterpreter(writeScript(t, dir, "c", "echo no shebang\n")))
	assert.Equal(t, "", shebangInterpreter(filepath.Join(dir, "missing")))
}

func TestValidateScriptPath(t *testing.T) {
	workDir := t.TempDir()
	script := writeScript(t, workDir, "run.sh", "echo hi\n")

	t.Run("contained script passes", func(t *testing.T) {
		assert.NoError(t, validateScriptPath(script, workDir))
	})

	t.Run("outside script rejected", func(t *testing.T) {
		other := t.TempDir()
		outside := writeScript(t, other, "evil.sh", "echo hi\n")

		err := validateScriptPath(outside, workDir)
		var secErr *SecurityError
		require.ErrorAs(t, err, &secErr)
		assert.Contains(t, secErr.Reason, "outside skill directory")
	})

	t.Run("symlink to outside rejected", func(t *testing.T) {
		other := t.TempDir()
		outside := writeScript(t, other, "evil.sh", "echo hi\n")
		link := filepath.Join(workDir, "link.sh")
		require.NoError(t, os.Symlink(outside, link))

		err := validateScriptPath(link, workDir)
		var secErr *SecurityError
		assert.ErrorAs(t, err, &secErr)
	})
}

func TestBuildCommand(t *testing.T) {
	t.Run("sandboxed with full restrictions", func(t *testing.T) {
		e := New(Options{Sandbox: true})
		e.sandboxPath = "/usr/bin/firejail"

		argv := e.buildCommand("bash", "/work/run.sh", []string{"--fast"}, "/work")
		assert.Equal(t, "/usr/bin/firejail", argv[0])
		assert.Contains(t, argv, "--quiet")
		assert.Contains(t, argv, "--noprofile")
		assert.Contains(t, argv, "--net=none")
		assert.Contains(t, argv, "--read-only=/")
		assert.Contains(t, argv, "--whitelist=/work")
		assert.Contains(t, argv, "--")
		assert.Equal(t, "--fast", argv[len(argv)-1])
	})

	t.Run("network allowance drops net isolation", func(t *testing.T) {
		e := New(Options{Sandbox: true, AllowNetwork: true})
		e.sandboxPath = "/usr/bin/firejail"

		argv := e.buildCommand("bash", "/work/run.sh", nil, "/work")
		assert.NotContains(t, argv, "--net=none")
		assert.Contains(t, argv, "--read-only=/")
	})

	t.Run("no sandbox tool runs bare", func(t *testing.T) {
		e := New(Options{Sandbox: true})
		e.sandboxPath = ""

		argv := e.buildCommand("bash", "/work/run.sh", nil, "/work")
		assert.NotContains(t, argv, "--quiet")
		assert.Equal(t, "/work/run.sh", argv[1])
	})
}

func TestRestrictedEnv(t *testing.T) {
	t.Run("minimal environment", func(t *testing.T) {
		t.Setenv("SECRET_TOKEN", "do-not-leak")

		env := restrictedEnv("/work")
		joined := strings.Join(env, "\n")
		assert.Contains(t, joined, "PATH=/usr/bin:/bin:/usr/local/bin")
		assert.Contains(t, joined, "PWD=/work")
		assert.Contains(t, joined, "PYTHONPATH=/work")
		assert.NotContains(t, joined, "SECRET_TOKEN")
	})

	t.Run("virtualenv passthrough", func(t *testing.T) {
		t.Setenv("VIRTUAL_ENV", "/opt/venv")

		env := restrictedEnv("/work")
		assert.Contains(t, env, "VIRTUAL_ENV=/opt/venv")
		assert.Equal(t, "PATH=/opt/venv/bin:/usr/bin:/bin:/usr/local/bin", env[0])
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	e := New(Options{Sandbox: false})

	t.Run("successful script", func(t *testing.T) {
		workDir := t.TempDir()
		script := writeScript(t, workDir, "greet.sh", "echo hello $1\n")

		result, err := e.Run(ctx, script, []string{"world"}, workDir, 0)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ReturnCode)
		assert.Equal(t, "hello world\n", result.Stdout)
		assert.False(t, result.TimedOut)
	})

	t.Run("nonzero exit code", func(t *testing.T) {
		workDir := t.TempDir()
		script := writeScript(t, workDir, "fail.sh", "echo broken >&2\nexit 3\n")

		result, err := e.Run(ctx, script, nil, workDir, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, result.ReturnCode)
		assert.Contains(t, result.Stderr, "broken")
	})

	t.Run("timeout reported in result", func(t *testing.T) {
		workDir := t.TempDir()
		script := writeScript(t, workDir, "slow.sh", "sleep 10\n")

		result, err := e.Run(ctx, script, nil, workDir, 500*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, result.TimedOut)
		assert.Equal(t, -1, result.ReturnCode)
		assert.Contains(t, result.Stderr, "timed out")
	})

	t.Run("script outside working dir", func(t *testing.T) {
		workDir := t.TempDir()
		other := t.TempDir()
		script := writeScript(t, other, "evil.sh", "echo hi\n")

		_, err := e.Run(ctx, script, nil, workDir, 0)
		var secErr *SecurityError
		assert.ErrorAs(t, err, &secErr)
	})

	t.Run("missing script file", func(t *testing.T) {
		workDir := t.TempDir()

		_, err := e.Run(ctx, filepath.Join(workDir, "ghost.py"), nil, workDir, 0)
		var execErr *ExecutionError
		require.ErrorAs(t, err, &execErr)
		assert.Contains(t, execErr.Reason, "does not exist")
	})

	t.Run("environment is restricted", func(t *testing.T) {
		t.Setenv("SECRET_TOKEN", "do-not-leak")
		workDir := t.TempDir()
		script := writeScript(t, workDir, "env.sh", "echo \"token=$SECRET_TOKEN\"\n")

		result, err := e.Run(ctx, script, nil, workDir, 0)
		require.NoError(t, err)
		assert.Equal(t, "token=\n", result.Stdout)
	})
}

func TestRunCommand(t *testing.T) {
	ctx := context.Background()

	t.Run("captures output", func(t *testing.T) {
		e := New(Options{Sandbox: false})
		assert.Equal(t, "hello", e.RunCommand(ctx, "echo hello", 0))
	})

	t.Run("includes exit code on failure", func(t *testing.T) {
		e := New(Options{Sandbox: false})
		output := e.RunCommand(ctx, "echo broken >&2; exit 3", 0)
		assert.Contains(t, output, "broken")
		assert.Contains(t, output, "[Exit code: 3]")
	})

	t.Run("empty output placeholder", func(t *testing.T) {
		e := New(Options{Sandbox: false})
		assert.Equal(t, "(no output)", e.RunCommand(ctx, "true", 0))
	})

	t.Run("timeout", func(t *testing.T) {
		e := New(Options{Sandbox: false})
		output := e.RunCommand(ctx, "sleep 10", 500*time.Millisecond)
		assert.Contains(t, output, "timed out")
	})

	t.Run("fails closed when sandbox unavailable", func(t *testing.T) {
		e := New(Options{Sandbox: true})
		e.sandboxPath = ""

		output := e.RunCommand(ctx, "echo hello", 0)
		assert.Contains(t, output, "network access is disabled")
		assert.Contains(t, output, "allow_network")
	})

	t.Run("filesystem refusal when network allowed", func(t *testing.T) {
		e := New(Options{Sandbox: true, AllowNetwork: true})
		e.sandboxPath = ""

		output := e.RunCommand(ctx, "echo hello", 0)
		assert.Contains(t, output, "filesystem write is disabled")
	})
}
