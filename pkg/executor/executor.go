// Package executor runs skill scripts and ad-hoc commands in a restricted
// environment. Every invocation goes through path containment, interpreter
// allowlisting, environment sanitization, and timeout enforcement; when
// firejail is present and sandboxing is enabled, invocations are additionally
// wrapped with network and filesystem restrictions.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/skillet-dev/skillet/pkg/logger"
)

// sandboxTool is the external OS-level isolation utility. Its availability is
// probed once at construction and fixed thereafter.
const sandboxTool = "firejail"

// timeoutReturnCode is the sentinel exit code reported for timed-out runs.
const timeoutReturnCode = -1

// SecurityError indicates a rejected invocation: interpreter not allowed or
// undeterminable, or a script path escaping its working directory.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return e.Reason
}

// ExecutionError indicates a process-level execution failure.
type ExecutionError struct {
	ScriptPath string
	Reason     string
	Stderr     string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %s failed: %s", e.ScriptPath, e.Reason)
}

// Result is the outcome of one script or command run.
type Result struct {
	ReturnCode int
	Stdout     string
	Stderr     string
	TimedOut   bool
}

// Options configures a ScriptExecutor.
type Options struct {
	Sandbox              bool
	AllowedInterpreters  []string
	Timeout              time.Duration
	AllowNetwork         bool
	AllowFilesystemWrite bool
}

// ScriptExecutor executes scripts with interpreter allowlisting, path
// containment, environment sanitization, and optional firejail sandboxing.
// It holds no per-invocation state.
type ScriptExecutor struct {
	sandbox              bool
	allowedInterpreters  []string
	timeout              time.Duration
	allowNetwork         bool
	allowFilesystemWrite bool
	sandboxPath          string // path to firejail, "" when unavailable
}

// New creates a ScriptExecutor, probing once for the sandbox tool.
func New(opts Options) *ScriptExecutor {
	allowed := opts.AllowedInterpreters
	if len(allowed) == 0 {
		allowed = []string{"python3", "python", "bash", "sh", "node"}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	sandboxPath, err := exec.LookPath(sandboxTool)
	if err != nil {
		sandboxPath = ""
	}

	return &ScriptExecutor{
		sandbox:              opts.Sandbox,
		allowedInterpreters:  allowed,
		timeout:              timeout,
		allowNetwork:         opts.AllowNetwork,
		allowFilesystemWrite: opts.AllowFilesystemWrite,
		sandboxPath:          sandboxPath,
	}
}

// Timeout returns the default per-invocation timeout.
func (e *ScriptExecutor) Timeout() time.Duration {
	return e.timeout
}

// SandboxAvailable reports whether the isolation tool was found on the host.
func (e *ScriptExecutor) SandboxAvailable() bool {
	return e.sandboxPath != ""
}

// interpreterByExtension maps known script extensions to canonical
// interpreter names.
var interpreterByExtension = map[string]string{
	".py":   "python3",
	".sh":   "bash",
	".bash": "bash",
	".js":   "node",
}

// resolveInterpreter determines the interpreter for a script from its
// extension, falling back to the shebang line, and checks it against the
// allowlist.
func (e *ScriptExecutor) resolveInterpreter(scriptPath string) (string, error) {
	interpreter := interpreterByExtension[strings.ToLower(filepath.Ext(scriptPath))]

	if interpreter == "" {
		interpreter = shebangInterpreter(scriptPath)
	}

	if interpreter == "" {
		extensions := make([]string, 0, len(interpreterByExtension))
		for ext := range interpreterByExtension {
			extensions = append(extensions, ext)
		}
		return "", &SecurityError{Reason: fmt.Sprintf(
			"could not determine interpreter for %s; supported extensions: %s",
			scriptPath, strings.Join(extensions, ", "))}
	}

	// Normalize python variants to python3 or python.
	if strings.HasPrefix(interpreter, "python") {
		if strings.Contains(interpreter, "3") {
			interpreter = "python3"
		} else {
			interpreter = "python"
		}
	}

	for _, allowed := range e.allowedInterpreters {
		if interpreter == allowed {
			return interpreter, nil
		}
	}

	return "", &SecurityError{Reason: fmt.Sprintf(
		"interpreter '%s' not allowed. Allowed: %s",
		interpreter, strings.Join(e.allowedInterpreters, ", "))}
}

// shebangInterpreter reads the first line of a script and extracts the
// interpreter from a #! declaration, handling the /usr/bin/env launcher.
func shebangInterpreter(scriptPath string) string {
	content, err := os.ReadFile(scriptPath)
	if err != nil {
		return ""
	}

	firstLine, _, _ := strings.Cut(string(content), "\n")
	if !strings.HasPrefix(firstLine, "#!") {
		return ""
	}

	parts := strings.Fields(strings.TrimSpace(firstLine[2:]))
	if len(parts) == 0 {
		return ""
	}

	if strings.Contains(parts[0], "env") {
		if len(parts) > 1 {
			return parts[1]
		}
		return ""
	}

	return filepath.Base(parts[0])
}

// validateScriptPath verifies the script's canonical path is contained within
// the working directory.
func validateScriptPath(scriptPath, workingDir string) error {
	scriptResolved, err := filepath.EvalSymlinks(scriptPath)
	if err != nil {
		scriptResolved, err = filepath.Abs(scriptPath)
		if err != nil {
			return &SecurityError{Reason: "invalid script path: " + err.Error()}
		}
	}

	dirResolved, err := filepath.EvalSymlinks(workingDir)
	if err != nil {
		return &SecurityError{Reason: "invalid working directory: " + err.Error()}
	}

	if !strings.HasPrefix(scriptResolved, dirResolved+string(os.PathSeparator)) {
		return &SecurityError{Reason: fmt.Sprintf(
			"script path '%s' is outside skill directory", scriptPath)}
	}

	return nil
}

// buildCommand assembles the invocation argv, wrapping with firejail when
// sandboxing is enabled and the tool is available.
func (e *ScriptExecutor) buildCommand(interpreter, scriptPath string, arguments []string, workingDir string) []string {
	var cmd []string

	if e.sandbox && e.sandboxPath != "" {
		cmd = []string{e.sandboxPath, "--quiet", "--noprofile"}
		if !e.allowNetwork {
			cmd = append(cmd, "--net=none")
		}
		if !e.allowFilesystemWrite {
			cmd = append(cmd, "--read-only=/", "--whitelist="+workingDir)
		}
		cmd = append(cmd, "--")
	}

	interpreterPath, err := exec.LookPath(interpreter)
	if err != nil {
		interpreterPath = interpreter
	}

	cmd = append(cmd, interpreterPath, scriptPath)
	return append(cmd, arguments...)
}

// restrictedEnv returns the minimal child environment: a fixed PATH, a few
// inherited-or-defaulted locale variables, and the working directory exposed
// through PWD and PYTHONPATH. The full calling environment is never inherited
// so unrelated secrets cannot leak into skill scripts.
func restrictedEnv(workingDir string) []string {
	env := []string{
		"PATH=/usr/bin:/bin:/usr/local/bin",
		"HOME=" + envOrDefault("HOME", "/tmp"),
		"LANG=" + envOrDefault("LANG", "en_US.UTF-8"),
		"LC_ALL=" + envOrDefault("LC_ALL", "en_US.UTF-8"),
		"PWD=" + workingDir,
		"PYTHONPATH=" + workingDir,
	}

	if venv := os.Getenv("VIRTUAL_ENV"); venv != "" {
		env = append(env, "VIRTUAL_ENV="+venv)
		env[0] = "PATH=" + venv + "/bin:/usr/bin:/bin:/usr/local/bin"
	}

	return env
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// Run executes a script contained in workingDir with a bounded timeout.
// A timeout is a recoverable outcome reported through the Result, not an
// error. Pass timeout <= 0 to use the executor default.
func (e *ScriptExecutor) Run(ctx context.Context, scriptPath string, arguments []string, workingDir string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}

	if err := validateScriptPath(scriptPath, workingDir); err != nil {
		return nil, err
	}

	interpreter, err := e.resolveInterpreter(scriptPath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(scriptPath)
	if err != nil {
		return nil, &ExecutionError{ScriptPath: scriptPath, Reason: "script file does not exist"}
	}
	if !info.Mode().IsRegular() {
		return nil, &ExecutionError{ScriptPath: scriptPath, Reason: "script path is not a file"}
	}

	argv := e.buildCommand(interpreter, scriptPath, arguments, workingDir)

	execID := uuid.NewString()
	logger.G(ctx).WithField("execution_id", execID).
		WithField("script", scriptPath).
		WithField("interpreter", interpreter).
		Debug("Executing skill script")

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)
	cmd.Dir = workingDir
	cmd.Env = restrictedEnv(workingDir)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		return &Result{
			ReturnCode: timeoutReturnCode,
			Stdout:     "",
			Stderr:     fmt.Sprintf("script timed out after %d seconds", int(timeout.Seconds())),
			TimedOut:   true,
		}, nil
	}

	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			return &Result{
				ReturnCode: exitErr.ExitCode(),
				Stdout:     stdout.String(),
				Stderr:     stderr.String(),
			}, nil
		}
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, &ExecutionError{ScriptPath: scriptPath, Reason: "interpreter not found: " + interpreter}
		}
		if errors.Is(runErr, os.ErrPermission) {
			return nil, &ExecutionError{ScriptPath: scriptPath, Reason: "permission denied: " + runErr.Error()}
		}
		return nil, &ExecutionError{ScriptPath: scriptPath, Reason: runErr.Error(), Stderr: stderr.String()}
	}

	return &Result{
		ReturnCode: 0,
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
	}, nil
}

// RunCommand executes an ad-hoc shell command and returns its output as a
// plain string; it never returns an error. Unlike Run, it fails closed: when
// network or filesystem restrictions were requested but the isolation tool is
// unavailable to enforce them, the command is refused outright.
func (e *ScriptExecutor) RunCommand(ctx context.Context, command string, timeout time.Duration) string {
	if timeout <= 0 {
		timeout = e.timeout
	}

	if e.sandbox && e.sandboxPath == "" {
		if !e.allowNetwork {
			return "Error: network access is disabled but " + sandboxTool + " is not installed to enforce it. " +
				"Install " + sandboxTool + " or set security.allow_network to true."
		}
		if !e.allowFilesystemWrite {
			return "Error: filesystem write is disabled but " + sandboxTool + " is not installed to enforce it. " +
				"Install " + sandboxTool + " or set security.allow_filesystem_write to true."
		}
	}

	var argv []string
	if e.sandbox && e.sandboxPath != "" {
		argv = []string{e.sandboxPath, "--quiet", "--noprofile"}
		if !e.allowNetwork {
			argv = append(argv, "--net=none")
		}
		if !e.allowFilesystemWrite {
			argv = append(argv, "--read-only=/")
		}
		argv = append(argv, "--")
	}
	argv = append(argv, "bash", "-c", command)

	logger.G(ctx).WithField("execution_id", uuid.NewString()).
		WithField("command", command).
		Debug("Executing command")

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, argv[0], argv[1:]...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if cctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Error: command timed out after %d seconds", int(timeout.Seconds()))
	}

	exitCode := 0
	if runErr != nil {
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			return "Error: " + runErr.Error()
		}
		exitCode = exitErr.ExitCode()
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n" + stderr.String()
	}
	if exitCode != 0 {
		output += fmt.Sprintf("\n[Exit code: %d]", exitCode)
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return "(no output)"
	}
	return output
}
