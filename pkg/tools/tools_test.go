package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillet-dev/skillet/pkg/executor"
	"github.com/skillet-dev/skillet/pkg/skills"
)

// newFixture builds a manager over a single temp skill named "pdf" with one
// script, one reference, and nested assets, plus a "scan" skill that grants
// bash commands.
func newFixture(t *testing.T) (*skills.Manager, *executor.ScriptExecutor) {
	t.Helper()
	root := t.TempDir()

	pdfDir := filepath.Join(root, "pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(pdfDir, "scripts"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(pdfDir, "references"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(pdfDir, "assets", "images"), 0o755))

	skillMD := `---
name: pdf
description: Extract text and data from PDF files
compatibility: Requires python3
---

# PDF Processing

Run the extract script against your document.
`
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "SKILL.md"), []byte(skillMD), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "scripts", "extract.sh"),
		[]byte("echo extracted $1\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "scripts", "fail.sh"),
		[]byte("echo nope >&2\nexit 2\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "references", "guide.md"),
		[]byte("Follow these steps.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "assets", "template.html"),
		[]byte("<html/>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "assets", "images", "logo.png"),
		[]byte{0x89, 0x50}, 0o644))

	scanDir := filepath.Join(root, "scan")
	scanMD := `---
name: scan
description: Network scanning helpers
allowed-tools: Bash(echo:*) Bash(true:*)
---

# Scanning

Use the granted commands.
`
	require.NoError(t, os.MkdirAll(scanDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scanDir, "SKILL.md"), []byte(scanMD), 0o644))

	manager, err := skills.NewManager([]string{root})
	require.NoError(t, err)
	manager.Discover(context.Background())

	return manager, executor.New(executor.Options{Sandbox: false})
}

func TestListSkillsTool(t *testing.T) {
	ctx := context.Background()

	t.Run("no skills", func(t *testing.T) {
		manager, _ := skills.NewManager([]string{t.TempDir()})
		manager.Discover(ctx)

		result := NewListSkillsTool(manager).Execute(ctx, "{}")
		assert.Equal(t, "No skills are currently available.", result.Result)
	})

	t.Run("lists metadata", func(t *testing.T) {
		manager, _ := newFixture(t)

		result := NewListSkillsTool(manager).Execute(ctx, "{}")
		assert.Contains(t, result.Result, "**pdf**")
		assert.Contains(t, result.Result, "Extract text and data from PDF files")
		assert.Contains(t, result.Result, "Compatibility: Requires python3")
		assert.NotContains(t, result.Result, "[ACTIVE]")
	})

	t.Run("active skill shows resources", func(t *testing.T) {
		manager, _ := newFixture(t)
		_, err := manager.Activate(ctx, "pdf")
		require.NoError(t, err)

		result := NewListSkillsTool(manager).Execute(ctx, "{}")
		assert.Contains(t, result.Result, "**pdf** [ACTIVE]")
		assert.Contains(t, result.Result, "scripts: extract.sh, fail.sh")
		assert.Contains(t, result.Result, "references: guide.md")
	})
}

func TestActivateSkillTool(t *testing.T) {
	ctx := context.Background()
	manager, _ := newFixture(t)
	tool := NewActivateSkillTool(manager)

	t.Run("validates input", func(t *testing.T) {
		assert.Error(t, tool.ValidateInput("{}"))
		assert.Error(t, tool.ValidateInput("not json"))
		assert.NoError(t, tool.ValidateInput(`{"skill_name": "pdf"}`))
	})

	t.Run("returns instructions and resources", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf"}`)
		require.False(t, result.IsError())
		assert.Contains(t, result.Result, "# Skill 'pdf' Activated")
		assert.Contains(t, result.Result, "Run the extract script")
		assert.Contains(t, result.Result, "### Scripts")
		assert.Contains(t, result.Result, "- `extract.sh`")
		assert.Contains(t, result.Result, "### References")
		assert.Contains(t, result.Result, "- `guide.md`")
		assert.Contains(t, result.Result, "### Assets")
		assert.Contains(t, result.Result, "- `images/logo.png`")
	})

	t.Run("unknown skill names the alternatives", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "nope"}`)
		assert.Contains(t, result.Result, "Error: skill 'nope' not found")
		assert.Contains(t, result.Result, "pdf")
	})

	t.Run("skill without resources", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "scan"}`)
		assert.Contains(t, result.Result, "(No additional resources available)")
	})
}

func TestRunScriptTool(t *testing.T) {
	ctx := context.Background()
	manager, exec := newFixture(t)
	tool := NewRunScriptTool(manager, exec)

	t.Run("requires activation", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "script_name": "extract.sh"}`)
		assert.Contains(t, result.Result, "must be activated before running scripts")
		assert.Contains(t, result.Result, "activate_skill('pdf')")
	})

	t.Run("runs an activated skill script", func(t *testing.T) {
		_, err := manager.Activate(ctx, "pdf")
		require.NoError(t, err)

		result := tool.Execute(ctx, `{"skill_name": "pdf", "script_name": "extract.sh", "arguments": "report.pdf"}`)
		assert.Contains(t, result.Result, "Script executed successfully:")
		assert.Contains(t, result.Result, "extracted report.pdf")
	})

	t.Run("nonzero exit surfaces stderr", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "script_name": "fail.sh"}`)
		assert.Contains(t, result.Result, "Script exited with code 2")
		assert.Contains(t, result.Result, "nope")
	})

	t.Run("unknown script lists available", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "script_name": "ghost.sh"}`)
		assert.Contains(t, result.Result, "Error: Script 'ghost.sh' not found")
		assert.Contains(t, result.Result, "extract.sh")
	})

	t.Run("traversal treated as missing script", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "script_name": "../SKILL.md"}`)
		assert.Contains(t, result.Result, "not found")
	})

	t.Run("unknown skill", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "nope", "script_name": "x.sh"}`)
		assert.Contains(t, result.Result, "Error: Skill 'nope' not found")
	})
}

func TestReadResourceTool(t *testing.T) {
	ctx := context.Background()
	manager, _ := newFixture(t)
	tool := NewReadResourceTool(manager)

	t.Run("rejects invalid resource type", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "scripts", "filename": "extract.sh"}`)
		assert.Contains(t, result.Result, "Invalid resource_type 'scripts'")
	})

	t.Run("reads a reference with activation note", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "references", "filename": "guide.md"}`)
		assert.Contains(t, result.Result, "# guide.md")
		assert.Contains(t, result.Result, "Follow these steps.")
		assert.Contains(t, result.Result, "not currently activated")
	})

	t.Run("no note once activated", func(t *testing.T) {
		_, err := manager.Activate(ctx, "pdf")
		require.NoError(t, err)

		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "references", "filename": "guide.md"}`)
		assert.NotContains(t, result.Result, "not currently activated")
	})

	t.Run("binary asset returns a path notice", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "assets", "filename": "images/logo.png"}`)
		assert.Contains(t, result.Result, "binary file")
		assert.Contains(t, result.Result, "logo.png")
	})

	t.Run("missing file lists available", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "references", "filename": "missing.md"}`)
		assert.Contains(t, result.Result, "Error: File 'missing.md' not found")
		assert.Contains(t, result.Result, "guide.md")
	})

	t.Run("traversal treated as missing file", func(t *testing.T) {
		result := tool.Execute(ctx, `{"skill_name": "pdf", "resource_type": "references", "filename": "../SKILL.md"}`)
		assert.Contains(t, result.Result, "not found")
	})
}

func TestBashTool(t *testing.T) {
	ctx := context.Background()

	t.Run("requires an active skill", func(t *testing.T) {
		manager, exec := newFixture(t)
		tool := NewBashTool(manager, exec)

		result := tool.Execute(ctx, `{"command": "echo hi"}`)
		assert.Contains(t, result.Result, "No skill is active")
	})

	t.Run("active skill without grants", func(t *testing.T) {
		manager, exec := newFixture(t)
		_, err := manager.Activate(ctx, "pdf")
		require.NoError(t, err)

		result := NewBashTool(manager, exec).Execute(ctx, `{"command": "echo hi"}`)
		assert.Contains(t, result.Result, "does not declare any allowed-tools")
	})

	t.Run("granted command runs", func(t *testing.T) {
		manager, exec := newFixture(t)
		_, err := manager.Activate(ctx, "scan")
		require.NoError(t, err)

		result := NewBashTool(manager, exec).Execute(ctx, `{"command": "echo granted"}`)
		assert.Equal(t, "granted", result.Result)
	})

	t.Run("ungranted command rejected with allowed list", func(t *testing.T) {
		manager, exec := newFixture(t)
		_, err := manager.Activate(ctx, "scan")
		require.NoError(t, err)

		result := NewBashTool(manager, exec).Execute(ctx, `{"command": "rm -rf /"}`)
		assert.Contains(t, result.Result, "Command 'rm' is not allowed by skill 'scan'")
		assert.Contains(t, result.Result, "Allowed commands: echo, true")
	})

	t.Run("only the first token is consulted", func(t *testing.T) {
		manager, exec := newFixture(t)
		_, err := manager.Activate(ctx, "scan")
		require.NoError(t, err)

		// "echoes" must not match the "echo" grant.
		result := NewBashTool(manager, exec).Execute(ctx, `{"command": "echoes hi"}`)
		assert.Contains(t, result.Result, "Command 'echoes' is not allowed")
	})
}

func TestAllowedCommands(t *testing.T) {
	skill := &skills.Skill{AllowedTools: "Bash(nmap:*) Read Bash(dig:*) Bash(nmap:*)"}
	assert.Equal(t, []string{"dig", "nmap"}, AllowedCommands(skill))
}

func TestNeedsBash(t *testing.T) {
	withGrant := &skills.Skill{AllowedTools: "Bash(nmap:*)"}
	without := &skills.Skill{AllowedTools: "Read Write"}

	assert.True(t, NeedsBash([]*skills.Skill{without, withGrant}))
	assert.False(t, NeedsBash([]*skills.Skill{without}))
	assert.False(t, NeedsBash(nil))
}

func TestDefaultTools(t *testing.T) {
	manager, exec := newFixture(t)

	ts := DefaultTools(manager, exec)
	require.Len(t, ts, 5)

	names := make([]string, 0, len(ts))
	for _, tool := range ts {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{"list_skills", "activate_skill", "run_skill_script", "read_skill_resource", "bash"}, names)
}

func TestRunTool(t *testing.T) {
	ctx := context.Background()
	manager, exec := newFixture(t)
	ts := DefaultTools(manager, exec)

	t.Run("dispatches by name", func(t *testing.T) {
		result := RunTool(ctx, ts, "list_skills", "{}")
		assert.False(t, result.IsError())
		assert.Contains(t, result.Result, "**pdf**")
	})

	t.Run("validation failures become errors", func(t *testing.T) {
		result := RunTool(ctx, ts, "activate_skill", "{}")
		assert.True(t, result.IsError())
		assert.Contains(t, result.Error, "skill_name is required")
	})

	t.Run("unknown tool", func(t *testing.T) {
		result := RunTool(ctx, ts, "teleport", "{}")
		assert.True(t, result.IsError())
		assert.Contains(t, result.Error, "unknown tool: teleport")
	})
}

func TestToolResultString(t *testing.T) {
	assert.Equal(t, "<result>\nok\n</result>\n", ToolResult{Result: "ok"}.String())
	assert.Equal(t, "<error>\nbad\n</error>\n", ToolResult{Error: "bad"}.String())
	assert.True(t, strings.HasPrefix(ToolResult{Result: "ok", Error: "bad"}.String(), "<error>"))
}
