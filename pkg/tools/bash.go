package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/executor"
	"github.com/skillet-dev/skillet/pkg/skills"
)

// allowedToolPattern extracts command prefixes from Bash(<command>:*) grants
// in a skill's allowed-tools declaration.
var allowedToolPattern = regexp.MustCompile(`Bash\(([^:]+):\*\)`)

// BashTool executes shell commands scoped to the active skill's allowed-tools
// declaration. Only the active skill's grants are consulted; declarations
// from inactive skills never apply.
type BashTool struct {
	manager  *skills.Manager
	executor *executor.ScriptExecutor
}

// BashInput defines the input parameters for bash.
type BashInput struct {
	Command string `json:"command" jsonschema:"description=The bash command to run"`
}

// NewBashTool creates the bash tool.
func NewBashTool(manager *skills.Manager, exec *executor.ScriptExecutor) *BashTool {
	return &BashTool{manager: manager, executor: exec}
}

// NeedsBash reports whether any skill declares a Bash allowance, which is
// what gates registration of the bash tool.
func NeedsBash(available []*skills.Skill) bool {
	for _, skill := range available {
		if strings.Contains(skill.AllowedTools, "Bash(") {
			return true
		}
	}
	return false
}

// AllowedCommands extracts the command prefixes a skill pre-approves.
func AllowedCommands(skill *skills.Skill) []string {
	matches := allowedToolPattern.FindAllStringSubmatch(skill.AllowedTools, -1)
	seen := map[string]bool{}
	var commands []string
	for _, match := range matches {
		if !seen[match[1]] {
			seen[match[1]] = true
			commands = append(commands, match[1])
		}
	}
	sort.Strings(commands)
	return commands
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) Description() string {
	return "Execute a bash command. Commands are restricted to those allowed " +
		"by the currently active skill's allowed-tools declaration."
}

func (t *BashTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[BashInput]()
}

func (t *BashTool) ValidateInput(parameters string) error {
	var input BashInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if strings.TrimSpace(input.Command) == "" {
		return errors.New("command is required")
	}
	return nil
}

func (t *BashTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input BashInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("command", input.Command),
	}, nil
}

func (t *BashTool) Execute(ctx context.Context, parameters string) ToolResult {
	var input BashInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return ToolResult{Error: err.Error()}
	}

	active := t.manager.ActiveSkill()
	if active == nil {
		return ToolResult{Result: "Error: No skill is active. Activate a skill first."}
	}

	if active.AllowedTools == "" {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Skill '%s' does not declare any allowed-tools.", active.Name)}
	}

	allowed := AllowedCommands(active)
	if len(allowed) == 0 {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Skill '%s' does not allow any bash commands.", active.Name)}
	}

	parts := strings.Fields(input.Command)
	if len(parts) == 0 {
		return ToolResult{Result: "Error: Empty command"}
	}

	baseCommand := parts[0]
	permitted := false
	for _, command := range allowed {
		if baseCommand == command {
			permitted = true
			break
		}
	}
	if !permitted {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Command '%s' is not allowed by skill '%s'. Allowed commands: %s",
			baseCommand, active.Name, strings.Join(allowed, ", "))}
	}

	return ToolResult{Result: t.executor.RunCommand(ctx, input.Command, 0)}
}
