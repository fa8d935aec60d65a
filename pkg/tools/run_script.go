package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/executor"
	"github.com/skillet-dev/skillet/pkg/skills"
)

// RunScriptTool resolves and executes a script from an activated skill.
type RunScriptTool struct {
	manager  *skills.Manager
	executor *executor.ScriptExecutor
}

// RunScriptInput defines the input parameters for run_skill_script.
type RunScriptInput struct {
	SkillName  string `json:"skill_name" jsonschema:"description=The name of the skill containing the script"`
	ScriptName string `json:"script_name" jsonschema:"description=The name of the script file (e.g. 'extract.py')"`
	Arguments  string `json:"arguments,omitempty" jsonschema:"description=Space-separated arguments to pass to the script"`
}

// NewRunScriptTool creates the run_skill_script tool.
func NewRunScriptTool(manager *skills.Manager, exec *executor.ScriptExecutor) *RunScriptTool {
	return &RunScriptTool{manager: manager, executor: exec}
}

func (t *RunScriptTool) Name() string {
	return "run_skill_script"
}

func (t *RunScriptTool) Description() string {
	return "Run a script from an activated skill. " +
		"Scripts perform specific operations like extracting data or processing files. " +
		"Pass skill_name, script_name, and optional arguments."
}

func (t *RunScriptTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[RunScriptInput]()
}

func (t *RunScriptTool) ValidateInput(parameters string) error {
	var input RunScriptInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if input.SkillName == "" {
		return errors.New("skill_name is required")
	}
	if input.ScriptName == "" {
		return errors.New("script_name is required")
	}
	return nil
}

func (t *RunScriptTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input RunScriptInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("skill_name", input.SkillName),
		attribute.String("script_name", input.ScriptName),
		attribute.String("arguments", input.Arguments),
	}, nil
}

func (t *RunScriptTool) Execute(ctx context.Context, parameters string) ToolResult {
	var input RunScriptInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return ToolResult{Error: err.Error()}
	}

	skill, ok := t.manager.GetSkill(input.SkillName)
	if !ok {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Skill '%s' not found. Available skills: %s",
			input.SkillName, nameList(t.manager.Names()))}
	}

	if skill.State != skills.StateActivated {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Skill '%s' must be activated before running scripts. Use `activate_skill('%s')` first.",
			input.SkillName, input.SkillName)}
	}

	scriptPath, err := t.manager.ResourcePath(input.SkillName, skills.ResourceScripts, input.ScriptName)
	if err != nil {
		var notFound *skills.ResourceNotFoundError
		if errors.As(err, &notFound) {
			available, _ := t.manager.ListScripts(input.SkillName)
			return ToolResult{Result: fmt.Sprintf(
				"Error: Script '%s' not found. Available scripts: %s",
				input.ScriptName, nameList(available))}
		}
		return ToolResult{Result: "Error: " + err.Error()}
	}

	arguments := strings.Fields(input.Arguments)

	result, err := t.executor.Run(ctx, scriptPath, arguments, skill.Path, 0)
	if err != nil {
		var security *executor.SecurityError
		if errors.As(err, &security) {
			return ToolResult{Result: "Security error: " + security.Error()}
		}
		var execErr *executor.ExecutionError
		if errors.As(err, &execErr) {
			return ToolResult{Result: "Execution error: " + execErr.Error()}
		}
		return ToolResult{Result: "Error running script: " + err.Error()}
	}

	if result.TimedOut {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Script timed out after %d seconds", int(t.executor.Timeout().Seconds()))}
	}

	if result.ReturnCode == 0 {
		output := strings.TrimSpace(result.Stdout)
		if output == "" {
			output = "(no output)"
		}
		return ToolResult{Result: "Script executed successfully:\n\n" + output}
	}

	errorOutput := strings.TrimSpace(result.Stderr)
	if errorOutput == "" {
		errorOutput = strings.TrimSpace(result.Stdout)
	}
	if errorOutput == "" {
		errorOutput = "(no error output)"
	}
	return ToolResult{Result: fmt.Sprintf(
		"Script exited with code %d:\n\n%s", result.ReturnCode, errorOutput)}
}

func nameList(names []string) string {
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
