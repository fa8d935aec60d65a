// Package tools adapts the skill manager and script executor to the
// string-in/string-out calling convention of the agent runtime. Every tool
// takes a JSON parameter payload and returns a ToolResult; errors never
// escape as panics or Go errors; they are converted to human-readable
// strings carrying remediation hints (available skills, scripts, allowed
// commands).
package tools

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/executor"
	"github.com/skillet-dev/skillet/pkg/skills"
)

// Tool is one named operation exposed to the agent runtime.
type Tool interface {
	Name() string
	Description() string
	GenerateSchema() *jsonschema.Schema
	ValidateInput(parameters string) error
	Execute(ctx context.Context, parameters string) ToolResult
	TracingKVs(parameters string) ([]attribute.KeyValue, error)
}

// ToolResult carries a tool's output. Error is reserved for malformed
// invocations (bad JSON parameters); domain failures are reported inside
// Result as plain text so the agent can read and act on them.
type ToolResult struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// IsError reports whether the invocation itself failed.
func (t ToolResult) IsError() bool {
	return t.Error != ""
}

// String renders the result for the agent runtime.
func (t ToolResult) String() string {
	out := ""
	if t.Error != "" {
		out = fmt.Sprintf("<error>\n%s\n</error>\n", t.Error)
	}
	if t.Result != "" {
		out += fmt.Sprintf("<result>\n%s\n</result>\n", t.Result)
	}
	return out
}

// GenerateSchema builds the JSON schema for a tool input type.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// DefaultTools returns the four skill tools, plus the bash tool when at least
// one discovered skill declares a Bash allowance in its frontmatter.
func DefaultTools(manager *skills.Manager, exec *executor.ScriptExecutor) []Tool {
	ts := []Tool{
		NewListSkillsTool(manager),
		NewActivateSkillTool(manager),
		NewRunScriptTool(manager, exec),
		NewReadResourceTool(manager),
	}

	if NeedsBash(manager.Skills()) {
		ts = append(ts, NewBashTool(manager, exec))
	}

	return ts
}

// RunTool validates and executes the named tool from the given set.
func RunTool(ctx context.Context, ts []Tool, name, parameters string) ToolResult {
	for _, tool := range ts {
		if tool.Name() != name {
			continue
		}
		if err := tool.ValidateInput(parameters); err != nil {
			return ToolResult{Error: err.Error()}
		}
		return tool.Execute(ctx, parameters)
	}
	return ToolResult{Error: fmt.Sprintf("unknown tool: %s", name)}
}
