package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/skills"
)

// ListSkillsTool enumerates the discovered skills with their metadata.
type ListSkillsTool struct {
	manager *skills.Manager
}

// ListSkillsInput has no parameters.
type ListSkillsInput struct{}

// NewListSkillsTool creates the list_skills tool.
func NewListSkillsTool(manager *skills.Manager) *ListSkillsTool {
	return &ListSkillsTool{manager: manager}
}

func (t *ListSkillsTool) Name() string {
	return "list_skills"
}

func (t *ListSkillsTool) Description() string {
	return "List all available skills with their names and descriptions. " +
		"Use this to discover what capabilities are available for the current task."
}

func (t *ListSkillsTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ListSkillsInput]()
}

func (t *ListSkillsTool) ValidateInput(_ string) error {
	return nil
}

func (t *ListSkillsTool) TracingKVs(_ string) ([]attribute.KeyValue, error) {
	return nil, nil
}

func (t *ListSkillsTool) Execute(_ context.Context, _ string) ToolResult {
	available := t.manager.Skills()

	if len(available) == 0 {
		return ToolResult{Result: "No skills are currently available."}
	}

	var lines []string
	lines = append(lines, "Available skills:\n")

	for _, skill := range available {
		status := ""
		if skill.State == skills.StateActivated {
			status = " [ACTIVE]"
		}
		lines = append(lines, fmt.Sprintf("**%s**%s", skill.Name, status))
		lines = append(lines, "  "+skill.Description)

		if skill.Compatibility != "" {
			lines = append(lines, "  Compatibility: "+skill.Compatibility)
		}

		// Activated skills additionally show their available resources.
		if skill.State == skills.StateActivated {
			var resources []string
			if scripts, err := t.manager.ListScripts(skill.Name); err == nil && len(scripts) > 0 {
				resources = append(resources, "scripts: "+strings.Join(scripts, ", "))
			}
			if refs, err := t.manager.ListReferences(skill.Name); err == nil && len(refs) > 0 {
				resources = append(resources, "references: "+strings.Join(refs, ", "))
			}
			if len(resources) > 0 {
				lines = append(lines, "  Resources: "+strings.Join(resources, "; "))
			}
		}

		lines = append(lines, "")
	}

	return ToolResult{Result: strings.Join(lines, "\n")}
}
