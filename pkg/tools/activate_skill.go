package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/skills"
)

// maxListedAssets caps the asset listing in the activation response to bound
// prompt size.
const maxListedAssets = 10

// ActivateSkillTool loads a skill's full instructions and marks it active.
type ActivateSkillTool struct {
	manager *skills.Manager
}

// ActivateSkillInput defines the input parameters for activate_skill.
type ActivateSkillInput struct {
	SkillName string `json:"skill_name" jsonschema:"description=The name of the skill to activate"`
}

// NewActivateSkillTool creates the activate_skill tool.
func NewActivateSkillTool(manager *skills.Manager) *ActivateSkillTool {
	return &ActivateSkillTool{manager: manager}
}

func (t *ActivateSkillTool) Name() string {
	return "activate_skill"
}

func (t *ActivateSkillTool) Description() string {
	return "Activate a skill to receive its full instructions. " +
		"You must activate a skill before using its scripts or resources. " +
		"Pass the skill name as the argument (e.g., 'pdf', 'docx')."
}

func (t *ActivateSkillTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ActivateSkillInput]()
}

func (t *ActivateSkillTool) ValidateInput(parameters string) error {
	var input ActivateSkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if input.SkillName == "" {
		return errors.New("skill_name is required")
	}
	return nil
}

func (t *ActivateSkillTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input ActivateSkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("skill_name", input.SkillName),
	}, nil
}

func (t *ActivateSkillTool) Execute(ctx context.Context, parameters string) ToolResult {
	var input ActivateSkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return ToolResult{Error: err.Error()}
	}

	skill, err := t.manager.Activate(ctx, input.SkillName)
	if err != nil {
		var notFound *skills.SkillNotFoundError
		if errors.As(err, &notFound) {
			return ToolResult{Result: "Error: " + notFound.Error()}
		}
		return ToolResult{Result: fmt.Sprintf("Error activating skill '%s': %v", input.SkillName, err)}
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("# Skill '%s' Activated\n", skill.Name))

	if skill.Instructions != "" {
		parts = append(parts, skill.Instructions)
	} else {
		parts = append(parts, "(No instructions available)")
	}

	parts = append(parts, "\n---\n## Available Resources\n")

	scripts, _ := t.manager.ListScripts(skill.Name)
	if len(scripts) > 0 {
		parts = append(parts, "### Scripts")
		parts = append(parts, "Use `run_skill_script` to execute these. Run with --help first to see usage.")
		for _, script := range scripts {
			parts = append(parts, "- `"+script+"`")
		}
		parts = append(parts, "")
	}

	refs, _ := t.manager.ListReferences(skill.Name)
	if len(refs) > 0 {
		parts = append(parts, "### References")
		parts = append(parts, "Use `read_skill_resource` with resource_type='references' to read these.")
		for _, ref := range refs {
			parts = append(parts, "- `"+ref+"`")
		}
		parts = append(parts, "")
	}

	assets, _ := t.manager.ListAssets(skill.Name)
	if len(assets) > 0 {
		parts = append(parts, "### Assets")
		parts = append(parts, "Use `read_skill_resource` with resource_type='assets' to read these.")
		display := assets
		if len(display) > maxListedAssets {
			display = display[:maxListedAssets]
		}
		for _, asset := range display {
			parts = append(parts, "- `"+asset+"`")
		}
		if len(assets) > maxListedAssets {
			parts = append(parts, fmt.Sprintf("- ... and %d more", len(assets)-maxListedAssets))
		}
		parts = append(parts, "")
	}

	if len(scripts) == 0 && len(refs) == 0 && len(assets) == 0 {
		parts = append(parts, "(No additional resources available)")
	}

	return ToolResult{Result: strings.Join(parts, "\n")}
}
