package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/skillet-dev/skillet/pkg/skills"
)

// maxContentSize bounds returned file content to prevent context overflow.
const maxContentSize = 50000

// binaryExtensions are returned as a path notice instead of decoded content.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".pdf": true,
	".zip": true, ".tar": true, ".gz": true, ".ttf": true, ".otf": true,
	".woff": true, ".woff2": true, ".ico": true, ".bmp": true, ".webp": true,
	".mp3": true, ".mp4": true, ".wav": true,
}

// ReadResourceTool reads a reference or asset file from a skill.
type ReadResourceTool struct {
	manager *skills.Manager
}

// ReadResourceInput defines the input parameters for read_skill_resource.
type ReadResourceInput struct {
	SkillName    string `json:"skill_name" jsonschema:"description=The name of the skill"`
	ResourceType string `json:"resource_type" jsonschema:"description=Type of resource - must be 'references' or 'assets'"`
	Filename     string `json:"filename" jsonschema:"description=Name of the file to read (may include a subdirectory for assets)"`
}

// NewReadResourceTool creates the read_skill_resource tool.
func NewReadResourceTool(manager *skills.Manager) *ReadResourceTool {
	return &ReadResourceTool{manager: manager}
}

func (t *ReadResourceTool) Name() string {
	return "read_skill_resource"
}

func (t *ReadResourceTool) Description() string {
	return "Read a reference document or asset file from a skill. " +
		"Use this to get additional documentation or templates. " +
		"Pass skill_name, resource_type ('references' or 'assets'), and filename."
}

func (t *ReadResourceTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[ReadResourceInput]()
}

func (t *ReadResourceTool) ValidateInput(parameters string) error {
	var input ReadResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	if input.SkillName == "" {
		return errors.New("skill_name is required")
	}
	if input.ResourceType == "" {
		return errors.New("resource_type is required")
	}
	if input.Filename == "" {
		return errors.New("filename is required")
	}
	return nil
}

func (t *ReadResourceTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input ReadResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}
	return []attribute.KeyValue{
		attribute.String("skill_name", input.SkillName),
		attribute.String("resource_type", input.ResourceType),
		attribute.String("filename", input.Filename),
	}, nil
}

func (t *ReadResourceTool) Execute(_ context.Context, parameters string) ToolResult {
	var input ReadResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return ToolResult{Error: err.Error()}
	}

	// Scripts are executed, not read, through this path.
	if input.ResourceType != skills.ResourceReferences && input.ResourceType != skills.ResourceAssets {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Invalid resource_type '%s'. Must be 'references' or 'assets'.", input.ResourceType)}
	}

	skill, ok := t.manager.GetSkill(input.SkillName)
	if !ok {
		return ToolResult{Result: fmt.Sprintf(
			"Error: Skill '%s' not found. Available skills: %s",
			input.SkillName, nameList(t.manager.Names()))}
	}

	// Reading without activation is allowed, but worth an advisory note.
	activationNote := ""
	if skill.State != skills.StateActivated {
		activationNote = "\n\n*Note: This skill is not currently activated. " +
			"Consider using `activate_skill` first to get the full instructions.*\n"
	}

	resourcePath, err := t.manager.ResourcePath(input.SkillName, input.ResourceType, input.Filename)
	if err != nil {
		var notFound *skills.ResourceNotFoundError
		if errors.As(err, &notFound) {
			var available []string
			if input.ResourceType == skills.ResourceReferences {
				available, _ = t.manager.ListReferences(input.SkillName)
			} else {
				available, _ = t.manager.ListAssets(input.SkillName)
			}
			return ToolResult{Result: fmt.Sprintf(
				"Error: File '%s' not found in %s/%s/. Available files: %s",
				input.Filename, input.SkillName, input.ResourceType, nameList(available))}
		}
		return ToolResult{Result: "Error: " + err.Error()}
	}

	if binaryExtensions[strings.ToLower(filepath.Ext(resourcePath))] {
		return ToolResult{Result: fmt.Sprintf(
			"# %s\n\nThis is a binary file (%s). Path: `%s`\nUse appropriate tools to work with this file type.%s",
			input.Filename, filepath.Ext(resourcePath), resourcePath, activationNote)}
	}

	content, err := os.ReadFile(resourcePath)
	if err != nil {
		return ToolResult{Result: "Error reading file: " + err.Error()}
	}

	if !utf8.Valid(content) {
		return ToolResult{Result: fmt.Sprintf(
			"# %s\n\nThis file appears to be binary or uses an unsupported encoding. Path: `%s`%s",
			input.Filename, resourcePath, activationNote)}
	}

	text := string(content)
	truncated := false
	if runes := []rune(text); len(runes) > maxContentSize {
		text = string(runes[:maxContentSize])
		truncated = true
	}

	result := fmt.Sprintf("# %s\n\n%s", input.Filename, text)
	if truncated {
		result += fmt.Sprintf("\n\n---\n*[Content truncated - file exceeds %d characters]*", maxContentSize)
	}
	result += activationNote

	return ToolResult{Result: result}
}
