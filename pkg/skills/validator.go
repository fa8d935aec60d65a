package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// maxDescriptionLength bounds skill descriptions in strict mode so a single
// skill cannot blow up the prompt block.
const maxDescriptionLength = 1024

// Validate applies semantic validation to a skill directory beyond what
// parsing enforces. It returns human-readable findings; an empty slice means
// the skill is acceptable for discovery.
func Validate(skillDir string) []string {
	return validate(skillDir, false)
}

// ValidateStrict additionally checks directory layout and description length.
func ValidateStrict(skillDir string) []string {
	return validate(skillDir, true)
}

func validate(skillDir string, strict bool) []string {
	var result *multierror.Error

	skillFile, ok := FindSkillFile(skillDir)
	if !ok {
		result = multierror.Append(result, fmt.Errorf("SKILL.md not found in %s", skillDir))
		return errorStrings(result)
	}

	content, err := os.ReadFile(skillFile)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("failed to read %s: %v", skillFile, err))
		return errorStrings(result)
	}

	metadata, _, err := ParseFrontmatter(content)
	if err != nil {
		result = multierror.Append(result, err)
		return errorStrings(result)
	}

	for _, field := range []string{"name", "description"} {
		raw, ok := metadata[field]
		if !ok {
			result = multierror.Append(result, fmt.Errorf("missing required field in frontmatter: %s", field))
			continue
		}
		value, ok := raw.(string)
		if !ok || strings.TrimSpace(value) == "" {
			result = multierror.Append(result, fmt.Errorf("field '%s' must be a non-empty string", field))
		}
	}

	if strict {
		if description, ok := metadata["description"].(string); ok && len(description) > maxDescriptionLength {
			result = multierror.Append(result,
				fmt.Errorf("description exceeds %d characters", maxDescriptionLength))
		}

		for _, name := range []string{ResourceScripts, ResourceReferences, ResourceAssets} {
			path := filepath.Join(skillDir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				result = multierror.Append(result, fmt.Errorf("%s exists but is not a directory", name))
			}
		}
	}

	return errorStrings(result)
}

func errorStrings(result *multierror.Error) []string {
	if result == nil {
		return nil
	}
	findings := make([]string, 0, len(result.Errors))
	for _, err := range result.Errors {
		findings = append(findings, err.Error())
	}
	return findings
}
