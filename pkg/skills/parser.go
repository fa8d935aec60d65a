package skills

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// Accepted definition file names, in preference order.
var skillFileNames = []string{"SKILL.md", "skill.md"}

// FindSkillFile locates the definition file in a skill directory. Prefers
// SKILL.md over skill.md; the first match wins.
func FindSkillFile(skillDir string) (string, bool) {
	for _, name := range skillFileNames {
		path := filepath.Join(skillDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// ParseFrontmatter splits SKILL.md content into its YAML frontmatter mapping
// and the trimmed markdown body. A nested "metadata" mapping has its keys and
// values coerced to strings.
func ParseFrontmatter(content []byte) (map[string]any, string, error) {
	text := string(content)

	if !strings.HasPrefix(text, "---") {
		return nil, "", &ParseError{Reason: "SKILL.md must start with YAML frontmatter (---)"}
	}

	parts := strings.SplitN(text, "---", 3)
	if len(parts) < 3 {
		return nil, "", &ParseError{Reason: "SKILL.md frontmatter not properly closed with ---"}
	}
	body := strings.TrimSpace(parts[2])

	md := goldmark.New(goldmark.WithExtensions(meta.Meta))

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, "", &ParseError{Reason: "failed to parse SKILL.md", Err: err}
	}

	metadata, err := meta.TryGet(pctx)
	if err != nil {
		return nil, "", &ParseError{Reason: "invalid YAML in frontmatter", Err: err}
	}
	if metadata == nil {
		return nil, "", &ParseError{Reason: "SKILL.md frontmatter must be a YAML mapping"}
	}

	if raw, ok := metadata["metadata"]; ok {
		metadata["metadata"] = coerceStringMap(raw)
	}

	return metadata, body, nil
}

// coerceStringMap converts arbitrary user-supplied extension data to a
// string-to-string mapping without type ambiguity.
func coerceStringMap(raw any) map[string]string {
	out := map[string]string{}
	switch m := raw.(type) {
	case map[string]any:
		for k, v := range m {
			out[k] = fmt.Sprintf("%v", v)
		}
	case map[any]any:
		for k, v := range m {
			out[fmt.Sprintf("%v", k)] = fmt.Sprintf("%v", v)
		}
	}
	return out
}

// ReadSkill reads a skill from a directory. With loadInstructions false
// (discovery mode) the body is parsed but discarded and the skill is left in
// StateDiscovered; with loadInstructions true the body becomes Instructions
// and the skill is StateActivated.
func ReadSkill(skillDir string, loadInstructions bool) (*Skill, error) {
	skillDir = canonicalDir(skillDir)

	skillFile, ok := FindSkillFile(skillDir)
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("SKILL.md not found in %s", skillDir)}
	}

	content, err := os.ReadFile(skillFile)
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("failed to read %s", skillFile), Err: err}
	}

	metadata, body, err := ParseFrontmatter(content)
	if err != nil {
		return nil, err
	}

	name, err := requiredString(metadata, "name")
	if err != nil {
		return nil, err
	}
	description, err := requiredString(metadata, "description")
	if err != nil {
		return nil, err
	}

	skill := &Skill{
		Name:          name,
		Description:   description,
		Path:          skillDir,
		State:         StateDiscovered,
		License:       optionalString(metadata, "license"),
		Compatibility: optionalString(metadata, "compatibility"),
		AllowedTools:  optionalString(metadata, "allowed-tools"),
		Metadata:      map[string]string{},
	}

	if m, ok := metadata["metadata"].(map[string]string); ok {
		skill.Metadata = m
	}

	if loadInstructions {
		skill.Instructions = body
		skill.State = StateActivated
	}

	return skill, nil
}

// ReadInstructions reads just the body text from a skill's SKILL.md. Used
// when activating an already-discovered skill, avoiding redundant metadata
// reconstruction.
func ReadInstructions(skillDir string) (string, error) {
	skillFile, ok := FindSkillFile(canonicalDir(skillDir))
	if !ok {
		return "", &ParseError{Reason: fmt.Sprintf("SKILL.md not found in %s", skillDir)}
	}

	content, err := os.ReadFile(skillFile)
	if err != nil {
		return "", &ParseError{Reason: fmt.Sprintf("failed to read %s", skillFile), Err: err}
	}

	_, body, err := ParseFrontmatter(content)
	if err != nil {
		return "", err
	}
	return body, nil
}

func requiredString(metadata map[string]any, field string) (string, error) {
	raw, ok := metadata[field]
	if !ok {
		return "", &ValidationError{Errors: []string{"missing required field in frontmatter: " + field}}
	}
	value, ok := raw.(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", &ValidationError{Errors: []string{fmt.Sprintf("field '%s' must be a non-empty string", field)}}
	}
	return strings.TrimSpace(value), nil
}

func optionalString(metadata map[string]any, field string) string {
	value, _ := metadata[field].(string)
	return value
}

// canonicalDir resolves a skill directory to an absolute path, following
// symlinks when possible.
func canonicalDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
