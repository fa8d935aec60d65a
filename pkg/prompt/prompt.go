// Package prompt renders discovered skill metadata into the text block
// injected into the agent's system instructions.
package prompt

import (
	"html"
	"strings"

	"github.com/skillet-dev/skillet/pkg/config"
	"github.com/skillet-dev/skillet/pkg/skills"
)

// Guidance explains the skills workflow to the agent. It accompanies the
// <available_skills> block in the system instructions.
const Guidance = `## Skills System

You have access to a skills system that extends your capabilities. Skills provide specialized
instructions, scripts, and resources for specific tasks.

### How to Use Skills

1. **Discover**: Use ` + "`list_skills`" + ` to see available skills and their descriptions
2. **Activate**: When a skill matches your task, use ` + "`activate_skill`" + ` to load its full instructions
3. **Follow**: Read and follow the skill's instructions carefully
4. **Execute**: Use ` + "`run_skill_script`" + ` to run any scripts the skill provides
5. **Reference**: Use ` + "`read_skill_resource`" + ` to access additional documentation or assets

### Important Guidelines

- Activate a skill when the task clearly matches its description
- Follow the skill's instructions precisely - they contain tested procedures
- Scripts are the recommended way to perform complex operations
- Reference files contain additional context - read them when the skill instructs you to
- Only one skill should be active at a time for clarity`

// SkillsBlock renders the <available_skills> XML fragment for the given
// skills, escaping special characters and truncating descriptions per the
// prompt configuration.
func SkillsBlock(available []*skills.Skill, cfg config.PromptConfig) string {
	if len(available) == 0 {
		return "<available_skills>\n(No skills currently available)\n</available_skills>"
	}

	var sb strings.Builder
	sb.WriteString("<available_skills>\n")

	for _, skill := range available {
		sb.WriteString("<skill>\n")
		sb.WriteString("<name>" + html.EscapeString(skill.Name) + "</name>\n")
		sb.WriteString("<description>" + html.EscapeString(truncate(skill.Description, cfg.MaxSkillDescription)) + "</description>\n")
		if cfg.IncludeCompatibility && skill.Compatibility != "" {
			sb.WriteString("<compatibility>" + html.EscapeString(skill.Compatibility) + "</compatibility>\n")
		}
		sb.WriteString("</skill>\n")
	}

	sb.WriteString("</available_skills>")
	return sb.String()
}

// BuildInstructions appends the skills guidance and the available-skills
// block to base task instructions.
func BuildInstructions(base string, available []*skills.Skill, cfg config.PromptConfig) string {
	return base + "\n\n" + Guidance + "\n\n" + SkillsBlock(available, cfg)
}

func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
