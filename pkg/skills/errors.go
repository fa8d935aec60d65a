package skills

import (
	"fmt"
	"strings"
)

// ParseError indicates a missing or malformed SKILL.md file.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError indicates that a skill failed semantic validation. Errors
// carries the individual human-readable findings.
type ValidationError struct {
	Errors []string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := strings.Join(e.Errors, "; ")
	if e.Err != nil {
		if msg != "" {
			return msg + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SkillNotFoundError indicates a lookup for an unknown skill name. Available
// carries the currently known names for user guidance.
type SkillNotFoundError struct {
	Name      string
	Available []string
}

func (e *SkillNotFoundError) Error() string {
	msg := fmt.Sprintf("skill '%s' not found", e.Name)
	if len(e.Available) > 0 {
		msg += ". Available: " + strings.Join(e.Available, ", ")
	}
	return msg
}

// ResourceNotFoundError indicates a missing skill resource. Path-containment
// violations deliberately surface as this same error so that traversal
// attempts are indistinguishable from plain missing files.
type ResourceNotFoundError struct {
	Skill        string
	ResourceType string
	Filename     string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource '%s' not found in %s/%s/", e.Filename, e.Skill, e.ResourceType)
}
