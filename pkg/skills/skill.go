// Package skills implements an agentic skills catalog with progressive
// disclosure. Skills are packaged as directories containing a SKILL.md file
// with YAML frontmatter; discovery loads metadata only, activation loads the
// full instructions, and scripts/references/assets are resolved on demand
// with path-containment checks.
package skills

import (
	"os"
	"path/filepath"
)

// State represents the loading state of a skill.
type State string

const (
	// StateDiscovered means only metadata has been loaded.
	StateDiscovered State = "discovered"
	// StateActivated means the full instructions have been loaded.
	StateActivated State = "activated"
)

// Resource subdirectory names inside a skill bundle.
const (
	ResourceScripts    = "scripts"
	ResourceReferences = "references"
	ResourceAssets     = "assets"
)

// Skill represents a discovered capability bundle. Name, Description, and
// Path are immutable after construction; Instructions and State mutate only
// through Manager.Activate.
type Skill struct {
	Name          string            // Unique name from frontmatter
	Description   string            // What the skill does and when to use it
	Path          string            // Absolute path to the skill directory
	State         State             // discovered or activated
	License       string            // Optional license information
	Compatibility string            // Optional environment requirements
	AllowedTools  string            // Optional space-delimited pre-approved tool grants
	Metadata      map[string]string // Optional extension fields
	Instructions  string            // Full instructions, loaded on activation
}

// ScriptsDir returns the scripts/ directory, or "" if it does not exist.
func (s *Skill) ScriptsDir() string {
	return s.resourceDir(ResourceScripts)
}

// ReferencesDir returns the references/ directory, or "" if it does not exist.
func (s *Skill) ReferencesDir() string {
	return s.resourceDir(ResourceReferences)
}

// AssetsDir returns the assets/ directory, or "" if it does not exist.
func (s *Skill) AssetsDir() string {
	return s.resourceDir(ResourceAssets)
}

// HasScripts reports whether the skill bundles a scripts directory.
func (s *Skill) HasScripts() bool {
	return s.ScriptsDir() != ""
}

// HasReferences reports whether the skill bundles a references directory.
func (s *Skill) HasReferences() bool {
	return s.ReferencesDir() != ""
}

func (s *Skill) resourceDir(name string) string {
	dir := filepath.Join(s.Path, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return ""
	}
	return dir
}
