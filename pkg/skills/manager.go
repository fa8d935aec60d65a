package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"github.com/skillet-dev/skillet/pkg/logger"
)

// Manager orchestrates skill discovery, activation, and secure resource
// resolution. All state is guarded by a single lock so concurrent tool
// invocations stay safe; activation mutates catalog entries in place.
type Manager struct {
	mu             sync.RWMutex
	skillDirs      []string
	validateOnLoad bool
	strictMode     bool
	allowed        []glob.Glob

	skills map[string]*Skill
	order  []string
	active string
}

// Option configures a Manager.
type Option func(*Manager) error

// WithValidation controls discovery-time validation and strict mode.
func WithValidation(enabled, strict bool) Option {
	return func(m *Manager) error {
		m.validateOnLoad = enabled
		m.strictMode = strict
		return nil
	}
}

// WithAllowedSkills restricts discovery to skills whose names match one of
// the given glob patterns. An empty pattern list allows everything.
func WithAllowedSkills(patterns []string) Option {
	return func(m *Manager) error {
		for _, pattern := range patterns {
			g, err := glob.Compile(pattern)
			if err != nil {
				return errors.Wrapf(err, "invalid skill allowlist pattern %q", pattern)
			}
			m.allowed = append(m.allowed, g)
		}
		return nil
	}
}

// NewManager creates a Manager scanning the given root directories. Roots
// must already be absolute (the config layer resolves them).
func NewManager(skillDirs []string, opts ...Option) (*Manager, error) {
	m := &Manager{
		skillDirs:      skillDirs,
		validateOnLoad: true,
		skills:         map[string]*Skill{},
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Discover scans every configured root for immediate subdirectories
// containing a definition file and rebuilds the catalog from scratch. Roots
// are visited in configured order and subdirectories in lexical order, so
// first-name-wins deduplication is deterministic for a given filesystem
// state. Returns the accepted skill names in discovery order.
func (m *Manager) Discover(ctx context.Context) []string {
	log := logger.G(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.skills = map[string]*Skill{}
	m.order = nil

	for _, root := range m.skillDirs {
		info, err := os.Stat(root)
		if err != nil {
			log.WithField("dir", root).Warn("Skill directory does not exist")
			continue
		}
		if !info.IsDir() {
			log.WithField("dir", root).Warn("Skill path is not a directory")
			continue
		}

		// os.ReadDir returns entries sorted by name.
		entries, err := os.ReadDir(root)
		if err != nil {
			log.WithField("dir", root).WithError(err).Warn("Failed to read skill directory")
			continue
		}

		for _, entry := range entries {
			subdir := filepath.Join(root, entry.Name())
			info, err := os.Stat(subdir)
			if err != nil || !info.IsDir() {
				continue
			}

			if _, ok := FindSkillFile(subdir); !ok {
				continue
			}

			if m.validateOnLoad {
				findings := Validate(subdir)
				if m.strictMode && len(findings) == 0 {
					findings = ValidateStrict(subdir)
				}
				if len(findings) > 0 {
					log.WithField("dir", subdir).Warnf("Skipping invalid skill: %s", strings.Join(findings, "; "))
					continue
				}
			}

			skill, err := ReadSkill(subdir, false)
			if err != nil {
				log.WithField("dir", subdir).WithError(err).Warn("Failed to load skill")
				continue
			}

			if !m.skillAllowed(skill.Name) {
				log.WithField("skill", skill.Name).Debug("Skill excluded by allowlist")
				continue
			}

			if existing, ok := m.skills[skill.Name]; ok {
				log.WithField("skill", skill.Name).
					Warnf("Duplicate skill name at %s, keeping first from %s", subdir, existing.Path)
				continue
			}

			m.skills[skill.Name] = skill
			m.order = append(m.order, skill.Name)
		}
	}

	// A previously active skill that no longer exists is treated as cleared.
	if m.active != "" {
		if _, ok := m.skills[m.active]; !ok {
			m.active = ""
		}
	}

	log.WithField("count", len(m.order)).Infof("Discovered %d skills: %v", len(m.order), m.order)

	return append([]string(nil), m.order...)
}

func (m *Manager) skillAllowed(name string) bool {
	if len(m.allowed) == 0 {
		return true
	}
	for _, g := range m.allowed {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Skills returns all discovered skills in discovery order.
func (m *Manager) Skills() []*Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Skill, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.skills[name])
	}
	return out
}

// Names returns the discovered skill names in discovery order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// GetSkill returns a skill by name.
func (m *Manager) GetSkill(name string) (*Skill, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	skill, ok := m.skills[name]
	return skill, ok
}

// ActiveSkill returns the currently active skill, or nil when none is active.
func (m *Manager) ActiveSkill() *Skill {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil
	}
	return m.skills[m.active]
}

// Activate loads a skill's full instructions and marks it as the current
// active skill. Re-activating an already-activated skill only re-marks it
// current without reparsing.
func (m *Manager) Activate(ctx context.Context, name string) (*Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	skill, ok := m.skills[name]
	if !ok {
		return nil, &SkillNotFoundError{Name: name, Available: append([]string(nil), m.order...)}
	}

	if skill.State == StateActivated {
		m.active = name
		return skill, nil
	}

	instructions, err := ReadInstructions(skill.Path)
	if err != nil {
		return nil, &ValidationError{
			Errors: []string{"failed to load instructions for skill '" + name + "'"},
			Err:    err,
		}
	}

	skill.Instructions = instructions
	skill.State = StateActivated
	m.active = name

	logger.G(ctx).WithField("skill", name).Info("Activated skill")

	return skill, nil
}

// ListScripts lists the direct-child files of a skill's scripts directory.
func (m *Manager) ListScripts(skillName string) ([]string, error) {
	return m.listDirect(skillName, ResourceScripts)
}

// ListReferences lists the direct-child files of a skill's references
// directory.
func (m *Manager) ListReferences(skillName string) ([]string, error) {
	return m.listDirect(skillName, ResourceReferences)
}

func (m *Manager) listDirect(skillName, resourceType string) ([]string, error) {
	skill, err := m.lookup(skillName)
	if err != nil {
		return nil, err
	}

	dir := skill.resourceDir(resourceType)
	if dir == "" {
		return []string{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s directory", resourceType)
	}

	files := []string{}
	for _, entry := range entries {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// ListAssets lists a skill's asset files, recursing into subdirectories and
// returning paths relative to the assets root (e.g. "images/sample.png").
func (m *Manager) ListAssets(skillName string) ([]string, error) {
	skill, err := m.lookup(skillName)
	if err != nil {
		return nil, err
	}

	dir := skill.AssetsDir()
	if dir == "" {
		return []string{}, nil
	}

	matches, err := doublestar.FilepathGlob(filepath.Join(dir, "**"), doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assets")
	}

	assets := []string{}
	for _, match := range matches {
		rel, err := filepath.Rel(dir, match)
		if err != nil {
			continue
		}
		assets = append(assets, filepath.ToSlash(rel))
	}
	sort.Strings(assets)
	return assets, nil
}

// ResourcePath resolves a resource file against a skill's scripts/,
// references/, or assets/ directory and returns its canonical absolute path.
// The canonical path must stay inside the resource directory; traversal
// escapes and missing files both surface as ResourceNotFoundError.
func (m *Manager) ResourcePath(skillName, resourceType, filename string) (string, error) {
	skill, err := m.lookup(skillName)
	if err != nil {
		return "", err
	}

	switch resourceType {
	case ResourceScripts, ResourceReferences, ResourceAssets:
	default:
		return "", errors.Errorf("invalid resource type '%s': must be 'scripts', 'references', or 'assets'", resourceType)
	}

	notFound := &ResourceNotFoundError{Skill: skillName, ResourceType: resourceType, Filename: filename}

	dir := skill.resourceDir(resourceType)
	if dir == "" {
		return "", notFound
	}

	baseResolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return "", notFound
	}

	resolved, err := filepath.EvalSymlinks(filepath.Join(dir, filename))
	if err != nil {
		return "", notFound
	}

	if !strings.HasPrefix(resolved, baseResolved+string(os.PathSeparator)) {
		return "", notFound
	}

	return resolved, nil
}

func (m *Manager) lookup(skillName string) (*Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	skill, ok := m.skills[skillName]
	if !ok {
		return nil, &SkillNotFoundError{Name: skillName, Available: append([]string(nil), m.order...)}
	}
	return skill, nil
}
