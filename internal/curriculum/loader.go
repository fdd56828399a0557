// Package curriculum loads and indexes read-only curriculum content.
// Skill definitions arrive as YAML documents or XLSX workbooks under a
// content directory; the result is an immutable in-process registry.
package curriculum

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// OverridesFileName is the well-known name of the prerequisite override
// file inside the curriculum directory.
const OverridesFileName = "prerequisite_overrides.yaml"

// Load walks rootDir, collects every skill definition it finds, and
// builds the registry. YAML files that fail schema validation are skipped
// with a warning rather than failing the whole load.
func Load(rootDir string) (*Registry, error) {
	var (
		skills    []Skill
		overrides []PrerequisiteOverride
	)

	err := filepath.Walk(rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}

		switch {
		case filepath.Base(path) == OverridesFileName:
			loaded, err := loadOverrides(path)
			if err != nil {
				return err
			}
			overrides = append(overrides, loaded...)
		case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
			skill, ok := loadSkillYAML(path)
			if ok {
				skills = append(skills, skill)
			}
		case strings.HasSuffix(path, ".xlsx"):
			loaded, err := LoadWorkbook(path)
			if err != nil {
				return fmt.Errorf("loading workbook %s: %w", path, err)
			}
			skills = append(skills, loaded...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	reg, err := NewRegistry(skills, overrides)
	if err != nil {
		return nil, fmt.Errorf("building curriculum registry: %w", err)
	}

	slog.Info("curriculum loaded", "skills", reg.Len(), "overrides", len(overrides))
	return reg, nil
}

// loadSkillYAML reads a YAML file and returns the skill it defines.
// Files without a code field are not skill files and are ignored; files
// that fail schema validation are skipped with a warning.
func loadSkillYAML(path string) (Skill, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("skipping unreadable curriculum file", "path", path, "error", err)
		return Skill{}, false
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping invalid skill YAML", "path", path, "error", err)
		return Skill{}, false
	}
	if _, hasCode := raw["code"]; !hasCode {
		return Skill{}, false // Not a skill file
	}

	if err := validateSkillDocument(raw); err != nil {
		slog.Warn("skipping skill failing schema validation", "path", path, "error", err)
		return Skill{}, false
	}

	var skill Skill
	if err := yaml.Unmarshal(data, &skill); err != nil {
		slog.Warn("skipping invalid skill YAML", "path", path, "error", err)
		return Skill{}, false
	}
	return skill, true
}

func loadOverrides(path string) ([]PrerequisiteOverride, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading overrides: %w", err)
	}

	var f overridesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing overrides: %w", err)
	}
	return f.Overrides, nil
}
