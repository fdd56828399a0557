package curriculum

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry is the read-only skill registry. It is built once at process
// start and never mutated afterwards, so lookups need no locking.
type Registry struct {
	byCode    map[string]Skill
	byLevel   map[string][]Skill
	overrides map[string][]string
}

// NewRegistry builds a registry from loaded skills and prerequisite
// overrides. Duplicate codes and prerequisite cycles are errors; an edge
// pointing at an unknown code is kept but logged, since curricula are
// often loaded in partial slices.
func NewRegistry(skills []Skill, overrides []PrerequisiteOverride) (*Registry, error) {
	r := &Registry{
		byCode:    make(map[string]Skill, len(skills)),
		byLevel:   make(map[string][]Skill),
		overrides: make(map[string][]string),
	}

	for _, s := range skills {
		if s.Code == "" {
			return nil, fmt.Errorf("skill with empty code (name %q)", s.Name)
		}
		if _, dup := r.byCode[s.Code]; dup {
			return nil, fmt.Errorf("duplicate skill code %q", s.Code)
		}
		r.byCode[s.Code] = s
		r.byLevel[s.Level] = append(r.byLevel[s.Level], s)
	}

	for level := range r.byLevel {
		sort.Slice(r.byLevel[level], func(i, j int) bool {
			return r.byLevel[level][i].Code < r.byLevel[level][j].Code
		})
	}

	for _, ov := range overrides {
		if _, ok := r.byCode[ov.Skill]; !ok {
			slog.Warn("prerequisite override for unknown skill", "code", ov.Skill)
		}
		r.overrides[ov.Skill] = append(r.overrides[ov.Skill], ov.Prerequisites...)
	}

	for _, s := range r.byCode {
		for _, p := range s.Prerequisites {
			if _, ok := r.byCode[p]; !ok {
				slog.Warn("prerequisite references unknown skill", "code", s.Code, "prerequisite", p)
			}
		}
	}

	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}

	return r, nil
}

// checkAcyclic runs Kahn's algorithm over the declared and override
// prerequisite edges and fails if any skill never reaches in-degree zero.
func (r *Registry) checkAcyclic() error {
	inDegree := make(map[string]int, len(r.byCode))
	dependents := make(map[string][]string)

	addEdge := func(code, prereq string) {
		if _, ok := r.byCode[prereq]; !ok {
			return
		}
		inDegree[code]++
		dependents[prereq] = append(dependents[prereq], code)
	}

	for code, s := range r.byCode {
		for _, p := range s.Prerequisites {
			addEdge(code, p)
		}
	}
	for code, prereqs := range r.overrides {
		if _, ok := r.byCode[code]; !ok {
			continue
		}
		for _, p := range prereqs {
			addEdge(code, p)
		}
	}

	var queue []string
	for code := range r.byCode {
		if inDegree[code] == 0 {
			queue = append(queue, code)
		}
	}

	visited := 0
	for len(queue) > 0 {
		code := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[code] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(r.byCode) {
		return fmt.Errorf("prerequisite graph contains a cycle (%d of %d skills reachable)", visited, len(r.byCode))
	}
	return nil
}

// GetSkill returns the skill for a code.
func (r *Registry) GetSkill(code string) (Skill, bool) {
	s, ok := r.byCode[code]
	return s, ok
}

// DeclaredPrerequisites returns the curriculum-declared prerequisites for
// a code. The returned slice is a copy.
func (r *Registry) DeclaredPrerequisites(code string) []string {
	s, ok := r.byCode[code]
	if !ok {
		return nil
	}
	out := make([]string, len(s.Prerequisites))
	copy(out, s.Prerequisites)
	return out
}

// OverridePrerequisites returns the explicit override edges for a code.
func (r *Registry) OverridePrerequisites(code string) []string {
	out := make([]string, len(r.overrides[code]))
	copy(out, r.overrides[code])
	return out
}

// SkillsOf returns all skills of a level, sorted by code.
func (r *Registry) SkillsOf(level string) []Skill {
	skills := r.byLevel[level]
	out := make([]Skill, len(skills))
	copy(out, skills)
	return out
}

// IsQualitativeLeap reports whether a skill is flagged as a major
// difficulty jump. Unknown codes report false.
func (r *Registry) IsQualitativeLeap(code string) bool {
	return r.byCode[code].QualitativeLeap
}

// Levels returns all known levels, sorted.
func (r *Registry) Levels() []string {
	levels := make([]string, 0, len(r.byLevel))
	for l := range r.byLevel {
		levels = append(levels, l)
	}
	sort.Strings(levels)
	return levels
}

// Len returns the number of loaded skills.
func (r *Registry) Len() int {
	return len(r.byCode)
}
