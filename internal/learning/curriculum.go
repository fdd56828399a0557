package learning

import "github.com/p-n-ai/pai-core/internal/curriculum"

// CurriculumSource is the read-only curriculum collaborator consumed by
// the core. *curriculum.Registry satisfies it.
type CurriculumSource interface {
	GetSkill(code string) (curriculum.Skill, bool)
	DeclaredPrerequisites(code string) []string
	OverridePrerequisites(code string) []string
	SkillsOf(level string) []curriculum.Skill
	IsQualitativeLeap(code string) bool
}
