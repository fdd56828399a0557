package learning

import (
	"context"
	"fmt"
	"strings"
)

// Resolver answers prerequisite questions over the curriculum graph and
// learner progress. It exposes two deliberately distinct notions of
// "blocked": the skill-graph view (unmastered prerequisites) and the
// performance view (repeated recent failures on the skill itself). They
// answer different questions and are never merged.
type Resolver struct {
	curriculum CurriculumSource
	store      Store
	policy     Policy
}

// NewResolver creates a prerequisite resolver.
func NewResolver(curriculum CurriculumSource, store Store, policy Policy) *Resolver {
	return &Resolver{curriculum: curriculum, store: store, policy: policy.withDefaults()}
}

// PrerequisitesOf returns the deduplicated union of explicit override
// edges and curriculum-declared prerequisites, overrides first.
func (r *Resolver) PrerequisitesOf(skillCode string) ([]string, error) {
	if _, ok := r.curriculum.GetSkill(skillCode); !ok {
		return nil, fmt.Errorf("skill %q: %w", skillCode, ErrNotFound)
	}

	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, p := range r.curriculum.OverridePrerequisites(skillCode) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range r.curriculum.DeclaredPrerequisites(skillCode) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// IsBlockedByPrerequisites reports the skill-graph view: the learner is
// blocked when any prerequisite has no Progress row or is not mastered.
// Every such prerequisite is returned as both blocking and missing.
func (r *Resolver) IsBlockedByPrerequisites(ctx context.Context, learnerID, skillCode string) (BlockedResult, error) {
	prereqs, err := r.PrerequisitesOf(skillCode)
	if err != nil {
		return BlockedResult{}, err
	}
	if len(prereqs) == 0 {
		return BlockedResult{}, nil
	}

	progress, err := r.store.ProgressForSkills(ctx, learnerID, prereqs)
	if err != nil {
		return BlockedResult{}, fmt.Errorf("loading prerequisite progress: %w", err)
	}

	var blocking []string
	for _, code := range prereqs {
		p, ok := progress[code]
		if !ok || p.MasteryLevel != LevelMastered {
			blocking = append(blocking, code)
		}
	}

	return BlockedResult{
		IsBlocked:             len(blocking) > 0,
		BlockingPrerequisites: blocking,
		MissingPrerequisites:  blocking,
	}, nil
}

// IsStrugglingOnSkill reports the performance view: enough incorrect
// outcomes among the learner's recent attempts on this very skill.
func (r *Resolver) IsStrugglingOnSkill(ctx context.Context, learnerID, skillCode string) (StruggleResult, error) {
	if _, ok := r.curriculum.GetSkill(skillCode); !ok {
		return StruggleResult{}, fmt.Errorf("skill %q: %w", skillCode, ErrNotFound)
	}

	window, err := r.store.RecentOutcomes(ctx, learnerID, skillCode, r.policy.StruggleWindow)
	if err != nil {
		return StruggleResult{}, fmt.Errorf("loading outcome window: %w", err)
	}

	failures := 0
	for _, o := range window {
		if !o.IsCorrect {
			failures++
		}
	}

	return StruggleResult{
		IsStruggling:   failures >= r.policy.StruggleFailures,
		RecentFailures: failures,
		WindowSize:     r.policy.StruggleWindow,
	}, nil
}

// RemediationFor returns one review action per blocking prerequisite, or
// nothing when the learner is not blocked.
func (r *Resolver) RemediationFor(ctx context.Context, learnerID, skillCode string) ([]RemediationAction, error) {
	blocked, err := r.IsBlockedByPrerequisites(ctx, learnerID, skillCode)
	if err != nil {
		return nil, err
	}
	if !blocked.IsBlocked {
		return nil, nil
	}

	actions := make([]RemediationAction, 0, len(blocked.BlockingPrerequisites))
	for _, code := range blocked.BlockingPrerequisites {
		name := code
		if skill, ok := r.curriculum.GetSkill(code); ok && skill.Name != "" {
			name = skill.Name
		}
		actions = append(actions, RemediationAction{
			Action:           "Review prerequisite",
			PrerequisiteCode: code,
			Reason:           fmt.Sprintf("%s must be mastered before %s", name, skillCode),
		})
	}
	return actions, nil
}

// describeMissing renders a blocked skill's missing prerequisites for
// recommendation reasons.
func describeMissing(missing []string) string {
	return "missing prerequisites: " + strings.Join(missing, ", ")
}
