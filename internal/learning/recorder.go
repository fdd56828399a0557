package learning

import (
	"context"
	"fmt"
	"time"
)

const defaultPatternLimit = 3

// Recorder persists practice attempts and maintains the per-tag error
// pattern counters.
type Recorder struct {
	store      Store
	curriculum CurriculumSource

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewRecorder creates an outcome recorder.
func NewRecorder(store Store, curriculum CurriculumSource) *Recorder {
	return &Recorder{store: store, curriculum: curriculum}
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Record validates and appends one outcome, then upserts an ErrorPattern
// for each distinct tag it carries. A validation failure persists
// nothing.
func (r *Recorder) Record(ctx context.Context, o Outcome) (string, error) {
	if err := validateOutcome(o); err != nil {
		return "", err
	}
	if r.curriculum != nil {
		if _, ok := r.curriculum.GetSkill(o.SkillCode); !ok {
			return "", fmt.Errorf("skill %q: %w", o.SkillCode, ErrNotFound)
		}
	}

	now := r.now()
	if o.AttemptedAt.IsZero() {
		o.AttemptedAt = now
	}

	id, err := r.store.AppendOutcome(ctx, o)
	if err != nil {
		return "", err
	}

	seen := make(map[string]bool, len(o.ErrorTags))
	for _, tag := range o.ErrorTags {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		if err := r.store.UpsertErrorPattern(ctx, o.LearnerID, o.SkillCode, tag, now); err != nil {
			return "", fmt.Errorf("recording error tag %q: %w", tag, err)
		}
	}

	return id, nil
}

// TopErrorPatterns returns the learner's most frequent error patterns,
// descending by occurrences.
func (r *Recorder) TopErrorPatterns(ctx context.Context, learnerID string, limit int) ([]ErrorPattern, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner: %w", ErrNotFound)
	}
	if limit <= 0 {
		limit = defaultPatternLimit
	}
	return r.store.TopErrorPatterns(ctx, learnerID, limit)
}

// SuggestRemediation maps the learner's top error patterns into remedial
// practice actions.
func (r *Recorder) SuggestRemediation(ctx context.Context, learnerID string) ([]RemediationAction, error) {
	patterns, err := r.TopErrorPatterns(ctx, learnerID, defaultPatternLimit)
	if err != nil {
		return nil, err
	}

	actions := make([]RemediationAction, 0, len(patterns))
	for _, p := range patterns {
		actions = append(actions, RemediationAction{
			Action:    "Remedial practice",
			Reason:    fmt.Sprintf("error pattern %q seen %d times", p.Tag, p.Occurrences),
			SkillCode: p.SkillCode,
		})
	}
	return actions, nil
}
