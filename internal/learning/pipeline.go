// Package learning implements the adaptive-learning core: after every
// practice attempt it re-estimates mastery, reschedules spaced-repetition
// review, evaluates prerequisite blocking and derives recommendations.
package learning

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EngineConfig holds dependencies for the engine. Store defaults to an
// in-memory store, Policy to DefaultPolicy; Curriculum is required.
type EngineConfig struct {
	Store      Store
	Curriculum CurriculumSource
	Cache      SnapshotCache // optional
	Policy     Policy
	Now        func() time.Time // optional, for tests
}

// Engine composes the five components into the per-attempt pipeline and
// the caller-facing query surface.
type Engine struct {
	store       Store
	curriculum  CurriculumSource
	cache       SnapshotCache
	policy      Policy
	now         func() time.Time
	resolver    *Resolver
	recommender *Recommender
}

// NewEngine creates the composed learning engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	policy := cfg.Policy.withDefaults()

	resolver := NewResolver(cfg.Curriculum, store, policy)
	return &Engine{
		store:       store,
		curriculum:  cfg.Curriculum,
		cache:       cfg.Cache,
		policy:      policy,
		now:         now,
		resolver:    resolver,
		recommender: NewRecommender(store, cfg.Curriculum, resolver, cfg.Cache),
	}
}

// ProcessOutcome runs the composed per-attempt pipeline: record the
// outcome, recompute mastery, reschedule review — all three inside the
// pair's atomic section — then annotate blocking state and remediation.
// Each stage is idempotent given the same outcome window, so the caller
// may retry the whole call on ErrConflict or transient storage errors;
// the engine itself never retries.
func (e *Engine) ProcessOutcome(ctx context.Context, o Outcome) (AttemptResult, error) {
	// Reject malformed outcomes before entering the pair section.
	if err := validateOutcome(o); err != nil {
		return AttemptResult{}, err
	}
	skill, ok := e.curriculum.GetSkill(o.SkillCode)
	if !ok {
		return AttemptResult{}, fmt.Errorf("skill %q: %w", o.SkillCode, ErrNotFound)
	}

	var result AttemptResult
	err := e.store.WithPair(ctx, o.LearnerID, o.SkillCode, func(ctx context.Context, s Store) error {
		recorder := NewRecorder(s, e.curriculum)
		recorder.Now = e.now
		id, err := recorder.Record(ctx, o)
		if err != nil {
			return err
		}
		result.OutcomeID = id

		estimator := NewEstimator(s, e.policy)
		estimator.Now = e.now
		result.Mastery, err = estimator.UpdateMastery(ctx, o.LearnerID, o.SkillCode)
		if err != nil {
			return err
		}

		scheduler := NewScheduler(s, e.policy)
		scheduler.Now = e.now
		result.Schedule, err = scheduler.Schedule(ctx, o.LearnerID, o.SkillCode, o.Quality)
		return err
	})
	if err != nil {
		return AttemptResult{}, err
	}

	// Blocking and struggle annotation are read-only and may observe a
	// marginally newer state than the pair section wrote; acceptable.
	result.Blocked, err = e.resolver.IsBlockedByPrerequisites(ctx, o.LearnerID, o.SkillCode)
	if err != nil {
		return AttemptResult{}, err
	}
	result.Struggling, err = e.resolver.IsStrugglingOnSkill(ctx, o.LearnerID, o.SkillCode)
	if err != nil {
		return AttemptResult{}, err
	}
	if result.Blocked.IsBlocked {
		result.Remediation, err = e.resolver.RemediationFor(ctx, o.LearnerID, o.SkillCode)
		if err != nil {
			return AttemptResult{}, err
		}
	}

	e.recommender.InvalidateLearner(ctx, o.LearnerID, skill.Level)

	slog.Info("outcome processed",
		"learner_id", o.LearnerID,
		"skill_code", o.SkillCode,
		"correct", o.IsCorrect,
		"mastery_percent", result.Mastery.Percent,
		"mastery_level", result.Mastery.Level,
		"next_review_at", result.Schedule.Card.NextReviewAt,
		"blocked", result.Blocked.IsBlocked,
	)
	return result, nil
}

// DueReviews returns the learner's overdue review cards.
func (e *Engine) DueReviews(ctx context.Context, learnerID string, limit int) ([]ReviewCard, error) {
	scheduler := NewScheduler(e.store, e.policy)
	scheduler.Now = e.now
	return scheduler.DueCards(ctx, learnerID, limit)
}

// Recommendations returns the prioritized action list for a level.
func (e *Engine) Recommendations(ctx context.Context, learnerID, level string) ([]Recommendation, error) {
	return e.recommender.RecommendationsFor(ctx, learnerID, level)
}

// Path returns the full learning-path snapshot for a level.
func (e *Engine) Path(ctx context.Context, learnerID, level string) (LearningPath, error) {
	return e.recommender.LearningPath(ctx, learnerID, level)
}

// TopErrorPatterns returns the learner's most frequent error patterns.
func (e *Engine) TopErrorPatterns(ctx context.Context, learnerID string, limit int) ([]ErrorPattern, error) {
	return NewRecorder(e.store, e.curriculum).TopErrorPatterns(ctx, learnerID, limit)
}

// SuggestRemediation maps frequent error patterns to remedial actions.
func (e *Engine) SuggestRemediation(ctx context.Context, learnerID string) ([]RemediationAction, error) {
	return NewRecorder(e.store, e.curriculum).SuggestRemediation(ctx, learnerID)
}
