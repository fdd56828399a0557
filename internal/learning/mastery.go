package learning

import (
	"context"
	"fmt"
	"time"
)

// Estimator recomputes the mastery aggregate for a (learner, skill) pair
// from its recent outcome window. Recomputation from the window, rather
// than incremental counters, keeps the update idempotent: replaying the
// same window produces an identical Progress row.
type Estimator struct {
	store  Store
	policy Policy

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewEstimator creates a mastery estimator.
func NewEstimator(store Store, policy Policy) *Estimator {
	return &Estimator{store: store, policy: policy.withDefaults()}
}

func (e *Estimator) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// UpdateMastery recomputes and upserts the Progress row for the pair,
// invoked right after an outcome is recorded. MasteredAt is set only on
// the first transition into mastered and never cleared afterwards, even
// if mastery later regresses.
func (e *Estimator) UpdateMastery(ctx context.Context, learnerID, skillCode string) (MasterySnapshot, error) {
	if learnerID == "" || skillCode == "" {
		return MasterySnapshot{}, fmt.Errorf("learner %q skill %q: %w", learnerID, skillCode, ErrNotFound)
	}

	window, err := e.store.RecentOutcomes(ctx, learnerID, skillCode, e.policy.MasteryWindow)
	if err != nil {
		return MasterySnapshot{}, fmt.Errorf("loading outcome window: %w", err)
	}

	count := len(window)
	totalAttempts := count
	if totalAttempts < 1 {
		totalAttempts = 1
	}

	var (
		successful int
		qualitySum float64
		timeSpent  int
	)
	for _, o := range window {
		if o.IsCorrect {
			successful++
		}
		qualitySum += o.Quality
		timeSpent += o.TimeSpentSeconds
	}

	var averageQuality float64
	if count > 0 {
		averageQuality = qualitySum / float64(count)
	}

	rawPercent := 100 * float64(successful) / float64(totalAttempts)

	// Hints on the latest attempt dent the score, capped.
	var penalty float64
	if count > 0 {
		penalty = e.policy.HintPenaltyPerHint * float64(window[0].HintsUsed)
		if penalty > e.policy.HintPenaltyCap {
			penalty = e.policy.HintPenaltyCap
		}
	}
	percent := clamp(rawPercent-penalty, 0, 100)

	level := LevelNotStarted
	switch {
	case percent >= e.policy.MasteredPercent && averageQuality >= e.policy.MasteredQuality:
		level = LevelMastered
	case percent >= e.policy.InProgressPercent:
		level = LevelInProgress
	}

	needsReview := percent < e.policy.ReviewPercent || averageQuality < e.policy.ReviewQuality

	now := e.now()
	lastAttemptAt := now
	if count > 0 {
		lastAttemptAt = window[0].AttemptedAt
	}

	existing, err := e.store.GetProgress(ctx, learnerID, skillCode)
	if err != nil {
		return MasterySnapshot{}, fmt.Errorf("loading progress: %w", err)
	}

	p := Progress{
		LearnerID:          learnerID,
		SkillCode:          skillCode,
		ProgressPercent:    percent,
		MasteryLevel:       level,
		TotalAttempts:      totalAttempts,
		SuccessfulAttempts: successful,
		AverageQuality:     averageQuality,
		TotalTimeSpent:     timeSpent,
		LastAttemptAt:      lastAttemptAt,
		NeedsReview:        needsReview,
	}

	// Sticky mastery timestamp: keep the first one forever.
	if existing != nil && existing.MasteredAt != nil {
		p.MasteredAt = existing.MasteredAt
	} else if level == LevelMastered {
		p.MasteredAt = &now
	}

	if err := e.store.UpsertProgress(ctx, p); err != nil {
		return MasterySnapshot{}, fmt.Errorf("upserting progress: %w", err)
	}

	return MasterySnapshot{
		Percent:        percent,
		Level:          level,
		AverageQuality: averageQuality,
		NeedsReview:    needsReview,
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
