package learning

import (
	"context"
	"fmt"
	"math"
	"time"
)

const defaultDueLimit = 20

// Scheduler maintains one spaced-repetition card per (learner, skill)
// pair using an SM-2 family update rule.
type Scheduler struct {
	store  Store
	policy Policy

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewScheduler creates a spaced-repetition scheduler.
func NewScheduler(store Store, policy Policy) *Scheduler {
	return &Scheduler{store: store, policy: policy.withDefaults()}
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// newCard returns the default card for a fresh pair: one repetition a
// day out, neutral easiness.
func (s *Scheduler) newCard(learnerID, skillCode string, now time.Time) ReviewCard {
	return ReviewCard{
		LearnerID:        learnerID,
		SkillCode:        skillCode,
		EasinessFactor:   s.policy.InitialEasiness,
		RepetitionNumber: 0,
		IntervalDays:     s.policy.FirstIntervalDays,
		LastReviewAt:     now,
		NextReviewAt:     now.AddDate(0, 0, s.policy.FirstIntervalDays),
	}
}

// Schedule applies one review of the given quality to the pair's card,
// creating the card with defaults first if the pair has none. Quality
// below 3 is a lapse: the repetition count and interval reset while the
// easiness factor still takes its penalty.
func (s *Scheduler) Schedule(ctx context.Context, learnerID, skillCode string, quality float64) (ScheduleResult, error) {
	if learnerID == "" || skillCode == "" {
		return ScheduleResult{}, fmt.Errorf("learner %q skill %q: %w", learnerID, skillCode, ErrNotFound)
	}
	if quality < 0 || quality > 5 {
		return ScheduleResult{}, &ValidationError{Field: "quality", Reason: fmt.Sprintf("must be in [0,5], got %g", quality)}
	}

	now := s.now()

	card, err := s.store.GetCard(ctx, learnerID, skillCode)
	if err != nil {
		return ScheduleResult{}, fmt.Errorf("loading review card: %w", err)
	}
	if card == nil {
		c := s.newCard(learnerID, skillCode, now)
		card = &c
	}

	// SM-2 easiness update, floored so intervals keep growing even for
	// chronically hard material.
	ef := card.EasinessFactor + (0.1 - (5-quality)*(0.08+(5-quality)*0.02))
	if ef < s.policy.MinEasiness {
		ef = s.policy.MinEasiness
	}

	lapse := quality < 3
	repetition := card.RepetitionNumber
	interval := card.IntervalDays

	if lapse {
		repetition = 0
		interval = s.policy.FirstIntervalDays
	} else {
		repetition++
		switch {
		case repetition == 1:
			interval = s.policy.FirstIntervalDays
		case repetition == 2:
			interval = s.policy.SecondIntervalDays
		default:
			interval = int(math.Round(float64(card.IntervalDays) * ef))
		}
	}
	if interval < 1 {
		interval = 1
	}

	updated := ReviewCard{
		LearnerID:        learnerID,
		SkillCode:        skillCode,
		EasinessFactor:   ef,
		RepetitionNumber: repetition,
		IntervalDays:     interval,
		LastReviewAt:     now,
		NextReviewAt:     now.AddDate(0, 0, interval),
		LastQuality:      quality,
	}

	if err := s.store.UpsertCard(ctx, updated); err != nil {
		return ScheduleResult{}, fmt.Errorf("upserting review card: %w", err)
	}

	return ScheduleResult{Card: updated, Lapse: lapse}, nil
}

// DueCards returns the learner's overdue cards, most overdue first.
func (s *Scheduler) DueCards(ctx context.Context, learnerID string, limit int) ([]ReviewCard, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner: %w", ErrNotFound)
	}
	if limit <= 0 {
		limit = defaultDueLimit
	}
	return s.store.DueCards(ctx, learnerID, s.now(), limit)
}
