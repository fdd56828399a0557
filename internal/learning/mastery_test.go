package learning_test

import (
	"context"
	"testing"
	"time"

	"github.com/p-n-ai/pai-core/internal/curriculum"
	"github.com/p-n-ai/pai-core/internal/learning"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func testRegistry(t *testing.T) *curriculum.Registry {
	t.Helper()
	reg, err := curriculum.NewRegistry([]curriculum.Skill{
		{Code: "B1.MATH.ALG.1", Name: "Terms and expressions", Level: "B1", Domain: "MATH", Subdomain: "ALG"},
		{Code: "B1.MATH.ALG.2", Name: "Linear equations", Level: "B1", Domain: "MATH", Subdomain: "ALG",
			Prerequisites: []string{"B1.MATH.ALG.1"}},
		{Code: "B1.MATH.ALG.3", Name: "Systems of equations", Level: "B1", Domain: "MATH", Subdomain: "ALG",
			Prerequisites: []string{"B1.MATH.ALG.2"}, QualitativeLeap: true},
	}, nil)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

// seedOutcomes appends n outcomes for the pair, correct for the first
// nCorrect, all with the given quality and hints on the last attempt.
func seedOutcomes(t *testing.T, store learning.Store, learnerID, skillCode string, n, nCorrect int, quality float64, lastHints int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		hints := 0
		if i == n-1 {
			hints = lastHints
		}
		_, err := store.AppendOutcome(ctx, learning.Outcome{
			LearnerID:   learnerID,
			SkillCode:   skillCode,
			IsCorrect:   i < nCorrect,
			Quality:     quality,
			HintsUsed:   hints,
			AttemptedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendOutcome() error = %v", err)
		}
	}
}

func TestUpdateMastery_MasteredAtThreshold(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow

	// 20 outcomes, 18 correct, quality 4.0, no hints.
	seedOutcomes(t, store, "lola", "B1.MATH.ALG.1", 20, 18, 4.0, 0)

	snap, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1")
	if err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}

	if snap.Percent != 90 {
		t.Errorf("Percent = %v, want 90", snap.Percent)
	}
	if snap.AverageQuality != 4.0 {
		t.Errorf("AverageQuality = %v, want 4.0", snap.AverageQuality)
	}
	if snap.Level != learning.LevelMastered {
		t.Errorf("Level = %q, want mastered", snap.Level)
	}
	if snap.NeedsReview {
		t.Error("NeedsReview = true, want false")
	}
}

func TestUpdateMastery_HintPenalty(t *testing.T) {
	tests := []struct {
		name        string
		lastHints   int
		wantPercent float64
	}{
		{"no hints", 0, 100},
		{"three hints", 3, 94},
		{"penalty capped", 10, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := learning.NewMemoryStore()
			est := learning.NewEstimator(store, learning.DefaultPolicy())
			est.Now = fixedNow

			seedOutcomes(t, store, "lola", "B1.MATH.ALG.1", 10, 10, 4.0, tt.lastHints)

			snap, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1")
			if err != nil {
				t.Fatalf("UpdateMastery() error = %v", err)
			}
			if snap.Percent != tt.wantPercent {
				t.Errorf("Percent = %v, want %v", snap.Percent, tt.wantPercent)
			}
		})
	}
}

func TestUpdateMastery_BackfilledOutcome(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow
	ctx := context.Background()

	// A correct live attempt, then a backfilled failure with five hints
	// and an older attempted_at. The hint penalty and last-attempt time
	// must come from the live attempt, not the backfill.
	if _, err := store.AppendOutcome(ctx, learning.Outcome{
		LearnerID: "lola", SkillCode: "B1.MATH.ALG.1",
		IsCorrect: true, Quality: 5, AttemptedAt: testNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("AppendOutcome() error = %v", err)
	}
	if _, err := store.AppendOutcome(ctx, learning.Outcome{
		LearnerID: "lola", SkillCode: "B1.MATH.ALG.1",
		IsCorrect: false, Quality: 1, HintsUsed: 5, AttemptedAt: testNow,
	}); err != nil {
		t.Fatalf("AppendOutcome() error = %v", err)
	}

	snap, err := est.UpdateMastery(ctx, "lola", "B1.MATH.ALG.1")
	if err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}
	if snap.Percent != 50 {
		t.Errorf("Percent = %v, want 50 (no penalty from the backfill's hints)", snap.Percent)
	}

	p, _ := store.GetProgress(ctx, "lola", "B1.MATH.ALG.1")
	if want := testNow.Add(time.Hour); !p.LastAttemptAt.Equal(want) {
		t.Errorf("LastAttemptAt = %v, want live attempt %v", p.LastAttemptAt, want)
	}
}

func TestUpdateMastery_NoOutcomes(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow

	snap, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1")
	if err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}
	if snap.Percent != 0 {
		t.Errorf("Percent = %v, want 0", snap.Percent)
	}
	if snap.Level != learning.LevelNotStarted {
		t.Errorf("Level = %q, want not_started", snap.Level)
	}
	if !snap.NeedsReview {
		t.Error("NeedsReview = false, want true")
	}

	p, err := store.GetProgress(context.Background(), "lola", "B1.MATH.ALG.1")
	if err != nil || p == nil {
		t.Fatalf("GetProgress() = %v, %v; want row", p, err)
	}
	if p.TotalAttempts != 1 {
		t.Errorf("TotalAttempts = %d, want 1 (floor)", p.TotalAttempts)
	}
	if p.SuccessfulAttempts != 0 {
		t.Errorf("SuccessfulAttempts = %d, want 0", p.SuccessfulAttempts)
	}
}

func TestUpdateMastery_StickyMasteredAt(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow

	seedOutcomes(t, store, "lola", "B1.MATH.ALG.1", 20, 20, 4.5, 0)
	if _, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1"); err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}

	first, _ := store.GetProgress(context.Background(), "lola", "B1.MATH.ALG.1")
	if first.MasteredAt == nil {
		t.Fatal("MasteredAt = nil after mastering")
	}
	masteredAt := *first.MasteredAt

	// A run of failures drops mastery but never the timestamp.
	seedOutcomes(t, store, "lola", "B1.MATH.ALG.1", 15, 0, 1.0, 0)
	est.Now = func() time.Time { return testNow.Add(48 * time.Hour) }
	snap, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1")
	if err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}
	if snap.Level == learning.LevelMastered {
		t.Errorf("Level = mastered after 15 failures, want regression")
	}

	after, _ := store.GetProgress(context.Background(), "lola", "B1.MATH.ALG.1")
	if after.MasteredAt == nil {
		t.Fatal("MasteredAt cleared by regression")
	}
	if !after.MasteredAt.Equal(masteredAt) {
		t.Errorf("MasteredAt = %v, want unchanged %v", after.MasteredAt, masteredAt)
	}
}

func TestUpdateMastery_Idempotent(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow

	seedOutcomes(t, store, "lola", "B1.MATH.ALG.1", 12, 9, 3.2, 1)

	if _, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1"); err != nil {
		t.Fatalf("UpdateMastery() error = %v", err)
	}
	first, _ := store.GetProgress(context.Background(), "lola", "B1.MATH.ALG.1")

	if _, err := est.UpdateMastery(context.Background(), "lola", "B1.MATH.ALG.1"); err != nil {
		t.Fatalf("UpdateMastery() replay error = %v", err)
	}
	second, _ := store.GetProgress(context.Background(), "lola", "B1.MATH.ALG.1")

	if *first != *second {
		t.Errorf("replayed Progress differs:\nfirst  = %+v\nsecond = %+v", *first, *second)
	}
}

func TestUpdateMastery_Invariants(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())
	est.Now = fixedNow
	ctx := context.Background()

	// A mixed sequence, checking invariants after every recomputation.
	pattern := []bool{true, false, true, true, false, false, true, false, true, true,
		false, true, true, true, false, true, false, false, true, true, true, false}
	for i, correct := range pattern {
		quality := 1.5
		if correct {
			quality = 4.0
		}
		_, err := store.AppendOutcome(ctx, learning.Outcome{
			LearnerID:   "lola",
			SkillCode:   "B1.MATH.ALG.2",
			IsCorrect:   correct,
			Quality:     quality,
			HintsUsed:   i % 4,
			AttemptedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendOutcome() error = %v", err)
		}

		if _, err := est.UpdateMastery(ctx, "lola", "B1.MATH.ALG.2"); err != nil {
			t.Fatalf("UpdateMastery() error = %v", err)
		}
		p, _ := store.GetProgress(ctx, "lola", "B1.MATH.ALG.2")
		if p.SuccessfulAttempts > p.TotalAttempts {
			t.Fatalf("attempt %d: SuccessfulAttempts %d > TotalAttempts %d", i, p.SuccessfulAttempts, p.TotalAttempts)
		}
		if p.ProgressPercent < 0 || p.ProgressPercent > 100 {
			t.Fatalf("attempt %d: ProgressPercent = %v out of [0,100]", i, p.ProgressPercent)
		}
	}
}

func TestUpdateMastery_MissingIdentifiers(t *testing.T) {
	store := learning.NewMemoryStore()
	est := learning.NewEstimator(store, learning.DefaultPolicy())

	if _, err := est.UpdateMastery(context.Background(), "", "B1.MATH.ALG.1"); err == nil {
		t.Error("UpdateMastery() with empty learner should fail")
	}
	if _, err := est.UpdateMastery(context.Background(), "lola", ""); err == nil {
		t.Error("UpdateMastery() with empty skill should fail")
	}
}
