package learning_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-core/internal/learning"
)

// mapCache is an in-process SnapshotCache for tests.
type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    int
	deletes []string
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, val []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	c.sets++
}

func (c *mapCache) Delete(_ context.Context, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	c.deletes = append(c.deletes, keys...)
}

func newTestRecommender(t *testing.T, store learning.Store, cache learning.SnapshotCache) *learning.Recommender {
	t.Helper()
	reg := testRegistry(t)
	resolver := learning.NewResolver(reg, store, learning.DefaultPolicy())
	return learning.NewRecommender(store, reg, resolver, cache)
}

func TestRecommendationsFor(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	rec := newTestRecommender(t, store, nil)

	// ALG.1 mastered, ALG.2 in progress and flagged for review, ALG.3
	// unseen behind an unmastered prerequisite.
	seedProgress(t, store, "lola", "B1.MATH.ALG.1", learning.LevelMastered, false)
	seedProgress(t, store, "lola", "B1.MATH.ALG.2", learning.LevelInProgress, true)

	recs, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len(recs) = %d, want 2: %+v", len(recs), recs)
	}

	if recs[0].Priority != learning.PriorityHigh || recs[0].Type != learning.RecommendReview || recs[0].SkillCode != "B1.MATH.ALG.2" {
		t.Errorf("recs[0] = %+v, want high review for B1.MATH.ALG.2", recs[0])
	}
	if recs[1].Priority != learning.PriorityLow || recs[1].Type != learning.RecommendPrerequisite || recs[1].SkillCode != "B1.MATH.ALG.3" {
		t.Errorf("recs[1] = %+v, want low prerequisite for B1.MATH.ALG.3", recs[1])
	}
	if !strings.Contains(recs[1].Reason, "B1.MATH.ALG.2") {
		t.Errorf("recs[1].Reason = %q, want missing prerequisite named", recs[1].Reason)
	}
}

func TestRecommendationsFor_ReadyToStart(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	rec := newTestRecommender(t, store, nil)

	// A fresh learner: only the root skill is unblocked.
	recs, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("len(recs) = %d, want 3", len(recs))
	}
	// Medium before low.
	if recs[0].SkillCode != "B1.MATH.ALG.1" || recs[0].Type != learning.RecommendNew || recs[0].Priority != learning.PriorityMedium {
		t.Errorf("recs[0] = %+v, want medium new for root skill", recs[0])
	}
	for _, r := range recs[1:] {
		if r.Type != learning.RecommendPrerequisite || r.Priority != learning.PriorityLow {
			t.Errorf("rec = %+v, want low prerequisite", r)
		}
	}
}

func TestRecommendationsFor_QualitativeLeap(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	rec := newTestRecommender(t, store, nil)

	// ALG.3 is a leap skill: once in progress it is pushed hard.
	seedProgress(t, store, "lola", "B1.MATH.ALG.1", learning.LevelMastered, false)
	seedProgress(t, store, "lola", "B1.MATH.ALG.2", learning.LevelMastered, false)
	seedProgress(t, store, "lola", "B1.MATH.ALG.3", learning.LevelInProgress, false)

	recs, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("len(recs) = %d, want 1: %+v", len(recs), recs)
	}
	if recs[0].Type != learning.RecommendRemediation || recs[0].Priority != learning.PriorityHigh {
		t.Errorf("recs[0] = %+v, want high remediation for leap skill", recs[0])
	}
}

func TestRecommendationsFor_CacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	cache := newMapCache()
	rec := newTestRecommender(t, store, cache)

	first, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("cache sets = %d, want 1", cache.sets)
	}

	// A store change behind the cache must not surface within the TTL.
	seedProgress(t, store, "lola", "B1.MATH.ALG.1", learning.LevelMastered, false)
	second, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if len(second) != len(first) {
		t.Errorf("cached read returned %d recs, want the stale %d", len(second), len(first))
	}

	// Invalidation makes the change visible.
	rec.InvalidateLearner(ctx, "lola", "B1")
	third, err := rec.RecommendationsFor(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("RecommendationsFor() error = %v", err)
	}
	if len(third) == len(first) {
		t.Errorf("post-invalidation read still has %d recs, want rebuild", len(third))
	}
}

func TestLearningPath(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	rec := newTestRecommender(t, store, nil)

	seedProgress(t, store, "lola", "B1.MATH.ALG.1", learning.LevelMastered, false)
	seedProgress(t, store, "lola", "B1.MATH.ALG.2", learning.LevelInProgress, false)

	path, err := rec.LearningPath(ctx, "lola", "B1")
	if err != nil {
		t.Fatalf("LearningPath() error = %v", err)
	}

	if path.LearnerID != "lola" || path.Level != "B1" {
		t.Errorf("path header = %s/%s, want lola/B1", path.LearnerID, path.Level)
	}
	if len(path.Skills) != 3 {
		t.Fatalf("len(Skills) = %d, want 3", len(path.Skills))
	}

	byCode := map[string]learning.SkillProgress{}
	for _, s := range path.Skills {
		byCode[s.SkillCode] = s
	}
	if byCode["B1.MATH.ALG.1"].Blocked {
		t.Error("root skill reported blocked")
	}
	if !byCode["B1.MATH.ALG.3"].Blocked {
		t.Error("skill behind unmastered prerequisite not reported blocked")
	}
	// Unseen skills still appear, zeroed.
	if byCode["B1.MATH.ALG.3"].Progress.MasteryLevel != learning.LevelNotStarted {
		t.Errorf("unseen skill level = %q, want not_started", byCode["B1.MATH.ALG.3"].Progress.MasteryLevel)
	}

	s := path.Summary
	if s.TotalSkills != 3 || s.Mastered != 1 || s.InProgress != 1 || s.NotStarted != 1 || s.Blocked != 1 {
		t.Errorf("Summary = %+v, want totals 3/1/1/1 blocked 1", s)
	}
	if s.OverallProgress != 33.33 {
		t.Errorf("OverallProgress = %v, want 33.33", s.OverallProgress)
	}
}

func TestLearningPath_EmptyLevel(t *testing.T) {
	store := learning.NewMemoryStore()
	rec := newTestRecommender(t, store, nil)

	path, err := rec.LearningPath(context.Background(), "lola", "C9")
	if err != nil {
		t.Fatalf("LearningPath() error = %v", err)
	}
	if path.Summary.TotalSkills != 0 || path.Summary.OverallProgress != 0 {
		t.Errorf("Summary = %+v, want empty", path.Summary)
	}
}
