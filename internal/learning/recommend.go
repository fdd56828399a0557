package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"
)

// snapshotTTL bounds how stale a cached whole-level snapshot may be.
// Per-pair mastery and schedule updates never go through this cache.
const snapshotTTL = 60 * time.Second

// SnapshotCache caches derived whole-level snapshots (recommendations,
// learning paths). Implementations may be arbitrarily lossy; a miss just
// recomputes.
type SnapshotCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Delete(ctx context.Context, keys ...string)
}

// Recommender derives next-action recommendations and learning paths
// from progress, blocking state and curriculum leap markers.
type Recommender struct {
	store      Store
	curriculum CurriculumSource
	resolver   *Resolver
	cache      SnapshotCache // optional
}

// NewRecommender creates a recommendation engine.
func NewRecommender(store Store, curriculum CurriculumSource, resolver *Resolver, cache SnapshotCache) *Recommender {
	return &Recommender{store: store, curriculum: curriculum, resolver: resolver, cache: cache}
}

func recommendationsKey(learnerID, level string) string {
	return "recs:" + learnerID + ":" + level
}

func pathKey(learnerID, level string) string {
	return "path:" + learnerID + ":" + level
}

// InvalidateLearner drops the learner's cached snapshots for a level.
func (r *Recommender) InvalidateLearner(ctx context.Context, learnerID, level string) {
	if r.cache == nil {
		return
	}
	r.cache.Delete(ctx, recommendationsKey(learnerID, level), pathKey(learnerID, level))
}

// RecommendationsFor builds the prioritized action list for a learner
// over one level's skills. Results may be served from a short-lived
// cache; whole-level reads tolerate slight staleness.
func (r *Recommender) RecommendationsFor(ctx context.Context, learnerID, level string) ([]Recommendation, error) {
	if learnerID == "" {
		return nil, fmt.Errorf("learner: %w", ErrNotFound)
	}

	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, recommendationsKey(learnerID, level)); ok {
			var cached []Recommendation
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			slog.Warn("dropping undecodable cached recommendations", "learner_id", learnerID, "level", level)
		}
	}

	recs, err := r.buildRecommendations(ctx, learnerID, level)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if raw, err := json.Marshal(recs); err == nil {
			r.cache.Set(ctx, recommendationsKey(learnerID, level), raw, snapshotTTL)
		}
	}
	return recs, nil
}

func (r *Recommender) buildRecommendations(ctx context.Context, learnerID, level string) ([]Recommendation, error) {
	skills := r.curriculum.SkillsOf(level)
	codes := make([]string, len(skills))
	for i, s := range skills {
		codes[i] = s.Code
	}

	progress, err := r.store.ProgressForSkills(ctx, learnerID, codes)
	if err != nil {
		return nil, fmt.Errorf("loading level progress: %w", err)
	}

	var recs []Recommendation
	for _, skill := range skills {
		p, seen := progress[skill.Code]

		if seen && p.NeedsReview {
			recs = append(recs, Recommendation{
				Priority:  PriorityHigh,
				SkillCode: skill.Code,
				Reason:    "needs review — low performance",
				Type:      RecommendReview,
			})
		}

		if !seen {
			blocked, err := r.resolver.IsBlockedByPrerequisites(ctx, learnerID, skill.Code)
			if err != nil {
				return nil, err
			}
			if blocked.IsBlocked {
				recs = append(recs, Recommendation{
					Priority:  PriorityLow,
					SkillCode: skill.Code,
					Reason:    describeMissing(blocked.MissingPrerequisites),
					Type:      RecommendPrerequisite,
				})
			} else {
				recs = append(recs, Recommendation{
					Priority:  PriorityMedium,
					SkillCode: skill.Code,
					Reason:    "ready to start",
					Type:      RecommendNew,
				})
			}
		}

		if seen && skill.QualitativeLeap && p.MasteryLevel == LevelInProgress {
			recs = append(recs, Recommendation{
				Priority:  PriorityHigh,
				SkillCode: skill.Code,
				Reason:    "major leap — elevated priority",
				Type:      RecommendRemediation,
			})
		}
	}

	// Stable: equal priorities keep construction (skill code) order.
	rank := map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
	sort.SliceStable(recs, func(i, j int) bool {
		return rank[recs[i].Priority] < rank[recs[j].Priority]
	})

	return recs, nil
}

// LearningPath assembles the full per-learner snapshot for one level:
// every skill's progress joined with blocking state, the recommendation
// list, and summary counts.
func (r *Recommender) LearningPath(ctx context.Context, learnerID, level string) (LearningPath, error) {
	if learnerID == "" {
		return LearningPath{}, fmt.Errorf("learner: %w", ErrNotFound)
	}

	if r.cache != nil {
		if raw, ok := r.cache.Get(ctx, pathKey(learnerID, level)); ok {
			var cached LearningPath
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
			slog.Warn("dropping undecodable cached learning path", "learner_id", learnerID, "level", level)
		}
	}

	skills := r.curriculum.SkillsOf(level)
	codes := make([]string, len(skills))
	for i, s := range skills {
		codes[i] = s.Code
	}

	progress, err := r.store.ProgressForSkills(ctx, learnerID, codes)
	if err != nil {
		return LearningPath{}, fmt.Errorf("loading level progress: %w", err)
	}

	path := LearningPath{
		LearnerID: learnerID,
		Level:     level,
		Skills:    make([]SkillProgress, 0, len(skills)),
	}
	summary := PathSummary{TotalSkills: len(skills)}

	for _, skill := range skills {
		p, seen := progress[skill.Code]
		if !seen {
			p = Progress{
				LearnerID:    learnerID,
				SkillCode:    skill.Code,
				MasteryLevel: LevelNotStarted,
			}
		}

		blocked, err := r.resolver.IsBlockedByPrerequisites(ctx, learnerID, skill.Code)
		if err != nil {
			return LearningPath{}, err
		}

		path.Skills = append(path.Skills, SkillProgress{
			SkillCode: skill.Code,
			SkillName: skill.Name,
			Progress:  p,
			Blocked:   blocked.IsBlocked,
		})

		switch p.MasteryLevel {
		case LevelMastered:
			summary.Mastered++
		case LevelInProgress:
			summary.InProgress++
		default:
			summary.NotStarted++
		}
		if blocked.IsBlocked {
			summary.Blocked++
		}
	}

	if summary.TotalSkills > 0 {
		summary.OverallProgress = math.Round(10000*float64(summary.Mastered)/float64(summary.TotalSkills)) / 100
	}
	path.Summary = summary

	recs, err := r.RecommendationsFor(ctx, learnerID, level)
	if err != nil {
		return LearningPath{}, err
	}
	path.Recommendations = recs

	if r.cache != nil {
		if raw, err := json.Marshal(path); err == nil {
			r.cache.Set(ctx, pathKey(learnerID, level), raw, snapshotTTL)
		}
	}
	return path, nil
}
