package learning

import "time"

// MasteryLevel is the categorical learner state on a skill.
type MasteryLevel string

const (
	LevelNotStarted MasteryLevel = "not_started"
	LevelInProgress MasteryLevel = "in_progress"
	LevelMastered   MasteryLevel = "mastered"
)

// Outcome is one immutable practice-attempt fact. Outcomes are appended
// and never mutated or deleted by this core.
type Outcome struct {
	ID               string    `json:"id,omitempty"`
	LearnerID        string    `json:"learner_id"`
	ExerciseID       string    `json:"exercise_id"`
	SkillCode        string    `json:"skill_code"`
	IsCorrect        bool      `json:"is_correct"`
	HintsUsed        int       `json:"hints_used"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
	Quality          float64   `json:"quality"`
	ErrorTags        []string  `json:"error_tags,omitempty"`
	AttemptedAt      time.Time `json:"attempted_at"`
}

// Progress is the mutable aggregate per (learner, skill) pair. It is
// recomputed from the recent outcome window on every new outcome rather
// than patched incrementally; MasteredAt is sticky once set.
type Progress struct {
	LearnerID          string       `json:"learner_id"`
	SkillCode          string       `json:"skill_code"`
	ProgressPercent    float64      `json:"progress_percent"`
	MasteryLevel       MasteryLevel `json:"mastery_level"`
	TotalAttempts      int          `json:"total_attempts"`
	SuccessfulAttempts int          `json:"successful_attempts"`
	AverageQuality     float64      `json:"average_quality"`
	TotalTimeSpent     int          `json:"total_time_spent"`
	LastAttemptAt      time.Time    `json:"last_attempt_at"`
	MasteredAt         *time.Time   `json:"mastered_at,omitempty"`
	NeedsReview        bool         `json:"needs_review"`
}

// ReviewCard is the spaced-repetition scheduling state per (learner,
// skill) pair, created lazily the first time the pair is scheduled.
type ReviewCard struct {
	LearnerID        string    `json:"learner_id"`
	SkillCode        string    `json:"skill_code"`
	EasinessFactor   float64   `json:"easiness_factor"`
	RepetitionNumber int       `json:"repetition_number"`
	IntervalDays     int       `json:"interval_days"`
	LastReviewAt     time.Time `json:"last_review_at"`
	NextReviewAt     time.Time `json:"next_review_at"`
	LastQuality      float64   `json:"last_quality"`
}

// ErrorPattern counts occurrences of one error tag per (learner, skill).
type ErrorPattern struct {
	LearnerID   string    `json:"learner_id"`
	SkillCode   string    `json:"skill_code"`
	Tag         string    `json:"tag"`
	Occurrences int       `json:"occurrences"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// Priority orders recommendations.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// RecommendationType classifies what a recommendation asks the learner
// to do.
type RecommendationType string

const (
	RecommendReview       RecommendationType = "review"
	RecommendNew          RecommendationType = "new"
	RecommendRemediation  RecommendationType = "remediation"
	RecommendPrerequisite RecommendationType = "prerequisite"
)

// Recommendation is a derived, non-persisted next-action suggestion.
type Recommendation struct {
	Priority  Priority           `json:"priority"`
	SkillCode string             `json:"skill_code"`
	Reason    string             `json:"reason"`
	Type      RecommendationType `json:"type"`
}

// SkillProgress joins one level skill with the learner's progress and
// blocking state for the learning-path view.
type SkillProgress struct {
	SkillCode string   `json:"skill_code"`
	SkillName string   `json:"skill_name"`
	Progress  Progress `json:"progress"`
	Blocked   bool     `json:"blocked"`
}

// PathSummary aggregates a learning path.
type PathSummary struct {
	TotalSkills     int     `json:"total_skills"`
	Mastered        int     `json:"mastered"`
	InProgress      int     `json:"in_progress"`
	NotStarted      int     `json:"not_started"`
	Blocked         int     `json:"blocked"`
	OverallProgress float64 `json:"overall_progress"`
}

// LearningPath is the derived per-learner, per-level snapshot.
type LearningPath struct {
	LearnerID       string           `json:"learner_id"`
	Level           string           `json:"level"`
	Skills          []SkillProgress  `json:"skills"`
	Recommendations []Recommendation `json:"recommendations"`
	Summary         PathSummary      `json:"summary"`
}

// MasterySnapshot is the mastery estimator's per-update output.
type MasterySnapshot struct {
	Percent        float64      `json:"percent"`
	Level          MasteryLevel `json:"level"`
	AverageQuality float64      `json:"average_quality"`
	NeedsReview    bool         `json:"needs_review"`
}

// ScheduleResult is the scheduler's per-update output.
type ScheduleResult struct {
	Card  ReviewCard `json:"card"`
	Lapse bool       `json:"lapse"`
}

// BlockedResult is the prerequisite-graph blocking verdict.
type BlockedResult struct {
	IsBlocked             bool     `json:"is_blocked"`
	BlockingPrerequisites []string `json:"blocking_prerequisites,omitempty"`
	MissingPrerequisites  []string `json:"missing_prerequisites,omitempty"`
}

// StruggleResult is the performance-view verdict: repeated recent
// failures on the target skill itself, independent of prerequisites.
type StruggleResult struct {
	IsStruggling   bool `json:"is_struggling"`
	RecentFailures int  `json:"recent_failures"`
	WindowSize     int  `json:"window_size"`
}

// RemediationAction is one suggested corrective step. SkillCode is set
// for error-pattern remediation, PrerequisiteCode for blocked skills.
type RemediationAction struct {
	Action           string `json:"action"`
	Reason           string `json:"reason"`
	SkillCode        string `json:"skill_code,omitempty"`
	PrerequisiteCode string `json:"prerequisite_code,omitempty"`
}

// AttemptResult bundles everything the per-attempt pipeline produces.
type AttemptResult struct {
	OutcomeID   string              `json:"outcome_id"`
	Mastery     MasterySnapshot     `json:"mastery"`
	Schedule    ScheduleResult      `json:"spaced_repetition"`
	Blocked     BlockedResult       `json:"blocked"`
	Struggling  StruggleResult      `json:"struggling"`
	Remediation []RemediationAction `json:"remediation,omitempty"`
}
