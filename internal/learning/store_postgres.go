package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the four tables of the core. Callers apply it through
// their migration tooling; the integration tests apply it directly.
const Schema = `
CREATE TABLE IF NOT EXISTS outcomes (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	learner_id         TEXT NOT NULL,
	skill_code         TEXT NOT NULL,
	exercise_id        TEXT NOT NULL DEFAULT '',
	is_correct         BOOLEAN NOT NULL,
	hints_used         INT NOT NULL DEFAULT 0,
	time_spent_seconds INT NOT NULL DEFAULT 0,
	quality            DOUBLE PRECISION NOT NULL,
	error_tags         TEXT[] NOT NULL DEFAULT '{}',
	attempted_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS outcomes_pair_recency
	ON outcomes (learner_id, skill_code, attempted_at DESC);

CREATE TABLE IF NOT EXISTS progress (
	learner_id          TEXT NOT NULL,
	skill_code          TEXT NOT NULL,
	progress_percent    DOUBLE PRECISION NOT NULL DEFAULT 0,
	mastery_level       TEXT NOT NULL DEFAULT 'not_started',
	total_attempts      INT NOT NULL DEFAULT 0,
	successful_attempts INT NOT NULL DEFAULT 0,
	average_quality     DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_time_spent    INT NOT NULL DEFAULT 0,
	last_attempt_at     TIMESTAMPTZ NOT NULL,
	mastered_at         TIMESTAMPTZ,
	needs_review        BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (learner_id, skill_code)
);

CREATE TABLE IF NOT EXISTS review_cards (
	learner_id        TEXT NOT NULL,
	skill_code        TEXT NOT NULL,
	easiness_factor   DOUBLE PRECISION NOT NULL,
	repetition_number INT NOT NULL,
	interval_days     INT NOT NULL,
	last_review_at    TIMESTAMPTZ NOT NULL,
	next_review_at    TIMESTAMPTZ NOT NULL,
	last_quality      DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (learner_id, skill_code)
);
CREATE INDEX IF NOT EXISTS review_cards_due
	ON review_cards (learner_id, next_review_at);

CREATE TABLE IF NOT EXISTS error_patterns (
	learner_id   TEXT NOT NULL,
	skill_code   TEXT NOT NULL,
	tag          TEXT NOT NULL,
	occurrences  INT NOT NULL DEFAULT 1,
	last_seen_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (learner_id, skill_code, tag)
);
`

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same query methods serve both pooled and in-transaction access.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is the PostgreSQL-backed Store.
type PostgresStore struct {
	db   querier
	pool *pgxpool.Pool // nil when bound to a transaction
}

// NewPostgresStore creates a PostgreSQL-backed store over a pool.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

func (s *PostgresStore) AppendOutcome(ctx context.Context, o Outcome) (string, error) {
	attemptedAt := o.AttemptedAt
	if attemptedAt.IsZero() {
		attemptedAt = time.Now()
	}
	tags := o.ErrorTags
	if tags == nil {
		tags = []string{}
	}

	var id string
	err := s.db.QueryRow(ctx,
		`INSERT INTO outcomes (learner_id, skill_code, exercise_id, is_correct, hints_used, time_spent_seconds, quality, error_tags, attempted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id::text`,
		o.LearnerID, o.SkillCode, o.ExerciseID, o.IsCorrect,
		o.HintsUsed, o.TimeSpentSeconds, o.Quality, tags, attemptedAt,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("append outcome: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) RecentOutcomes(ctx context.Context, learnerID, skillCode string, limit int) ([]Outcome, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::text, learner_id, skill_code, exercise_id, is_correct, hints_used, time_spent_seconds, quality, error_tags, attempted_at
		 FROM outcomes
		 WHERE learner_id = $1 AND skill_code = $2
		 ORDER BY attempted_at DESC, id DESC
		 LIMIT $3`,
		learnerID, skillCode, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(
			&o.ID, &o.LearnerID, &o.SkillCode, &o.ExerciseID, &o.IsCorrect,
			&o.HintsUsed, &o.TimeSpentSeconds, &o.Quality, &o.ErrorTags, &o.AttemptedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, learnerID, skillCode string) (*Progress, error) {
	var p Progress
	err := s.db.QueryRow(ctx,
		`SELECT learner_id, skill_code, progress_percent, mastery_level, total_attempts, successful_attempts, average_quality, total_time_spent, last_attempt_at, mastered_at, needs_review
		 FROM progress
		 WHERE learner_id = $1 AND skill_code = $2`,
		learnerID, skillCode,
	).Scan(
		&p.LearnerID, &p.SkillCode, &p.ProgressPercent, &p.MasteryLevel,
		&p.TotalAttempts, &p.SuccessfulAttempts, &p.AverageQuality,
		&p.TotalTimeSpent, &p.LastAttemptAt, &p.MasteredAt, &p.NeedsReview,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return &p, nil
}

// UpsertProgress writes the aggregate. mastered_at only ever moves from
// NULL to a value; later writes never clear or change it.
func (s *PostgresStore) UpsertProgress(ctx context.Context, p Progress) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO progress (learner_id, skill_code, progress_percent, mastery_level, total_attempts, successful_attempts, average_quality, total_time_spent, last_attempt_at, mastered_at, needs_review)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (learner_id, skill_code) DO UPDATE SET
			progress_percent    = EXCLUDED.progress_percent,
			mastery_level       = EXCLUDED.mastery_level,
			total_attempts      = EXCLUDED.total_attempts,
			successful_attempts = EXCLUDED.successful_attempts,
			average_quality     = EXCLUDED.average_quality,
			total_time_spent    = EXCLUDED.total_time_spent,
			last_attempt_at     = EXCLUDED.last_attempt_at,
			mastered_at         = COALESCE(progress.mastered_at, EXCLUDED.mastered_at),
			needs_review        = EXCLUDED.needs_review`,
		p.LearnerID, p.SkillCode, p.ProgressPercent, p.MasteryLevel,
		p.TotalAttempts, p.SuccessfulAttempts, p.AverageQuality,
		p.TotalTimeSpent, p.LastAttemptAt, p.MasteredAt, p.NeedsReview,
	)
	if err != nil {
		return fmt.Errorf("upsert progress: %w", err)
	}
	return nil
}

func (s *PostgresStore) ProgressForSkills(ctx context.Context, learnerID string, skillCodes []string) (map[string]Progress, error) {
	if len(skillCodes) == 0 {
		return map[string]Progress{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT learner_id, skill_code, progress_percent, mastery_level, total_attempts, successful_attempts, average_quality, total_time_spent, last_attempt_at, mastered_at, needs_review
		 FROM progress
		 WHERE learner_id = $1 AND skill_code = ANY($2)`,
		learnerID, skillCodes,
	)
	if err != nil {
		return nil, fmt.Errorf("query progress batch: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Progress, len(skillCodes))
	for rows.Next() {
		var p Progress
		if err := rows.Scan(
			&p.LearnerID, &p.SkillCode, &p.ProgressPercent, &p.MasteryLevel,
			&p.TotalAttempts, &p.SuccessfulAttempts, &p.AverageQuality,
			&p.TotalTimeSpent, &p.LastAttemptAt, &p.MasteredAt, &p.NeedsReview,
		); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		out[p.SkillCode] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetCard(ctx context.Context, learnerID, skillCode string) (*ReviewCard, error) {
	var c ReviewCard
	err := s.db.QueryRow(ctx,
		`SELECT learner_id, skill_code, easiness_factor, repetition_number, interval_days, last_review_at, next_review_at, last_quality
		 FROM review_cards
		 WHERE learner_id = $1 AND skill_code = $2`,
		learnerID, skillCode,
	).Scan(
		&c.LearnerID, &c.SkillCode, &c.EasinessFactor, &c.RepetitionNumber,
		&c.IntervalDays, &c.LastReviewAt, &c.NextReviewAt, &c.LastQuality,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review card: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpsertCard(ctx context.Context, c ReviewCard) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO review_cards (learner_id, skill_code, easiness_factor, repetition_number, interval_days, last_review_at, next_review_at, last_quality)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (learner_id, skill_code) DO UPDATE SET
			easiness_factor   = EXCLUDED.easiness_factor,
			repetition_number = EXCLUDED.repetition_number,
			interval_days     = EXCLUDED.interval_days,
			last_review_at    = EXCLUDED.last_review_at,
			next_review_at    = EXCLUDED.next_review_at,
			last_quality      = EXCLUDED.last_quality`,
		c.LearnerID, c.SkillCode, c.EasinessFactor, c.RepetitionNumber,
		c.IntervalDays, c.LastReviewAt, c.NextReviewAt, c.LastQuality,
	)
	if err != nil {
		return fmt.Errorf("upsert review card: %w", err)
	}
	return nil
}

func (s *PostgresStore) DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]ReviewCard, error) {
	rows, err := s.db.Query(ctx,
		`SELECT learner_id, skill_code, easiness_factor, repetition_number, interval_days, last_review_at, next_review_at, last_quality
		 FROM review_cards
		 WHERE learner_id = $1 AND next_review_at < $2
		 ORDER BY next_review_at ASC, skill_code ASC
		 LIMIT $3`,
		learnerID, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query due cards: %w", err)
	}
	defer rows.Close()

	var due []ReviewCard
	for rows.Next() {
		var c ReviewCard
		if err := rows.Scan(
			&c.LearnerID, &c.SkillCode, &c.EasinessFactor, &c.RepetitionNumber,
			&c.IntervalDays, &c.LastReviewAt, &c.NextReviewAt, &c.LastQuality,
		); err != nil {
			return nil, fmt.Errorf("scan review card: %w", err)
		}
		due = append(due, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due cards: %w", err)
	}
	return due, nil
}

func (s *PostgresStore) UpsertErrorPattern(ctx context.Context, learnerID, skillCode, tag string, seenAt time.Time) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO error_patterns (learner_id, skill_code, tag, occurrences, last_seen_at)
		 VALUES ($1, $2, $3, 1, $4)
		 ON CONFLICT (learner_id, skill_code, tag) DO UPDATE SET
			occurrences  = error_patterns.occurrences + 1,
			last_seen_at = EXCLUDED.last_seen_at`,
		learnerID, skillCode, tag, seenAt,
	)
	if err != nil {
		return fmt.Errorf("upsert error pattern: %w", err)
	}
	return nil
}

func (s *PostgresStore) TopErrorPatterns(ctx context.Context, learnerID string, limit int) ([]ErrorPattern, error) {
	rows, err := s.db.Query(ctx,
		`SELECT learner_id, skill_code, tag, occurrences, last_seen_at
		 FROM error_patterns
		 WHERE learner_id = $1
		 ORDER BY occurrences DESC, last_seen_at DESC, tag ASC
		 LIMIT $2`,
		learnerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query error patterns: %w", err)
	}
	defer rows.Close()

	var out []ErrorPattern
	for rows.Next() {
		var p ErrorPattern
		if err := rows.Scan(&p.LearnerID, &p.SkillCode, &p.Tag, &p.Occurrences, &p.LastSeenAt); err != nil {
			return nil, fmt.Errorf("scan error pattern: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error patterns: %w", err)
	}
	return out, nil
}

// WithPair opens a transaction and takes a pair-scoped advisory lock. A
// concurrent holder of the same pair makes the lock unavailable, which
// surfaces as ErrConflict for the caller to retry. Called on a store
// already inside a pair section, fn just reuses the open transaction.
func (s *PostgresStore) WithPair(ctx context.Context, learnerID, skillCode string, fn func(ctx context.Context, s Store) error) error {
	if s.pool == nil {
		return fn(ctx, s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin pair transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var acquired bool
	err = tx.QueryRow(ctx,
		`SELECT pg_try_advisory_xact_lock(hashtextextended($1, 0))`,
		learnerID+"\x00"+skillCode,
	).Scan(&acquired)
	if err != nil {
		return fmt.Errorf("acquire pair lock: %w", err)
	}
	if !acquired {
		return ErrConflict
	}

	if err := fn(ctx, &PostgresStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit pair transaction: %w", err)
	}
	return nil
}
