package learning

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryPairLockWait bounds how long MemoryStore.WithPair waits for the
// pair lock before giving up with ErrConflict.
const memoryPairLockWait = 2 * time.Second

// Store persists the four keyed collections of the core: outcomes,
// progress, review cards and error patterns. Implementations must make
// WithPair an atomic section for the given (learner, skill) pair;
// everything else only needs per-key atomicity.
type Store interface {
	AppendOutcome(ctx context.Context, o Outcome) (string, error)
	// RecentOutcomes returns up to limit outcomes for the pair, newest first.
	RecentOutcomes(ctx context.Context, learnerID, skillCode string, limit int) ([]Outcome, error)

	// GetProgress returns nil with no error when the pair has no row yet.
	GetProgress(ctx context.Context, learnerID, skillCode string) (*Progress, error)
	UpsertProgress(ctx context.Context, p Progress) error
	// ProgressForSkills returns the existing rows among skillCodes, keyed
	// by skill code. Absent pairs are simply not in the map.
	ProgressForSkills(ctx context.Context, learnerID string, skillCodes []string) (map[string]Progress, error)

	// GetCard returns nil with no error when the pair has no card yet.
	GetCard(ctx context.Context, learnerID, skillCode string) (*ReviewCard, error)
	UpsertCard(ctx context.Context, c ReviewCard) error
	// DueCards returns cards with NextReviewAt before now, most overdue
	// first, capped at limit.
	DueCards(ctx context.Context, learnerID string, now time.Time, limit int) ([]ReviewCard, error)

	UpsertErrorPattern(ctx context.Context, learnerID, skillCode, tag string, seenAt time.Time) error
	TopErrorPatterns(ctx context.Context, learnerID string, limit int) ([]ErrorPattern, error)

	// WithPair runs fn inside the pair's atomic section, serializing
	// concurrent read-modify-write sequences for the same pair. fn
	// receives the store to use for all access within the section.
	// Returns ErrConflict when the section cannot be entered in time.
	WithPair(ctx context.Context, learnerID, skillCode string, fn func(ctx context.Context, s Store) error) error
}

type pairKey struct {
	learner string
	skill   string
}

// MemoryStore is an in-memory Store for tests and single-process use.
type MemoryStore struct {
	mu       sync.RWMutex
	outcomes map[pairKey][]Outcome // append order, oldest first
	progress map[pairKey]Progress
	cards    map[pairKey]ReviewCard
	patterns map[pairKey]map[string]ErrorPattern

	lockMu    sync.Mutex
	pairLocks map[pairKey]*sync.Mutex
	lockWait  time.Duration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		outcomes:  make(map[pairKey][]Outcome),
		progress:  make(map[pairKey]Progress),
		cards:     make(map[pairKey]ReviewCard),
		patterns:  make(map[pairKey]map[string]ErrorPattern),
		pairLocks: make(map[pairKey]*sync.Mutex),
		lockWait:  memoryPairLockWait,
	}
}

func (s *MemoryStore) AppendOutcome(_ context.Context, o Outcome) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.AttemptedAt.IsZero() {
		o.AttemptedAt = time.Now()
	}
	o.ErrorTags = append([]string(nil), o.ErrorTags...)

	s.mu.Lock()
	key := pairKey{o.LearnerID, o.SkillCode}
	s.outcomes[key] = append(s.outcomes[key], o)
	s.mu.Unlock()

	return o.ID, nil
}

// RecentOutcomes orders by attempted_at descending with append order as
// tiebreak, mirroring the Postgres query, so backfilled outcomes with an
// older attempted_at never surface as the latest attempt.
func (s *MemoryStore) RecentOutcomes(_ context.Context, learnerID, skillCode string, limit int) ([]Outcome, error) {
	s.mu.RLock()
	all := s.outcomes[pairKey{learnerID, skillCode}]
	out := make([]Outcome, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		out = append(out, all[i])
	}
	s.mu.RUnlock()

	// Stable over the reversed slice keeps the latest-appended outcome
	// first among equal timestamps.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AttemptedAt.After(out[j].AttemptedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetProgress(_ context.Context, learnerID, skillCode string) (*Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.progress[pairKey{learnerID, skillCode}]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) UpsertProgress(_ context.Context, p Progress) error {
	s.mu.Lock()
	s.progress[pairKey{p.LearnerID, p.SkillCode}] = p
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ProgressForSkills(_ context.Context, learnerID string, skillCodes []string) (map[string]Progress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Progress, len(skillCodes))
	for _, code := range skillCodes {
		if p, ok := s.progress[pairKey{learnerID, code}]; ok {
			out[code] = p
		}
	}
	return out, nil
}

func (s *MemoryStore) GetCard(_ context.Context, learnerID, skillCode string) (*ReviewCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cards[pairKey{learnerID, skillCode}]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) UpsertCard(_ context.Context, c ReviewCard) error {
	s.mu.Lock()
	s.cards[pairKey{c.LearnerID, c.SkillCode}] = c
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) DueCards(_ context.Context, learnerID string, now time.Time, limit int) ([]ReviewCard, error) {
	s.mu.RLock()
	var due []ReviewCard
	for key, c := range s.cards {
		if key.learner == learnerID && c.NextReviewAt.Before(now) {
			due = append(due, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextReviewAt.Equal(due[j].NextReviewAt) {
			return due[i].NextReviewAt.Before(due[j].NextReviewAt)
		}
		return due[i].SkillCode < due[j].SkillCode
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *MemoryStore) UpsertErrorPattern(_ context.Context, learnerID, skillCode, tag string, seenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{learnerID, skillCode}
	byTag := s.patterns[key]
	if byTag == nil {
		byTag = make(map[string]ErrorPattern)
		s.patterns[key] = byTag
	}

	p, ok := byTag[tag]
	if !ok {
		p = ErrorPattern{LearnerID: learnerID, SkillCode: skillCode, Tag: tag}
	}
	p.Occurrences++
	p.LastSeenAt = seenAt
	byTag[tag] = p
	return nil
}

func (s *MemoryStore) TopErrorPatterns(_ context.Context, learnerID string, limit int) ([]ErrorPattern, error) {
	s.mu.RLock()
	var all []ErrorPattern
	for key, byTag := range s.patterns {
		if key.learner != learnerID {
			continue
		}
		for _, p := range byTag {
			all = append(all, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].Occurrences != all[j].Occurrences {
			return all[i].Occurrences > all[j].Occurrences
		}
		if !all[i].LastSeenAt.Equal(all[j].LastSeenAt) {
			return all[i].LastSeenAt.After(all[j].LastSeenAt)
		}
		return all[i].Tag < all[j].Tag
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// WithPair serializes writers per pair with a dedicated mutex. The lock
// is polled so that a stuck writer surfaces as ErrConflict instead of a
// silent stall.
func (s *MemoryStore) WithPair(ctx context.Context, learnerID, skillCode string, fn func(ctx context.Context, s Store) error) error {
	lock := s.pairLock(pairKey{learnerID, skillCode})

	deadline := time.Now().Add(s.lockWait)
	for !lock.TryLock() {
		if time.Now().After(deadline) {
			return ErrConflict
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	defer lock.Unlock()

	return fn(ctx, s)
}

func (s *MemoryStore) pairLock(key pairKey) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	lock, ok := s.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pairLocks[key] = lock
	}
	return lock
}
