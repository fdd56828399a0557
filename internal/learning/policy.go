package learning

// Policy holds the tunable constants of the learning algorithms. The
// defaults reproduce the observed platform behavior; deployments override
// them through configuration rather than code.
type Policy struct {
	// Mastery estimator.
	MasteryWindow      int     // recent outcomes recomputed on each attempt
	HintPenaltyPerHint float64 // percent subtracted per hint on the latest attempt
	HintPenaltyCap     float64 // maximum total hint penalty
	MasteredPercent    float64 // mastery percent floor for "mastered"
	MasteredQuality    float64 // average quality floor for "mastered"
	InProgressPercent  float64 // mastery percent floor for "in_progress"
	ReviewPercent      float64 // below this percent the skill needs review
	ReviewQuality      float64 // below this average quality the skill needs review

	// Spaced-repetition scheduler (SM-2 family).
	InitialEasiness    float64 // easiness factor for fresh cards
	MinEasiness        float64 // hard floor for the easiness factor
	FirstIntervalDays  int     // interval after the first successful repetition
	SecondIntervalDays int     // interval after the second successful repetition

	// Struggle detection (performance view of "blocked").
	StruggleWindow   int // recent outcomes inspected on the target skill
	StruggleFailures int // incorrect outcomes within the window that flag struggling
}

// DefaultPolicy returns the production constants.
func DefaultPolicy() Policy {
	return Policy{
		MasteryWindow:      20,
		HintPenaltyPerHint: 2,
		HintPenaltyCap:     10,
		MasteredPercent:    90,
		MasteredQuality:    3,
		InProgressPercent:  50,
		ReviewPercent:      80,
		ReviewQuality:      2.5,
		InitialEasiness:    2.5,
		MinEasiness:        1.3,
		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		StruggleWindow:     5,
		StruggleFailures:   3,
	}
}

// withDefaults fills zero-valued fields from DefaultPolicy so a partial
// Policy literal behaves sensibly.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MasteryWindow <= 0 {
		p.MasteryWindow = d.MasteryWindow
	}
	if p.HintPenaltyPerHint <= 0 {
		p.HintPenaltyPerHint = d.HintPenaltyPerHint
	}
	if p.HintPenaltyCap <= 0 {
		p.HintPenaltyCap = d.HintPenaltyCap
	}
	if p.MasteredPercent <= 0 {
		p.MasteredPercent = d.MasteredPercent
	}
	if p.MasteredQuality <= 0 {
		p.MasteredQuality = d.MasteredQuality
	}
	if p.InProgressPercent <= 0 {
		p.InProgressPercent = d.InProgressPercent
	}
	if p.ReviewPercent <= 0 {
		p.ReviewPercent = d.ReviewPercent
	}
	if p.ReviewQuality <= 0 {
		p.ReviewQuality = d.ReviewQuality
	}
	if p.InitialEasiness <= 0 {
		p.InitialEasiness = d.InitialEasiness
	}
	if p.MinEasiness <= 0 {
		p.MinEasiness = d.MinEasiness
	}
	if p.FirstIntervalDays <= 0 {
		p.FirstIntervalDays = d.FirstIntervalDays
	}
	if p.SecondIntervalDays <= 0 {
		p.SecondIntervalDays = d.SecondIntervalDays
	}
	if p.StruggleWindow <= 0 {
		p.StruggleWindow = d.StruggleWindow
	}
	if p.StruggleFailures <= 0 {
		p.StruggleFailures = d.StruggleFailures
	}
	return p
}
