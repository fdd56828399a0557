package config

import (
	"os"
	"testing"
)

// clearEnv unsets all LEARN_ environment variables for a clean test.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"LEARN_SERVER_PORT",
		"LEARN_SERVER_HOST",
		"LEARN_DATABASE_URL",
		"LEARN_DATABASE_MAX_CONNS",
		"LEARN_DATABASE_MIN_CONNS",
		"LEARN_CACHE_URL",
		"LEARN_LOG_LEVEL",
		"LEARN_LOG_FORMAT",
		"LEARN_CURRICULUM_PATH",
		"LEARN_POLICY_MASTERY_WINDOW",
		"LEARN_POLICY_HINT_PENALTY_PER_HINT",
		"LEARN_POLICY_HINT_PENALTY_CAP",
		"LEARN_POLICY_MASTERED_PERCENT",
		"LEARN_POLICY_MASTERED_QUALITY",
		"LEARN_POLICY_IN_PROGRESS_PERCENT",
		"LEARN_POLICY_REVIEW_PERCENT",
		"LEARN_POLICY_REVIEW_QUALITY",
		"LEARN_POLICY_INITIAL_EASINESS",
		"LEARN_POLICY_MIN_EASINESS",
		"LEARN_POLICY_FIRST_INTERVAL_DAYS",
		"LEARN_POLICY_SECOND_INTERVAL_DAYS",
		"LEARN_POLICY_STRUGGLE_WINDOW",
		"LEARN_POLICY_STRUGGLE_FAILURES",
	}
	for _, v := range envVars {
		_ = os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.MaxConns != 25 {
		t.Errorf("Database.MaxConns = %d, want 25", cfg.Database.MaxConns)
	}
	if cfg.Cache.URL != "" {
		t.Errorf("Cache.URL = %q, want empty (cache disabled by default)", cfg.Cache.URL)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want json", cfg.Log.Format)
	}
	if cfg.CurriculumPath != "./curriculum" {
		t.Errorf("CurriculumPath = %q, want ./curriculum", cfg.CurriculumPath)
	}

	p := cfg.Policy
	if p.MasteryWindow != 20 {
		t.Errorf("Policy.MasteryWindow = %d, want 20", p.MasteryWindow)
	}
	if p.HintPenaltyPerHint != 2 || p.HintPenaltyCap != 10 {
		t.Errorf("hint penalty = %g/%g, want 2/10", p.HintPenaltyPerHint, p.HintPenaltyCap)
	}
	if p.MasteredPercent != 90 || p.InProgressPercent != 50 {
		t.Errorf("thresholds = %g/%g, want 90/50", p.MasteredPercent, p.InProgressPercent)
	}
	if p.InitialEasiness != 2.5 || p.MinEasiness != 1.3 {
		t.Errorf("easiness = %g/%g, want 2.5/1.3", p.InitialEasiness, p.MinEasiness)
	}
	if p.FirstIntervalDays != 1 || p.SecondIntervalDays != 6 {
		t.Errorf("intervals = %d/%d, want 1/6", p.FirstIntervalDays, p.SecondIntervalDays)
	}
	if p.StruggleWindow != 5 || p.StruggleFailures != 3 {
		t.Errorf("struggle = %d/%d, want 5/3", p.StruggleWindow, p.StruggleFailures)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)

	t.Setenv("LEARN_SERVER_PORT", "9090")
	t.Setenv("LEARN_DATABASE_URL", "postgres://other:other@db:5432/learn")
	t.Setenv("LEARN_CACHE_URL", "redis://cache:6379")
	t.Setenv("LEARN_CURRICULUM_PATH", "/data/curriculum")
	t.Setenv("LEARN_POLICY_MASTERY_WINDOW", "30")
	t.Setenv("LEARN_POLICY_MASTERED_QUALITY", "3.5")
	t.Setenv("LEARN_POLICY_STRUGGLE_FAILURES", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.URL != "postgres://other:other@db:5432/learn" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Cache.URL != "redis://cache:6379" {
		t.Errorf("Cache.URL = %q", cfg.Cache.URL)
	}
	if cfg.CurriculumPath != "/data/curriculum" {
		t.Errorf("CurriculumPath = %q", cfg.CurriculumPath)
	}
	if cfg.Policy.MasteryWindow != 30 {
		t.Errorf("Policy.MasteryWindow = %d, want 30", cfg.Policy.MasteryWindow)
	}
	if cfg.Policy.MasteredQuality != 3.5 {
		t.Errorf("Policy.MasteredQuality = %g, want 3.5", cfg.Policy.MasteredQuality)
	}
	if cfg.Policy.StruggleFailures != 4 {
		t.Errorf("Policy.StruggleFailures = %d, want 4", cfg.Policy.StruggleFailures)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	clearEnv(t)

	t.Setenv("LEARN_SERVER_PORT", "not-a-port")
	t.Setenv("LEARN_POLICY_MIN_EASINESS", "soft")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Policy.MinEasiness != 1.3 {
		t.Errorf("Policy.MinEasiness = %g, want default 1.3", cfg.Policy.MinEasiness)
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"defaults are valid", func(*Config) {}, true},
		{"missing curriculum path", func(c *Config) { c.CurriculumPath = "" }, false},
		{"missing database URL", func(c *Config) { c.Database.URL = "" }, false},
		{"zero mastery window", func(c *Config) { c.Policy.MasteryWindow = 0 }, false},
		{"non-positive min easiness", func(c *Config) { c.Policy.MinEasiness = 0 }, false},
		{"inverted thresholds", func(c *Config) { c.Policy.MasteredPercent = 40 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantOK && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.wantOK && err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
