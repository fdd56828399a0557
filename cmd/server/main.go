package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-core/internal/curriculum"
	"github.com/p-n-ai/pai-core/internal/learning"
	"github.com/p-n-ai/pai-core/internal/platform/cache"
	"github.com/p-n-ai/pai-core/internal/platform/config"
	"github.com/p-n-ai/pai-core/internal/platform/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	registry, err := curriculum.Load(cfg.CurriculumPath)
	if err != nil {
		slog.Error("failed to load curriculum", "error", err, "path", cfg.CurriculumPath)
		os.Exit(1)
	}

	db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx, learning.Schema); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	store, err := learning.NewPostgresStore(db.Pool)
	if err != nil {
		slog.Error("failed to create store", "error", err)
		os.Exit(1)
	}

	var (
		snapshots learning.SnapshotCache
		redisConn *cache.Cache
	)
	if cfg.Cache.URL != "" {
		redisConn, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			slog.Error("failed to connect to cache", "error", err)
			os.Exit(1)
		}
		defer redisConn.Close()
		snapshots = cache.NewSnapshots(redisConn)
	}

	engine := learning.NewEngine(learning.EngineConfig{
		Store:      store,
		Curriculum: registry,
		Cache:      snapshots,
		Policy:     policyFromConfig(cfg.Policy),
	})

	mux := newMux(engine, db, redisConn)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "skills", registry.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func policyFromConfig(p config.PolicyConfig) learning.Policy {
	return learning.Policy{
		MasteryWindow:      p.MasteryWindow,
		HintPenaltyPerHint: p.HintPenaltyPerHint,
		HintPenaltyCap:     p.HintPenaltyCap,
		MasteredPercent:    p.MasteredPercent,
		MasteredQuality:    p.MasteredQuality,
		InProgressPercent:  p.InProgressPercent,
		ReviewPercent:      p.ReviewPercent,
		ReviewQuality:      p.ReviewQuality,
		InitialEasiness:    p.InitialEasiness,
		MinEasiness:        p.MinEasiness,
		FirstIntervalDays:  p.FirstIntervalDays,
		SecondIntervalDays: p.SecondIntervalDays,
		StruggleWindow:     p.StruggleWindow,
		StruggleFailures:   p.StruggleFailures,
	}
}
