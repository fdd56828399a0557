package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-core/internal/learning"
	"github.com/p-n-ai/pai-core/internal/platform/cache"
	"github.com/p-n-ai/pai-core/internal/platform/database"
)

// newMux creates the HTTP router. db and redisConn may be nil in tests;
// readiness then only reports what is wired.
func newMux(engine *learning.Engine, db *database.DB, redisConn *cache.Cache) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleReadyz(db, redisConn))
	mux.HandleFunc("POST /v1/outcomes", handleRecordOutcome(engine))
	mux.HandleFunc("GET /v1/learners/{learnerID}/reviews/due", handleDueReviews(engine))
	mux.HandleFunc("GET /v1/learners/{learnerID}/levels/{level}/recommendations", handleRecommendations(engine))
	mux.HandleFunc("GET /v1/learners/{learnerID}/levels/{level}/path", handlePath(engine))
	mux.HandleFunc("GET /v1/learners/{learnerID}/error-patterns", handleErrorPatterns(engine))
	mux.HandleFunc("GET /v1/learners/{learnerID}/remediation", handleRemediation(engine))
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleReadyz(db *database.DB, redisConn *cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.HealthCheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
				return
			}
		}
		if redisConn != nil {
			if err := redisConn.HealthCheck(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "cache unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func handleRecordOutcome(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var outcome learning.Outcome
		if err := json.NewDecoder(r.Body).Decode(&outcome); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		result, err := engine.ProcessOutcome(r.Context(), outcome)
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

func handleDueReviews(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := engine.DueReviews(r.Context(), r.PathValue("learnerID"), queryInt(r, "limit"))
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
	}
}

func handleRecommendations(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := engine.Recommendations(r.Context(), r.PathValue("learnerID"), r.PathValue("level"))
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recommendations": recs})
	}
}

func handlePath(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := engine.Path(r.Context(), r.PathValue("learnerID"), r.PathValue("level"))
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, path)
	}
}

func handleErrorPatterns(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patterns, err := engine.TopErrorPatterns(r.Context(), r.PathValue("learnerID"), queryInt(r, "limit"))
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"patterns": patterns})
	}
}

func handleRemediation(engine *learning.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actions, err := engine.SuggestRemediation(r.Context(), r.PathValue("learnerID"))
		if err != nil {
			writeLearningError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"actions": actions})
	}
}

// writeLearningError maps core error taxonomy onto HTTP status codes.
func writeLearningError(w http.ResponseWriter, err error) {
	var ve *learning.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, learning.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, learning.ErrConflict):
		writeError(w, http.StatusConflict, "concurrent update in progress, retry the attempt")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, key string) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}
