package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"bridgegate/server/ben"
	"bridgegate/server/deal"
	"bridgegate/server/engine"
	"bridgegate/server/orchestrator"
)

const maxBodyBytes = 1 << 20

func Router(orc *orchestrator.Orchestrator, benClient *ben.Client, geminiKeySet bool, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": "bridgegate",
			"endpoints": []string{
				"POST /api/analyze/gemini",
				"POST /api/analyze/ben",
				"POST /api/analyze/combined",
				"POST /api/analyze/compare",
				"GET /health",
			},
		})
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		benUp := benClient != nil && benClient.Ping(ctx) == nil
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":            true,
			"gemini_key":    geminiKeySet,
			"ben_reachable": benUp,
		})
	})

	r.Route("/api/analyze", func(r chi.Router) {
		for _, s := range []orchestrator.Strategy{
			orchestrator.StrategyGemini,
			orchestrator.StrategyBen,
			orchestrator.StrategyCombined,
			orchestrator.StrategyCompare,
		} {
			r.Post("/"+string(s), analyzeHandler(orc, s, log))
		}
	})

	return r
}

func analyzeHandler(orc *orchestrator.Orchestrator, s orchestrator.Strategy, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "body unreadable: "+err.Error())
			return
		}
		d, err := deal.ParseJSON(body)
		if err != nil {
			// Structurally invalid: rejected here, no engine is contacted.
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		start := time.Now()
		out, err := orc.Run(req.Context(), d, s)
		if err != nil {
			log.Warn("analysis failed",
				zap.String("strategy", string(s)),
				zap.Duration("latency", time.Since(start)),
				zap.Error(err))

			var combined *orchestrator.CombinedFailure
			if errors.As(err, &combined) {
				writeJSON(w, http.StatusBadGateway, map[string]any{
					"success":      false,
					"error":        combined.Error(),
					"gemini_error": combined.Gemini,
					"ben_error":    combined.Ben,
				})
				return
			}
			var eerr *engine.Error
			if errors.As(err, &eerr) {
				writeJSON(w, http.StatusBadGateway, map[string]any{
					"success": false,
					"engine":  eerr.Engine,
					"kind":    eerr.Kind,
					"error":   eerr.Detail,
				})
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		log.Info("analysis served",
			zap.String("strategy", string(s)),
			zap.Duration("latency", time.Since(start)))
		writeJSON(w, http.StatusOK, out)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}
