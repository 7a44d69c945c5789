package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bridgegate/server/ben"
	"bridgegate/server/engine"
	"bridgegate/server/llm"
	"bridgegate/server/orchestrator"
)

//
// ===== bootstrap =====
//

// Tries: env var file, ./secrets/gemini_api_key.txt, ./server/gemini_api_key.txt,
// ./gemini_api_key.txt, /app/server/gemini_api_key.txt (in container), and
// /run/secrets/gemini_api_key.
func loadAPIKeyFromSecret() {
	if os.Getenv("GEMINI_API_KEY") != "" {
		return
	}
	var candidates []string
	if p := os.Getenv("GEMINI_API_KEY_FILE"); strings.TrimSpace(p) != "" {
		candidates = append(candidates, p)
	}
	candidates = append(candidates,
		"./secrets/gemini_api_key.txt",
		"server/gemini_api_key.txt",
		"./server/gemini_api_key.txt",
		"./gemini_api_key.txt",
		"/app/server/gemini_api_key.txt",
		"/run/secrets/gemini_api_key",
	)
	for _, path := range candidates {
		if b, err := os.ReadFile(path); err == nil {
			key := strings.TrimSpace(string(b))
			if key != "" {
				os.Setenv("GEMINI_API_KEY", key)
				return
			}
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	if asBool(os.Getenv("DEBUG")) {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

func main() {
	_ = godotenv.Load()
	loadAPIKeyFromSecret()

	log := newLogger()
	defer func() { _ = log.Sync() }()

	port := getenv("PORT", "8080")
	geminiKey := os.Getenv("GEMINI_API_KEY")
	benURL := os.Getenv("BEN_URL")
	if geminiKey == "" && benURL == "" {
		log.Fatal("no engine configured; set GEMINI_API_KEY and/or BEN_URL in .env (dev) or on the host (prod)")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go watchSignals(cancel)

	// A missing engine degrades rather than blocking startup: its strategy
	// returns a typed error while the configured engine keeps serving.
	var gemini engine.Engine
	if geminiKey == "" {
		log.Warn("GEMINI_API_KEY not set; gemini analysis disabled")
		gemini = engine.Unconfigured(llm.Name, "GEMINI_API_KEY not set")
	} else {
		g, err := llm.NewGemini(ctx, geminiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal("gemini client", zap.Error(err))
		}
		gemini = g
	}

	var benClient *ben.Client
	var benEngine engine.Engine
	if benURL == "" {
		log.Warn("BEN_URL not set; ben analysis disabled")
		benEngine = engine.Unconfigured(ben.Name, "BEN_URL not set")
	} else {
		benClient = ben.New(benURL)
		benEngine = benClient
	}

	opts := orchestrator.DefaultOptions()
	opts.GeminiTimeout = time.Duration(atoiDef(os.Getenv("GEMINI_TIMEOUT_SECONDS"), 30)) * time.Second
	opts.BenTimeout = time.Duration(atoiDef(os.Getenv("BEN_TIMEOUT_SECONDS"), 10)) * time.Second
	if v := os.Getenv("PREFER_COMPUTED"); v != "" {
		opts.PreferComputed = asBool(v)
	}

	orc := orchestrator.New(gemini, benEngine, opts, log)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      Router(orc, benClient, geminiKey != "", log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout(opts),
	}
	go func() {
		<-ctx.Done()
		shutCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server", zap.Error(err))
	}
}

// writeTimeout covers the worst-case guarded call: two attempts at the
// slower engine's budget plus the retry backoff, with headroom to write the
// response.
func writeTimeout(opts orchestrator.Options) time.Duration {
	slowest := max(opts.GeminiTimeout, opts.BenTimeout)
	return 2*slowest + opts.RetryBackoff + 15*time.Second
}

func watchSignals(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	cancel()
}
