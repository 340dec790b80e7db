// Command roster builds and inspects on-call duty schedules for a
// veterinary clinic, either against local JSON fixtures or as an HTTP
// server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vetroster/oncall/internal/config"
	"github.com/vetroster/oncall/internal/database"
	"github.com/vetroster/oncall/internal/handler"
	"github.com/vetroster/oncall/internal/metrics"
	"github.com/vetroster/oncall/internal/middleware"
	"github.com/vetroster/oncall/internal/security"
	"github.com/vetroster/oncall/internal/store"
	"github.com/vetroster/oncall/pkg/eligibility"
	"github.com/vetroster/oncall/pkg/engine"
	"github.com/vetroster/oncall/pkg/logger"
	"github.com/vetroster/oncall/pkg/model"
	"github.com/vetroster/oncall/pkg/validator"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "roster",
		Short: "Build and inspect veterinary on-call duty schedules",
	}

	root.AddCommand(newSolveCmd(), newValidateCmd(), newServeCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// solveFixture is the on-disk shape consumed by `roster solve`. It reuses
// the HTTP API's wire types so a fixture file and a POST body are
// interchangeable.
type solveFixture = handler.SolveRequest

func newSolveCmd() *cobra.Command {
	var (
		fixturePath string
		outPath     string
		persist     bool
	)

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Solve a roster fixture and print the resulting schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(fixturePath)
			if err != nil {
				return fmt.Errorf("reading fixture: %w", err)
			}

			var req solveFixture
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("parsing fixture: %w", err)
			}

			quarterStart, staff, vacations, opts, err := req.ToEngineInputs()
			if err != nil {
				return err
			}

			logVerbose("solving quarter starting %s for %d staff", quarterStart, len(staff))
			result, err := engine.Solve(context.Background(), staff, quarterStart.Time(), vacations, opts)
			if err != nil {
				return fmt.Errorf("solve failed: %w", err)
			}

			resp := handler.ToSolveResponse(result)
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}

			if err := writeOutput(outPath, out); err != nil {
				return err
			}

			if persist {
				if err := persistSchedule(result); err != nil {
					fmt.Fprintf(os.Stderr, "WARN: persist failed: %s\n", err)
				}
			}

			if !result.Feasible {
				return fmt.Errorf("no feasible schedule found (status %s)", result.Status)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&fixturePath, "fixture", "", "Path to a JSON roster fixture (required)")
	f.StringVar(&outPath, "out", "", "Write the result to a file instead of stdout")
	f.BoolVar(&persist, "persist", false, "Save the solved schedule to the configured database")
	cmd.MarkFlagRequired("fixture")

	return cmd
}

// validateFixture pairs a roster with an already-built schedule, for
// checking hand-edited or externally produced schedules offline.
type validateFixture struct {
	Staff                []handler.StaffInput `json:"staff"`
	Schedule             model.Schedule        `json:"schedule"`
	EnforceParticipation bool                  `json:"enforce_min_participation,omitempty"`
}

func newValidateCmd() *cobra.Command {
	var fixturePath string
	var outPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a roster and schedule fixture against every hard and soft rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(fixturePath)
			if err != nil {
				return fmt.Errorf("reading fixture: %w", err)
			}

			var fixture validateFixture
			if err := json.Unmarshal(data, &fixture); err != nil {
				return fmt.Errorf("parsing fixture: %w", err)
			}

			roster := make(map[model.StaffID]model.Staff, len(fixture.Staff))
			for _, in := range fixture.Staff {
				st, err := in.ToStaff()
				if err != nil {
					return fmt.Errorf("invalid staff record %s: %w", in.ID, err)
				}
				roster[st.ID] = st
			}

			result := validator.Validate(&fixture.Schedule, roster, eligibility.Absence{}, validator.Options{
				EnforceParticipation: fixture.EnforceParticipation,
				QuarterStart:         fixture.Schedule.QuarterStart,
				QuarterEnd:           fixture.Schedule.QuarterEnd,
			})

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding result: %w", err)
			}

			if err := writeOutput(outPath, out); err != nil {
				return err
			}

			if result.HasHardViolations() {
				return fmt.Errorf("schedule fails %d hard constraint(s)", len(result.Violations))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&fixturePath, "fixture", "", "Path to a JSON roster+schedule fixture (required)")
	f.StringVar(&outPath, "out", "", "Write the result to a file instead of stdout")
	cmd.MarkFlagRequired("fixture")

	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the roster HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	return cmd
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func logVerbose(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "INFO: "+format+"\n", args...)
}

func persistSchedule(result engine.Result) error {
	if result.Schedule == nil {
		return fmt.Errorf("no schedule to persist")
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	scheduleStore := store.NewScheduleStore(db)
	id, err := scheduleStore.Save(context.Background(), *result.Schedule, string(result.Status))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "persisted schedule run %s\n", id)
	return nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	fmt.Printf("roster engine v%s\n", version)

	scheduleHandler := handler.NewScheduleHandler()
	statsHandler := handler.NewStatsHandler()

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"roster"}`))
	})

	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":%q}`, version)
	})

	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"endpoints": {
				"schedule": {"solve": "POST /api/v1/schedule/solve"},
				"stats": {"fairness": "POST /api/v1/stats/fairness"}
			}
		}`))
	})

	mux.HandleFunc("/api/v1/schedule/solve", scheduleHandler.Solve)
	mux.HandleFunc("/api/v1/stats/fairness", statsHandler.Fairness)

	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", metrics.Handler())
	}

	rateLimiter := security.NewRateLimiter(cfg.API.RateLimit, time.Minute)
	var handlerChain http.Handler = mux
	handlerChain = loggingMiddleware(handlerChain)
	handlerChain = rateLimitMiddleware(rateLimiter, handlerChain)
	handlerChain = middleware.SecurityHeadersMiddleware(handlerChain)
	handlerChain = middleware.RecoveryMiddleware(handlerChain)
	handlerChain = middleware.RequestIDMiddleware(handlerChain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handlerChain,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", version).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("server failed to start")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
		os.Exit(1)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		duration := time.Since(start)

		logger.Info().
			Str("request_id", w.Header().Get("X-Request-ID")).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("request handled")

		metrics.RecordRequestMetrics(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func rateLimitMiddleware(rl *security.RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r.RemoteAddr) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   true,
				"code":    "RATE_LIMITED",
				"message": "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

