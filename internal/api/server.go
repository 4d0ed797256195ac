// Package api exposes the trim solver over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/DLpadilla/PyFME/internal/auth"
	"github.com/DLpadilla/PyFME/internal/envelope"
	"github.com/DLpadilla/PyFME/internal/health"
	"github.com/DLpadilla/PyFME/internal/httputil"
	"github.com/DLpadilla/PyFME/internal/metrics"
	"github.com/DLpadilla/PyFME/internal/sweep"
	"github.com/DLpadilla/PyFME/internal/trim"
)

// Deps are the collaborators the server exposes.
type Deps struct {
	Solver  *trim.Solver
	Sweeper *sweep.Sweeper
	Store   *sweep.Store
	Cache   *sweep.Cache

	// MaxSweepPoints bounds the grid size a single request may ask for.
	MaxSweepPoints int
	// TrustProxy enables X-Forwarded-For handling in request logs.
	TrustProxy bool
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(addr string, deps Deps, logger *slog.Logger, authCfg auth.Config) *Server {
	if deps.MaxSweepPoints <= 0 {
		deps.MaxSweepPoints = 10000
	}

	s := &Server{deps: deps, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", health.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", health.Readyz(func() bool { return true })).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/trim", s.handleTrim).Methods(http.MethodPost)
	v1.HandleFunc("/sweep", s.handleSweep).Methods(http.MethodPost)
	v1.HandleFunc("/sweep/latest", s.handleSweepLatest).Methods(http.MethodGet)
	v1.HandleFunc("/envelope", s.handleEnvelope).Methods(http.MethodGet)

	// Build middleware chain: metrics -> logging -> auth -> router.
	var handler http.Handler = r
	handler = auth.Middleware(authCfg)(handler)
	handler = loggingMiddleware(logger, deps.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute, // sweeps can be slow
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Handler returns the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// trimRequest is the POST /api/v1/trim body.
type trimRequest struct {
	Altitude float64 `json:"altitude"`
	TAS      float64 `json:"tas"`
	Gamma    float64 `json:"gamma"`
	TurnRate float64 `json:"turn_rate"`
}

// trimResponse is the solved steady state for one flight condition.
type trimResponse struct {
	Altitude        float64       `json:"altitude"`
	TAS             float64       `json:"tas"`
	Gamma           float64       `json:"gamma"`
	TurnRate        float64       `json:"turn_rate"`
	Alpha           float64       `json:"alpha"`
	Beta            float64       `json:"beta"`
	Theta           float64       `json:"theta"`
	Phi             float64       `json:"phi"`
	LinearVelocity  [3]float64    `json:"linear_velocity"`
	AngularVelocity [3]float64    `json:"angular_velocity"`
	Controls        trim.Controls `json:"controls"`
	Cost            float64       `json:"cost"`
	Residual        [6]float64    `json:"residual"`
	Evaluations     int           `json:"evaluations"`
	Converged       bool          `json:"converged"`
	Diagnostics     []string      `json:"diagnostics,omitempty"`
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	var req trimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	start := time.Now()
	res, err := s.deps.Solver.Solve(trim.FlightCondition{
		Altitude: req.Altitude,
		TAS:      req.TAS,
		Gamma:    req.Gamma,
		TurnRate: req.TurnRate,
	})
	if err != nil {
		metrics.RecordSolve(time.Since(start).Seconds(), "error", 0)
		var domainErr *trim.DomainError
		switch {
		case errors.Is(err, trim.ErrInvalidFlightCondition):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &domainErr):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			s.logger.Error("trim solve failed", "error", err)
			writeError(w, http.StatusInternalServerError, "trim solve failed")
		}
		return
	}

	outcome := "converged"
	if !res.Converged() {
		outcome = "not_converged"
	}
	metrics.RecordSolve(time.Since(start).Seconds(), outcome, res.Evaluations)

	diags := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		diags = append(diags, string(d.Kind))
	}
	writeJSON(w, http.StatusOK, trimResponse{
		Altitude:        req.Altitude,
		TAS:             req.TAS,
		Gamma:           req.Gamma,
		TurnRate:        req.TurnRate,
		Alpha:           res.Alpha,
		Beta:            res.Beta,
		Theta:           res.Theta,
		Phi:             res.Phi,
		LinearVelocity:  res.LinearVelocity,
		AngularVelocity: res.AngularVelocity,
		Controls:        res.Controls,
		Cost:            res.Cost,
		Residual:        res.Residual,
		Evaluations:     res.Evaluations,
		Converged:       res.Converged(),
		Diagnostics:     diags,
	})
}

// sweepResponse summarizes a completed sweep without repeating every point.
type sweepResponse struct {
	GeneratedAt time.Time `json:"generated_at"`
	Points      int       `json:"points"`
	Converged   int       `json:"converged"`
	Failed      int       `json:"failed"`
	DurationMS  int64     `json:"duration_ms"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var grid sweep.Grid
	if err := json.NewDecoder(r.Body).Decode(&grid); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if err := grid.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if n := grid.NumPoints(); n > s.deps.MaxSweepPoints {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":      fmt.Sprintf("grid has %d points", n),
			"max_points": s.deps.MaxSweepPoints,
		})
		return
	}

	// One sweep at a time.
	s.deps.Store.Lock()
	defer s.deps.Store.Unlock()

	table, err := s.deps.Sweeper.Run(r.Context(), grid)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	s.deps.Store.Set(table)
	metrics.SetTableAge(0)
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Write(table); err != nil {
			s.logger.Warn("persisting trim table failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, sweepResponse{
		GeneratedAt: table.GeneratedAt,
		Points:      len(table.Points),
		Converged:   table.Converged,
		Failed:      table.Failed,
		DurationMS:  table.Duration.Milliseconds(),
	})
}

func (s *Server) handleSweepLatest(w http.ResponseWriter, r *http.Request) {
	table := s.deps.Store.Get()
	if table == nil {
		writeError(w, http.StatusNotFound, "no trim table computed yet")
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *Server) handleEnvelope(w http.ResponseWriter, r *http.Request) {
	altitude, err := queryFloat(r, "altitude", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := envelope.Config{}
	params := []struct {
		name string
		dst  *float64
		def  float64
	}{
		{"min_tas", &cfg.MinTAS, 40},
		{"max_tas", &cfg.MaxTAS, 200},
		{"coarse_step", &cfg.CoarseStep, 10},
		{"refine", &cfg.Refine, 0.5},
		{"gamma", &cfg.Gamma, 0},
		{"turn_rate", &cfg.TurnRate, 0},
	}
	for _, p := range params {
		v, err := queryFloat(r, p.name, p.def)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		*p.dst = v
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	env, err := envelope.Search(r.Context(), s.deps.Solver, altitude, cfg, s.logger)
	if err != nil {
		s.logger.Error("envelope search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "envelope search failed")
		return
	}
	writeJSON(w, http.StatusOK, env)
}

func queryFloat(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
