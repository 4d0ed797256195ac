package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/DLpadilla/PyFME/internal/aircraft"
	"github.com/DLpadilla/PyFME/internal/api"
	"github.com/DLpadilla/PyFME/internal/atmosphere"
	"github.com/DLpadilla/PyFME/internal/auth"
	"github.com/DLpadilla/PyFME/internal/dynamics"
	"github.com/DLpadilla/PyFME/internal/metrics"
	"github.com/DLpadilla/PyFME/internal/sweep"
	"github.com/DLpadilla/PyFME/internal/trim"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("TRIMD_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	model := aircraft.NewLightTwin()
	if v := os.Getenv("TRIMD_MAX_THRUST"); v != "" {
		thrust, err := strconv.ParseFloat(v, 64)
		if err != nil || thrust <= 0 {
			logger.Warn("invalid TRIMD_MAX_THRUST value, using default", "value", v)
		} else {
			model = aircraft.NewLightTwinWithThrust(thrust)
		}
	}

	solver, err := trim.New(model, atmosphere.ISA{}, dynamics.FlatEarth{}, loadSolverConfig(logger), logger)
	if err != nil {
		logger.Error("building trim solver", "error", err)
		os.Exit(1)
	}

	sweepCfg := loadSweepConfig(logger)
	store := sweep.NewStore()
	tableCache := sweep.NewCache(sweepCfg.CacheDir, sweepCfg.MaxFiles)
	sweeper := sweep.NewSweeper(solver, sweepCfg.Workers, logger)

	// Attempt to load a cached trim table on startup.
	table, err := tableCache.LoadLatest()
	if err != nil {
		logger.Info("no cached trim table, starting empty", "error", err)
	} else {
		store.Set(table)
		metrics.SetTableAge(store.AgeSeconds())
		logger.Info("loaded trim table from cache",
			"points", len(table.Points),
			"generated_at", table.GeneratedAt.Format(time.RFC3339),
		)
	}

	srvCfg := loadServerConfig(logger)
	srv := api.NewServer(addr, api.Deps{
		Solver:         solver,
		Sweeper:        sweeper,
		Store:          store,
		Cache:          tableCache,
		MaxSweepPoints: srvCfg.MaxSweepPoints,
		TrustProxy:     srvCfg.TrustProxy,
	}, logger, authCfg)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional sweep at startup so the service publishes a fresh table.
	if sweepCfg.OnStart {
		go func() {
			store.Lock()
			defer store.Unlock()
			t, err := sweeper.Run(ctx, sweepCfg.Grid)
			if err != nil {
				logger.Error("startup sweep failed", "error", err)
				return
			}
			store.Set(t)
			metrics.SetTableAge(0)
			if err := tableCache.Write(t); err != nil {
				logger.Warn("persisting startup trim table failed", "error", err)
			}
		}()
	}

	// Background goroutine to update the table age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.SetTableAge(store.AgeSeconds())
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled, "sweep_on_start", sweepCfg.OnStart)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("TRIMD_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("TRIMD_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("TRIMD_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("TRIMD_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadSolverConfig(logger *slog.Logger) trim.Config {
	cfg := trim.Config{}

	if v := os.Getenv("TRIMD_MAX_EVALUATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRIMD_MAX_EVALUATIONS value, using default", "value", v)
		} else {
			cfg.MaxEvaluations = n
		}
	}

	return cfg
}

type sweepConfig struct {
	Workers  int
	CacheDir string
	MaxFiles int
	OnStart  bool
	Grid     sweep.Grid
}

func loadSweepConfig(logger *slog.Logger) sweepConfig {
	cfg := sweepConfig{
		Workers:  runtime.NumCPU(),
		CacheDir: "/tmp/trimd/tables",
		MaxFiles: 5,
		Grid: sweep.Grid{
			AltitudeMin: 0, AltitudeMax: 10000, AltitudeStep: 1000,
			TASMin: 60, TASMax: 160, TASStep: 10,
		},
	}

	if v := os.Getenv("TRIMD_SWEEP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRIMD_SWEEP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	if v := os.Getenv("TRIMD_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}

	if v := os.Getenv("TRIMD_CACHE_MAX_FILES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRIMD_CACHE_MAX_FILES value, using default", "value", v, "default", 5)
		} else {
			cfg.MaxFiles = n
		}
	}

	if v := os.Getenv("TRIMD_SWEEP_ON_START"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TRIMD_SWEEP_ON_START value, defaulting to false", "value", v)
		} else {
			cfg.OnStart = enabled
		}
	}

	grid := []struct {
		env string
		dst *float64
	}{
		{"TRIMD_SWEEP_ALT_MIN", &cfg.Grid.AltitudeMin},
		{"TRIMD_SWEEP_ALT_MAX", &cfg.Grid.AltitudeMax},
		{"TRIMD_SWEEP_ALT_STEP", &cfg.Grid.AltitudeStep},
		{"TRIMD_SWEEP_TAS_MIN", &cfg.Grid.TASMin},
		{"TRIMD_SWEEP_TAS_MAX", &cfg.Grid.TASMax},
		{"TRIMD_SWEEP_TAS_STEP", &cfg.Grid.TASStep},
	}
	for _, g := range grid {
		if v := os.Getenv(g.env); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				logger.Warn("invalid sweep grid value, using default", "env", g.env, "value", v)
			} else {
				*g.dst = f
			}
		}
	}

	logger.Info("sweep config",
		"workers", cfg.Workers,
		"cache_dir", cfg.CacheDir,
		"on_start", cfg.OnStart,
		"grid_points", cfg.Grid.NumPoints(),
	)

	return cfg
}

type serverConfig struct {
	MaxSweepPoints int
	TrustProxy     bool
}

func loadServerConfig(logger *slog.Logger) serverConfig {
	cfg := serverConfig{
		MaxSweepPoints: 10000,
	}

	if v := os.Getenv("TRIMD_MAX_SWEEP_POINTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid TRIMD_MAX_SWEEP_POINTS value, using default", "value", v, "default", cfg.MaxSweepPoints)
		} else {
			cfg.MaxSweepPoints = n
		}
	}

	if v := os.Getenv("TRIMD_TRUST_PROXY"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid TRIMD_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = enabled
		}
	}

	return cfg
}
