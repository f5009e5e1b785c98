// Command islandsim simulates the population history of a group of islands
// and plays it back year by year.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/tausaga/internal/api"
	"github.com/talgya/tausaga/internal/config"
	"github.com/talgya/tausaga/internal/engine"
	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/island"
	"github.com/talgya/tausaga/internal/persistence"
)

func main() {
	settings, err := config.LoadSettings()
	if err != nil {
		slog.Error("invalid settings", "error", err)
		os.Exit(1)
	}
	level, _ := settings.Level()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("tausaga island population history",
		"start", engine.YearLabel(settings.StartYear),
		"end", engine.YearLabel(settings.EndYear),
		"mode", settings.HistoryMode,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Entropy ──────────────────────────────────────────────────────
	var src *entropy.Source
	if settings.Seed != 0 {
		src = entropy.New(settings.Seed)
	} else {
		src = entropy.NewRandom()
	}

	// ── Islands ──────────────────────────────────────────────────────
	file, err := config.Load(settings.ConfigPath)
	if err != nil {
		slog.Error("failed to load island config", "error", err)
		os.Exit(1)
	}
	reg, err := island.NewRegistry(file, src)
	if err != nil {
		slog.Error("failed to build islands", "error", err)
		os.Exit(1)
	}
	if err := reg.ResolveDependencies(); err != nil {
		slog.Error("failed to resolve event dependencies", "error", err)
		os.Exit(1)
	}
	for _, is := range reg.Islands() {
		for _, ev := range is.Events {
			slog.Info("event", "island", is.Name, "event", ev.String())
		}
	}

	// ── Database ─────────────────────────────────────────────────────
	var db *persistence.DB
	if settings.DBPath != "" {
		os.MkdirAll(filepath.Dir(settings.DBPath), 0755)
		db, err = persistence.Open(settings.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", settings.DBPath)
	}

	// ── Preflight ────────────────────────────────────────────────────
	sim := engine.NewSimulation(reg, settings, db, src)
	started := time.Now()
	if err := sim.Preflight(ctx); err != nil {
		slog.Error("preflight failed", "error", err)
		os.Exit(1)
	}
	slog.Info("histories ready", "elapsed", time.Since(started).Round(time.Millisecond))

	// ── Workers ──────────────────────────────────────────────────────
	sim.Start(ctx)

	// ── HTTP API ─────────────────────────────────────────────────────
	var apiServer *api.Server
	if settings.APIAddr != "" {
		apiServer = &api.Server{Sim: sim, Addr: settings.APIAddr}
		apiServer.Start()
	} else {
		slog.Info("TAUSAGA_API_ADDR not set, HTTP API disabled")
	}

	// ── Playback ─────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	fmt.Printf("\nPlaying back %d islands from %s to %s (Ctrl+C to stop)\n",
		len(reg.Islands()), engine.YearLabel(settings.StartYear), engine.YearLabel(settings.EndYear))

	if err := sim.Play(ctx); err != nil && ctx.Err() == nil {
		slog.Error("playback failed", "error", err)
	}

	if ctx.Err() == nil {
		final := settings.EndYear - 1
		if _, err := sim.DumpStatus(ctx, final); err != nil {
			slog.Warn("final status dump failed", "error", err)
		}
		if _, err := sim.Plot(ctx); err != nil {
			slog.Warn("growth plot failed", "error", err)
		}
		if apiServer != nil {
			slog.Info("playback finished, API still serving (Ctrl+C to exit)")
			<-ctx.Done()
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown", "error", err)
		}
	}
	if err := sim.Stop(shutdownCtx); err != nil {
		slog.Warn("worker shutdown", "error", err)
	}

	stats := sim.Stats()
	fmt.Printf("Playback stopped at %s: %d people, %d births, %d deaths.\n",
		engine.YearLabel(stats.Year), stats.TotalPopulation, stats.Births, stats.Deaths)
}
