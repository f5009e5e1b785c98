// Simulation ties islands, persistence and playback together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/tausaga/internal/config"
	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/history"
	"github.com/talgya/tausaga/internal/island"
	"github.com/talgya/tausaga/internal/persistence"
	"github.com/talgya/tausaga/internal/topography"
)

var ErrNotStarted = errors.New("engine: workers not started")

// Village layout per island.
const (
	villageSpacing = 3
	villageLimit   = 12
)

// Offsets into the run seed so preflight, terrain, and workers draw from
// distinct streams.
const (
	streamPreflight = 0
	streamTerrain   = 1000
	streamVillages  = 2000
	streamWorker    = 3000
)

// Simulation holds every island of a run and the playback around them.
type Simulation struct {
	Registry *island.Registry
	Settings config.Settings
	DB       *persistence.DB // nil runs without a database
	Metrics  *Metrics
	Engine   *Engine

	src     *entropy.Source
	clock   *YearClock
	workers []*Worker
	byName  map[string]*Worker

	mu    sync.RWMutex
	stats SimStats
}

// SimStats tracks aggregate playback statistics.
type SimStats struct {
	Year            int `json:"year"`
	TotalPopulation int `json:"total_population"`
	Births          int `json:"births"`
	Deaths          int `json:"deaths"`
}

// NewSimulation creates a Simulation over a resolved registry.
func NewSimulation(reg *island.Registry, settings config.Settings, db *persistence.DB, src *entropy.Source) *Simulation {
	s := &Simulation{
		Registry: reg,
		Settings: settings,
		DB:       db,
		Metrics:  NewMetrics(),
		src:      src,
		byName:   make(map[string]*Worker),
		stats:    SimStats{Year: settings.StartYear},
	}
	s.Engine = NewEngine(settings.StartYear, settings.EndYear, settings.CheckPeriod)
	s.Engine.OnYear = s.advanceYear
	s.Engine.OnCentury = func(ctx context.Context, year int) {
		if _, err := s.DumpStatus(ctx, year); err != nil {
			slog.Warn("status dump failed", "year", year, "error", err)
		}
	}
	return s
}

// Stats returns a snapshot of the playback statistics.
func (s *Simulation) Stats() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Preflight builds every island's vital record, either by simulating it or
// by loading an earlier run.
func (s *Simulation) Preflight(ctx context.Context) error {
	switch s.Settings.HistoryMode {
	case config.HistoryImport:
		return s.load()
	default:
		return s.generate(ctx)
	}
}

// generate runs the island preflights concurrently, then stores the records.
func (s *Simulation) generate(ctx context.Context) error {
	st := s.Settings
	g, gctx := errgroup.WithContext(ctx)
	for i, is := range s.Registry.Islands() {
		src := s.src.Derive(streamPreflight + i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, err := is.Preflight(st.StartYear, st.EndYear, st.ThisYear, src)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("preflight: %w", err)
	}

	for _, is := range s.Registry.Islands() {
		if err := s.persist(is); err != nil {
			return err
		}
	}
	if s.DB != nil {
		for k, v := range map[string]string{
			"seed":       strconv.FormatUint(s.src.Seed(), 10),
			"start_year": strconv.Itoa(st.StartYear),
			"end_year":   strconv.Itoa(st.EndYear),
		} {
			if err := s.DB.SaveMeta(k, v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Simulation) persist(is *island.Island) error {
	rec := is.History.Record
	if s.DB != nil {
		if err := s.DB.SaveRecord(is.Name, rec); err != nil {
			return fmt.Errorf("save %s: %w", is.Name, err)
		}
	}
	if s.Settings.ExportDir == "" {
		return nil
	}
	csvPath, err := persistence.ExportCSV(s.Settings.ExportDir, is.Name, rec)
	if err != nil {
		return err
	}
	zstPath, err := persistence.ExportJSONL(s.Settings.ExportDir, is.Name, rec)
	if err != nil {
		return err
	}
	slog.Info("vital record exported", "island", is.Name, "csv", csvPath, "jsonl", zstPath)
	return nil
}

// load attaches stored records: database first, then CSV, then JSONL.
func (s *Simulation) load() error {
	st := s.Settings
	for i, is := range s.Registry.Islands() {
		rec, from, err := s.loadRecord(is.Name)
		if err != nil {
			return fmt.Errorf("import %s: %w", is.Name, err)
		}
		is.Import(rec, st.StartYear, st.EndYear, s.src.Derive(streamPreflight+i))
		slog.Info("vital record imported", "island", is.Name, "from", from, "events", rec.Len())
	}
	return nil
}

func (s *Simulation) loadRecord(name string) (history.Record, string, error) {
	if s.DB != nil {
		rec, err := s.DB.LoadRecord(name)
		if err == nil {
			return rec, "database", nil
		}
		if !errors.Is(err, persistence.ErrNoRecord) {
			return nil, "", err
		}
	}
	rec, csvErr := persistence.ImportCSV(s.Settings.ExportDir, name)
	if csvErr == nil {
		return rec, "csv", nil
	}
	rec, err := persistence.ImportJSONL(s.Settings.ExportDir, name)
	if err == nil {
		return rec, "jsonl", nil
	}
	return nil, "", errors.Join(persistence.ErrNoRecord, csvErr, err)
}

// Start lays out each island's villages and launches one worker per island.
func (s *Simulation) Start(ctx context.Context) {
	islands := s.Registry.Islands()
	s.clock = NewYearClock(s.Settings.StartYear, len(islands))
	for i, is := range islands {
		cfg := topography.DefaultGenConfig()
		cfg.Seed = int64(s.src.Derive(streamTerrain + i).Seed())
		m := topography.Generate(cfg)
		villages := topography.PlaceVillages(m, villageSpacing, villageLimit, s.src.Derive(streamVillages+i))
		slog.Info("island laid out", "island", is.Name, "map", m.String(), "villages", len(villages))

		w := NewWorker(is, villages, s.clock, s.Metrics, s.Settings.ExportDir, s.src.Derive(streamWorker+i))
		s.workers = append(s.workers, w)
		s.byName[is.Name] = w
		go w.Run(ctx)
	}
}

// Play runs the playback loop to the end year.
func (s *Simulation) Play(ctx context.Context) error {
	if len(s.workers) == 0 {
		return ErrNotStarted
	}
	return s.Engine.Run(ctx)
}

func (s *Simulation) advanceYear(ctx context.Context, year int) error {
	replies, err := s.broadcast(ctx, CmdAdvanceYear, year)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.stats.TotalPopulation = 0
	for _, r := range replies {
		s.stats.Year = r.Year
		s.stats.TotalPopulation += r.Size
		s.stats.Births += r.Births
		s.stats.Deaths += r.Deaths
	}
	stats := s.stats
	s.mu.Unlock()

	s.Metrics.Year.Set(float64(stats.Year))
	slog.Debug("year played", "year", year, "population", stats.TotalPopulation)
	return nil
}

// DumpStatus reconstructs every island at year and logs its villages.
func (s *Simulation) DumpStatus(ctx context.Context, year int) ([]Reply, error) {
	return s.broadcast(ctx, CmdDumpStatus, year)
}

// Plot writes every island's growth dataset.
func (s *Simulation) Plot(ctx context.Context) ([]Reply, error) {
	return s.broadcast(ctx, CmdPlotRequest, 0)
}

// Stop shuts every worker down and waits for them to exit.
func (s *Simulation) Stop(ctx context.Context) error {
	s.Engine.Stop()
	var errs []error
	ch := make(chan Reply, len(s.workers))
	for _, w := range s.workers {
		if err := w.Submit(ctx, Request{Cmd: CmdStop, Reply: ch}); err != nil && !errors.Is(err, ErrWorkerStopped) {
			errs = append(errs, err)
		}
	}
	for _, w := range s.workers {
		select {
		case <-w.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// Ask sends a read-only command to one island's worker.
func (s *Simulation) Ask(ctx context.Context, name string, cmd Command, year int) (Reply, error) {
	if cmd != CmdDumpStatus && cmd != CmdPlotRequest {
		return Reply{}, fmt.Errorf("engine: %s is not a query", cmd)
	}
	w, ok := s.byName[name]
	if !ok {
		return Reply{}, fmt.Errorf("%w: %s", island.ErrUnknownIsland, name)
	}
	ch := make(chan Reply, 1)
	if err := w.Submit(ctx, Request{Cmd: cmd, Year: year, Reply: ch}); err != nil {
		return Reply{}, err
	}
	select {
	case r := <-ch:
		return r, r.Err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// broadcast sends cmd to every worker and collects the replies in island order.
func (s *Simulation) broadcast(ctx context.Context, cmd Command, year int) ([]Reply, error) {
	if len(s.workers) == 0 {
		return nil, ErrNotStarted
	}
	ch := make(chan Reply, len(s.workers))
	sent := 0
	var errs []error
	for _, w := range s.workers {
		if err := w.Submit(ctx, Request{Cmd: cmd, Year: year, Reply: ch}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", w.Island.Name, err))
			continue
		}
		sent++
	}

	byIsland := make(map[string]Reply, sent)
	for range sent {
		select {
		case r := <-ch:
			byIsland[r.Island] = r
			if r.Err != nil {
				errs = append(errs, fmt.Errorf("%s %s: %w", r.Island, cmd, r.Err))
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	replies := make([]Reply, 0, len(byIsland))
	for _, w := range s.workers {
		if r, ok := byIsland[w.Island.Name]; ok {
			replies = append(replies, r)
		}
	}
	return replies, errors.Join(errs...)
}

// Workers returns the island workers in configuration order.
func (s *Simulation) Workers() []*Worker {
	return s.workers
}
