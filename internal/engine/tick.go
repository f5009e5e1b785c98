// Package engine plays island histories back year by year.
// One worker goroutine per island; the playback loop drives them in step.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Schedule of the coarser playback callbacks, in years.
const (
	YearsPerDecade  = 10
	YearsPerCentury = 100
)

// Engine drives playback from Year up to End.
type Engine struct {
	Year     int           // Next year to play back
	End      int           // Playback stops before this year
	Interval time.Duration // Wall time per year; 0 plays as fast as possible

	running atomic.Bool

	// Callbacks for each layer, populated during setup. An OnYear error
	// stops playback.
	OnYear    func(ctx context.Context, year int) error
	OnDecade  func(ctx context.Context, year int)
	OnCentury func(ctx context.Context, year int)
}

// NewEngine creates a playback engine over [start, end).
func NewEngine(start, end int, interval time.Duration) *Engine {
	return &Engine{
		Year:     start,
		End:      end,
		Interval: interval,
	}
}

// Run plays back until End, Stop, or ctx cancellation.
func (e *Engine) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("playback started", "year", YearLabel(e.Year), "end", YearLabel(e.End), "interval", e.Interval)

	for e.running.Load() && e.Year < e.End {
		start := time.Now()

		if err := e.step(ctx); err != nil {
			return err
		}

		// Sleep for the remainder of the interval.
		if wait := e.Interval - time.Since(start); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}

	slog.Info("playback stopped", "year", YearLabel(e.Year))
	return nil
}

// Stop halts playback after the current year.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// step plays back one year.
func (e *Engine) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	year := e.Year

	if e.OnYear != nil {
		if err := e.OnYear(ctx, year); err != nil {
			return fmt.Errorf("year %d: %w", year, err)
		}
	}
	if year%YearsPerDecade == 0 && e.OnDecade != nil {
		e.OnDecade(ctx, year)
	}
	if year%YearsPerCentury == 0 && e.OnCentury != nil {
		e.OnCentury(ctx, year)
	}

	e.Year++
	return nil
}

// YearLabel renders a calendar year as "1000 BCE" or "1866 CE".
func YearLabel(year int) string {
	if year < 0 {
		return fmt.Sprintf("%d BCE", -year)
	}
	return fmt.Sprintf("%d CE", year)
}
