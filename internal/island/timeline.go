package island

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/history"
	"github.com/talgya/tausaga/internal/major"
)

// Segment is a stretch of simulated years opened by zero or more events.
type Segment struct {
	Year   int
	Length int
	Events []*major.Event
}

// Timeline splits [start, end) into segments at event years. Events before
// start open the first segment; events at or after end are skipped.
func (is *Island) Timeline(start, end, thisYear int) ([]Segment, error) {
	type dated struct {
		year int
		ev   *major.Event
	}
	ordered := slices.Clone(is.Events)
	if err := major.SortByYear(ordered, thisYear); err != nil {
		return nil, fmt.Errorf("%s: %w", is.Name, err)
	}
	var placed []dated
	for _, ev := range ordered {
		y, err := ev.CalendarYear(thisYear)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", is.Name, err)
		}
		if y >= end {
			slog.Warn("event after end of history, skipped", "island", is.Name, "event", ev.Name, "year", y, "end", end)
			continue
		}
		// clamping keeps the chronological order
		placed = append(placed, dated{max(y, start), ev})
	}

	segs := []Segment{{Year: start}}
	for _, d := range placed {
		cur := &segs[len(segs)-1]
		if d.year != cur.Year {
			segs = append(segs, Segment{Year: d.year})
			cur = &segs[len(segs)-1]
		}
		cur.Events = append(cur.Events, d.ev)
	}
	for i := range segs {
		next := end
		if i+1 < len(segs) {
			next = segs[i+1].Year
		}
		segs[i].Length = next - segs[i].Year
	}
	return segs, nil
}

// Preflight simulates the island's history from start to end over an
// initially empty population and stores the resulting vital record.
func (is *Island) Preflight(start, end, thisYear int, src *entropy.Source) ([]history.YearDelta, error) {
	segs, err := is.Timeline(start, end, thisYear)
	if err != nil {
		return nil, err
	}
	pop, err := demography.New(0, src)
	if err != nil {
		return nil, err
	}
	h := history.New(pop, start, src)
	var deltas []history.YearDelta
	for _, seg := range segs {
		for _, ev := range seg.Events {
			slog.Info("event applied", "island", is.Name, "event", ev.Name, "year", seg.Year)
			if err := pop.Apply(ev); err != nil {
				return deltas, fmt.Errorf("%s: %w", is.Name, err)
			}
			if ev.PopulationChange() != nil {
				h.InitialBirths()
			}
		}
		d, err := h.Run(seg.Length)
		deltas = append(deltas, d...)
		if err != nil {
			return deltas, fmt.Errorf("%s: %w", is.Name, err)
		}
	}
	is.History = h
	years, events := h.Stats()
	slog.Info("preflight complete", "island", is.Name, "size", pop.Len(), "years", years, "events", events)
	return deltas, nil
}

// Import attaches a previously exported vital record.
func (is *Island) Import(rec history.Record, start, end int, src *entropy.Source) {
	is.History = history.FromRecord(rec, start, end, src)
}
