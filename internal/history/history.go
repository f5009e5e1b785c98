package history

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/demography"
	"github.com/talgya/tausaga/internal/entropy"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotImplemented = errors.New("history: incremental population modify is not implemented")
	ErrNoPopulation   = errors.New("history: no live population attached")
	ErrNotEnoughData  = errors.New("history: not enough years for a trend")
)

const (
	gestationMean  = 266 * 86400.0
	gestationSigma = 16 * 86400.0

	// Lookback is how far Reconstruct scans for births. Nobody lives longer.
	Lookback = 100

	// retroWindow is how many trailing years a detected birth or death is
	// spread over; cohorts only cascade every five years.
	retroWindow = 4
)

// History is the vital record of one island plus the population driving it.
type History struct {
	Record Record

	currentYear  int
	startingYear int
	pop          *demography.Population
	src          *entropy.Source
	born         map[uuid.UUID]struct{}
}

// New starts a record at startYear. Every current member of pop gets a
// BIRTH at startYear minus its age.
func New(pop *demography.Population, startYear int, src *entropy.Source) *History {
	h := &History{
		Record:       make(Record),
		currentYear:  startYear,
		startingYear: startYear,
		pop:          pop,
		src:          src,
		born:         make(map[uuid.UUID]struct{}),
	}
	if pop != nil && pop.Len() > 0 {
		h.InitialBirths()
	}
	return h
}

// FromRecord wraps an imported record for querying and reconstruction.
// There is no live population, so Run is unavailable.
func FromRecord(rec Record, startYear, currentYear int, src *entropy.Source) *History {
	h := &History{
		Record:       rec,
		currentYear:  currentYear,
		startingYear: startYear,
		src:          src,
		born:         make(map[uuid.UUID]struct{}),
	}
	rec.Each(func(ev Event) {
		if ev.Kind == KindBirth {
			h.born[ev.ID] = struct{}{}
		}
	})
	return h
}

func (h *History) CurrentYear() int  { return h.currentYear }
func (h *History) StartingYear() int { return h.startingYear }

// Population returns the live population, or nil for an imported record.
func (h *History) Population() *demography.Population { return h.pop }

// InitialBirths records a BIRTH for every member of the live population
// that does not have one yet. Call it after each event that adds people.
func (h *History) InitialBirths() int {
	if h.pop == nil {
		return 0
	}
	n := 0
	h.pop.Each(func(ind *demography.Individual) {
		if _, ok := h.born[ind.ID]; ok {
			return
		}
		sex := ind.Sex
		ind.SetBirthYear(h.currentYear - ind.Age)
		h.RecordEvent(KindBirth, ind.ID, *ind.BirthYear, nil, &sex)
		n++
	})
	return n
}

// RecordEvent appends an event. A nil moment draws a uniform second of the
// year. A BIRTH after the starting year also schedules its CONCEPTION, in
// the previous year when the birth moment is earlier than the gestation.
func (h *History) RecordEvent(kind Kind, id uuid.UUID, year int, moment *float64, sex *demography.Sex) {
	ev := Event{Kind: kind, ID: id, Year: year, Sex: sex}
	if moment != nil {
		ev.Moment = *moment
	} else {
		ev.Moment = h.src.Uniform(0, SecondsPerYear)
	}
	if kind != KindBirth {
		ev.Sex = nil
	}
	h.Record.Add(ev)

	if kind != KindBirth {
		return
	}
	h.born[id] = struct{}{}
	if year <= h.startingYear {
		return
	}
	gestation := h.src.Normal(gestationMean, gestationSigma)
	cy, cm := year, ev.Moment-gestation
	for cm < 0 {
		cy--
		cm += SecondsPerYear
	}
	h.RecordEvent(KindConception, id, cy, &cm, nil)
}

// YearDelta is the head count change detected in one simulated year.
type YearDelta struct {
	Year   int
	Births int
	Deaths int
	Size   int
}

// Run elapses duration years of the live population. Each birth and death
// is dated uniformly over the four years preceding the simulated year.
func (h *History) Run(duration int) ([]YearDelta, error) {
	if h.pop == nil {
		return nil, ErrNoPopulation
	}
	deltas := make([]YearDelta, 0, duration)
	for range duration {
		res, err := h.pop.ElapseYear()
		if err != nil {
			return deltas, fmt.Errorf("history: year %d: %w", h.currentYear, err)
		}
		for _, id := range res.Deaths {
			h.RecordEvent(KindDeath, id, h.retroYear(), nil, nil)
		}
		for _, b := range res.Births {
			sex := b.Sex
			yob := h.retroYear()
			b.SetBirthYear(yob)
			h.RecordEvent(KindBirth, b.ID, yob, nil, &sex)
		}
		deltas = append(deltas, YearDelta{
			Year:   h.currentYear,
			Births: len(res.Births),
			Deaths: len(res.Deaths),
			Size:   h.pop.Len(),
		})
		if h.currentYear%50 == 0 {
			slog.Debug("history year", "year", h.currentYear, "size", h.pop.Len())
		}
		h.currentYear++
	}
	return deltas, nil
}

func (h *History) retroYear() int {
	return h.currentYear + h.src.IntRange(-retroWindow, -1)
}

// Reconstruct rebuilds who was alive at the end of year from the record
// alone, scanning the trailing Lookback window. Births are inserted before
// deaths are applied, so a retro-dated death that precedes its birth still
// removes the individual. The History is not modified.
func (h *History) Reconstruct(year int) (*demography.Population, error) {
	pop, err := demography.New(0, h.src, demography.WithMode(demography.ModeSimulated))
	if err != nil {
		return nil, err
	}
	var deaths []uuid.UUID
	for y := year - Lookback; y <= year; y++ {
		if _, ok := h.Record[y]; !ok {
			continue
		}
		for _, id := range h.Record.IDs(y) {
			for _, ev := range h.Record[y][id] {
				switch ev.Kind {
				case KindBirth:
					ind := &demography.Individual{ID: id, Age: max(year-ev.Year, 0)}
					if ev.Sex != nil {
						ind.Sex = *ev.Sex
					}
					ind.SetBirthYear(ev.Year)
					if err := pop.Insert(ind); err != nil {
						return nil, err
					}
				case KindDeath:
					deaths = append(deaths, id)
				}
			}
		}
	}
	for _, id := range deaths {
		if !pop.Contains(id) {
			// born before the window
			continue
		}
		if _, err := pop.Remove(id); err != nil {
			return nil, err
		}
	}
	return pop, nil
}

// Advance would move a reconstructed population forward in place.
func (h *History) Advance(by int) error { return ErrNotImplemented }

// Rewind would move a reconstructed population backward in place.
func (h *History) Rewind(by int) error { return ErrNotImplemented }

func (h *History) count(year int, kind Kind) int {
	n := 0
	for _, evs := range h.Record[year] {
		for _, ev := range evs {
			if ev.Kind == kind {
				n++
			}
		}
	}
	return n
}

// Births returns the number of BIRTH events dated year.
func (h *History) Births(year int) int { return h.count(year, KindBirth) }

// Deaths returns the number of DEATH events dated year.
func (h *History) Deaths(year int) int { return h.count(year, KindDeath) }

// Years returns the recorded years in ascending order.
func (h *History) Years() []int { return h.Record.Years() }

// GrowthPoint is the net natural change in one recorded year.
type GrowthPoint struct {
	Year int
	Net  int
}

// GrowthSeries returns births minus deaths for every recorded year.
func (h *History) GrowthSeries() []GrowthPoint {
	years := h.Years()
	out := make([]GrowthPoint, len(years))
	for i, y := range years {
		out[i] = GrowthPoint{Year: y, Net: h.Births(y) - h.Deaths(y)}
	}
	return out
}

// GrowthTrend fits net = intercept + slope*year by least squares.
func (h *History) GrowthTrend() (intercept, slope float64, err error) {
	series := h.GrowthSeries()
	if len(series) < 2 {
		return 0, 0, ErrNotEnoughData
	}
	xs := make([]float64, len(series))
	ys := make([]float64, len(series))
	for i, p := range series {
		xs[i] = float64(p.Year)
		ys[i] = float64(p.Net)
	}
	intercept, slope = stat.LinearRegression(xs, ys, nil, false)
	return intercept, slope, nil
}

// Stats returns the number of recorded years and events.
func (h *History) Stats() (years, events int) {
	return len(h.Record), h.Record.Len()
}
