// Package major models major events: scheduled, stochastically timed
// occurrences on one island that change its growth rate, carrying capacity
// or population size.
package major

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/parameter"
)

var (
	ErrDuplicateKind = errors.New("major: duplicate parameter kind")
	ErrMissingYear   = errors.New("major: event has no Year parameter")
	ErrUnknownCurve  = errors.New("major: unknown curve shape")
	ErrUnresolved    = errors.New("major: event has an unresolved dependency")
)

// Curve is the growth-curve shape an event fits its growth rate to.
type Curve string

const (
	CurveNone       Curve = ""
	CurveSquareRoot Curve = "square root"
	CurveLogistic   Curve = "logistic"
)

// ParseCurve accepts the curve names used in configuration.
func ParseCurve(s string) (Curve, error) {
	switch s {
	case "", "none":
		return CurveNone, nil
	case "square root", "square-root", "sqrt":
		return CurveSquareRoot, nil
	case "logistic":
		return CurveLogistic, nil
	}
	return CurveNone, fmt.Errorf("%w: %q", ErrUnknownCurve, s)
}

// Event is one historical event on one island.
type Event struct {
	Name   string
	Type   string
	Params map[parameter.Kind]*parameter.Parameter
	Curve  Curve

	// HasUnresolvedDependency is set while Year follows another event whose
	// year has not been folded in yet.
	HasUnresolvedDependency bool
}

// New samples every parameter spec and builds the event.
func New(name, typ string, specs []parameter.Spec, curve Curve, src *entropy.Source) (*Event, error) {
	ev := &Event{
		Name:   name,
		Type:   typ,
		Params: make(map[parameter.Kind]*parameter.Parameter, len(specs)),
		Curve:  curve,
	}
	for _, spec := range specs {
		if _, dup := ev.Params[spec.Kind]; dup {
			return nil, fmt.Errorf("%w: %s in %q", ErrDuplicateKind, spec.Kind, name)
		}
		p, err := parameter.New(spec, src)
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", name, err)
		}
		ev.Params[spec.Kind] = p
	}
	if ev.Year() == nil {
		return nil, fmt.Errorf("%w: %q", ErrMissingYear, name)
	}
	// A sampled negative year is a bad draw; roll once more.
	if ev.Year().Value < 0 {
		if err := ev.RerollYear(src); err != nil {
			return nil, err
		}
	}
	ev.ResetDependencyCheck()
	return ev, nil
}

// Year returns the Year parameter.
func (e *Event) Year() *parameter.Parameter {
	return e.Params[parameter.KindYear]
}

// GrowthRate returns the Growth Rate parameter, or nil.
func (e *Event) GrowthRate() *parameter.Parameter {
	return e.Params[parameter.KindGrowthRate]
}

// PopulationChange returns the Population Change parameter, or nil.
func (e *Event) PopulationChange() *parameter.Parameter {
	return e.Params[parameter.KindPopulationChange]
}

// CarryCapacity returns the Carry Capacity parameter, or nil.
func (e *Event) CarryCapacity() *parameter.Parameter {
	return e.Params[parameter.KindCarryCapacity]
}

// ResetDependencyCheck marks the event unresolved iff its Year follows another event.
func (e *Event) ResetDependencyCheck() {
	e.HasUnresolvedDependency = e.Year().Follow != ""
}

// RerollYear re-samples the Year parameter.
func (e *Event) RerollYear(src *entropy.Source) error {
	return e.Year().Roll(src)
}

// RerollGrowthRate re-samples the Growth Rate parameter if present.
func (e *Event) RerollGrowthRate(src *entropy.Source) error {
	if gr := e.GrowthRate(); gr != nil {
		return gr.Roll(src)
	}
	return nil
}

func (e *Event) String() string {
	return e.Name
}

// CalendarYear places the event on the calendar: CE years as given,
// anything else counted back from thisYear.
func (e *Event) CalendarYear(thisYear int) (int, error) {
	if e.HasUnresolvedDependency {
		return 0, fmt.Errorf("%w: %s", ErrUnresolved, e.Name)
	}
	y := e.Year()
	if y.Unit == parameter.UnitCE {
		return int(math.Floor(y.Value)), nil
	}
	ago, err := y.In(parameter.UnitYearsAgo)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", e.Name, err)
	}
	return int(math.Floor(float64(thisYear) - ago)), nil
}

// SortByYear orders events chronologically by calendar year, then by name.
// Every event must be resolved; the slice is left untouched on error.
func SortByYear(events []*Event, thisYear int) error {
	years := make(map[*Event]int, len(events))
	for _, ev := range events {
		y, err := ev.CalendarYear(thisYear)
		if err != nil {
			return err
		}
		years[ev] = y
	}
	sort.SliceStable(events, func(i, j int) bool {
		yi, yj := years[events[i]], years[events[j]]
		if yi != yj {
			return yi < yj
		}
		return events[i].Name < events[j].Name
	})
	return nil
}
