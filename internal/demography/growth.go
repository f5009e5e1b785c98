package demography

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/major"
	"github.com/talgya/tausaga/internal/parameter"
)

var ErrCurveFit = errors.New("demography: cannot fit growth curve")

// SquareRootCurve fits f(x) = m*sqrt(x) + base so that f(measured) equals
// the straight-line projection rate*measured + base.
func SquareRootCurve(rate, measured, base float64) (func(float64) float64, error) {
	if measured <= 0 {
		return nil, fmt.Errorf("%w: square root needs a positive measured time", ErrCurveFit)
	}
	m := rate * measured / math.Sqrt(measured)
	return func(x float64) float64 {
		if x < 0 {
			x = 0
		}
		return m*math.Sqrt(x) + base
	}, nil
}

// LogisticCurve fits f(x) = k / (1 + a*exp(-m*x)) with f(0) = base and
// f(measured) = rate*measured + base. The fitted curve moves monotonically
// from base toward k, from below or from above.
func LogisticCurve(rate, measured, k, base float64) (func(float64) float64, error) {
	if measured <= 0 {
		return nil, fmt.Errorf("%w: logistic needs a positive measured time", ErrCurveFit)
	}
	if base <= 0 || k <= 0 {
		return nil, fmt.Errorf("%w: logistic needs positive size %v and capacity %v", ErrCurveFit, base, k)
	}
	if base == k {
		return func(float64) float64 { return k }, nil
	}
	line := rate*measured + base
	// The projection must lie strictly between base and k, so the curve
	// approaches k monotonically from base.
	if (line-base)*(k-base) <= 0 || (k-line)*(k-base) <= 0 {
		return nil, fmt.Errorf("%w: projected size %v lies outside (%v, %v)", ErrCurveFit, line, base, k)
	}
	a := (k - base) / base
	r := (k/line - 1) / a
	m := -math.Log(r) / measured
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return nil, fmt.Errorf("%w: non-finite steepness", ErrCurveFit)
	}
	return func(x float64) float64 {
		return k / (1 + a*math.Exp(-m*x))
	}, nil
}

// Apply folds a major event into the population. Carry Capacity is taken
// first, then Population Change adds seeded individuals, then Growth Rate
// replaces the growth model. Parameters are read without being mutated.
func (p *Population) Apply(ev *major.Event) error {
	if p.mode != ModeHistorical {
		return fmt.Errorf("%w: apply", ErrModeMismatch)
	}
	p.year = 0

	if cc := ev.CarryCapacity(); cc != nil {
		v, err := cc.In(parameter.UnitRaw)
		if err != nil {
			return fmt.Errorf("apply %s: carry capacity: %w", ev.Name, err)
		}
		p.carryCapacity = v
	}

	var change float64
	pc := ev.PopulationChange()
	if pc != nil {
		v, err := pc.In(parameter.UnitRaw)
		if err != nil {
			return fmt.Errorf("apply %s: population change: %w", ev.Name, err)
		}
		change = v
		aux, err := New(v, p.src, WithTable(p.table), WithMode(p.mode))
		if err != nil {
			return err
		}
		if err := p.Merge(aux); err != nil {
			return err
		}
	}

	gr := ev.GrowthRate()
	if gr == nil {
		return nil
	}
	rate, err := gr.In(parameter.UnitRawPerYear)
	if err != nil {
		return fmt.Errorf("apply %s: growth rate: %w", ev.Name, err)
	}
	p.growthRate = rate
	p.curve = nil

	switch ev.Curve {
	case major.CurveNone:
		return nil
	case major.CurveSquareRoot:
		if pc == nil || !gr.HasMeasuredTime {
			return fmt.Errorf("%w: %s: square root needs population change and a sampled growth rate", ErrCurveFit, ev.Name)
		}
		p.curve, err = SquareRootCurve(rate, gr.MeasuredTime, change)
	case major.CurveLogistic:
		if !gr.HasMeasuredTime {
			return fmt.Errorf("%w: %s: logistic needs a sampled growth rate", ErrCurveFit, ev.Name)
		}
		p.curve, err = LogisticCurve(rate, gr.MeasuredTime, p.carryCapacity, float64(p.Len()))
	default:
		return fmt.Errorf("%w: %q", major.ErrUnknownCurve, ev.Curve)
	}
	if err != nil {
		p.curve = nil
		return fmt.Errorf("apply %s: %w", ev.Name, err)
	}
	return nil
}

// Growth returns the target size for the current year: the fitted curve at
// the elapsed year, or the current size plus the flat growth rate.
func (p *Population) Growth() float64 {
	if p.curve != nil {
		return p.curve(float64(p.year))
	}
	return p.growthRate + float64(p.Len())
}

// YearResult summarises one elapsed year.
type YearResult struct {
	Births []*Individual
	Deaths []uuid.UUID
}

// ElapseYear ages everyone by one year, applies bracket survival, removes
// the dead and adds newborns to replace them plus the whole part of the
// accumulated growth.
func (p *Population) ElapseYear() (YearResult, error) {
	var res YearResult
	if p.mode != ModeHistorical {
		return res, fmt.Errorf("%w: elapse year", ErrModeMismatch)
	}
	p.year++
	delta := p.Growth() - float64(p.Len())
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		slog.Warn("non-finite growth, holding population", "year", p.year, "delta", delta)
		delta = 0
	}

	// Oldest first, so a cohort aged into the next bracket is not aged twice.
	for i, ar := range p.ranges {
		out := ar.elapse()
		if len(out) == 0 {
			continue
		}
		if i == 0 {
			// open-ended bracket never overflows
			continue
		}
		if _, err := p.ranges[i-1].AgeIn(out, p.src); err != nil {
			return res, err
		}
	}

	for _, ar := range p.ranges {
		for _, id := range ar.reap() {
			delete(p.people, id)
			res.Deaths = append(res.Deaths, id)
		}
	}

	p.birthRemainder += delta
	whole := math.Floor(p.birthRemainder)
	p.birthRemainder -= whole
	births := max(len(res.Deaths)+int(whole), 0)

	youngest := p.ranges[len(p.ranges)-1]
	res.Births = make([]*Individual, 0, births)
	for range births {
		res.Births = append(res.Births, youngest.spawn(true, p.src))
	}
	return res, nil
}
