// Package parameter models the stochastic, unit-bearing scalars that drive
// major events: years, growth rates, population changes and carrying capacities.
// Each Parameter is sampled once from its Spec and can be re-rolled on demand.
package parameter

import (
	"errors"
	"fmt"

	"github.com/talgya/tausaga/internal/entropy"
)

var (
	ErrUnknownConversion = errors.New("parameter: no conversion between units")
	ErrKindMismatch      = errors.New("parameter: kind mismatch")
	ErrInvalidSpec       = errors.New("parameter: invalid spec")
)

// Kind identifies what a parameter measures. Kinds are unique within one event.
type Kind string

const (
	KindYear             Kind = "Year"
	KindGrowthRate       Kind = "Growth Rate"
	KindPopulationChange Kind = "Population Change"
	KindCarryCapacity    Kind = "Carry Capacity"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindYear, KindGrowthRate, KindPopulationChange, KindCarryCapacity:
		return true
	}
	return false
}

// DistributionType selects how a ranged value is sampled.
type DistributionType string

const (
	DistUniform DistributionType = "uniform"
	DistNormal  DistributionType = "normal"
)

// Distribution describes a sampling distribution. Mu and Sigma only apply to normal.
type Distribution struct {
	Type  DistributionType
	Mu    float64
	Sigma float64
}

// Range is an inclusive (low, high) pair.
type Range struct {
	Low, High float64
}

// GrowthSample is the growth-rate triple: two log(Ne) ranges sampled at
// either end of a measured interval of Elapsed years.
type GrowthSample struct {
	Min     Range
	Max     Range
	Elapsed float64
}

// Spec is the unsampled description of a parameter. Exactly one of Constant,
// Range or Growth is set, except for an untruncated normal which sets none.
type Spec struct {
	Kind         Kind
	Unit         Unit
	Constant     *float64
	Range        *Range
	Growth       *GrowthSample
	Follow       string
	Distribution *Distribution
}

// Validate checks the shape of s without sampling it.
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, s.Kind)
	}
	set := 0
	if s.Constant != nil {
		set++
	}
	if s.Range != nil {
		set++
	}
	if s.Growth != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: %s has more than one value shape", ErrInvalidSpec, s.Kind)
	}
	if s.Growth != nil {
		if s.Kind != KindGrowthRate {
			return fmt.Errorf("%w: growth sample on %s", ErrInvalidSpec, s.Kind)
		}
		if s.Distribution != nil {
			return fmt.Errorf("%w: growth sample takes no distribution", ErrInvalidSpec)
		}
		if s.Growth.Elapsed <= 0 {
			return fmt.Errorf("%w: growth sample elapsed must be > 0", ErrInvalidSpec)
		}
		return nil
	}
	if s.Distribution != nil && s.Distribution.Type == DistNormal {
		if s.Distribution.Sigma <= 0 {
			return fmt.Errorf("%w: %s normal sigma must be > 0", ErrInvalidSpec, s.Kind)
		}
		if s.Constant != nil {
			return fmt.Errorf("%w: %s constant takes no distribution", ErrInvalidSpec, s.Kind)
		}
		return nil
	}
	if set == 0 {
		return fmt.Errorf("%w: %s has no value", ErrInvalidSpec, s.Kind)
	}
	if s.Constant != nil && s.Distribution != nil {
		return fmt.Errorf("%w: %s constant takes no distribution", ErrInvalidSpec, s.Kind)
	}
	return nil
}

// Parameter is a sampled scalar.
type Parameter struct {
	Kind   Kind
	Value  float64
	Unit   Unit
	Follow string

	// MeasuredTime is the elapsed years of a growth-rate sample; curve fits need it.
	MeasuredTime    float64
	HasMeasuredTime bool

	spec Spec
}

// New samples a Parameter from spec.
func New(spec Spec, src *entropy.Source) (*Parameter, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	p := &Parameter{Kind: spec.Kind, Unit: spec.Unit, Follow: spec.Follow, spec: spec}
	if err := p.Roll(src); err != nil {
		return nil, err
	}
	return p, nil
}

// Constant builds a fixed parameter without a source.
func Constant(kind Kind, value float64, unit Unit) *Parameter {
	v := value
	return &Parameter{
		Kind:  kind,
		Value: value,
		Unit:  unit,
		spec:  Spec{Kind: kind, Unit: unit, Constant: &v},
	}
}

// Spec returns the description p was sampled from.
func (p *Parameter) Spec() Spec {
	return p.spec
}

// Roll re-samples the value from the original spec. The unit is reset to the
// spec's unit, undoing any conversion applied since the last roll.
func (p *Parameter) Roll(src *entropy.Source) error {
	s := p.spec
	p.Unit = s.Unit
	p.HasMeasuredTime = false
	p.MeasuredTime = 0

	switch {
	case s.Constant != nil && s.Distribution == nil:
		p.Value = *s.Constant

	case s.Growth != nil:
		lo, err := Convert(src.Uniform(s.Growth.Min.Low, s.Growth.Min.High), UnitLogNe, UnitRaw)
		if err != nil {
			return err
		}
		hi, err := Convert(src.Uniform(s.Growth.Max.Low, s.Growth.Max.High), UnitLogNe, UnitRaw)
		if err != nil {
			return err
		}
		p.Value = (hi - lo) / s.Growth.Elapsed
		p.Unit = UnitRawPerYear
		p.MeasuredTime = s.Growth.Elapsed
		p.HasMeasuredTime = true

	case s.Distribution == nil || s.Distribution.Type == DistUniform:
		if s.Range == nil {
			return fmt.Errorf("%w: %s uniform needs a range", ErrInvalidSpec, s.Kind)
		}
		p.Value = src.Uniform(s.Range.Low, s.Range.High)

	case s.Distribution.Type == DistNormal:
		d := s.Distribution
		if s.Range == nil {
			p.Value = src.Normal(d.Mu, d.Sigma)
		} else {
			p.Value = src.TruncNormal(d.Mu, d.Sigma, s.Range.Low, s.Range.High)
		}

	default:
		return fmt.Errorf("%w: unknown distribution %q", ErrInvalidSpec, s.Distribution.Type)
	}
	return nil
}

// Convert re-expresses p in unit to, in place.
func (p *Parameter) Convert(to Unit) error {
	v, err := Convert(p.Value, p.Unit, to)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Kind, err)
	}
	p.Value = v
	p.Unit = to
	return nil
}

// In returns p's value expressed in unit to without modifying p.
func (p *Parameter) In(to Unit) (float64, error) {
	return Convert(p.Value, p.Unit, to)
}

// Combine folds other into p. Other is read in p's unit. For timeline
// distances ("ago" units) the result is the gap between the two points:
// 12 generations ago combined with 50 generations ago is 38 generations ago.
// Any other unit adds.
func (p *Parameter) Combine(other *Parameter) error {
	if p.Kind != other.Kind {
		return fmt.Errorf("%w: %s with %s", ErrKindMismatch, p.Kind, other.Kind)
	}
	v, err := other.In(p.Unit)
	if err != nil {
		return err
	}
	if p.Unit.IsTimelineDistance() {
		d := p.Value - v
		if d < 0 {
			d = -d
		}
		p.Value = d
	} else {
		p.Value += v
	}
	return nil
}

// Less reports whether p is smaller than other once both share p's unit.
func (p *Parameter) Less(other *Parameter) (bool, error) {
	if p.Kind != other.Kind {
		return false, fmt.Errorf("%w: %s with %s", ErrKindMismatch, p.Kind, other.Kind)
	}
	v, err := other.In(p.Unit)
	if err != nil {
		return false, err
	}
	return p.Value < v, nil
}

// Clone returns an independent copy.
func (p *Parameter) Clone() *Parameter {
	c := *p
	return &c
}

func (p *Parameter) String() string {
	return fmt.Sprintf("%g %s", p.Value, p.Unit)
}
