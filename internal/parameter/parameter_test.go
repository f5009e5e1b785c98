package parameter

import (
	"errors"
	"math"
	"testing"

	"github.com/talgya/tausaga/internal/entropy"
)

func f(v float64) *float64 { return &v }

func TestConstantNeedsNoSampling(t *testing.T) {
	p, err := New(Spec{Kind: KindCarryCapacity, Unit: UnitRaw, Constant: f(4000)}, entropy.New(1))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Value != 4000 || p.Unit != UnitRaw {
		t.Fatalf("got %v, want 4000 raw", p)
	}
}

func TestUniformWithinRange(t *testing.T) {
	src := entropy.New(2)
	spec := Spec{Kind: KindYear, Unit: UnitYearsAgo, Range: &Range{Low: 1000, High: 1200}}
	for i := 0; i < 200; i++ {
		p, err := New(spec, src)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if p.Value < 1000 || p.Value > 1200 {
			t.Fatalf("value %v outside range", p.Value)
		}
	}
}

func TestTruncatedNormalWithinRange(t *testing.T) {
	src := entropy.New(3)
	spec := Spec{
		Kind:         KindYear,
		Unit:         UnitGenerationsAgo,
		Range:        &Range{Low: 45, High: 55},
		Distribution: &Distribution{Type: DistNormal, Mu: 50, Sigma: 10},
	}
	for i := 0; i < 500; i++ {
		p, err := New(spec, src)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if p.Value < 45 || p.Value > 55 {
			t.Fatalf("value %v outside truncation", p.Value)
		}
	}
}

func TestUntruncatedNormalAllowsNoValue(t *testing.T) {
	spec := Spec{Kind: KindYear, Unit: UnitCE, Distribution: &Distribution{Type: DistNormal, Mu: 1000, Sigma: 1}}
	p, err := New(spec, entropy.New(4))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if math.Abs(p.Value-1000) > 10 {
		t.Fatalf("value %v implausibly far from mean", p.Value)
	}
}

func TestGrowthSampleRate(t *testing.T) {
	spec := Spec{
		Kind:   KindGrowthRate,
		Unit:   UnitLogNe,
		Growth: &GrowthSample{Min: Range{3, 3}, Max: Range{4, 4}, Elapsed: 900},
	}
	p, err := New(spec, entropy.New(5))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if p.Unit != UnitRawPerYear {
		t.Fatalf("unit = %q, want %q", p.Unit, UnitRawPerYear)
	}
	if !p.HasMeasuredTime || p.MeasuredTime != 900 {
		t.Fatalf("measured time not recorded: %+v", p)
	}
	if want := (10000.0 - 1000.0) / 900; math.Abs(p.Value-want) > 1e-9 {
		t.Fatalf("rate = %v, want %v", p.Value, want)
	}
}

func TestRollResetsConversion(t *testing.T) {
	p := Constant(KindYear, 10, UnitGenerationsAgo)
	if err := p.Convert(UnitYearsAgo); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if err := p.Roll(entropy.New(1)); err != nil {
		t.Fatalf("roll: %v", err)
	}
	if p.Value != 10 || p.Unit != UnitGenerationsAgo {
		t.Fatalf("roll did not restore spec: %v", p)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	p := Constant(KindYear, 1234, UnitYearsAgo)
	if err := p.Convert(UnitGenerationsAgo); err != nil {
		t.Fatalf("to generations: %v", err)
	}
	if math.Abs(p.Value-1234.0/30) > 1e-9 {
		t.Fatalf("generations = %v", p.Value)
	}
	if err := p.Convert(UnitYearsAgo); err != nil {
		t.Fatalf("back to years: %v", err)
	}
	if math.Abs(p.Value-1234) > 1e-9 {
		t.Fatalf("round trip = %v, want 1234", p.Value)
	}
}

func TestUnknownConversionFails(t *testing.T) {
	p := Constant(KindYear, 1000, UnitCE)
	err := p.Convert(UnitYearsAgo)
	if !errors.Is(err, ErrUnknownConversion) {
		t.Fatalf("err = %v, want ErrUnknownConversion", err)
	}
	if p.Value != 1000 || p.Unit != UnitCE {
		t.Fatalf("failed conversion mutated parameter: %v", p)
	}
}

func TestCombineAgoClosesGap(t *testing.T) {
	a := Constant(KindYear, 12, UnitGenerationsAgo)
	b := Constant(KindYear, 50, UnitGenerationsAgo)
	if err := a.Combine(b); err != nil {
		t.Fatalf("combine: %v", err)
	}
	if a.Value != 38 {
		t.Fatalf("12 + 50 generations ago = %v, want 38", a.Value)
	}
}

func TestCombineConvertsOtherWithoutMutatingIt(t *testing.T) {
	a := Constant(KindYear, 600, UnitYearsAgo)
	b := Constant(KindYear, 10, UnitGenerationsAgo)
	if err := a.Combine(b); err != nil {
		t.Fatalf("combine: %v", err)
	}
	if a.Value != 300 {
		t.Fatalf("600 years ago + 10 generations ago = %v, want 300", a.Value)
	}
	if b.Value != 10 || b.Unit != UnitGenerationsAgo {
		t.Fatalf("other mutated: %v", b)
	}
}

func TestCombineCalendarAdds(t *testing.T) {
	a := Constant(KindYear, 1000, UnitCE)
	b := Constant(KindYear, 30, UnitCE)
	if err := a.Combine(b); err != nil {
		t.Fatalf("combine: %v", err)
	}
	if a.Value != 1030 {
		t.Fatalf("got %v, want 1030", a.Value)
	}
}

func TestCombineKindMismatch(t *testing.T) {
	a := Constant(KindYear, 1, UnitCE)
	b := Constant(KindCarryCapacity, 1, UnitRaw)
	if err := a.Combine(b); !errors.Is(err, ErrKindMismatch) {
		t.Fatalf("err = %v, want ErrKindMismatch", err)
	}
}

func TestLess(t *testing.T) {
	a := Constant(KindYear, 100, UnitYearsAgo)
	b := Constant(KindYear, 5, UnitGenerationsAgo)
	less, err := a.Less(b)
	if err != nil {
		t.Fatalf("less: %v", err)
	}
	if !less {
		t.Fatalf("100 years ago should be less than 150 years ago")
	}
}

func TestSpecValidation(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
	}{
		{"unknown kind", Spec{Kind: "Rainfall", Constant: f(1)}},
		{"no value", Spec{Kind: KindYear, Unit: UnitCE}},
		{"two shapes", Spec{Kind: KindYear, Constant: f(1), Range: &Range{0, 1}}},
		{"growth on year", Spec{Kind: KindYear, Growth: &GrowthSample{Elapsed: 1}}},
		{"growth with distribution", Spec{Kind: KindGrowthRate, Growth: &GrowthSample{Elapsed: 1}, Distribution: &Distribution{Type: DistUniform}}},
		{"zero elapsed", Spec{Kind: KindGrowthRate, Growth: &GrowthSample{}}},
		{"zero sigma", Spec{Kind: KindYear, Distribution: &Distribution{Type: DistNormal}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.spec.Validate(); !errors.Is(err, ErrInvalidSpec) {
				t.Fatalf("err = %v, want ErrInvalidSpec", err)
			}
		})
	}
}
