package demography

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/entropy"
	"github.com/talgya/tausaga/internal/major"
	"github.com/talgya/tausaga/internal/parameter"
)

func mustPop(t *testing.T, target float64, opts ...Option) *Population {
	t.Helper()
	p, err := New(target, entropy.New(7), opts...)
	if err != nil {
		t.Fatalf("new population: %v", err)
	}
	return p
}

func event(t *testing.T, curve major.Curve, specs ...parameter.Spec) *major.Event {
	t.Helper()
	year := 0.0
	specs = append([]parameter.Spec{{Kind: parameter.KindYear, Unit: parameter.UnitCE, Constant: &year}}, specs...)
	ev, err := major.New("test", "test", specs, curve, entropy.New(3))
	if err != nil {
		t.Fatalf("event: %v", err)
	}
	return ev
}

func constant(kind parameter.Kind, v float64, unit parameter.Unit) parameter.Spec {
	return parameter.Spec{Kind: kind, Unit: unit, Constant: &v}
}

func TestSeedSizeIsFloorSum(t *testing.T) {
	p := mustPop(t, 100)
	if p.Len() != 93 {
		t.Fatalf("len = %d, want 93", p.Len())
	}
	p = mustPop(t, 1000)
	if p.Len() > 1000 {
		t.Fatalf("len = %d exceeds target", p.Len())
	}
	if mustPop(t, 0).Len() != 0 || mustPop(t, -5).Len() != 0 {
		t.Fatalf("non-positive target should give an empty population")
	}
}

func TestSeededAgesFallInBracket(t *testing.T) {
	p := mustPop(t, 5000)
	for _, ar := range p.Ranges() {
		ar.members.each(func(id uuid.UUID) {
			ind := p.people[id]
			hi := ar.Max
			if hi == OpenEnded {
				hi = ar.Min + openSeedSpan
			}
			if ind.Age < ar.Min || ind.Age > hi {
				t.Fatalf("age %d outside %s", ind.Age, ar.Bracket)
			}
		})
	}
}

func TestSurvivalRates(t *testing.T) {
	p := mustPop(t, 0)
	youngest := p.Ranges()[len(p.Ranges())-1]
	if _, _, ok := youngest.SurvivalRates(); ok {
		t.Fatalf("youngest range has no survival rate")
	}
	ar := p.RangeFor(7)
	m, f, ok := ar.SurvivalRates()
	if !ok || math.Abs(m-8.1/9.2) > 1e-12 || math.Abs(f-7.8/8.9) > 1e-12 {
		t.Fatalf("rates = %v %v %v", m, f, ok)
	}
	open := p.RangeFor(120)
	if open.Min != 85 {
		t.Fatalf("age 120 should fall in the open bracket, got %s", open.Bracket)
	}
	if m, f, _ := open.SurvivalRates(); m != 0 || f != 0 {
		t.Fatalf("open bracket rates = %v %v", m, f)
	}
	if p.RangeFor(-1) != nil {
		t.Fatalf("negative age should have no bracket")
	}
}

func TestAgeInSurvivorCount(t *testing.T) {
	src := entropy.New(11)
	p := mustPop(t, 0)
	ar := p.RangeFor(5)
	rate, _, _ := ar.SurvivalRates()
	var prevRem float64
	for round := 0; round < 20; round++ {
		n := 7 + round
		cohort := make([]*Individual, n)
		for i := range cohort {
			cohort[i] = &Individual{ID: src.UUID(), Age: 5, Sex: SexMale}
			p.people[cohort[i].ID] = cohort[i]
		}
		res, err := ar.AgeIn(cohort, src)
		if err != nil {
			t.Fatalf("age in: %v", err)
		}
		floor := int(math.Floor(float64(n) * rate))
		if res.Survivors != floor && res.Survivors != floor+1 {
			t.Fatalf("survivors = %d, want %d or %d", res.Survivors, floor, floor+1)
		}
		if res.Survivors+res.Deaths != n {
			t.Fatalf("survivors %d + deaths %d != %d", res.Survivors, res.Deaths, n)
		}
		rem, _ := ar.Remainders()
		if rem < 0 || rem >= 1 {
			t.Fatalf("remainder %v out of [0,1)", rem)
		}
		_, frac := math.Modf(float64(n) * rate)
		want := prevRem + frac
		if want >= 1 {
			want--
		}
		if math.Abs(rem-want) > 1e-9 {
			t.Fatalf("remainder = %v, want %v", rem, want)
		}
		prevRem = rem
		if len(ar.Dead()) == 0 && res.Deaths > 0 {
			t.Fatalf("deaths should be recorded in the dead set")
		}
		ar.reap()
	}
}

func TestAgeInYoungestFails(t *testing.T) {
	p := mustPop(t, 0)
	youngest := p.Ranges()[len(p.Ranges())-1]
	if _, err := youngest.AgeIn(nil, entropy.New(1)); !errors.Is(err, ErrNoSurvivalRate) {
		t.Fatalf("err = %v", err)
	}
}

func TestSurvivorMask(t *testing.T) {
	src := entropy.New(5)
	for _, tc := range []struct{ k, n int }{{0, 0}, {0, 5}, {5, 5}, {3, 10}, {12, 10}} {
		mask := SurvivorMask(tc.k, tc.n, src)
		if len(mask) != tc.n {
			t.Fatalf("len = %d, want %d", len(mask), tc.n)
		}
		got := 0
		for _, b := range mask {
			if b {
				got++
			}
		}
		if want := min(tc.k, tc.n); got != want {
			t.Fatalf("k=%d n=%d: %d true, want %d", tc.k, tc.n, got, want)
		}
	}
}

func TestSurvivorMaskUniform(t *testing.T) {
	const k, n, draws = 3, 10, 20000
	src := entropy.New(17)
	hits := make([]int, n)
	for range draws {
		for i, alive := range SurvivorMask(k, n, src) {
			if alive {
				hits[i]++
			}
		}
	}
	want := float64(k) / n
	for i, h := range hits {
		if got := float64(h) / draws; math.Abs(got-want) > 0.03 {
			t.Fatalf("index %d survived %.3f of draws, want about %.2f", i, got, want)
		}
	}
}

func TestSurvivalRatesNeverExceedOne(t *testing.T) {
	p := mustPop(t, 0)
	for _, ar := range p.Ranges() {
		m, f, ok := ar.SurvivalRates()
		if ok && (m > 1 || f > 1) {
			t.Fatalf("bracket %s: survival %v/%v above 1", ar.Bracket, m, f)
		}
	}
}

func TestAgeInFullSurvivalKeepsRemainder(t *testing.T) {
	src := entropy.New(3)
	p := mustPop(t, 0)
	ar := &AgeRange{
		Bracket:         Bracket{Min: 5, Max: 9},
		hasSurvival:     true,
		maleSurvival:    1,
		femaleSurvival:  1,
		femaleRemainder: 0.75,
		members:         newStore(ModeHistorical),
		pop:             p,
	}
	cohort := make([]*Individual, 4)
	for i := range cohort {
		cohort[i] = &Individual{ID: src.UUID(), Sex: SexFemale}
	}
	res, err := ar.AgeIn(cohort, src)
	if err != nil {
		t.Fatalf("age in: %v", err)
	}
	if res.Survivors != 4 || res.Deaths != 0 {
		t.Fatalf("result = %+v, want all four surviving", res)
	}
	if _, f := ar.Remainders(); f != 0.75 {
		t.Fatalf("female remainder = %v, want 0.75 untouched", f)
	}
}

func TestElapseYearKeepsSizeWithoutGrowth(t *testing.T) {
	p := mustPop(t, 0)
	if err := p.Apply(event(t, major.CurveNone, constant(parameter.KindPopulationChange, 100, parameter.UnitRaw))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Len() != 93 {
		t.Fatalf("len = %d, want 93", p.Len())
	}
	for range 10 {
		res, err := p.ElapseYear()
		if err != nil {
			t.Fatalf("elapse: %v", err)
		}
		if len(res.Births) != len(res.Deaths) {
			t.Fatalf("births %d != deaths %d", len(res.Births), len(res.Deaths))
		}
		if p.Len() != 93 {
			t.Fatalf("len = %d, want 93", p.Len())
		}
		for _, b := range res.Births {
			if b.Age != 0 {
				t.Fatalf("newborn age %d", b.Age)
			}
		}
	}
}

func TestFlatGrowthAccumulates(t *testing.T) {
	p := mustPop(t, 0)
	if err := p.Apply(event(t, major.CurveNone, constant(parameter.KindGrowthRate, 0.25, parameter.UnitRawPerYear))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for year := 1; year <= 12; year++ {
		if _, err := p.ElapseYear(); err != nil {
			t.Fatalf("elapse: %v", err)
		}
		if want := year / 4; p.Len() != want {
			t.Fatalf("year %d: len = %d, want %d", year, p.Len(), want)
		}
	}
	if p.Year() != 12 {
		t.Fatalf("year = %d", p.Year())
	}
}

func TestApplyOrderAndUnits(t *testing.T) {
	p := mustPop(t, 0)
	err := p.Apply(event(t, major.CurveNone,
		constant(parameter.KindCarryCapacity, 5000, parameter.UnitRaw),
		constant(parameter.KindPopulationChange, 100, parameter.UnitRaw),
		constant(parameter.KindGrowthRate, 2, parameter.UnitRawPerYear),
	))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.CarryCapacity() != 5000 || p.GrowthRate() != 2 || p.HasCurve() {
		t.Fatalf("state = %v %v %v", p.CarryCapacity(), p.GrowthRate(), p.HasCurve())
	}
	if got := p.Growth(); got != 95 {
		t.Fatalf("growth = %v, want 95", got)
	}
	if _, err := p.ElapseYear(); err != nil {
		t.Fatalf("elapse: %v", err)
	}
	if p.Len() != 95 {
		t.Fatalf("len = %d, want 95", p.Len())
	}
}

func TestApplyWithoutGrowthKeepsCurve(t *testing.T) {
	p := mustPop(t, 0)
	gr := parameter.Spec{Kind: parameter.KindGrowthRate, Unit: parameter.UnitRawPerYear, Growth: &parameter.GrowthSample{
		Min: parameter.Range{Low: 2, High: 2}, Max: parameter.Range{Low: 3, High: 3}, Elapsed: 900,
	}}
	if err := p.Apply(event(t, major.CurveSquareRoot, constant(parameter.KindPopulationChange, 100, parameter.UnitRaw), gr)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !p.HasCurve() {
		t.Fatalf("square root curve should be fitted")
	}
	if err := p.Apply(event(t, major.CurveNone, constant(parameter.KindCarryCapacity, 10, parameter.UnitRaw))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !p.HasCurve() {
		t.Fatalf("event without growth rate should keep the curve")
	}
	if p.Year() != 0 {
		t.Fatalf("apply should reset the year")
	}
	if err := p.Apply(event(t, major.CurveNone, constant(parameter.KindGrowthRate, 1, parameter.UnitRawPerYear))); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.HasCurve() {
		t.Fatalf("growth rate without curve should clear it")
	}
}

func TestCurveFitFailures(t *testing.T) {
	p := mustPop(t, 0)
	err := p.Apply(event(t, major.CurveSquareRoot, constant(parameter.KindGrowthRate, 1, parameter.UnitRawPerYear)))
	if !errors.Is(err, ErrCurveFit) {
		t.Fatalf("err = %v, want ErrCurveFit", err)
	}
	if p.HasCurve() {
		t.Fatalf("failed fit should leave no curve")
	}
}

func TestSquareRootCurve(t *testing.T) {
	f, err := SquareRootCurve(10, 100, 50)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if f(0) != 50 {
		t.Fatalf("f(0) = %v", f(0))
	}
	if got := f(100); math.Abs(got-1050) > 1e-9 {
		t.Fatalf("f(100) = %v, want 1050", got)
	}
}

func TestLogisticCurve(t *testing.T) {
	f, err := LogisticCurve(1, 100, 1000, 100)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if math.Abs(f(0)-100) > 1e-9 {
		t.Fatalf("f(0) = %v", f(0))
	}
	if math.Abs(f(100)-200) > 1e-9 {
		t.Fatalf("f(100) = %v, want 200", f(100))
	}
	if got := f(1e5); math.Abs(got-1000) > 1e-6 {
		t.Fatalf("f(inf) = %v, want 1000", got)
	}
	if _, err := LogisticCurve(100, 100, 1000, 100); !errors.Is(err, ErrCurveFit) {
		t.Fatalf("projection beyond capacity should fail, got %v", err)
	}
	if _, err := LogisticCurve(1, 100, 1000, 0); !errors.Is(err, ErrCurveFit) {
		t.Fatalf("empty base should fail, got %v", err)
	}
}

func TestLogisticCurveApproachesCapacity(t *testing.T) {
	tests := []struct {
		name                 string
		rate, measured, k, b float64
	}{
		{"from below", 1, 100, 1000, 100},
		{"slow from below", 0.1, 500, 400, 300},
		{"from above", -1, 100, 1000, 2000},
	}
	for _, tt := range tests {
		f, err := LogisticCurve(tt.rate, tt.measured, tt.k, tt.b)
		if err != nil {
			t.Fatalf("%s: fit: %v", tt.name, err)
		}
		lo, hi := min(tt.b, tt.k), max(tt.b, tt.k)
		prev := f(0)
		for x := 1.0; x <= 20000; x += 7 {
			y := f(x)
			if y < lo-1e-9 || y > hi+1e-9 {
				t.Fatalf("%s: f(%v) = %v outside [%v, %v]", tt.name, x, y, lo, hi)
			}
			if tt.k > tt.b && y < prev-1e-9 || tt.k < tt.b && y > prev+1e-9 {
				t.Fatalf("%s: f not monotonic toward %v at x=%v (%v after %v)", tt.name, tt.k, x, y, prev)
			}
			prev = y
		}
		if math.Abs(f(1e6)-tt.k) > 1e-6 {
			t.Fatalf("%s: f(inf) = %v, want %v", tt.name, f(1e6), tt.k)
		}
	}
}

func TestLogisticCurveRejectsDivergingProjections(t *testing.T) {
	tests := []struct {
		name                 string
		rate, measured, k, b float64
	}{
		{"declining below capacity", -0.5, 100, 1000, 100},
		{"rising above capacity", 1, 100, 1000, 2000},
		{"projection at capacity", 9, 100, 1000, 100},
		{"flat projection", 0, 100, 1000, 100},
	}
	for _, tt := range tests {
		if _, err := LogisticCurve(tt.rate, tt.measured, tt.k, tt.b); !errors.Is(err, ErrCurveFit) {
			t.Fatalf("%s: err = %v, want ErrCurveFit", tt.name, err)
		}
	}
}

func TestModeGuards(t *testing.T) {
	hist := mustPop(t, 10)
	if _, err := hist.Lookup(uuid.New()); !errors.Is(err, ErrModeMismatch) {
		t.Fatalf("lookup on historical: %v", err)
	}
	sim := hist.Rebuild(ModeSimulated)
	if sim.Len() != 0 || sim.Mode() != ModeSimulated {
		t.Fatalf("rebuild should be empty and simulated")
	}
	if _, err := sim.ElapseYear(); !errors.Is(err, ErrModeMismatch) {
		t.Fatalf("elapse on simulated: %v", err)
	}
	if err := sim.Apply(event(t, major.CurveNone)); !errors.Is(err, ErrModeMismatch) {
		t.Fatalf("apply on simulated: %v", err)
	}
}

func TestSimulatedOperations(t *testing.T) {
	src := entropy.New(9)
	p := mustPop(t, 0, WithMode(ModeSimulated))
	ind := &Individual{ID: src.UUID(), Sex: SexFemale}
	if err := p.Insert(ind); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !p.Contains(ind.ID) || !p.RangeFor(0).Contains(ind.ID) {
		t.Fatalf("inserted individual should be in bracket 0-4")
	}
	if err := p.SetAge(ind.ID, 42); err != nil {
		t.Fatalf("set age: %v", err)
	}
	if p.RangeFor(0).Contains(ind.ID) || !p.RangeFor(42).Contains(ind.ID) {
		t.Fatalf("set age should relocate")
	}
	got, err := p.Lookup(ind.ID)
	if err != nil || got.Age != 42 {
		t.Fatalf("lookup = %v, %v", got, err)
	}
	if _, err := p.Remove(ind.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if p.Len() != 0 || p.RangeFor(42).Len() != 0 {
		t.Fatalf("remove should empty the population")
	}
	if _, err := p.Remove(ind.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: %v", err)
	}
}

func TestInsertAfterAgeChangedInPlace(t *testing.T) {
	src := entropy.New(11)
	p := mustPop(t, 0, WithMode(ModeSimulated))
	ind := &Individual{ID: src.UUID(), Sex: SexMale}
	if err := p.Insert(ind); err != nil {
		t.Fatalf("insert: %v", err)
	}
	ind.Age = 42
	if err := p.Insert(ind); err != nil {
		t.Fatalf("reinsert: %v", err)
	}
	if p.RangeFor(0).Contains(ind.ID) {
		t.Fatalf("stale membership left in bracket %s", p.RangeFor(0).Bracket)
	}
	if !p.RangeFor(42).Contains(ind.ID) || p.Len() != 1 {
		t.Fatalf("reinsert should place the individual in %s only", p.RangeFor(42).Bracket)
	}

	ind.Age = 70
	if _, err := p.Remove(ind.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, ar := range p.Ranges() {
		if ar.Len() != 0 {
			t.Fatalf("bracket %s still holds %d after remove", ar.Bracket, ar.Len())
		}
	}
}

func TestCohortsCoverPopulation(t *testing.T) {
	p := mustPop(t, 2000)
	total := 0
	for _, c := range p.Cohorts() {
		total += c.Males + c.Females
	}
	if total != p.Len() {
		t.Fatalf("cohorts sum %d != len %d", total, p.Len())
	}
}

func TestTableValidate(t *testing.T) {
	if err := DefaultTable.Validate(); err != nil {
		t.Fatalf("default table: %v", err)
	}
	bad := Table{{0, 4, 1, 1}, {6, OpenEnded, 0, 0}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("gap should be rejected: %v", err)
	}
	closed := Table{{0, 4, 1, 1}, {5, 9, 0, 0}}
	if err := closed.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("closed last bracket should be rejected: %v", err)
	}
	growing := Table{{0, 4, 1, 1}, {5, 9, 2, 1}, {10, OpenEnded, 0, 0}}
	if err := growing.Validate(); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("share growing with age should be rejected: %v", err)
	}
	if _, err := New(100, entropy.New(1), WithTable(growing)); !errors.Is(err, ErrInvalidTable) {
		t.Fatalf("new with growing table: %v", err)
	}
}
