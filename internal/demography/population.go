package demography

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/entropy"
)

var (
	ErrModeMismatch = errors.New("demography: operation not valid in this population mode")
	ErrNotFound     = errors.New("demography: individual not found")
)

// Mode selects how a Population is used.
type Mode uint8

const (
	// ModeHistorical is driven year by year through events.
	ModeHistorical Mode = iota
	// ModeSimulated is rebuilt from a vital record and addressed by identity.
	ModeSimulated
)

func (m Mode) String() string {
	if m == ModeSimulated {
		return "simulated"
	}
	return "historical"
}

// Population is the age-structured population of one island.
type Population struct {
	mode   Mode
	table  Table
	src    *entropy.Source
	people map[uuid.UUID]*Individual
	ranges []*AgeRange // oldest first

	year           int
	growthRate     float64
	carryCapacity  float64
	curve          func(float64) float64
	birthRemainder float64
}

// Option configures a new Population.
type Option func(*Population)

// WithMode sets the population mode. The default is ModeHistorical.
func WithMode(m Mode) Option { return func(p *Population) { p.mode = m } }

// WithTable replaces the default demographic table.
func WithTable(t Table) Option { return func(p *Population) { p.table = t } }

// WithGrowthRate sets the initial flat growth rate in persons per year.
func WithGrowthRate(r float64) Option { return func(p *Population) { p.growthRate = r } }

// WithCarryCapacity sets the initial carrying capacity.
func WithCarryCapacity(k float64) Option { return func(p *Population) { p.carryCapacity = k } }

// New builds a population of roughly target people spread over the table:
// each bracket gets floor(target * share / 100) members.
func New(target float64, src *entropy.Source, opts ...Option) (*Population, error) {
	p := &Population{
		table:         DefaultTable,
		src:           src,
		people:        make(map[uuid.UUID]*Individual),
		carryCapacity: -1,
	}
	for _, o := range opts {
		o(p)
	}
	if err := p.table.Validate(); err != nil {
		return nil, err
	}
	p.ranges = make([]*AgeRange, len(p.table))
	for i, b := range p.table {
		ar := &AgeRange{Bracket: b, members: newStore(p.mode), pop: p}
		if i > 0 {
			prev := p.table[i-1]
			ar.hasSurvival = true
			ar.maleSurvival = ratio(b.MalePct, prev.MalePct)
			ar.femaleSurvival = ratio(b.FemalePct, prev.FemalePct)
		}
		p.ranges[len(p.table)-1-i] = ar
	}
	if target > 0 && !math.IsInf(target, 1) {
		for _, ar := range p.ranges {
			n := int(math.Floor(target * (ar.MalePct + ar.FemalePct) / 100))
			for range n {
				ar.spawn(false, src)
			}
		}
	}
	return p, nil
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Rebuild returns a new empty population of the given mode sharing this
// population's table and random source.
func (p *Population) Rebuild(mode Mode) *Population {
	np, err := New(0, p.src, WithMode(mode), WithTable(p.table))
	if err != nil {
		// table was already validated for p
		panic(err)
	}
	return np
}

func (p *Population) Mode() Mode { return p.mode }

// Len returns the number of living individuals.
func (p *Population) Len() int { return len(p.people) }

// Year returns years elapsed since the last applied event.
func (p *Population) Year() int { return p.year }

func (p *Population) GrowthRate() float64 { return p.growthRate }

func (p *Population) CarryCapacity() float64 { return p.carryCapacity }

// HasCurve reports whether a fitted growth curve is active.
func (p *Population) HasCurve() bool { return p.curve != nil }

// Ranges returns the age ranges, oldest first.
func (p *Population) Ranges() []*AgeRange { return p.ranges }

// RangeFor returns the bracket holding age, or nil for negative ages.
func (p *Population) RangeFor(age int) *AgeRange {
	if age < 0 {
		return nil
	}
	// ranges are few; scan oldest first so the open bracket matches early
	for _, ar := range p.ranges {
		if age >= ar.Min && age <= ar.Max {
			return ar
		}
	}
	return nil
}

// bracketOf returns the bracket whose members hold id. Membership is the
// source of truth: an individual's Age may have been changed in place.
func (p *Population) bracketOf(id uuid.UUID) *AgeRange {
	for _, ar := range p.ranges {
		if ar.members.has(id) {
			return ar
		}
	}
	return nil
}

// Each calls fn for every living individual, oldest bracket first.
func (p *Population) Each(fn func(*Individual)) {
	for _, ar := range p.ranges {
		ar.members.each(func(id uuid.UUID) { fn(p.people[id]) })
	}
}

// Contains reports whether id is a living member.
func (p *Population) Contains(id uuid.UUID) bool {
	_, ok := p.people[id]
	return ok
}

// Merge moves every individual of other into p, placing each by age.
// other is left empty.
func (p *Population) Merge(other *Population) error {
	if other.mode != p.mode {
		return fmt.Errorf("%w: merge %s into %s", ErrModeMismatch, other.mode, p.mode)
	}
	other.Each(func(ind *Individual) {
		ar := p.RangeFor(ind.Age)
		if ar == nil {
			return
		}
		p.people[ind.ID] = ind
		ar.members.add(ind.ID)
	})
	clear(other.people)
	for _, ar := range other.ranges {
		ar.members = newStore(other.mode)
	}
	return nil
}

// Insert adds or relocates an individual by its current age, even when the
// caller already changed Age on the stored pointer. Simulated only.
func (p *Population) Insert(ind *Individual) error {
	if p.mode != ModeSimulated {
		return fmt.Errorf("%w: insert", ErrModeMismatch)
	}
	ar := p.RangeFor(ind.Age)
	if ar == nil {
		return fmt.Errorf("demography: insert %s: negative age %d", ind.ID, ind.Age)
	}
	if cur := p.bracketOf(ind.ID); cur != nil {
		cur.members.remove(ind.ID)
	}
	p.people[ind.ID] = ind
	ar.members.add(ind.ID)
	return nil
}

// Lookup returns the individual with the given identity. Simulated only.
func (p *Population) Lookup(id uuid.UUID) (*Individual, error) {
	if p.mode != ModeSimulated {
		return nil, fmt.Errorf("%w: lookup", ErrModeMismatch)
	}
	ind, ok := p.people[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ind, nil
}

// Remove deletes and returns the individual with the given identity. Simulated only.
func (p *Population) Remove(id uuid.UUID) (*Individual, error) {
	ind, err := p.Lookup(id)
	if err != nil {
		return nil, err
	}
	if ar := p.bracketOf(id); ar != nil {
		ar.members.remove(id)
	}
	delete(p.people, id)
	return ind, nil
}

// SetAge changes an individual's age and moves it to the matching bracket.
// Simulated only.
func (p *Population) SetAge(id uuid.UUID, age int) error {
	ind, err := p.Lookup(id)
	if err != nil {
		return err
	}
	dst := p.RangeFor(age)
	if dst == nil {
		return fmt.Errorf("demography: set age of %s: negative age %d", id, age)
	}
	if cur := p.bracketOf(id); cur != nil && cur != dst {
		cur.members.remove(id)
	}
	ind.Age = age
	dst.members.add(id)
	return nil
}

// Cohort is a per-bracket, per-sex head count.
type Cohort struct {
	Bracket Bracket
	Males   int
	Females int
}

// Cohorts returns head counts for every bracket, oldest first.
func (p *Population) Cohorts() []Cohort {
	out := make([]Cohort, len(p.ranges))
	for i, ar := range p.ranges {
		m, f := ar.Counts()
		out[i] = Cohort{Bracket: ar.Bracket, Males: m, Females: f}
	}
	return out
}

func (p *Population) String() string {
	var b strings.Builder
	for i, ar := range p.ranges {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ar.String())
	}
	return b.String()
}
