package demography

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/entropy"
)

var ErrNoSurvivalRate = errors.New("demography: youngest range has no survival rate")

// AgeRange is one cohort bracket of a Population.
type AgeRange struct {
	Bracket

	// Per-sex probability of surviving from the previous (younger) bracket
	// into this one. Only meaningful when hasSurvival is set.
	maleSurvival, femaleSurvival float64
	hasSurvival                  bool

	// Fractional survivors carried between AgeIn calls, in [0,1).
	maleRemainder, femaleRemainder float64

	members cohortStore
	dead    []uuid.UUID
	pop     *Population
}

// AgeInResult reports the outcome of one AgeIn call.
type AgeInResult struct {
	Survivors int
	Deaths    int
}

// SurvivalRates returns the male and female survival rates into this range.
func (ar *AgeRange) SurvivalRates() (male, female float64, ok bool) {
	return ar.maleSurvival, ar.femaleSurvival, ar.hasSurvival
}

// Remainders returns the carried fractional survivors per sex.
func (ar *AgeRange) Remainders() (male, female float64) {
	return ar.maleRemainder, ar.femaleRemainder
}

// Len returns the number of living members.
func (ar *AgeRange) Len() int { return ar.members.len() }

// Dead returns the identities marked dead since the last reap.
func (ar *AgeRange) Dead() []uuid.UUID { return ar.dead }

// Contains reports whether id is a living member.
func (ar *AgeRange) Contains(id uuid.UUID) bool { return ar.members.has(id) }

// Counts returns living members per sex.
func (ar *AgeRange) Counts() (males, females int) {
	ar.members.each(func(id uuid.UUID) {
		if ar.pop.people[id].Sex == SexMale {
			males++
		} else {
			females++
		}
	})
	return males, females
}

// AgeIn moves a cohort that outgrew the previous range into this one.
// For each sex exactly floor(n*rate) members survive, plus one more whenever
// the carried remainder reaches 1. The rest are marked dead.
func (ar *AgeRange) AgeIn(cohort []*Individual, src *entropy.Source) (AgeInResult, error) {
	if !ar.hasSurvival {
		return AgeInResult{}, ErrNoSurvivalRate
	}
	var males, females []*Individual
	for _, ind := range cohort {
		if ind.Sex == SexMale {
			males = append(males, ind)
		} else {
			females = append(females, ind)
		}
	}
	var res AgeInResult
	for _, g := range []struct {
		group []*Individual
		rate  float64
		rem   *float64
	}{
		{females, ar.femaleSurvival, &ar.femaleRemainder},
		{males, ar.maleSurvival, &ar.maleRemainder},
	} {
		n := len(g.group)
		if n == 0 {
			continue
		}
		whole, frac := math.Modf(float64(n) * g.rate)
		*g.rem += frac
		k := int(whole)
		if *g.rem >= 1 && k < n {
			*g.rem--
			k++
		}
		mask := SurvivorMask(k, n, src)
		for i, ind := range g.group {
			if mask[i] {
				ar.members.add(ind.ID)
				res.Survivors++
			} else {
				ar.dead = append(ar.dead, ind.ID)
				res.Deaths++
			}
		}
	}
	return res, nil
}

// SurvivorMask returns n booleans with exactly k true, placed uniformly at random.
func SurvivorMask(k, n int, src *entropy.Source) []bool {
	k = max(0, min(k, n))
	mask := make([]bool, n)
	for i := range k {
		mask[i] = true
	}
	src.Shuffle(n, func(i, j int) { mask[i], mask[j] = mask[j], mask[i] })
	return mask
}

// spawn creates a new individual in this range. Newborns are age 0; seeded
// individuals get a uniform age within the bracket.
func (ar *AgeRange) spawn(newborn bool, src *entropy.Source) *Individual {
	ind := &Individual{ID: src.UUID()}
	total := ar.MalePct + ar.FemalePct
	if total == 0 {
		if src.Float64() < 0.5 {
			ind.Sex = SexMale
		}
	} else if src.Float64() < ar.MalePct/total {
		ind.Sex = SexMale
	}
	if !newborn {
		hi := ar.Max
		if hi == OpenEnded {
			hi = ar.Min + openSeedSpan
		}
		ind.Age = src.IntRange(ar.Min, hi)
	}
	ar.pop.people[ind.ID] = ind
	ar.members.add(ind.ID)
	return ind
}

// elapse ages every member by one year and returns those who outgrew the range.
func (ar *AgeRange) elapse() []*Individual {
	var out []*Individual
	ar.members.retain(func(id uuid.UUID) bool {
		ind := ar.pop.people[id]
		ind.Age++
		if ind.Age > ar.Max {
			out = append(out, ind)
			return false
		}
		return true
	})
	return out
}

// reap clears and returns the dead set.
func (ar *AgeRange) reap() []uuid.UUID {
	dead := ar.dead
	ar.dead = nil
	return dead
}

func (ar *AgeRange) String() string {
	males, females := ar.Counts()
	return fmt.Sprintf("%d females and %d males in %s", females, males, ar.Bracket)
}
