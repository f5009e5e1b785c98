package demography

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidTable = errors.New("demography: invalid demographic table")

// OpenEnded marks the upper bound of the oldest bracket.
const OpenEnded = math.MaxInt

// openSeedSpan bounds the ages drawn when seeding the open-ended bracket.
const openSeedSpan = 4

// Bracket is one row of a demographic table: an age span and the share of
// the whole population, in percent, held by each sex in that span.
type Bracket struct {
	Min, Max  int
	MalePct   float64
	FemalePct float64
}

// Table lists brackets youngest first.
type Table []Bracket

// DefaultTable is the Mali 2017 age pyramid. The assumption is that the
// island stays a developing population for the whole simulated span.
var DefaultTable = Table{
	{0, 4, 9.2, 8.9},
	{5, 9, 8.1, 7.8},
	{10, 14, 6.8, 6.5},
	{15, 19, 5.5, 5.2},
	{20, 24, 4.4, 4.2},
	{25, 29, 3.6, 3.5},
	{30, 34, 3.0, 2.9},
	{35, 39, 2.6, 2.5},
	{40, 44, 2.1, 2.0},
	{45, 49, 1.5, 1.6},
	{50, 54, 1.1, 1.2},
	{55, 59, 0.8, 0.9},
	{60, 64, 0.7, 0.8},
	{65, 69, 0.5, 0.6},
	{70, 74, 0.3, 0.4},
	{75, 79, 0.2, 0.2},
	{80, 84, 0.1, 0.1},
	{85, OpenEnded, 0.0, 0.0},
}

// Validate checks that brackets start at 0, are contiguous, that shares
// never grow with age, and that only the last one is open-ended.
func (t Table) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("%w: need at least two brackets", ErrInvalidTable)
	}
	next := 0
	for i, b := range t {
		if b.Min != next {
			return fmt.Errorf("%w: bracket %d starts at %d, want %d", ErrInvalidTable, i, b.Min, next)
		}
		if b.MalePct < 0 || b.FemalePct < 0 {
			return fmt.Errorf("%w: bracket %d has a negative share", ErrInvalidTable, i)
		}
		// survival into a bracket is its share over the younger one's
		if i > 0 && (b.MalePct > t[i-1].MalePct || b.FemalePct > t[i-1].FemalePct) {
			return fmt.Errorf("%w: bracket %d implies a survival rate above 1", ErrInvalidTable, i)
		}
		last := i == len(t)-1
		if last {
			if b.Max != OpenEnded {
				return fmt.Errorf("%w: last bracket must be open-ended", ErrInvalidTable)
			}
			break
		}
		if b.Max < b.Min || b.Max == OpenEnded {
			return fmt.Errorf("%w: bracket %d has bad bounds %d-%d", ErrInvalidTable, i, b.Min, b.Max)
		}
		if i > 0 && (t[i-1].MalePct == 0 || t[i-1].FemalePct == 0) && (b.MalePct > 0 || b.FemalePct > 0) {
			return fmt.Errorf("%w: bracket %d follows an empty bracket", ErrInvalidTable, i)
		}
		next = b.Max + 1
	}
	return nil
}

func (b Bracket) String() string {
	if b.Max == OpenEnded {
		return fmt.Sprintf("%d+", b.Min)
	}
	return fmt.Sprintf("%d-%d", b.Min, b.Max)
}
