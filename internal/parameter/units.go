package parameter

import (
	"fmt"
	"math"
	"strings"
)

// Unit names a parameter's measurement unit.
type Unit string

const (
	UnitYearsAgo       Unit = "years ago"
	UnitGenerationsAgo Unit = "generations ago"
	UnitRaw            Unit = "raw"     // number of people
	UnitLogNe          Unit = "log(Ne)" // log10 effective population size
	UnitCE             Unit = "CE"
	UnitRawPerYear     Unit = "raw / year"
)

// YearsPerGeneration is the fixed generation length used by the conversion table.
const YearsPerGeneration = 30.0

// conversions[to][from] converts a value expressed in `from` into `to`.
// The table is intentionally incomplete: only these pairs are meaningful.
var conversions = map[Unit]map[Unit]func(float64) float64{
	UnitGenerationsAgo: {
		UnitYearsAgo: func(x float64) float64 { return x / YearsPerGeneration },
	},
	UnitYearsAgo: {
		UnitGenerationsAgo: func(x float64) float64 { return x * YearsPerGeneration },
	},
	UnitRaw: {
		UnitLogNe: func(x float64) float64 { return math.Pow(10, x) },
	},
}

// Convert expresses v (in unit from) in unit to.
func Convert(v float64, from, to Unit) (float64, error) {
	if from == to {
		return v, nil
	}
	fn, ok := conversions[to][from]
	if !ok {
		return 0, fmt.Errorf("%w: %q to %q", ErrUnknownConversion, from, to)
	}
	return fn(v), nil
}

// IsTimelineDistance reports whether values in u measure distance back along
// a timeline, where combining two values closes the gap instead of summing.
func (u Unit) IsTimelineDistance() bool {
	return strings.Contains(string(u), "ago")
}

// Known reports whether u is one of the units the simulator understands.
func (u Unit) Known() bool {
	switch u {
	case UnitYearsAgo, UnitGenerationsAgo, UnitRaw, UnitLogNe, UnitCE, UnitRawPerYear:
		return true
	}
	return false
}
