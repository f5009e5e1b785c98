// Package demography provides the age-structured population model: individuals,
// five-year cohorts with survival rates, and the per-year aging, death and birth
// bookkeeping driven by major events.
package demography

import (
	"fmt"

	"github.com/google/uuid"
)

// Sex represents biological sex for demographic simulation.
type Sex uint8

const (
	SexFemale Sex = 0
	SexMale   Sex = 1
)

func (s Sex) String() string {
	if s == SexMale {
		return "male"
	}
	return "female"
}

// Individual is a cohort member. Its owning Population is found by lookup,
// never stored here.
type Individual struct {
	ID        uuid.UUID
	Age       int
	Sex       Sex
	BirthYear *int // nil until known
}

// SetBirthYear records the calendar year of birth.
func (i *Individual) SetBirthYear(year int) {
	y := year
	i.BirthYear = &y
}

func (i *Individual) String() string {
	return fmt.Sprintf("%d year old %s", i.Age, i.Sex)
}
