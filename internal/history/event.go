// Package history keeps the vital record of one island: births, deaths and
// conceptions by year, filled in by running the demographic model forward,
// and the replay that rebuilds who was alive in a given year.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/talgya/tausaga/internal/demography"
)

// SecondsPerYear is the length of a Julian year.
const SecondsPerYear = 86400 * 365.25

var ErrUnknownKind = errors.New("history: unknown event kind")

// Kind is the type of a vital event.
type Kind uint8

const (
	KindBirth Kind = iota
	KindDeath
	KindConception
)

var kindNames = [...]string{"BIRTH", "DEATH", "CONCEPTION"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Event is one entry in the vital record. Moment is the second within the
// year at which it happened. Sex is set on births only.
type Event struct {
	Kind   Kind
	ID     uuid.UUID
	Year   int
	Moment float64
	Sex    *demography.Sex
}

// Record maps year to identity to that identity's events in insertion order.
type Record map[int]map[uuid.UUID][]Event

// Add appends ev under its year and identity.
func (r Record) Add(ev Event) {
	byID, ok := r[ev.Year]
	if !ok {
		byID = make(map[uuid.UUID][]Event)
		r[ev.Year] = byID
	}
	byID[ev.ID] = append(byID[ev.ID], ev)
}

// Years returns the recorded years in ascending order.
func (r Record) Years() []int {
	years := make([]int, 0, len(r))
	for y := range r {
		years = append(years, y)
	}
	slices.Sort(years)
	return years
}

// IDs returns the identities recorded in year, in byte order.
func (r Record) IDs(year int) []uuid.UUID {
	byID := r[year]
	ids := make([]uuid.UUID, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}

// Each visits every event ordered by year, then identity, then insertion.
func (r Record) Each(fn func(Event)) {
	for _, y := range r.Years() {
		for _, id := range r.IDs(y) {
			for _, ev := range r[y][id] {
				fn(ev)
			}
		}
	}
}

// Len returns the total number of events.
func (r Record) Len() int {
	n := 0
	for _, byID := range r {
		for _, evs := range byID {
			n += len(evs)
		}
	}
	return n
}

// Equal reports whether a and b hold the same events in the same order per identity.
func Equal(a, b Record) bool {
	if len(a) != len(b) {
		return false
	}
	for y, ai := range a {
		bi, ok := b[y]
		if !ok || len(ai) != len(bi) {
			return false
		}
		for id, aevs := range ai {
			bevs, ok := bi[id]
			if !ok || !slices.EqualFunc(aevs, bevs, eventEqual) {
				return false
			}
		}
	}
	return true
}

func eventEqual(a, b Event) bool {
	if a.Kind != b.Kind || a.ID != b.ID || a.Year != b.Year || a.Moment != b.Moment {
		return false
	}
	if (a.Sex == nil) != (b.Sex == nil) {
		return false
	}
	return a.Sex == nil || *a.Sex == *b.Sex
}
