package demography

import "github.com/google/uuid"

// cohortStore holds the identities living in one AgeRange. Historical
// populations only append and filter; simulated populations need O(1)
// lookup and removal by identity.
type cohortStore interface {
	add(id uuid.UUID)
	remove(id uuid.UUID) bool
	has(id uuid.UUID) bool
	len() int
	each(fn func(id uuid.UUID))
	// retain keeps ids for which keep returns true, preserving order.
	retain(keep func(id uuid.UUID) bool)
}

func newStore(mode Mode) cohortStore {
	if mode == ModeSimulated {
		return &keyedStore{index: make(map[uuid.UUID]int)}
	}
	return &sequenceStore{}
}

// sequenceStore is an ordered, append-only sequence.
type sequenceStore struct {
	ids []uuid.UUID
}

func (s *sequenceStore) add(id uuid.UUID) { s.ids = append(s.ids, id) }
func (s *sequenceStore) len() int         { return len(s.ids) }

func (s *sequenceStore) remove(id uuid.UUID) bool {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return true
		}
	}
	return false
}

func (s *sequenceStore) has(id uuid.UUID) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *sequenceStore) each(fn func(id uuid.UUID)) {
	for _, id := range s.ids {
		fn(id)
	}
}

func (s *sequenceStore) retain(keep func(id uuid.UUID) bool) {
	n := 0
	for _, id := range s.ids {
		if keep(id) {
			s.ids[n] = id
			n++
		}
	}
	clear(s.ids[n:])
	s.ids = s.ids[:n]
}

// keyedStore is an identity-keyed set with stable iteration order
// (insertion order, perturbed only by swap-removal).
type keyedStore struct {
	index map[uuid.UUID]int
	ids   []uuid.UUID
}

func (s *keyedStore) len() int { return len(s.ids) }

func (s *keyedStore) add(id uuid.UUID) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = len(s.ids)
	s.ids = append(s.ids, id)
}

func (s *keyedStore) remove(id uuid.UUID) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}
	last := len(s.ids) - 1
	if i != last {
		s.ids[i] = s.ids[last]
		s.index[s.ids[i]] = i
	}
	s.ids = s.ids[:last]
	delete(s.index, id)
	return true
}

func (s *keyedStore) has(id uuid.UUID) bool {
	_, ok := s.index[id]
	return ok
}

func (s *keyedStore) each(fn func(id uuid.UUID)) {
	for _, id := range s.ids {
		fn(id)
	}
}

func (s *keyedStore) retain(keep func(id uuid.UUID) bool) {
	n := 0
	for _, id := range s.ids {
		if keep(id) {
			s.ids[n] = id
			s.index[id] = n
			n++
		} else {
			delete(s.index, id)
		}
	}
	clear(s.ids[n:])
	s.ids = s.ids[:n]
}
