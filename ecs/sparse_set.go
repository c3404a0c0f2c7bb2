package ecs

// SparseSet is a cache-friendly storage for components keyed by entity slot.
// Next to each value it keeps the world change sequence of the last write.
type SparseSet struct {
	denseEntities []Entity
	denseValues   []any
	denseChanged  []uint64
	sparse        []int
}

func (s *SparseSet) index(e Entity) (int, bool) {
	if s == nil {
		return 0, false
	}
	id := int(e.id())
	if id <= 0 || id >= len(s.sparse) {
		return 0, false
	}
	idx := s.sparse[id]
	if idx < 0 || idx >= len(s.denseEntities) || s.denseEntities[idx] != e {
		return 0, false
	}
	return idx, true
}

// Has returns true if the entity has a value in the set.
func (s *SparseSet) Has(e Entity) bool {
	_, ok := s.index(e)
	return ok
}

// Get returns the value for e, or nil.
func (s *SparseSet) Get(e Entity) any {
	idx, ok := s.index(e)
	if !ok {
		return nil
	}
	return s.denseValues[idx]
}

// Changed returns the change sequence of the value for e.
func (s *SparseSet) Changed(e Entity) (uint64, bool) {
	idx, ok := s.index(e)
	if !ok {
		return 0, false
	}
	return s.denseChanged[idx], true
}

// Set inserts or replaces the value for e and stamps it with seq.
func (s *SparseSet) Set(e Entity, v any, seq uint64) {
	if idx, ok := s.index(e); ok {
		s.denseValues[idx] = v
		s.denseChanged[idx] = seq
		return
	}
	id := int(e.id())
	for len(s.sparse) <= id {
		s.sparse = append(s.sparse, -1)
	}
	s.denseEntities = append(s.denseEntities, e)
	s.denseValues = append(s.denseValues, v)
	s.denseChanged = append(s.denseChanged, seq)
	s.sparse[id] = len(s.denseEntities) - 1
}

// Touch restamps the value for e without replacing it.
func (s *SparseSet) Touch(e Entity, seq uint64) bool {
	idx, ok := s.index(e)
	if ok {
		s.denseChanged[idx] = seq
	}
	return ok
}

// Remove deletes the value for e if present.
func (s *SparseSet) Remove(e Entity) bool {
	idx, ok := s.index(e)
	if !ok {
		return false
	}
	last := len(s.denseEntities) - 1
	moved := s.denseEntities[last]

	s.denseEntities[idx] = moved
	s.denseValues[idx] = s.denseValues[last]
	s.denseChanged[idx] = s.denseChanged[last]
	s.sparse[moved.id()] = idx

	s.denseValues[last] = nil
	s.denseEntities = s.denseEntities[:last]
	s.denseValues = s.denseValues[:last]
	s.denseChanged = s.denseChanged[:last]
	s.sparse[e.id()] = -1
	return true
}

// Len returns the number of stored values.
func (s *SparseSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.denseEntities)
}

// Entities returns the dense entity list. Callers must not modify it.
func (s *SparseSet) Entities() []Entity {
	if s == nil {
		return nil
	}
	return s.denseEntities
}

// Values returns the dense value list. Callers must not modify it.
func (s *SparseSet) Values() []any {
	if s == nil {
		return nil
	}
	return s.denseValues
}
