package aircraft

// StampedValue is a field value plus the stamp of the change set that last
// changed it. A value that has never been set is not established, so even
// the zero value is recorded the first time it is seen.
type StampedValue[T comparable] struct {
	value       T
	stamp       int64
	established bool
}

// Value returns the current value
func (s *StampedValue[T]) Value() T {
	return s.value
}

// Stamp returns the stamp of the last change, 0 if never set
func (s *StampedValue[T]) Stamp() int64 {
	return s.stamp
}

// Established reports whether the value has ever been set
func (s *StampedValue[T]) Established() bool {
	return s.established
}

// Set stores candidate when it differs from the current value and records
// the change in cs. It returns true when the value changed.
func (s *StampedValue[T]) Set(cs *ChangeSet, field HistoryField, candidate T) bool {
	cs.mustBeOpen()
	if s.established && s.value == candidate {
		return false
	}
	s.value = candidate
	s.stamp = cs.stamp
	s.established = true
	cs.add(ChangedValue[T]{Field: field, Value: candidate})
	return true
}

// SetIfNotDefault is Set, except a zero candidate is ignored
func (s *StampedValue[T]) SetIfNotDefault(cs *ChangeSet, field HistoryField, candidate T) bool {
	cs.mustBeOpen()
	var zero T
	if candidate == zero {
		return false
	}
	return s.Set(cs, field, candidate)
}

// setPtr applies an optional message field. nil means the feed did not
// send it and leaves the value alone.
func setPtr[T comparable](s *StampedValue[T], cs *ChangeSet, field HistoryField, candidate *T) bool {
	if candidate == nil {
		return false
	}
	return s.Set(cs, field, *candidate)
}
