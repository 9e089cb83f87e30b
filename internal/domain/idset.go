package domain

// IDSet is an insertion-ordered set of user ids. It serializes as a plain
// JSON array.
type IDSet []string

func (s IDSet) Has(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Add returns the set with id appended, unchanged if already present.
func (s IDSet) Add(id string) IDSet {
	if id == "" || s.Has(id) {
		return s
	}
	return append(s, id)
}

// Remove returns the set without id, preserving order.
func (s IDSet) Remove(id string) IDSet {
	out := s[:0:0]
	for _, v := range s {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// SameMembers reports whether both sets contain the same ids regardless of
// order.
func (s IDSet) SameMembers(other IDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for _, v := range s {
		if !other.Has(v) {
			return false
		}
	}
	return true
}
