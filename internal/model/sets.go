package model

import "sort"

// IntSet is a set of integer ids.
type IntSet map[int]struct{}

// NewIntSet builds a set from ids.
func NewIntSet(ids ...int) IntSet {
	s := make(IntSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IntSet) Has(id int) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in ascending order.
func (s IntSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Clone returns an independent copy.
func (s IntSet) Clone() IntSet {
	out := make(IntSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// StringSet is a set of string ids.
type StringSet map[string]struct{}

// NewStringSet builds a set from ids.
func NewStringSet(ids ...string) StringSet {
	s := make(StringSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s StringSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	out := make(StringSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}
