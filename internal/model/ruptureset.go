package model

import (
	"encoding/json"
	"sort"
)

// RuptureIDSet is a set of rupture indices within one fault system.
type RuptureIDSet map[int]struct{}

// NewRuptureIDSet builds a set from ids.
func NewRuptureIDSet(ids ...int) RuptureIDSet {
	s := make(RuptureIDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s RuptureIDSet) Add(id int) {
	s[id] = struct{}{}
}

func (s RuptureIDSet) Contains(id int) bool {
	_, ok := s[id]
	return ok
}

func (s RuptureIDSet) Len() int {
	return len(s)
}

func (s RuptureIDSet) Clone() RuptureIDSet {
	out := make(RuptureIDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Union returns a new set holding members of s or other.
func (s RuptureIDSet) Union(other RuptureIDSet) RuptureIDSet {
	out := s.Clone()
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Intersect returns a new set holding members of both s and other.
func (s RuptureIDSet) Intersect(other RuptureIDSet) RuptureIDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(RuptureIDSet)
	for id := range small {
		if large.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Difference returns a new set holding members of s not in other.
func (s RuptureIDSet) Difference(other RuptureIDSet) RuptureIDSet {
	out := make(RuptureIDSet)
	for id := range s {
		if !other.Contains(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// IsSubsetOf reports whether every member of s is in other.
func (s RuptureIDSet) IsSubsetOf(other RuptureIDSet) bool {
	for id := range s {
		if !other.Contains(id) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same members.
func (s RuptureIDSet) Equal(other RuptureIDSet) bool {
	return len(s) == len(other) && s.IsSubsetOf(other)
}

// Sorted returns the members in ascending order.
func (s RuptureIDSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// MarshalJSON encodes the set as a sorted array.
func (s RuptureIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *RuptureIDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewRuptureIDSet(ids...)
	return nil
}
