package service

import "sort"

// idSet is an unordered set of ids.
type idSet map[uint64]struct{}

func newIDSet(ids ...uint64) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) add(id uint64) { s[id] = struct{}{} }

func (s idSet) has(id uint64) bool {
	_, ok := s[id]
	return ok
}

// minus returns the ids of s absent from every other set, sorted.
func (s idSet) minus(others ...idSet) []uint64 {
	out := make([]uint64, 0, len(s))
outer:
	for id := range s {
		for _, o := range others {
			if o.has(id) {
				continue outer
			}
		}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s idSet) sorted() []uint64 { return s.minus() }

// dedupe returns ids without duplicates, preserving first occurrence.
func dedupe(ids []uint64) []uint64 {
	seen := make(idSet, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if !seen.has(id) {
			seen.add(id)
			out = append(out, id)
		}
	}
	return out
}
