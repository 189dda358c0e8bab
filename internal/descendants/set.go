// Package descendants tracks the subtypes of a node in a type hierarchy.
//
// A Set holds the direct children registered under one node. Iterating a Set
// walks into the Sets owned by those children, so the flattened view is live:
// registering a grandchild later is visible through every ancestor without any
// update to the ancestors themselves.
//
// Sets are not safe for concurrent use. Because Delete cascades into every
// reachable Set, callers that share a hierarchy between goroutines must guard
// all structural mutation of that hierarchy with a single lock.
package descendants

import (
	"iter"
	"slices"
)

// Provider resolves the Set owned by a node.
//
// DescendantsOf must return the same *Set for repeated calls with the same
// node. The self-reference guard compares Sets by pointer, so an unstable
// provider breaks both Delete and All.
type Provider[N comparable] interface {
	DescendantsOf(node N) *Set[N]
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc[N comparable] func(node N) *Set[N]

// DescendantsOf calls f(node).
func (f ProviderFunc[N]) DescendantsOf(node N) *Set[N] {
	return f(node)
}

// Set is the ordered list of nodes registered directly under one owner.
// Duplicates are kept: the same node reachable through two inclusion paths
// is registered twice.
type Set[N comparable] struct {
	provider Provider[N]
	direct   []N
}

// New creates a Set seeded with initial. The slice is copied; no
// deduplication takes place.
func New[N comparable](provider Provider[N], initial ...N) *Set[N] {
	return &Set[N]{
		provider: provider,
		direct:   slices.Clone(initial),
	}
}

// Add appends node to the direct children and returns the Set for chaining.
func (s *Set[N]) Add(node N) *Set[N] {
	s.direct = append(s.direct, node)
	return s
}

// Delete removes every occurrence of node from the direct children, then
// removes it from the Set of each remaining direct child, recursively.
// A child whose Set is s itself is skipped. Deleting an unknown node is a no-op.
func (s *Set[N]) Delete(node N) {
	s.direct = slices.DeleteFunc(s.direct, func(d N) bool { return d == node })

	for _, d := range s.direct {
		sub := s.provider.DescendantsOf(d)
		if sub == s {
			continue
		}
		sub.Delete(node)
	}
}

// All returns a fresh depth-first traversal: each direct child followed by
// that child's own descendants. A child is never yielded as its own
// descendant, and a child whose Set is s is not expanded. Nodes reachable
// through several children are yielded once per path.
func (s *Set[N]) All() iter.Seq[N] {
	return func(yield func(N) bool) {
		s.walk(yield)
	}
}

// walk reports false once yield has asked to stop.
func (s *Set[N]) walk(yield func(N) bool) bool {
	for _, d := range s.direct {
		if !yield(d) {
			return false
		}

		sub := s.provider.DescendantsOf(d)
		if sub == s {
			continue
		}

		ok := sub.walk(func(dd N) bool {
			if dd == d {
				return true
			}
			return yield(dd)
		})
		if !ok {
			return false
		}
	}
	return true
}

// Each calls fn for every node All would yield.
func (s *Set[N]) Each(fn func(N)) {
	for n := range s.All() {
		fn(n)
	}
}

// Slice collects All into a new slice.
func (s *Set[N]) Slice() []N {
	return slices.Collect(s.All())
}

// IsEmpty reports whether no node is registered directly under the owner.
// Descendants reachable only through children are not consulted.
func (s *Set[N]) IsEmpty() bool {
	return len(s.direct) == 0
}

// Len returns the number of direct registrations, duplicates included.
func (s *Set[N]) Len() int {
	return len(s.direct)
}

// Direct returns a copy of the direct children in registration order.
func (s *Set[N]) Direct() []N {
	return slices.Clone(s.direct)
}

// Contains reports whether node is a direct child.
func (s *Set[N]) Contains(node N) bool {
	return slices.Contains(s.direct, node)
}
