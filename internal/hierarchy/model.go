package hierarchy

import (
	"slices"

	"github.com/zjrosen/lineage/internal/descendants"
)

// Model is one declared type. It owns exactly one descendant Set for its
// whole lifetime, so the Set's address is stable.
type Model struct {
	name        string
	parents     []string
	descendants *descendants.Set[*Model]
}

// Name returns the declared name.
func (m *Model) Name() string { return m.name }

// String implements fmt.Stringer.
func (m *Model) String() string { return m.name }

// Parents returns the models this one is registered under, in registration
// order. A parent reached through two inclusions appears twice.
func (m *Model) Parents() []string { return slices.Clone(m.parents) }

// Descendants returns the model's own registry.
func (m *Model) Descendants() *descendants.Set[*Model] { return m.descendants }

// Change describes a structural mutation, published to subscribers.
type Change struct {
	Model   string
	Parents []string
}
