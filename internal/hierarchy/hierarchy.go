// Package hierarchy is the type table that owns models and their descendant
// registries.
//
// Every structural change goes through one lock: a retraction cascades into
// an unbounded number of registries, so partial interleaving with another
// mutation would corrupt the flattened views.
package hierarchy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/zjrosen/lineage/internal/descendants"
	"github.com/zjrosen/lineage/internal/log"
	"github.com/zjrosen/lineage/internal/metrics"
	"github.com/zjrosen/lineage/internal/pubsub"
)

// Hierarchy stores declared models by name.
type Hierarchy struct {
	mu      sync.RWMutex
	models  map[string]*Model
	order   []string
	broker  *pubsub.Broker[Change]
	metrics *metrics.Metrics

	// extMu serialises Extend; it is never taken while mu is held.
	extMu      sync.Mutex
	extensions []string
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithMetrics records declarations, inclusions and retractions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hierarchy) { h.metrics = m }
}

// New creates an empty Hierarchy.
func New(opts ...Option) *Hierarchy {
	h := &Hierarchy{
		models: make(map[string]*Model),
		broker: pubsub.NewBroker[Change](),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Ensure Hierarchy can resolve registries for descendant traversal.
var _ descendants.Provider[*Model] = (*Hierarchy)(nil)

// DescendantsOf returns the registry owned by m. It takes no lock: it is
// only called from inside traversals the Hierarchy already guards.
func (h *Hierarchy) DescendantsOf(m *Model) *descendants.Set[*Model] {
	return m.descendants
}

// Declare creates a model and registers it under each parent.
// Listing a parent twice registers the model twice.
func (h *Hierarchy) Declare(name string, parents ...string) (*Model, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.models[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateModel, name)
	}

	owners := make([]*Model, 0, len(parents))
	for _, p := range parents {
		owner, ok := h.models[p]
		if !ok {
			return nil, fmt.Errorf("declaring %s: %w: %s", name, ErrUnknownModel, p)
		}
		owners = append(owners, owner)
	}

	m := &Model{name: name}
	m.descendants = descendants.New[*Model](h)
	for _, owner := range owners {
		owner.descendants.Add(m)
		m.parents = append(m.parents, owner.name)
	}

	h.models[name] = m
	h.order = append(h.order, name)

	log.Debug(log.CatHierarchy, "model declared", "model", name, "parents", strings.Join(m.parents, ","))
	if h.metrics != nil {
		h.metrics.ModelsDeclared.Inc()
	}
	h.broker.Publish(pubsub.CreatedEvent, Change{Model: name, Parents: m.Parents()})

	return m, nil
}

// Include registers child under parent as an additional inclusion path.
// A model may include itself; any other inclusion that would make a model
// reachable from itself is rejected with ErrCycle.
func (h *Hierarchy) Include(child, parent string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.models[child]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, child)
	}
	p, ok := h.models[parent]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, parent)
	}

	if c != p {
		for n := range c.descendants.All() {
			if n == p {
				return fmt.Errorf("%w: %s already descends from %s", ErrCycle, parent, child)
			}
		}
	}

	p.descendants.Add(c)
	c.parents = append(c.parents, p.name)

	log.Debug(log.CatHierarchy, "model included", "model", child, "into", parent)
	if h.metrics != nil {
		h.metrics.ModelsIncluded.Inc()
	}
	h.broker.Publish(pubsub.UpdatedEvent, Change{Model: child, Parents: c.Parents()})

	return nil
}

// Retract removes a model from the table and from every registry that holds
// it. Deletion starts at each registry the model was added to and cascades
// through the registries below it. Children of the retracted model stay
// declared; the retracted name is dropped from their parents.
func (h *Hierarchy) Retract(name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.models[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}

	seen := make(map[string]struct{}, len(m.parents))
	for _, p := range m.parents {
		if _, done := seen[p]; done || p == name {
			continue
		}
		seen[p] = struct{}{}
		h.models[p].descendants.Delete(m)
	}

	for _, c := range m.descendants.Direct() {
		if c == m {
			continue
		}
		c.parents = slices.DeleteFunc(c.parents, func(p string) bool { return p == name })
	}

	delete(h.models, name)
	h.order = slices.DeleteFunc(h.order, func(n string) bool { return n == name })

	log.Debug(log.CatHierarchy, "model retracted", "model", name)
	if h.metrics != nil {
		h.metrics.ModelsRetracted.Inc()
	}
	h.broker.Publish(pubsub.DeletedEvent, Change{Model: name, Parents: slices.Clone(m.parents)})

	return nil
}

// Lookup returns the model declared under name.
func (h *Hierarchy) Lookup(name string) (*Model, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m, ok := h.models[name]
	return m, ok
}

// Names returns declared model names in declaration order.
func (h *Hierarchy) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.order)
}

// Len returns the number of declared models.
func (h *Hierarchy) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.models)
}

// Roots returns the models registered under no other model, in declaration order.
func (h *Hierarchy) Roots() []*Model {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var roots []*Model
	for _, name := range h.order {
		m := h.models[name]
		if !slices.ContainsFunc(m.parents, func(p string) bool { return p != name }) {
			roots = append(roots, m)
		}
	}
	return roots
}

// Descendants returns the flattened descendants of name.
func (h *Hierarchy) Descendants(name string) ([]*Model, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return m.descendants.Slice(), nil
}

// DescendantNames is Descendants reduced to names.
func (h *Hierarchy) DescendantNames(name string) ([]string, error) {
	models, err := h.Descendants(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models))
	for _, m := range models {
		names = append(names, m.name)
	}
	return names, nil
}

// DirectNames returns the names registered directly under name.
func (h *Hierarchy) DirectNames(name string) ([]string, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	direct := m.descendants.Direct()
	names := make([]string, 0, len(direct))
	for _, d := range direct {
		names = append(names, d.name)
	}
	return names, nil
}

// Subscribe streams structural changes until ctx is cancelled.
// Declarations arrive as CreatedEvent, inclusions as UpdatedEvent and
// retractions as DeletedEvent.
func (h *Hierarchy) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return h.broker.Subscribe(ctx)
}

// Close ends all subscriptions.
func (h *Hierarchy) Close() {
	h.broker.Close()
}
