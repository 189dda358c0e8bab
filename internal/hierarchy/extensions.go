package hierarchy

import (
	"slices"

	"github.com/zjrosen/lineage/internal/log"
)

// Extend runs fn once per hierarchy for key. Later calls with the same key
// are no-ops and report applied=false. A failed fn is not recorded, so it
// may be retried. fn must not call Extend.
func (h *Hierarchy) Extend(key string, fn func(*Hierarchy) error) (applied bool, err error) {
	h.extMu.Lock()
	defer h.extMu.Unlock()

	if slices.Contains(h.extensions, key) {
		return false, nil
	}
	if err := fn(h); err != nil {
		return false, err
	}
	h.extensions = append(h.extensions, key)

	log.Debug(log.CatHierarchy, "extension applied", "extension", key)
	return true, nil
}

// Extensions returns the applied extension keys in application order.
func (h *Hierarchy) Extensions() []string {
	h.extMu.Lock()
	defer h.extMu.Unlock()
	return slices.Clone(h.extensions)
}
