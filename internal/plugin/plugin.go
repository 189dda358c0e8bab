// Package plugin extends a hierarchy with named bundles of models.
//
// Plugins register in init and are applied with Require. Each plugin is
// applied at most once per hierarchy; its Requires are applied first.
package plugin

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/zjrosen/lineage/internal/hierarchy"
	"github.com/zjrosen/lineage/internal/log"
)

var (
	// ErrUnknownPlugin is returned when no plugin is registered under a name.
	ErrUnknownPlugin = errors.New("unknown plugin")
	// ErrDependencyCycle is returned when plugins require each other.
	ErrDependencyCycle = errors.New("plugin dependency cycle")
)

// Plugin is a named extension of a hierarchy.
type Plugin struct {
	Name     string
	Requires []string // applied before Load
	Load     func(h *hierarchy.Hierarchy) error
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Plugin)
)

// Register makes p available to Require. Registering the same name twice
// panics.
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p.Name == "" || p.Load == nil {
		panic("plugin: Register needs a name and a Load func")
	}
	if _, dup := registry[p.Name]; dup {
		panic("plugin: Register called twice for plugin " + p.Name)
	}
	registry[p.Name] = p
}

// Names returns the registered plugin names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func lookup(name string) (Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[name]
	if !ok {
		return Plugin{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}
	return p, nil
}

// Require applies the named plugins to h in order, dependencies first.
// Plugins already applied to h are skipped. Every name is resolved before
// anything is applied, so an unknown name leaves h untouched.
func Require(h *hierarchy.Hierarchy, names ...string) error {
	var order []Plugin
	visiting := make(map[string]bool)
	for _, name := range names {
		var err error
		if order, err = resolve(name, order, visiting); err != nil {
			return err
		}
	}

	for _, p := range order {
		applied, err := h.Extend(p.Name, p.Load)
		if err != nil {
			log.ErrorErr(log.CatPlugin, "plugin failed", err, "plugin", p.Name)
			return fmt.Errorf("loading plugin %s: %w", p.Name, err)
		}
		if applied {
			log.Info(log.CatPlugin, "plugin loaded", "plugin", p.Name)
		}
	}
	return nil
}

// resolve appends name and its dependencies to order in dependency order.
// visiting holds true for names on the current path and false once done.
func resolve(name string, order []Plugin, visiting map[string]bool) ([]Plugin, error) {
	if onPath, seen := visiting[name]; seen {
		if onPath {
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, name)
		}
		return order, nil
	}

	p, err := lookup(name)
	if err != nil {
		return nil, err
	}

	visiting[name] = true
	for _, dep := range p.Requires {
		if order, err = resolve(dep, order, visiting); err != nil {
			return nil, err
		}
	}
	visiting[name] = false

	return append(order, p), nil
}
