package plugin

import (
	"github.com/zjrosen/lineage/internal/hierarchy"
)

// Built-in plugin and model names.
const (
	Core       = "core"
	Timestamps = "timestamps"
	Paranoia   = "paranoia"

	ResourceModel         = "Resource"
	TimestampedModel      = "Timestamped"
	ParanoidResourceModel = "ParanoidResource"
)

func init() {
	Register(Plugin{
		Name: Core,
		Load: func(h *hierarchy.Hierarchy) error {
			_, err := h.Declare(ResourceModel)
			return err
		},
	})

	// Timestamped is mixed into Resource, so every resource is also one of
	// its descendants.
	Register(Plugin{
		Name:     Timestamps,
		Requires: []string{Core},
		Load: func(h *hierarchy.Hierarchy) error {
			if _, err := h.Declare(TimestampedModel); err != nil {
				return err
			}
			if err := h.Include(ResourceModel, TimestampedModel); err != nil {
				_ = h.Retract(TimestampedModel)
				return err
			}
			return nil
		},
	})

	Register(Plugin{
		Name:     Paranoia,
		Requires: []string{Core},
		Load: func(h *hierarchy.Hierarchy) error {
			_, err := h.Declare(ParanoidResourceModel, ResourceModel)
			return err
		},
	})
}
