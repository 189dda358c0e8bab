package templates

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/lineage/internal/hierarchy"
	"github.com/zjrosen/lineage/internal/plugin"
)

func TestDefinitions(t *testing.T) {
	require.Equal(t, []string{"blog", "catalog"}, Definitions())
}

func TestDefinition_Unknown(t *testing.T) {
	_, err := Definition("missing")
	require.ErrorContains(t, err, "have blog, catalog")
}

// Every shipped example must load on top of the builtin plugins.
func TestDefinitions_Load(t *testing.T) {
	for _, name := range Definitions() {
		t.Run(name, func(t *testing.T) {
			data, err := Definition(name)
			require.NoError(t, err)

			h := hierarchy.New()
			defer h.Close()
			require.NoError(t, plugin.Require(h, plugin.Core, plugin.Timestamps))
			require.NoError(t, hierarchy.Load(h, bytes.NewReader(data)))

			names, err := h.DescendantNames(plugin.ResourceModel)
			require.NoError(t, err)
			require.NotEmpty(t, names)
		})
	}
}
