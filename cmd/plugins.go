package cmd

import (
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lineage/internal/config"
	"github.com/zjrosen/lineage/internal/plugin"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List available plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		writePlugins(cmd.OutOrStdout(), cfg.Plugins)
		return nil
	},
}

var pluginsEnableCmd = &cobra.Command{
	Use:   "enable <name>...",
	Short: "Add plugins to the config file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enabled, err := enablePlugins(cfg.Plugins, args)
		if err != nil {
			return err
		}
		path := configPathForWrite()
		if err := config.SavePlugins(path, enabled); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "plugins saved to %s\n", path)
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsEnableCmd)
	rootCmd.AddCommand(pluginsCmd)
}

func writePlugins(w io.Writer, enabled []string) {
	for _, name := range plugin.Names() {
		mark := mutedStyle.Render("-")
		if slices.Contains(enabled, name) {
			mark = okStyle.Render("*")
		}
		fmt.Fprintf(w, "%s %s\n", mark, name)
	}
}

// enablePlugins appends names to current, rejecting unregistered plugins.
func enablePlugins(current, names []string) ([]string, error) {
	known := plugin.Names()
	out := slices.Clone(current)
	for _, name := range names {
		if !slices.Contains(known, name) {
			return nil, fmt.Errorf("%w: %s", plugin.ErrUnknownPlugin, name)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}
