package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lineage/internal/hierarchy"
	"github.com/zjrosen/lineage/internal/log"
	"github.com/zjrosen/lineage/internal/plugin"
	"github.com/zjrosen/lineage/internal/watcher"
)

var (
	treeRetract []string
	treeWatch   bool
)

var treeCmd = &cobra.Command{
	Use:   "tree <file>",
	Short: "Print a model hierarchy with flattened descendants",
	Long: `Load a YAML hierarchy definition on top of the configured plugins and print
every model with its direct children and its flattened descendants.

A model reachable through two inclusion paths is listed once per path.

Examples:
  lineage tree models.yaml
  lineage tree models.yaml --retract Post
  lineage tree models.yaml --watch`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		path := args[0]

		if err := renderFile(out, path, cfg.Plugins, treeRetract); err != nil {
			return err
		}
		if !treeWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return watchFile(ctx, out, path, cfg.Plugins, treeRetract)
	},
}

func init() {
	treeCmd.Flags().StringSliceVar(&treeRetract, "retract", nil, "retract models (cascading) before printing; repeatable")
	treeCmd.Flags().BoolVarP(&treeWatch, "watch", "w", false, "re-render when the file changes")
	rootCmd.AddCommand(treeCmd)
}

// buildHierarchy loads plugins, then the definition at path, then applies
// retractions in order.
func buildHierarchy(path string, plugins, retract []string) (*hierarchy.Hierarchy, error) {
	h := hierarchy.New()
	if err := plugin.Require(h, plugins...); err != nil {
		h.Close()
		return nil, err
	}
	if err := hierarchy.LoadFile(h, path); err != nil {
		h.Close()
		return nil, err
	}
	for _, name := range retract {
		if err := h.Retract(name); err != nil {
			h.Close()
			return nil, fmt.Errorf("retract: %w", err)
		}
	}
	return h, nil
}

func renderFile(w io.Writer, path string, plugins, retract []string) error {
	h, err := buildHierarchy(path, plugins, retract)
	if err != nil {
		return err
	}
	defer h.Close()
	_, err = io.WriteString(w, renderTree(h))
	return err
}

// renderTree lists each model in declaration order.
func renderTree(h *hierarchy.Hierarchy) string {
	var b strings.Builder
	for _, name := range h.Names() {
		direct, err := h.DirectNames(name)
		if err != nil {
			continue
		}
		all, err := h.DescendantNames(name)
		if err != nil {
			continue
		}

		b.WriteString(modelStyle.Render(name))
		b.WriteByte('\n')
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("direct:     "), joinOrNone(direct))
		fmt.Fprintf(&b, "  %s %s\n", mutedStyle.Render("descendants:"), joinOrNone(all))
	}
	return b.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return mutedStyle.Render("(none)")
	}
	return strings.Join(names, ", ")
}

// watchFile re-renders path on every change until ctx is done. Load errors
// are printed and watching continues.
func watchFile(ctx context.Context, w io.Writer, path string, plugins, retract []string) error {
	fw, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		return err
	}
	defer func() { _ = fw.Stop() }()

	changes, err := fw.Start()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, mutedStyle.Render("watching "+path+" (ctrl-c to stop)"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			fmt.Fprintln(w, headerStyle.Render(path))
			if err := renderFile(w, path, plugins, retract); err != nil {
				log.ErrorErr(log.CatWatcher, "reload failed", err, "path", path)
				fmt.Fprintln(w, errorStyle.Render("error: "+err.Error()))
			}
		}
	}
}
