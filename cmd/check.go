package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lineage/internal/config"
	"github.com/zjrosen/lineage/internal/harness"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Connect the default and alternate storages",
	Long: `Configure the test harness and set up both adapters, reporting whether each
storage accepted a test connection. Exits non-zero when any setup fails.

With --reset, key-value storages (in_memory, redis) are also flushed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runCheck(cmd.Context(), cmd.OutOrStdout(), cfg, checkReset)
	},
}

var checkReset bool

func init() {
	checkCmd.Flags().BoolVar(&checkReset, "reset", false, "flush key-value storages after connecting")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(ctx context.Context, w io.Writer, cfg config.Config, reset bool) error {
	h := harness.New(cfg)
	defer func() { _ = h.Close() }()

	if err := h.Configure(ctx); err != nil {
		return err
	}
	fmt.Fprintf(w, "%s %s (run %s)\n", headerStyle.Render("adapter"), cfg.Adapter, h.RunID())

	failed := 0
	for _, kind := range harness.Kinds() {
		a, err := h.Setup(ctx, kind)
		if err != nil {
			failed++
			fmt.Fprintf(w, "  %-9s %s %v\n", kind, errorStyle.Render("FAIL"), err)
			continue
		}
		fmt.Fprintf(w, "  %-9s %s %s\n", kind, okStyle.Render("ok"), mutedStyle.Render(a.StorageName()))
		if !reset {
			continue
		}
		n, err := h.Reset(ctx, kind)
		switch {
		case errors.Is(err, harness.ErrResetUnsupported):
			fmt.Fprintf(w, "  %-9s %s\n", "", mutedStyle.Render("reset not supported"))
		case err != nil:
			failed++
			fmt.Fprintf(w, "  %-9s %s %v\n", "", errorStyle.Render("FAIL"), err)
		default:
			fmt.Fprintf(w, "  %-9s %s\n", "", mutedStyle.Render(fmt.Sprintf("reset, %d keys removed", n)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d adapters failed", failed, len(harness.Kinds()))
	}
	return nil
}
