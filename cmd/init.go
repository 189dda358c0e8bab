package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zjrosen/lineage/internal/config"
	"github.com/zjrosen/lineage/internal/templates"
)

var (
	initForce   bool
	initExample string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config to .lineage/config.yaml",
	Long: `Write a commented default config to .lineage/config.yaml.

With --example, also write a starter hierarchy definition to models.yaml
next to the config. Available examples: ` + fmt.Sprint(templates.Definitions()),
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := projectConfigPath
		if cfgFile != "" {
			path = cfgFile
		}
		return runInit(cmd.OutOrStdout(), path, initExample, initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
	initCmd.Flags().StringVar(&initExample, "example", "", "also write a starter definition (blog, catalog)")
	rootCmd.AddCommand(initCmd)
}

func runInit(w io.Writer, path, example string, force bool) error {
	var definition []byte
	if example != "" {
		data, err := templates.Definition(example)
		if err != nil {
			return err
		}
		definition = data
	}

	if err := writeIfAbsent(path, force, config.WriteDefaultConfig); err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", path)

	if definition == nil {
		return nil
	}
	defPath := filepath.Join(filepath.Dir(path), "models.yaml")
	err := writeIfAbsent(defPath, force, func(p string) error {
		return os.WriteFile(p, definition, 0o600)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "wrote %s\n", defPath)
	return nil
}

func writeIfAbsent(path string, force bool, write func(string) error) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	return write(path)
}
