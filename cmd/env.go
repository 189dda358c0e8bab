package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zjrosen/lineage/internal/config"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after applying defaults, the config file and the
environment, as YAML.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return writeEnv(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(envCmd)
}

// envView is the printed shape of config.Config.
type envView struct {
	Root            string   `yaml:"root"`
	Log             string   `yaml:"log"`
	LogFile         string   `yaml:"log_file,omitempty"`
	Adapter         string   `yaml:"adapter"`
	AdapterSupports string   `yaml:"adapter_supports"`
	Host            string   `yaml:"host"`
	Plugins         []string `yaml:"plugins,flow"`
	Definition      string   `yaml:"definition,omitempty"`
	Tracing         struct {
		Enabled  bool   `yaml:"enabled"`
		Exporter string `yaml:"exporter"`
	} `yaml:"tracing"`
}

func writeEnv(w io.Writer, cfg config.Config) error {
	view := envView{
		Root:            cfg.Root,
		Log:             cfg.Log,
		Adapter:         cfg.Adapter,
		AdapterSupports: cfg.AdapterSupports,
		Host:            cfg.Host,
		Plugins:         cfg.Plugins,
		Definition:      cfg.Definition,
	}
	if path, stdout, enabled := cfg.LogTarget(); enabled && !stdout {
		view.LogFile = path
	}
	view.Tracing.Enabled = cfg.Tracing.Enabled
	view.Tracing.Exporter = cfg.Tracing.Exporter

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
